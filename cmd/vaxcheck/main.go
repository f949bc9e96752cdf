package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vaxcheck/vaxcheck/internal/config"
	"github.com/vaxcheck/vaxcheck/internal/domain/vaccination"
	"github.com/vaxcheck/vaxcheck/internal/platform/db"
	"github.com/vaxcheck/vaxcheck/internal/platform/middleware"
	"github.com/vaxcheck/vaxcheck/internal/platform/shc"
	"github.com/vaxcheck/vaxcheck/migrations"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vaxcheck",
		Short:         "SMART Health Card vaccination status verifier",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the verification API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [file|-]",
		Short: "Verify one health card and print its vaccination status",
		Long: "Reads a health card (shc:/ QR text or compact JWS) from a file, or from\n" +
			"standard input when the argument is \"-\" or omitted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			noVerify, _ := cmd.Flags().GetBool("no-verify")

			raw, err := readCredential(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if noVerify {
				cfg.VerifySignatures = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			svc, err := newService(cfg, nil, zerolog.Nop(), nil)
			if err != nil {
				return err
			}
			report, err := svc.Verify(cmd.Context(), raw)
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the report as JSON")
	cmd.Flags().Bool("no-verify", false, "Skip signature verification (not allowed in production)")
	return cmd
}

func readCredential(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(io.LimitReader(stdin, shc.DefaultMaxPayloadBytes))
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", errors.New("no credential provided")
	}
	return raw, nil
}

func printReport(w io.Writer, r *vaccination.Report) {
	recognized := "no"
	if r.RecognizedIssuer {
		recognized = "yes"
	}
	fmt.Fprintf(w, "Issuer:     %s (recognized: %s)\n", r.Issuer, recognized)
	if r.KeyID != "" {
		fmt.Fprintf(w, "Key ID:     %s\n", r.KeyID)
	}
	fmt.Fprintf(w, "Patient:    %s\n", r.PatientName)
	if r.BirthDate != "" {
		fmt.Fprintf(w, "Born:       %s\n", r.BirthDate)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-6s %-28s %-26s %-30s %s\n", "MARK", "VACCINE", "DATE", "LOCATION", "LOT")
	for _, d := range r.Doses {
		fmt.Fprintf(w, "%-6s %-28s %-26s %-30s %s\n", d.Mark, d.Code, d.Date, d.Location, d.Lot)
	}
	fmt.Fprintln(w)
	if r.DaysSinceLatestDose != nil {
		fmt.Fprintf(w, "Days since latest dose: %d\n", *r.DaysSinceLatestDose)
	}
	fmt.Fprintf(w, "Status: [%s] %s\n", strings.ToUpper(string(r.Verdict.Color)), r.Verdict.Message)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run event store migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(cmd.Context(), dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Path to a migrations directory (defaults to the built-in migrations)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(cmd.Context(), dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Path to a migrations directory (defaults to the built-in migrations)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func withMigrator(ctx context.Context, dir string, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.EventsEnabled() {
		return errors.New("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, migrationsFS(dir)))
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newService builds the verifier. reg may be nil to skip metrics.
func newService(cfg *config.Config, events vaccination.EventRepository, logger zerolog.Logger, reg prometheus.Registerer) (*vaccination.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	dec := shc.NewDecoder(shc.Options{
		VerifySignatures: cfg.VerifySignatures,
		Keys:             shc.NewJWKSCache(cfg.JWKSCacheTTL, nil, cfg.TrustedIssuers),
	})
	svc := vaccination.NewService(dec, events, logger,
		vaccination.WithLocation(loc),
		vaccination.WithWaitingPeriod(cfg.WaitingPeriodDays),
		vaccination.WithRecognizedIssuers(cfg.RecognizedIssuers...),
	)
	if reg != nil {
		svc.WithMetrics(vaccination.NewMetrics(reg))
	}
	return svc, nil
}

// newServer builds the HTTP server. pool may be nil when no event store is
// configured, and metrics nil when /metrics is not served.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *vaccination.Service, pool *pgxpool.Pool, metrics prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(echomw.BodyLimit("1M"))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	vaccination.NewHandler(svc).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	} else {
		e.GET("/health/db", db.DisabledHealthHandler())
	}
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
	}
	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if !cfg.VerifySignatures {
		logger.Warn().Msg("signature verification is DISABLED; do not use this configuration in production")
	}

	ctx := context.Background()
	var (
		pool   *pgxpool.Pool
		events vaccination.EventRepository
	)
	if cfg.EventsEnabled() {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		events = vaccination.NewEventRepoPG(pool)
		logger.Info().Msg("connected to database")
	} else {
		logger.Info().Msg("DATABASE_URL not set; verification events will not be recorded")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	svc, err := newService(cfg, events, logger, reg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build verification service")
	}
	e := newServer(cfg, logger, svc, pool, reg)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
