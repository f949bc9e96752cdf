package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultRecognizedIssuer = "https://myvaccinerecord.cdph.ca.gov/creds"
	defaultTrustedIssuers   = "https://myvaccinerecord.cdph.ca.gov/creds,https://healthcardcert.lawallet.com"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	WaitingPeriodDays int           `mapstructure:"WAITING_PERIOD_DAYS"`
	Timezone          string        `mapstructure:"TIMEZONE"`
	VerifySignatures  bool          `mapstructure:"VERIFY_SIGNATURES"`
	RecognizedIssuers []string      `mapstructure:"RECOGNIZED_ISSUERS"`
	TrustedIssuers    []string      `mapstructure:"TRUSTED_ISSUERS"`
	JWKSCacheTTL      time.Duration `mapstructure:"JWKS_CACHE_TTL"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"WAITING_PERIOD_DAYS", "TIMEZONE", "VERIFY_SIGNATURES",
	"RECOGNIZED_ISSUERS", "TRUSTED_ISSUERS", "JWKS_CACHE_TTL",
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("WAITING_PERIOD_DAYS", 14)
	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("VERIFY_SIGNATURES", true)
	v.SetDefault("RECOGNIZED_ISSUERS", defaultRecognizedIssuer)
	v.SetDefault("TRUSTED_ISSUERS", defaultTrustedIssuers)
	v.SetDefault("JWKS_CACHE_TTL", "5m")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.RecognizedIssuers = splitList(cfg.RecognizedIssuers, v.GetString("RECOGNIZED_ISSUERS"))
	cfg.TrustedIssuers = splitList(cfg.TrustedIssuers, v.GetString("TRUSTED_ISSUERS"))

	return cfg, nil
}

// splitList normalizes comma-separated list values, which may arrive either
// already split or as one string depending on the source.
func splitList(parsed []string, raw string) []string {
	if len(parsed) == 0 && raw != "" {
		parsed = []string{raw}
	}
	var out []string
	for _, p := range parsed {
		for _, item := range strings.Split(p, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EventsEnabled reports whether verification events are persisted.
func (c *Config) EventsEnabled() bool {
	return c.DatabaseURL != ""
}

// Location resolves TIMEZONE, in which "today" is taken for elapsed-day
// counts.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate rejects settings the server cannot run with. Signature checks may
// only be disabled outside production.
func (c *Config) Validate() error {
	if c.WaitingPeriodDays <= 0 {
		return fmt.Errorf("WAITING_PERIOD_DAYS must be positive, got %d", c.WaitingPeriodDays)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.JWKSCacheTTL <= 0 {
		return fmt.Errorf("JWKS_CACHE_TTL must be positive, got %s", c.JWKSCacheTTL)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must be between 0 and DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.IsProduction() && !c.VerifySignatures {
		return fmt.Errorf("VERIFY_SIGNATURES cannot be disabled in production")
	}
	for _, iss := range c.TrustedIssuers {
		if u, err := url.Parse(iss); err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("TRUSTED_ISSUERS entry %q must be an https URL", iss)
		}
	}
	if c.VerifySignatures && len(c.TrustedIssuers) == 0 {
		return fmt.Errorf("TRUSTED_ISSUERS must name at least one issuer when VERIFY_SIGNATURES is on")
	}
	return nil
}
