package vaccination

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrEventsDisabled is returned by ListEvents when no event store is
// configured.
var ErrEventsDisabled = errors.New("verification events are not recorded")

// Report is the result of verifying one credential.
type Report struct {
	ID                  uuid.UUID     `json:"id"`
	CheckedAt           time.Time     `json:"checked_at"`
	Issuer              string        `json:"issuer"`
	IssuerURL           string        `json:"issuer_url"`
	RecognizedIssuer    bool          `json:"recognized_issuer"`
	KeyID               string        `json:"key_id,omitempty"`
	PatientName         string        `json:"patient_name"`
	BirthDate           string        `json:"birth_date,omitempty"`
	Doses               []DoseDetail  `json:"doses"`
	DaysSinceLatestDose *int          `json:"days_since_latest_dose,omitempty"`
	Verdict             StatusVerdict `json:"verdict"`
	Credential          string        `json:"credential"`
}

type Service struct {
	decoder Decoder
	events  EventRepository
	logger  zerolog.Logger
	opts    []SessionOption
	metrics *Metrics
	now     func() time.Time
}

// NewService wires a verifier. events may be nil, in which case nothing is
// recorded.
func NewService(dec Decoder, events EventRepository, logger zerolog.Logger, opts ...SessionOption) *Service {
	return &Service{
		decoder: dec,
		events:  events,
		logger:  logger,
		opts:    opts,
		now:     time.Now,
	}
}

// WithMetrics makes the service report to m.
func (s *Service) WithMetrics(m *Metrics) *Service {
	s.metrics = m
	return s
}

// Verify decodes, validates and classifies raw. Decode failures wrap
// ErrDecodeFailure; validation failures wrap the validator's sentinel errors.
func (s *Service) Verify(ctx context.Context, raw string) (*Report, error) {
	start := time.Now()
	ev := &VerificationEvent{ID: uuid.New(), CheckedAt: s.now().UTC()}
	sess := NewSession(s.decoder, s.opts...)

	if err := sess.LoadCredential(ctx, raw); err != nil {
		ev.Outcome = OutcomeDecodeFailed
		s.finish(ctx, ev, start, err)
		return nil, err
	}
	if kid, ok := sess.KeyID(); ok {
		ev.KeyID = &kid
	}
	if err := sess.Validate(); err != nil {
		ev.Outcome = OutcomeInvalid
		s.finish(ctx, ev, start, err)
		return nil, err
	}

	report := &Report{
		ID:               ev.ID,
		CheckedAt:        ev.CheckedAt,
		RecognizedIssuer: sess.IssuerIsRecognizedAuthority(),
		Doses:            sess.Details(),
		Credential:       sess.RawCredential(),
		Verdict:          VerdictUnknown,
	}
	report.Issuer, _ = sess.IssuerDisplay()
	report.IssuerURL = sess.issuer.URL
	report.KeyID, _ = sess.KeyID()
	report.PatientName, _ = sess.PatientDisplayName()
	if bd, ok := sess.PatientBirthDate(); ok {
		report.BirthDate = bd.String()
	}
	if days, ok := sess.DaysSinceLatestDose(); ok {
		report.DaysSinceLatestDose = &days
	}
	if v, ok := sess.StatusVerdict(); ok {
		report.Verdict = v
	}

	ev.Outcome = OutcomeVerified
	ev.IssuerURL = &report.IssuerURL
	ev.DoseCount = sess.ImmunizationCount()
	color := report.Verdict.Color
	ev.Color = &color
	s.finish(ctx, ev, start, nil)
	return report, nil
}

func (s *Service) finish(ctx context.Context, ev *VerificationEvent, start time.Time, err error) {
	s.metrics.ObserveVerification(ev, time.Since(start))

	logEvt := s.logger.Info()
	if err != nil {
		msg := err.Error()
		ev.Error = &msg
		logEvt = s.logger.Warn().Err(err)
	}
	logEvt = logEvt.
		Str("verification_id", ev.ID.String()).
		Str("outcome", string(ev.Outcome)).
		Int("dose_count", ev.DoseCount)
	if ev.IssuerURL != nil {
		logEvt = logEvt.Str("issuer", *ev.IssuerURL)
	}
	if ev.Color != nil {
		logEvt = logEvt.Str("color", string(*ev.Color))
	}
	logEvt.Msg("verification finished")

	if s.events == nil {
		return
	}
	if err := s.events.Create(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("verification_id", ev.ID.String()).Msg("failed to record verification event")
	}
}

// ListEvents pages through recorded verification events, newest first.
func (s *Service) ListEvents(ctx context.Context, limit, offset int) ([]*VerificationEvent, int, error) {
	if s.events == nil {
		return nil, 0, ErrEventsDisabled
	}
	return s.events.List(ctx, limit, offset)
}

// EventsEnabled reports whether verification events are recorded.
func (s *Service) EventsEnabled() bool {
	return s.events != nil
}
