package vaccination

import (
	"context"
	"time"

	"github.com/golang-sql/civil"
)

// CDPHIssuer is the California Department of Public Health's health card
// issuer, the authority recognized by default.
const CDPHIssuer = "https://myvaccinerecord.cdph.ca.gov/creds"

// Decoder turns a raw credential into verified, typed records.
type Decoder interface {
	Decode(ctx context.Context, raw string) (*Credential, error)
}

type SessionOption func(*Session)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithLocation sets the time zone in which "today" is taken.
func WithLocation(loc *time.Location) SessionOption {
	return func(s *Session) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithWaitingPeriod(days int) SessionOption {
	return func(s *Session) {
		if days > 0 {
			s.waitingPeriodDays = days
		}
	}
}

// WithRecognizedIssuers replaces the set of issuers treated as a recognized
// authority.
func WithRecognizedIssuers(urls ...string) SessionOption {
	return func(s *Session) {
		s.recognized = make(map[string]bool, len(urls))
		for _, u := range urls {
			s.recognized[u] = true
		}
	}
}

// Session holds one decoded credential and answers questions about it. A
// session is not safe for concurrent use; callers keep one per request.
type Session struct {
	decoder           Decoder
	now               func() time.Time
	loc               *time.Location
	waitingPeriodDays int
	recognized        map[string]bool

	credential *Credential

	// Set together by a successful Validate.
	issuer        *Issuer
	patient       *Patient
	immunizations []Immunization

	days    *int
	verdict *StatusVerdict
}

func NewSession(dec Decoder, opts ...SessionOption) *Session {
	s := &Session{
		decoder:           dec,
		now:               time.Now,
		loc:               time.Local,
		waitingPeriodDays: DefaultWaitingPeriodDays,
		recognized:        map[string]bool{CDPHIssuer: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadCredential decodes raw and replaces whatever the session held before.
// Decoder failures are returned as a *DecodeError.
func (s *Session) LoadCredential(ctx context.Context, raw string) error {
	s.credential = nil
	s.reset()

	cred, err := s.decoder.Decode(ctx, raw)
	if err != nil {
		return &DecodeError{Err: err}
	}
	s.credential = cred
	return nil
}

// Validate checks the loaded bundle and, on success, stores the issuer,
// patient and immunizations. On failure the session keeps no records.
func (s *Session) Validate() error {
	s.reset()
	if s.credential == nil {
		return ErrNoCredential
	}

	patient, imms, err := Validate(s.credential.Bundle)
	if err != nil {
		return err
	}
	issuer := s.credential.Issuer
	s.issuer = &issuer
	s.patient = patient
	s.immunizations = imms
	return nil
}

func (s *Session) reset() {
	s.issuer = nil
	s.patient = nil
	s.immunizations = nil
	s.days = nil
	s.verdict = nil
}

// RawCredential returns the credential text as decoded, e.g. the JWS.
func (s *Session) RawCredential() string {
	if s.credential == nil {
		return ""
	}
	return s.credential.Raw
}

func (s *Session) IssuerDisplay() (string, bool) {
	if s.issuer == nil {
		return "", false
	}
	return s.issuer.Display(), true
}

func (s *Session) IssuerIsRecognizedAuthority() bool {
	return s.issuer != nil && s.recognized[s.issuer.URL]
}

// KeyID returns the signing key id from the credential header, if any.
func (s *Session) KeyID() (string, bool) {
	if s.credential == nil || s.credential.KeyID == nil {
		return "", false
	}
	return *s.credential.KeyID, true
}

func (s *Session) PatientDisplayName() (string, bool) {
	if s.patient == nil {
		return "", false
	}
	return s.patient.DisplayName(), true
}

// PatientBirthDate returns the patient's birth date when the card carries one.
func (s *Session) PatientBirthDate() (civil.Date, bool) {
	if s.patient == nil || s.patient.BirthDate == nil {
		return civil.Date{}, false
	}
	return *s.patient.BirthDate, true
}

func (s *Session) ImmunizationCount() int {
	return len(s.immunizations)
}

func (s *Session) immunization(i int) (Immunization, error) {
	if i < 0 || i >= len(s.immunizations) {
		return Immunization{}, &IndexOutOfRangeError{Index: i, Count: len(s.immunizations)}
	}
	return s.immunizations[i], nil
}

func (s *Session) ImmunizationCode(i int) (string, error) {
	im, err := s.immunization(i)
	if err != nil {
		return "", err
	}
	return im.VaccineCode.String(), nil
}

func (s *Session) ImmunizationOccurrence(i int) (string, error) {
	im, err := s.immunization(i)
	if err != nil {
		return "", err
	}
	return im.Occurrence.String(), nil
}

func (s *Session) ImmunizationProvider(i int) (string, error) {
	im, err := s.immunization(i)
	if err != nil {
		return "", err
	}
	return im.Provider(), nil
}

func (s *Session) ImmunizationLot(i int) (string, error) {
	im, err := s.immunization(i)
	if err != nil {
		return "", err
	}
	return im.Lot(), nil
}

func (s *Session) ImmunizationCompleted(i int) (bool, error) {
	im, err := s.immunization(i)
	if err != nil {
		return false, err
	}
	return im.Completed(), nil
}

// ImmunizationDoseRequirement returns true for a two-dose product, false for a
// one-dose product and nil when the requirement cannot be inferred.
func (s *Session) ImmunizationDoseRequirement(i int) (*bool, error) {
	im, err := s.immunization(i)
	if err != nil {
		return nil, err
	}
	return RequiredDoses(im.VaccineCode).Bool(), nil
}

// Details returns one display row per immunization, in bundle order.
func (s *Session) Details() []DoseDetail {
	details := make([]DoseDetail, len(s.immunizations))
	for i, im := range s.immunizations {
		mark := ColorRed
		if im.Completed() {
			mark = ColorGreen
		}
		details[i] = DoseDetail{
			Mark:     mark,
			Code:     im.VaccineCode.String(),
			Date:     im.Occurrence.String(),
			Location: im.Provider(),
			Lot:      im.Lot(),
		}
	}
	return details
}

// DaysSinceLatestDose is computed once per validated credential so repeated
// reads agree even across midnight.
func (s *Session) DaysSinceLatestDose() (int, bool) {
	if s.days != nil {
		return *s.days, true
	}
	today := civil.DateOf(s.now().In(s.loc))
	days, ok := DaysSinceLatestDose(s.immunizations, today)
	if !ok {
		return 0, false
	}
	s.days = &days
	return days, true
}

// StatusVerdict classifies the stored immunizations. It reports false when
// there are none.
func (s *Session) StatusVerdict() (StatusVerdict, bool) {
	if s.verdict != nil {
		return *s.verdict, true
	}
	if len(s.immunizations) == 0 {
		return StatusVerdict{}, false
	}
	days, _ := s.DaysSinceLatestDose()
	verdict, ok := ClassifyImmunizations(s.immunizations, days, s.waitingPeriodDays)
	if !ok {
		return StatusVerdict{}, false
	}
	s.verdict = &verdict
	return verdict, true
}
