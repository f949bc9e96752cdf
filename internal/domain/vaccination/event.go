package vaccination

import (
	"time"

	"github.com/google/uuid"
)

// Outcome of one verification attempt.
type Outcome string

const (
	OutcomeVerified     Outcome = "verified"
	OutcomeDecodeFailed Outcome = "decode-failed"
	OutcomeInvalid      Outcome = "invalid"
)

// VerificationEvent is the audit record kept for each verification. It holds
// no patient data.
type VerificationEvent struct {
	ID        uuid.UUID `json:"id"`
	CheckedAt time.Time `json:"checked_at"`
	IssuerURL *string   `json:"issuer_url,omitempty"`
	KeyID     *string   `json:"key_id,omitempty"`
	DoseCount int       `json:"dose_count"`
	Color     *Color    `json:"color,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Error     *string   `json:"error,omitempty"`
}
