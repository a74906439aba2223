package model

import (
	"errors"
	"strings"
	"time"
)

// PaymentMethod identifies how a job payment was taken.
type PaymentMethod string

const (
	// PaymentMethodElectronic requires verification against the external
	// payment verifier.
	PaymentMethodElectronic PaymentMethod = "electronic"
	// PaymentMethodCash is settled on site and requires manual out-of-band
	// authorization instead of electronic verification.
	PaymentMethodCash PaymentMethod = "cash"
	// PaymentMethodRemote is settled off-platform and, like cash, requires
	// manual authorization.
	PaymentMethodRemote PaymentMethod = "remote"
)

// Valid returns true if the PaymentMethod is one of the closed set.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodElectronic || m == PaymentMethodCash || m == PaymentMethodRemote
}

// RequiresVerification reports whether the method goes through the
// electronic verification protocol.
func (m PaymentMethod) RequiresVerification() bool {
	return m == PaymentMethodElectronic
}

// PaymentRecord is a single payment taken against a job. A verified record
// is locked and never mutated again.
type PaymentRecord struct {
	ID                   string        `json:"id"                               db:"id"`
	JobID                string        `json:"job_id"                           db:"job_id"`
	Seq                  int           `json:"seq"                              db:"seq"`
	AmountCents          int64         `json:"amount_cents"                     db:"amount_cents"`
	Method               PaymentMethod `json:"method"                           db:"method"`
	VerificationID       string        `json:"verification_id"                  db:"verification_id"`
	ConfirmedAmountCents *int64        `json:"confirmed_amount_cents,omitempty" db:"confirmed_amount_cents"`
	VerificationError    *string       `json:"verification_error,omitempty"     db:"verification_error"`
	Verified             bool          `json:"verified"                         db:"verified"`
	Locked               bool          `json:"locked"                           db:"locked"`
	CreatedAt            time.Time     `json:"created_at"                       db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"                       db:"updated_at"`
}

// Settled reports whether the record no longer blocks finalization: either
// verified, or a non-electronic method covered by the job's manual
// authorization flag.
func (p *PaymentRecord) Settled(externalAuthorized bool) bool {
	if p.Verified {
		return true
	}
	if !p.Method.RequiresVerification() {
		return externalAuthorized
	}
	return false
}

// AddPaymentRequest carries a technician-entered payment record.
type AddPaymentRequest struct {
	AmountCents    int64         `json:"amount_cents"`
	Method         PaymentMethod `json:"method"`
	VerificationID string        `json:"verification_id"`
}

// Validate validates the AddPaymentRequest fields.
func (r *AddPaymentRequest) Validate() error {
	if r.AmountCents <= 0 {
		return errors.New("amount must be positive")
	}
	if !r.Method.Valid() {
		return errors.New("invalid payment method")
	}
	if r.Method.RequiresVerification() && strings.TrimSpace(r.VerificationID) == "" {
		return errors.New("verification id is required for electronic payments")
	}
	return nil
}

// VerificationStatus is the terminal status of one verification attempt.
type VerificationStatus string

const (
	// VerificationPending means no terminal outcome has been reached yet.
	VerificationPending VerificationStatus = "pending"
	// VerificationVerified means the confirmed amount matched exactly.
	VerificationVerified VerificationStatus = "verified"
	// VerificationFailed means the verifier reported an error or mismatch.
	VerificationFailed VerificationStatus = "failed"
	// VerificationTimedOut means the bounded wait elapsed with no outcome.
	VerificationTimedOut VerificationStatus = "timed_out"
)

// VerificationOutcome is the result of running the payment verification
// protocol for one payment record. Exactly one terminal status is produced
// per attempt.
type VerificationOutcome struct {
	Status   VerificationStatus `json:"status"`
	Reason   string             `json:"reason,omitempty"`
	Attempts int                `json:"attempts"`
}
