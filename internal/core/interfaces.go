// Package core defines the repository and collaborator interfaces (ports)
// between the service layer and the data/adapters layers. Services depend
// on these contracts, never on concrete implementations.
package core

import (
	"context"
	"time"

	"github.com/dispatchworks/fieldserve/internal/domain/model"
	"github.com/dispatchworks/fieldserve/internal/domain/reputation"
)

// ChecklistUpdate carries optional on-site checklist field updates. Nil
// fields are left unchanged; photo counts only ever grow.
type ChecklistUpdate struct {
	ConfirmItems *bool   `json:"confirm_items,omitempty"`
	BeforePhotos *int    `json:"before_photos,omitempty"`
	AfterPhotos  *int    `json:"after_photos,omitempty"`
	Report       *string `json:"report,omitempty"`
}

// Empty reports whether the update carries no changes.
func (u ChecklistUpdate) Empty() bool {
	return u.ConfirmItems == nil && u.BeforePhotos == nil && u.AfterPhotos == nil && u.Report == nil
}

// StatusChange groups parameters for a conditional status update.
type StatusChange struct {
	JobID string
	From  model.JobStatus
	To    model.JobStatus
}

// ExternalConfirmation is the asynchronous write-back from the external
// payment verifier for one payment record.
type ExternalConfirmation struct {
	JobID                string
	Seq                  int
	ConfirmedAmountCents *int64
	VerificationError    *string
}

// JobRepository defines the persistence contract for jobs and their
// payment records. Claim and UpdateStatus are conditional writes: the
// status precondition is re-checked inside the store's atomic operation,
// never merely before it.
type JobRepository interface {
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// Claim atomically moves an available job to claimed for the partner.
	// At most one caller ever succeeds for a given job.
	Claim(ctx context.Context, jobID, partnerID string) (*model.Job, error)
	// UpdateStatus applies a conditional status change and returns the
	// updated job. A lost race surfaces as an invalid-transition error.
	UpdateStatus(ctx context.Context, change StatusChange) (*model.Job, error)
	// Release returns a claimed or en-route job to the available pool,
	// clearing ownership.
	Release(ctx context.Context, jobID string) (*model.Job, error)
	// SetExternalAuthorized records the manual out-of-band approval that
	// settles cash and remote payments.
	SetExternalAuthorized(ctx context.Context, jobID string) (*model.Job, error)
	// SetChecklist applies checklist field updates while the job is arrived.
	SetChecklist(ctx context.Context, jobID string, update ChecklistUpdate) (*model.Job, error)
	// UpdateItems replaces the item list (policy validated by the caller).
	UpdateItems(ctx context.Context, jobID string, items []model.LineItem) (*model.Job, error)
	// FinalizeAward persists the points value and flips the one-shot
	// reliability-credit flag. won reports whether this call was the one
	// that claimed the credit.
	FinalizeAward(ctx context.Context, jobID string, points int64) (won bool, err error)

	AddPayment(ctx context.Context, jobID string, req *model.AddPaymentRequest) (*model.PaymentRecord, error)
	GetPayments(ctx context.Context, jobID string) ([]model.PaymentRecord, error)
	GetPayment(ctx context.Context, jobID string, seq int) (*model.PaymentRecord, error)
	// MarkPaymentVerified marks a record verified and locks it.
	MarkPaymentVerified(ctx context.Context, jobID string, seq int) error
	// RecordExternalConfirmation stores the verifier's asynchronous
	// write-back and wakes any bounded waiters for the job.
	RecordExternalConfirmation(ctx context.Context, conf ExternalConfirmation) error
	// WaitForPaymentUpdate blocks until a payment record of the job changes
	// or the context is done.
	WaitForPaymentUpdate(ctx context.Context, jobID string) error
}

// PartnerRepository defines the persistence contract for partner accounts.
type PartnerRepository interface {
	GetByID(ctx context.Context, id string) (*model.PartnerAccount, error)
	// Recalculate runs fn against the current account under per-partner
	// serialization and persists the account fn returns, atomically with
	// the read. Concurrent recalculations for one partner never lose
	// updates.
	Recalculate(
		ctx context.Context,
		partnerID string,
		fn func(current model.PartnerAccount) (reputation.Result, error),
	) (*model.PartnerAccount, error)
}

// ClaimSlot identifies a claim-limit reservation for a partner on a
// service date and shift.
type ClaimSlot struct {
	PartnerID string
	Date      time.Time
	Shift     model.Shift
}

// ClaimCounter enforces daily and per-shift claim limits. Reserve is
// atomic: when it reports false the counters are unchanged.
type ClaimCounter interface {
	Reserve(ctx context.Context, slot ClaimSlot, policy reputation.AccessPolicy) (bool, error)
	// Release returns a previously reserved slot, used when the claim
	// itself fails after reservation.
	Release(ctx context.Context, slot ClaimSlot) error
}

// VerificationRequest is the payload submitted to the external payment
// verifier.
type VerificationRequest struct {
	VerificationID      string    `json:"verification_id"`
	ExternalReference   string    `json:"external_reference"`
	ExpectedAmountCents int64     `json:"expected_amount_cents"`
	Timestamp           time.Time `json:"timestamp"`
}

// VerifierClient submits verification requests to the external payment
// verifier. The verifier confirms asynchronously by writing back to the
// job record; Submit only reports acceptance of the request.
type VerifierClient interface {
	Submit(ctx context.Context, req VerificationRequest) error
}
