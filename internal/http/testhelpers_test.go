package httpx

import (
	"context"
	"errors"
	"time"

	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/data"
	"github.com/dispatchworks/fieldserve/internal/domain/model"
	"github.com/dispatchworks/fieldserve/internal/domain/reputation"
	"github.com/dispatchworks/fieldserve/internal/service"
)

var errFakeNotWired = errors.New("fake repository method not wired")

// fakeJobRepo delegates to per-method funcs so each test wires exactly the
// calls it expects.
type fakeJobRepo struct {
	getByID               func(ctx context.Context, id string) (*model.Job, error)
	claim                 func(ctx context.Context, jobID, partnerID string) (*model.Job, error)
	updateStatus          func(ctx context.Context, change core.StatusChange) (*model.Job, error)
	release               func(ctx context.Context, jobID string) (*model.Job, error)
	setExternalAuthorized func(ctx context.Context, jobID string) (*model.Job, error)
	setChecklist          func(ctx context.Context, jobID string, update core.ChecklistUpdate) (*model.Job, error)
	updateItems           func(ctx context.Context, jobID string, items []model.LineItem) (*model.Job, error)
	finalizeAward         func(ctx context.Context, jobID string, points int64) (bool, error)
	addPayment            func(ctx context.Context, jobID string, req *model.AddPaymentRequest) (*model.PaymentRecord, error)
	getPayments           func(ctx context.Context, jobID string) ([]model.PaymentRecord, error)
	getPayment            func(ctx context.Context, jobID string, seq int) (*model.PaymentRecord, error)
	markPaymentVerified   func(ctx context.Context, jobID string, seq int) error
	recordConfirmation    func(ctx context.Context, conf core.ExternalConfirmation) error
	waitForUpdate         func(ctx context.Context, jobID string) error
}

func (f *fakeJobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if f.getByID == nil {
		return nil, errFakeNotWired
	}
	return f.getByID(ctx, id)
}

func (f *fakeJobRepo) Claim(ctx context.Context, jobID, partnerID string) (*model.Job, error) {
	if f.claim == nil {
		return nil, errFakeNotWired
	}
	return f.claim(ctx, jobID, partnerID)
}

func (f *fakeJobRepo) UpdateStatus(ctx context.Context, change core.StatusChange) (*model.Job, error) {
	if f.updateStatus == nil {
		return nil, errFakeNotWired
	}
	return f.updateStatus(ctx, change)
}

func (f *fakeJobRepo) Release(ctx context.Context, jobID string) (*model.Job, error) {
	if f.release == nil {
		return nil, errFakeNotWired
	}
	return f.release(ctx, jobID)
}

func (f *fakeJobRepo) SetExternalAuthorized(ctx context.Context, jobID string) (*model.Job, error) {
	if f.setExternalAuthorized == nil {
		return nil, errFakeNotWired
	}
	return f.setExternalAuthorized(ctx, jobID)
}

func (f *fakeJobRepo) SetChecklist(
	ctx context.Context,
	jobID string,
	update core.ChecklistUpdate,
) (*model.Job, error) {
	if f.setChecklist == nil {
		return nil, errFakeNotWired
	}
	return f.setChecklist(ctx, jobID, update)
}

func (f *fakeJobRepo) UpdateItems(
	ctx context.Context,
	jobID string,
	items []model.LineItem,
) (*model.Job, error) {
	if f.updateItems == nil {
		return nil, errFakeNotWired
	}
	return f.updateItems(ctx, jobID, items)
}

func (f *fakeJobRepo) FinalizeAward(ctx context.Context, jobID string, points int64) (bool, error) {
	if f.finalizeAward == nil {
		return false, errFakeNotWired
	}
	return f.finalizeAward(ctx, jobID, points)
}

func (f *fakeJobRepo) AddPayment(
	ctx context.Context,
	jobID string,
	req *model.AddPaymentRequest,
) (*model.PaymentRecord, error) {
	if f.addPayment == nil {
		return nil, errFakeNotWired
	}
	return f.addPayment(ctx, jobID, req)
}

func (f *fakeJobRepo) GetPayments(ctx context.Context, jobID string) ([]model.PaymentRecord, error) {
	if f.getPayments == nil {
		return nil, nil
	}
	return f.getPayments(ctx, jobID)
}

func (f *fakeJobRepo) GetPayment(ctx context.Context, jobID string, seq int) (*model.PaymentRecord, error) {
	if f.getPayment == nil {
		return nil, errFakeNotWired
	}
	return f.getPayment(ctx, jobID, seq)
}

func (f *fakeJobRepo) MarkPaymentVerified(ctx context.Context, jobID string, seq int) error {
	if f.markPaymentVerified == nil {
		return errFakeNotWired
	}
	return f.markPaymentVerified(ctx, jobID, seq)
}

func (f *fakeJobRepo) RecordExternalConfirmation(ctx context.Context, conf core.ExternalConfirmation) error {
	if f.recordConfirmation == nil {
		return errFakeNotWired
	}
	return f.recordConfirmation(ctx, conf)
}

func (f *fakeJobRepo) WaitForPaymentUpdate(ctx context.Context, jobID string) error {
	if f.waitForUpdate == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.waitForUpdate(ctx, jobID)
}

type fakePartnerRepo struct {
	getByID     func(ctx context.Context, id string) (*model.PartnerAccount, error)
	recalculate func(
		ctx context.Context,
		partnerID string,
		fn func(current model.PartnerAccount) (reputation.Result, error),
	) (*model.PartnerAccount, error)
}

func (f *fakePartnerRepo) GetByID(ctx context.Context, id string) (*model.PartnerAccount, error) {
	if f.getByID == nil {
		return nil, errFakeNotWired
	}
	return f.getByID(ctx, id)
}

func (f *fakePartnerRepo) Recalculate(
	ctx context.Context,
	partnerID string,
	fn func(current model.PartnerAccount) (reputation.Result, error),
) (*model.PartnerAccount, error) {
	if f.recalculate == nil {
		return nil, errFakeNotWired
	}
	return f.recalculate(ctx, partnerID, fn)
}

type fakeCounter struct {
	reserve func(ctx context.Context, slot core.ClaimSlot, policy reputation.AccessPolicy) (bool, error)
}

func (f *fakeCounter) Reserve(
	ctx context.Context,
	slot core.ClaimSlot,
	policy reputation.AccessPolicy,
) (bool, error) {
	if f.reserve == nil {
		return true, nil
	}
	return f.reserve(ctx, slot, policy)
}

func (f *fakeCounter) Release(ctx context.Context, slot core.ClaimSlot) error { return nil }

type fakeVerifier struct {
	submit func(ctx context.Context, req core.VerificationRequest) error
}

func (f *fakeVerifier) Submit(ctx context.Context, req core.VerificationRequest) error {
	if f.submit == nil {
		return nil
	}
	return f.submit(ctx, req)
}

type fakeLedger struct{}

func (fakeLedger) CreditReliability(ctx context.Context, partnerID string) error   { return nil }
func (fakeLedger) PenalizeReliability(ctx context.Context, partnerID string) error { return nil }

func newJobService(repo *fakeJobRepo) *service.JobService {
	return service.MustNewJobService(service.JobServiceOptions{
		Repo:         repo,
		Ledger:       fakeLedger{},
		TimeProvider: data.NewFixedTimeProvider(testDate.Add(9 * time.Hour)),
	})
}

func newPaymentService(repo *fakeJobRepo, verifier *fakeVerifier) *service.PaymentService {
	return service.MustNewPaymentService(service.PaymentServiceOptions{
		Repo:     repo,
		Verifier: verifier,
		Config: service.VerificationConfig{
			BaseTimeout: 20 * time.Millisecond,
			TimeoutStep: 10 * time.Millisecond,
			MaxRetries:  1,
			RetryDelay:  time.Millisecond,
			WaitBudget:  50 * time.Millisecond,
		},
	})
}
