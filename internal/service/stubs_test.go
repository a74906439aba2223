package service

import (
	"context"
	"errors"

	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/domain/model"
	"github.com/dispatchworks/fieldserve/internal/domain/reputation"
)

var errStubNotWired = errors.New("stub method not wired")

// stubJobRepo is a hand-rolled core.JobRepository where each method
// delegates to an optional func field.
type stubJobRepo struct {
	getByID             func(ctx context.Context, id string) (*model.Job, error)
	claim               func(ctx context.Context, jobID, partnerID string) (*model.Job, error)
	updateStatus        func(ctx context.Context, change core.StatusChange) (*model.Job, error)
	release             func(ctx context.Context, jobID string) (*model.Job, error)
	setExternalAuth     func(ctx context.Context, jobID string) (*model.Job, error)
	setChecklist        func(ctx context.Context, jobID string, update core.ChecklistUpdate) (*model.Job, error)
	updateItems         func(ctx context.Context, jobID string, items []model.LineItem) (*model.Job, error)
	finalizeAward       func(ctx context.Context, jobID string, points int64) (bool, error)
	addPayment          func(ctx context.Context, jobID string, req *model.AddPaymentRequest) (*model.PaymentRecord, error)
	getPayments         func(ctx context.Context, jobID string) ([]model.PaymentRecord, error)
	getPayment          func(ctx context.Context, jobID string, seq int) (*model.PaymentRecord, error)
	markPaymentVerified func(ctx context.Context, jobID string, seq int) error
	recordConfirmation  func(ctx context.Context, conf core.ExternalConfirmation) error
	waitForUpdate       func(ctx context.Context, jobID string) error
}

var _ core.JobRepository = (*stubJobRepo)(nil)

func (s *stubJobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if s.getByID == nil {
		return nil, errStubNotWired
	}
	return s.getByID(ctx, id)
}

func (s *stubJobRepo) Claim(ctx context.Context, jobID, partnerID string) (*model.Job, error) {
	if s.claim == nil {
		return nil, errStubNotWired
	}
	return s.claim(ctx, jobID, partnerID)
}

func (s *stubJobRepo) UpdateStatus(ctx context.Context, change core.StatusChange) (*model.Job, error) {
	if s.updateStatus == nil {
		return nil, errStubNotWired
	}
	return s.updateStatus(ctx, change)
}

func (s *stubJobRepo) Release(ctx context.Context, jobID string) (*model.Job, error) {
	if s.release == nil {
		return nil, errStubNotWired
	}
	return s.release(ctx, jobID)
}

func (s *stubJobRepo) SetExternalAuthorized(ctx context.Context, jobID string) (*model.Job, error) {
	if s.setExternalAuth == nil {
		return nil, errStubNotWired
	}
	return s.setExternalAuth(ctx, jobID)
}

func (s *stubJobRepo) SetChecklist(
	ctx context.Context,
	jobID string,
	update core.ChecklistUpdate,
) (*model.Job, error) {
	if s.setChecklist == nil {
		return nil, errStubNotWired
	}
	return s.setChecklist(ctx, jobID, update)
}

func (s *stubJobRepo) UpdateItems(
	ctx context.Context,
	jobID string,
	items []model.LineItem,
) (*model.Job, error) {
	if s.updateItems == nil {
		return nil, errStubNotWired
	}
	return s.updateItems(ctx, jobID, items)
}

func (s *stubJobRepo) FinalizeAward(ctx context.Context, jobID string, points int64) (bool, error) {
	if s.finalizeAward == nil {
		return false, errStubNotWired
	}
	return s.finalizeAward(ctx, jobID, points)
}

func (s *stubJobRepo) AddPayment(
	ctx context.Context,
	jobID string,
	req *model.AddPaymentRequest,
) (*model.PaymentRecord, error) {
	if s.addPayment == nil {
		return nil, errStubNotWired
	}
	return s.addPayment(ctx, jobID, req)
}

func (s *stubJobRepo) GetPayments(ctx context.Context, jobID string) ([]model.PaymentRecord, error) {
	if s.getPayments == nil {
		return nil, nil
	}
	return s.getPayments(ctx, jobID)
}

func (s *stubJobRepo) GetPayment(ctx context.Context, jobID string, seq int) (*model.PaymentRecord, error) {
	if s.getPayment == nil {
		return nil, errStubNotWired
	}
	return s.getPayment(ctx, jobID, seq)
}

func (s *stubJobRepo) MarkPaymentVerified(ctx context.Context, jobID string, seq int) error {
	if s.markPaymentVerified == nil {
		return errStubNotWired
	}
	return s.markPaymentVerified(ctx, jobID, seq)
}

func (s *stubJobRepo) RecordExternalConfirmation(ctx context.Context, conf core.ExternalConfirmation) error {
	if s.recordConfirmation == nil {
		return errStubNotWired
	}
	return s.recordConfirmation(ctx, conf)
}

func (s *stubJobRepo) WaitForPaymentUpdate(ctx context.Context, jobID string) error {
	if s.waitForUpdate == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.waitForUpdate(ctx, jobID)
}

// stubPartnerRepo is a hand-rolled core.PartnerRepository.
type stubPartnerRepo struct {
	getByID     func(ctx context.Context, id string) (*model.PartnerAccount, error)
	recalculate func(
		ctx context.Context,
		partnerID string,
		fn func(current model.PartnerAccount) (reputation.Result, error),
	) (*model.PartnerAccount, error)
}

var _ core.PartnerRepository = (*stubPartnerRepo)(nil)

func (s *stubPartnerRepo) GetByID(ctx context.Context, id string) (*model.PartnerAccount, error) {
	if s.getByID == nil {
		return nil, errStubNotWired
	}
	return s.getByID(ctx, id)
}

func (s *stubPartnerRepo) Recalculate(
	ctx context.Context,
	partnerID string,
	fn func(current model.PartnerAccount) (reputation.Result, error),
) (*model.PartnerAccount, error) {
	if s.recalculate == nil {
		return nil, errStubNotWired
	}
	return s.recalculate(ctx, partnerID, fn)
}

// inMemoryPartnerRepo applies recalculations against a held account, the
// way the real repository does inside its transaction.
type inMemoryPartnerRepo struct {
	account model.PartnerAccount
}

var _ core.PartnerRepository = (*inMemoryPartnerRepo)(nil)

func (s *inMemoryPartnerRepo) GetByID(_ context.Context, id string) (*model.PartnerAccount, error) {
	if id != s.account.ID {
		return nil, errStubNotWired
	}
	account := s.account
	return &account, nil
}

func (s *inMemoryPartnerRepo) Recalculate(
	_ context.Context,
	partnerID string,
	fn func(current model.PartnerAccount) (reputation.Result, error),
) (*model.PartnerAccount, error) {
	if partnerID != s.account.ID {
		return nil, errStubNotWired
	}
	result, err := fn(s.account)
	if err != nil {
		return nil, err
	}
	s.account = result.Account
	account := s.account
	return &account, nil
}

// stubCounter is a hand-rolled core.ClaimCounter.
type stubCounter struct {
	reserve  func(ctx context.Context, slot core.ClaimSlot, policy reputation.AccessPolicy) (bool, error)
	release  func(ctx context.Context, slot core.ClaimSlot) error
	reserved int
	released int
}

var _ core.ClaimCounter = (*stubCounter)(nil)

func (s *stubCounter) Reserve(
	ctx context.Context,
	slot core.ClaimSlot,
	policy reputation.AccessPolicy,
) (bool, error) {
	s.reserved++
	if s.reserve == nil {
		return true, nil
	}
	return s.reserve(ctx, slot, policy)
}

func (s *stubCounter) Release(ctx context.Context, slot core.ClaimSlot) error {
	s.released++
	if s.release == nil {
		return nil
	}
	return s.release(ctx, slot)
}

// stubVerifier is a hand-rolled core.VerifierClient.
type stubVerifier struct {
	submit  func(ctx context.Context, req core.VerificationRequest) error
	submits int
}

var _ core.VerifierClient = (*stubVerifier)(nil)

func (s *stubVerifier) Submit(ctx context.Context, req core.VerificationRequest) error {
	s.submits++
	if s.submit == nil {
		return nil
	}
	return s.submit(ctx, req)
}

// stubLedger records reliability events for assertions.
type stubLedger struct {
	credits   []string
	penalties []string
	creditErr error
}

var _ ReliabilityLedger = (*stubLedger)(nil)

func (s *stubLedger) CreditReliability(_ context.Context, partnerID string) error {
	s.credits = append(s.credits, partnerID)
	return s.creditErr
}

func (s *stubLedger) PenalizeReliability(_ context.Context, partnerID string) error {
	s.penalties = append(s.penalties, partnerID)
	return nil
}
