package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/domain/model"
	"github.com/dispatchworks/fieldserve/internal/service"
)

// JobHandlers holds the handlers for job endpoints.
type JobHandlers struct {
	Jobs     *service.JobService
	Claims   *service.ClaimService
	Payments *service.PaymentService
}

// Get handles GET /api/jobs/{id} requests.
func (h *JobHandlers) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Claim handles POST /api/jobs/{id}/claim requests. At most one partner
// wins a contested job; losers receive a conflict.
func (h *JobHandlers) Claim(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	job, err := h.Claims.Claim(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

type transitionRequest struct {
	Target model.JobStatus `json:"target"`
}

// Transition handles POST /api/jobs/{id}/transition requests, advancing a
// job one step forward through its lifecycle.
func (h *JobHandlers) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req transitionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Jobs.Transition(r.Context(), r.PathValue("id"), req.Target, actor)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// GetChecklist handles GET /api/jobs/{id}/checklist requests.
func (h *JobHandlers) GetChecklist(w http.ResponseWriter, r *http.Request) {
	state, err := h.Jobs.Checklist(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, state)
}

// UpdateChecklist handles PATCH /api/jobs/{id}/checklist requests. Only
// the fields present in the body are touched, and only upward.
func (h *JobHandlers) UpdateChecklist(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var update core.ChecklistUpdate
	if !DecodeJSON(w, r, &update) {
		return
	}

	job, err := h.Jobs.UpdateChecklist(r.Context(), r.PathValue("id"), actor, update)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

type itemsRequest struct {
	Items []model.LineItem `json:"items"`
}

// UpdateItems handles PUT /api/jobs/{id}/items requests. The replacement
// list may only keep or raise the contracted total.
func (h *JobHandlers) UpdateItems(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req itemsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Jobs.UpdateItems(r.Context(), r.PathValue("id"), actor, req.Items)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Cancel handles POST /api/jobs/{id}/cancellation requests. The job
// returns to the pool; a late cancellation costs the partner reliability.
func (h *JobHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	job, err := h.Jobs.Cancel(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Authorize handles POST /api/jobs/{id}/authorization requests. This is an
// operator action confirming an out-of-band settlement, so it carries no
// partner identity check.
func (h *JobHandlers) Authorize(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.Authorize(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// AddPayment handles POST /api/jobs/{id}/payments requests.
func (h *JobHandlers) AddPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req model.AddPaymentRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	rec, err := h.Payments.AddPayment(r.Context(), r.PathValue("id"), actor, &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, rec)
}

// ListPayments handles GET /api/jobs/{id}/payments requests.
func (h *JobHandlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	records, err := h.Payments.ListPayments(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, records)
}

// Verify handles POST /api/jobs/{id}/payments/{seq}/verify requests. The
// call blocks until the payment reaches a terminal verification state or
// the bounded wait expires; the outcome is returned either way.
func (h *JobHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	seq, ok := paymentSeq(w, r)
	if !ok {
		return
	}

	outcome, err := h.Payments.Verify(r.Context(), r.PathValue("id"), seq, actor)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, outcome)
}

type confirmationRequest struct {
	ConfirmedAmountCents *int64  `json:"confirmed_amount_cents"`
	VerificationError    *string `json:"verification_error"`
}

// Confirm handles POST /api/jobs/{id}/payments/{seq}/confirmation requests,
// the external verifier's asynchronous write-back.
func (h *JobHandlers) Confirm(w http.ResponseWriter, r *http.Request) {
	seq, ok := paymentSeq(w, r)
	if !ok {
		return
	}

	var req confirmationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	err := h.Payments.RecordConfirmation(r.Context(), core.ExternalConfirmation{
		JobID:                r.PathValue("id"),
		Seq:                  seq,
		ConfirmedAmountCents: req.ConfirmedAmountCents,
		VerificationError:    req.VerificationError,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func paymentSeq(w http.ResponseWriter, r *http.Request) (int, bool) {
	seq, err := strconv.Atoi(r.PathValue("seq"))
	if err != nil || seq < 0 {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_seq",
			Err:     errors.New("payment sequence must be a non-negative integer"),
		})
		return 0, false
	}
	return seq, true
}
