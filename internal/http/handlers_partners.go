package httpx

import (
	"net/http"

	"github.com/dispatchworks/fieldserve/internal/domain/reputation"
	"github.com/dispatchworks/fieldserve/internal/service"
)

// PartnerHandlers holds the handlers for partner reputation endpoints.
type PartnerHandlers struct {
	Svc *service.ReputationService
}

// Get handles GET /api/partners/{id} requests.
func (h *PartnerHandlers) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.Svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

type accessLevelResponse struct {
	PartnerID    string                  `json:"partner_id"`
	UnifiedScore float64                 `json:"unified_score"`
	Policy       reputation.AccessPolicy `json:"policy"`
}

// AccessLevel handles GET /api/partners/{id}/access-level requests.
func (h *PartnerHandlers) AccessLevel(w http.ResponseWriter, r *http.Request) {
	account, policy, err := h.Svc.AccessLevel(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, accessLevelResponse{
		PartnerID:    account.ID,
		UnifiedScore: account.UnifiedScore,
		Policy:       policy,
	})
}

type ratingsRequest struct {
	Quality     []float64 `json:"quality"`
	Reliability []float64 `json:"reliability"`
	Warranty    []float64 `json:"warranty"`
}

// RecordRatings handles POST /api/partners/{id}/ratings requests. New
// entries are merged newest-first and the derived scores recomputed.
func (h *PartnerHandlers) RecordRatings(w http.ResponseWriter, r *http.Request) {
	var req ratingsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	account, err := h.Svc.RecordRatings(r.Context(), r.PathValue("id"), reputation.Delta{
		Quality:     req.Quality,
		Reliability: req.Reliability,
		Warranty:    req.Warranty,
	})
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

type appealResponse struct {
	PartnerID string `json:"partner_id"`
	Eligible  bool   `json:"eligible"`
}

// AppealEligibility handles GET /api/partners/{id}/appeal requests,
// reporting whether the suspension cooldown has run its course.
func (h *PartnerHandlers) AppealEligibility(w http.ResponseWriter, r *http.Request) {
	eligible, err := h.Svc.AppealEligible(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, appealResponse{PartnerID: r.PathValue("id"), Eligible: eligible})
}
