package httpx

import (
	"log/slog"
	"net/http"

	"github.com/dispatchworks/fieldserve/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     *service.JobService
	Claims   *service.ClaimService
	Payments *service.PaymentService
	Partners *service.ReputationService
	Logger   *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{
		Jobs:     services.Jobs,
		Claims:   services.Claims,
		Payments: services.Payments,
	}
	partnerHandlers := &PartnerHandlers{Svc: services.Partners}

	registerJobRoutes(mux, jobHandlers)
	registerPartnerRoutes(mux, partnerHandlers)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("GET /api/jobs/{id}", h.Get)
	mux.HandleFunc("POST /api/jobs/{id}/claim", h.Claim)
	mux.HandleFunc("POST /api/jobs/{id}/transition", h.Transition)
	mux.HandleFunc("GET /api/jobs/{id}/checklist", h.GetChecklist)
	mux.HandleFunc("PATCH /api/jobs/{id}/checklist", h.UpdateChecklist)
	mux.HandleFunc("PUT /api/jobs/{id}/items", h.UpdateItems)
	mux.HandleFunc("POST /api/jobs/{id}/cancellation", h.Cancel)
	mux.HandleFunc("POST /api/jobs/{id}/authorization", h.Authorize)
	mux.HandleFunc("POST /api/jobs/{id}/payments", h.AddPayment)
	mux.HandleFunc("GET /api/jobs/{id}/payments", h.ListPayments)
	mux.HandleFunc("POST /api/jobs/{id}/payments/{seq}/verify", h.Verify)
	mux.HandleFunc("POST /api/jobs/{id}/payments/{seq}/confirmation", h.Confirm)
}

func registerPartnerRoutes(mux *http.ServeMux, h *PartnerHandlers) {
	mux.HandleFunc("GET /api/partners/{id}", h.Get)
	mux.HandleFunc("GET /api/partners/{id}/access-level", h.AccessLevel)
	mux.HandleFunc("GET /api/partners/{id}/appeal", h.AppealEligibility)
	mux.HandleFunc("POST /api/partners/{id}/ratings", h.RecordRatings)
}
