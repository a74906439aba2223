package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/fieldserve/internal/domain/model"
	"github.com/dispatchworks/fieldserve/internal/service"
)

func newTestRouter(repo *fakeJobRepo, partners *fakePartnerRepo) http.Handler {
	reputationSvc := service.MustNewReputationService(service.ReputationServiceOptions{
		Partners: partners,
	})
	return NewRouter(RouterServices{
		Jobs: newJobService(repo),
		Claims: service.MustNewClaimService(service.ClaimServiceOptions{
			Jobs:     repo,
			Partners: partners,
			Counter:  &fakeCounter{},
		}),
		Payments: newPaymentService(repo, &fakeVerifier{}),
		Partners: reputationSvc,
	})
}

func TestRouter(t *testing.T) {
	repo := &fakeJobRepo{
		getByID: func(ctx context.Context, id string) (*model.Job, error) {
			return sampleJob(model.JobStatusAvailable, ""), nil
		},
	}
	partners := &fakePartnerRepo{
		getByID: func(ctx context.Context, id string) (*model.PartnerAccount, error) {
			return healthyPartner(id), nil
		},
	}
	router := newTestRouter(repo, partners)

	t.Run("health endpoint", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("job path parameters reach the handler", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var got model.Job
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "j1", got.ID)
	})

	t.Run("partner routes are registered", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/partners/p1/access-level", nil))

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong method is rejected by the mux", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/jobs/j1", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("unknown path is a 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
