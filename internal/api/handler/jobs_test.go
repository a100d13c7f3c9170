package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
	"github.com/vfg2006/ad-publisher-api/internal/usecases/publishing"
)

// fakePublisher devolve respostas pré-programadas para os handlers
type fakePublisher struct {
	publishID  string
	publishErr error
	job        *domain.PublishJob
	jobErr     error
	jobs       []*domain.PublishJob
	listErr    error
	lastFilter *domain.JobFilter
	cancelErr  error
	retryErr   error
}

func (f *fakePublisher) Publish(req *publishing.PublishRequest) (string, error) {
	return f.publishID, f.publishErr
}

func (f *fakePublisher) GetJob(id string) (*domain.PublishJob, error) {
	return f.job, f.jobErr
}

func (f *fakePublisher) ListJobs(filter *domain.JobFilter) ([]*domain.PublishJob, error) {
	f.lastFilter = filter
	return f.jobs, f.listErr
}

func (f *fakePublisher) CancelJob(id string) error {
	return f.cancelErr
}

func (f *fakePublisher) RetryJob(id string) error {
	return f.retryErr
}

func newJobsRouter(service publishing.Publisher) *httprouter.Router {
	router := httprouter.New()
	router.Handler(http.MethodPost, "/v1/publish", PublishAd(service))
	router.Handler(http.MethodGet, "/v1/jobs", ListPublishJobs(service))
	router.Handler(http.MethodGet, "/v1/jobs/:id", GetPublishJob(service))
	router.Handler(http.MethodPost, "/v1/jobs/:id/cancel", CancelPublishJob(service))
	router.Handler(http.MethodPost, "/v1/jobs/:id/retry", RetryPublishJob(service))
	return router
}

func TestPublishAd(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		service  *fakePublisher
		validate func(t *testing.T, resp *httptest.ResponseRecorder)
	}{
		{
			name:    "Requisição válida - deve responder 202 com o ID do job",
			body:    `{"platform":"meta","campaign_id":"camp_1","ad_set_id":"adset_1","media_path":"media/banner.png","creative":{"title":"Oferta","message":"Mensagem"},"name":"Anúncio"}`,
			service: &fakePublisher{publishID: "JOBABC123456"},
			validate: func(t *testing.T, resp *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusAccepted, resp.Code)

				var body map[string]string
				require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
				assert.Equal(t, "JOBABC123456", body["job_id"])
				assert.Equal(t, "queued", body["state"])
			},
		},
		{
			name:    "Corpo inválido - deve responder 400 com código de formato",
			body:    `{invalido`,
			service: &fakePublisher{},
			validate: func(t *testing.T, resp *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusBadRequest, resp.Code)

				var body map[string]any
				require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
				assert.Equal(t, "VAL_003", body["code"])
			},
		},
		{
			name: "Erro de validação - deve responder 400 com o campo rejeitado",
			body: `{"platform":"meta"}`,
			service: &fakePublisher{
				publishErr: publishing.NewValidationError("media_path", publishing.ErrMediaPathRequired),
			},
			validate: func(t *testing.T, resp *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusBadRequest, resp.Code)

				var body map[string]any
				require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
				assert.Equal(t, "VAL_002", body["code"])
				assert.Contains(t, body["message"], "media_path")
			},
		},
		{
			name: "Erro de persistência - deve responder 500",
			body: `{"platform":"meta"}`,
			service: &fakePublisher{
				publishErr: publishing.ErrDatabaseOperation,
			},
			validate: func(t *testing.T, resp *httptest.ResponseRecorder) {
				assert.Equal(t, http.StatusInternalServerError, resp.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newJobsRouter(tt.service)

			req := httptest.NewRequest(http.MethodPost, "/v1/publish", strings.NewReader(tt.body))
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			tt.validate(t, resp)
		})
	}
}

func TestGetPublishJob(t *testing.T) {
	t.Run("Job existente - deve retornar a projeção completa", func(t *testing.T) {
		job := &domain.PublishJob{
			ID:       "JOBABC123456",
			Platform: domain.PlatformMeta,
			State:    domain.JobStateCompleted,
			Steps:    domain.NewJobSteps(),
		}
		router := newJobsRouter(&fakePublisher{job: job})

		req := httptest.NewRequest(http.MethodGet, "/v1/jobs/JOBABC123456", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusOK, resp.Code)

		var body domain.PublishJob
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "JOBABC123456", body.ID)
		assert.Equal(t, domain.JobStateCompleted, body.State)
		assert.Len(t, body.Steps, 3)
	})

	t.Run("Job inexistente - deve responder 404", func(t *testing.T) {
		router := newJobsRouter(&fakePublisher{jobErr: publishing.ErrJobNotFound})

		req := httptest.NewRequest(http.MethodGet, "/v1/jobs/NAOEXISTE123", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusNotFound, resp.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "JOB_001", body["code"])
	})
}

func TestListPublishJobs(t *testing.T) {
	t.Run("Filtros válidos - devem ser repassados ao serviço", func(t *testing.T) {
		service := &fakePublisher{jobs: []*domain.PublishJob{}}
		router := newJobsRouter(service)

		req := httptest.NewRequest(http.MethodGet, "/v1/jobs?state=failed,cancelled&platform=meta&limit=10", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusOK, resp.Code)

		require.NotNil(t, service.lastFilter)
		assert.Equal(t, []domain.JobState{domain.JobStateFailed, domain.JobStateCancelled}, service.lastFilter.States)
		require.NotNil(t, service.lastFilter.Platform)
		assert.Equal(t, domain.PlatformMeta, *service.lastFilter.Platform)
		assert.Equal(t, 10, service.lastFilter.Limit)
	})

	t.Run("Estado desconhecido - deve responder 400", func(t *testing.T) {
		router := newJobsRouter(&fakePublisher{})

		req := httptest.NewRequest(http.MethodGet, "/v1/jobs?state=dormindo", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("Limite negativo - deve responder 400", func(t *testing.T) {
		router := newJobsRouter(&fakePublisher{})

		req := httptest.NewRequest(http.MethodGet, "/v1/jobs?limit=-1", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestCancelAndRetryPublishJob(t *testing.T) {
	t.Run("Cancelamento aceito - deve responder com estado cancelled", func(t *testing.T) {
		router := newJobsRouter(&fakePublisher{})

		req := httptest.NewRequest(http.MethodPost, "/v1/jobs/JOBABC123456/cancel", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusOK, resp.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "cancelled", body["state"])
	})

	t.Run("Cancelamento de job terminal - deve responder 409", func(t *testing.T) {
		router := newJobsRouter(&fakePublisher{
			cancelErr: publishing.NewConflictError("JOBABC123456", domain.JobStateCompleted, publishing.ErrJobTerminal),
		})

		req := httptest.NewRequest(http.MethodPost, "/v1/jobs/JOBABC123456/cancel", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusConflict, resp.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "JOB_002", body["code"])
	})

	t.Run("Retentativa aceita - deve responder com estado queued", func(t *testing.T) {
		router := newJobsRouter(&fakePublisher{})

		req := httptest.NewRequest(http.MethodPost, "/v1/jobs/JOBABC123456/retry", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusOK, resp.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
		assert.Equal(t, "queued", body["state"])
	})

	t.Run("Retentativa de job não-failed - deve responder 409", func(t *testing.T) {
		router := newJobsRouter(&fakePublisher{
			retryErr: publishing.NewConflictError("JOBABC123456", domain.JobStateCompleted, publishing.ErrJobNotFailed),
		})

		req := httptest.NewRequest(http.MethodPost, "/v1/jobs/JOBABC123456/retry", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}
