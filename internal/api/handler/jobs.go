package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
	"github.com/vfg2006/ad-publisher-api/internal/usecases/publishing"
	"github.com/vfg2006/ad-publisher-api/pkg/apiErrors"
	"github.com/vfg2006/ad-publisher-api/pkg/log"
)

// GetPublishJob retorna a projeção de um job com estado, passos, tentativas e
// ids externos produzidos
func GetPublishJob(service publishing.Publisher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		id := httprouter.ParamsFromContext(r.Context()).ByName("id")
		logger.WithField("job_id", id).Info("jobs: fetching publish job by ID")

		job, err := service.GetJob(id)
		if err != nil {
			writeJobError(w, logger, id, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(job); err != nil {
			logger.WithFields(log.Fields{
				"job_id": id,
				"error":  err.Error(),
			}).Error("jobs: failed to encode response")

			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// ListPublishJobs lista jobs com filtros opcionais de estado e plataforma
func ListPublishJobs(service publishing.Publisher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		filter, err := parseJobFilter(r)
		if err != nil {
			logger.WithError(err).Warn("jobs: invalid list filters")
			apiErrors.WriteError(w, apiErrors.ErrInvalidRequest, err.Error(), nil)
			return
		}

		jobs, err := service.ListJobs(filter)
		if err != nil {
			logger.WithError(err).Error("jobs: failed to list publish jobs")
			apiErrors.WriteError(w, apiErrors.ErrDatabaseOperation, "Erro ao listar jobs de publicação", nil)
			return
		}

		logger.WithField("total", len(jobs)).Info("jobs: publish jobs listed")

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"jobs":  jobs,
			"total": len(jobs),
		}); err != nil {
			logger.WithError(err).Error("jobs: failed to encode response")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// CancelPublishJob cancela um job não-terminal. Jobs já em estado terminal
// retornam conflito; a chamada de plataforma em andamento não é interrompida,
// mas seu resultado é descartado.
func CancelPublishJob(service publishing.Publisher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		id := httprouter.ParamsFromContext(r.Context()).ByName("id")
		logger.WithField("job_id", id).Info("jobs: cancelling publish job")

		if err := service.CancelJob(id); err != nil {
			writeJobError(w, logger, id, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"job_id": id,
			"state":  string(domain.JobStateCancelled),
		})
	})
}

// RetryPublishJob devolve um job failed à fila. A execução retoma do primeiro
// passo não sucedido, preservando os ids externos já produzidos.
func RetryPublishJob(service publishing.Publisher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		id := httprouter.ParamsFromContext(r.Context()).ByName("id")
		logger.WithField("job_id", id).Info("jobs: retrying publish job")

		if err := service.RetryJob(id); err != nil {
			writeJobError(w, logger, id, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"job_id": id,
			"state":  string(domain.JobStateQueued),
		})
	})
}

// writeJobError mapeia erros do ciclo de vida dos jobs para a resposta HTTP
func writeJobError(w http.ResponseWriter, logger log.Logger, jobID string, err error) {
	switch {
	case errors.Is(err, publishing.ErrJobNotFound):
		logger.WithField("job_id", jobID).Warn("jobs: publish job not found")
		apiErrors.WriteError(w, apiErrors.ErrJobNotFound, "Job de publicação não encontrado", nil)

	case publishing.IsConflict(err):
		logger.WithFields(log.Fields{
			"job_id": jobID,
			"error":  err.Error(),
		}).Warn("jobs: illegal state transition requested")

		apiErrors.WriteError(w, apiErrors.ErrJobConflict, err.Error(), nil)

	default:
		logger.WithFields(log.Fields{
			"job_id": jobID,
			"error":  err.Error(),
		}).Error("jobs: unexpected error")

		apiErrors.WriteError(w, apiErrors.ErrDatabaseOperation, "Erro ao processar operação do job", nil)
	}
}

// parseJobFilter extrai os filtros de listagem da query string
func parseJobFilter(r *http.Request) (*domain.JobFilter, error) {
	filter := &domain.JobFilter{}

	if states := r.URL.Query().Get("state"); states != "" {
		for _, raw := range strings.Split(states, ",") {
			state := domain.JobState(strings.TrimSpace(raw))
			switch state {
			case domain.JobStateQueued, domain.JobStateUploadingMedia,
				domain.JobStateCreatingCreative, domain.JobStateCreatingAd,
				domain.JobStateCompleted, domain.JobStateFailed, domain.JobStateCancelled:
				filter.States = append(filter.States, state)
			default:
				return nil, errors.New("estado de job inválido: " + string(state))
			}
		}
	}

	if rawPlatform := r.URL.Query().Get("platform"); rawPlatform != "" {
		platform := domain.Platform(rawPlatform)
		if !platform.IsValid() {
			return nil, errors.New("plataforma inválida: " + rawPlatform)
		}
		filter.Platform = &platform
	}

	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 0 {
			return nil, errors.New("limite de listagem inválido: " + rawLimit)
		}
		filter.Limit = limit
	}

	return filter, nil
}
