package handler

import (
	"encoding/json"
	"net/http"

	"github.com/vfg2006/ad-publisher-api/internal/usecases/publishing"
	"github.com/vfg2006/ad-publisher-api/pkg/apiErrors"
	"github.com/vfg2006/ad-publisher-api/pkg/log"
)

// PublishAd valida a requisição, enfileira o job de publicação e retorna o ID
// imediatamente. O processamento acontece em background no workflow engine.
func PublishAd(service publishing.Publisher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		var req publishing.PublishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.WithError(err).Warn("publish: invalid request body")
			apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, "Corpo da requisição inválido", nil)
			return
		}

		jobID, err := service.Publish(&req)
		if err != nil {
			if publishing.IsValidation(err) {
				logger.WithFields(log.Fields{
					"platform": req.Platform,
					"error":    err.Error(),
				}).Warn("publish: request validation failed")

				apiErrors.WriteError(w, apiErrors.ErrMissingRequiredData, err.Error(), nil)
				return
			}

			logger.WithError(err).Error("publish: failed to enqueue publish job")
			apiErrors.WriteError(w, apiErrors.ErrDatabaseOperation, "Erro ao criar job de publicação", nil)
			return
		}

		logger.WithFields(log.Fields{
			"job_id":   jobID,
			"platform": req.Platform,
		}).Info("publish: job enqueued")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"job_id": jobID,
			"state":  "queued",
		})
	})
}
