package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/vfg2006/ad-publisher-api/internal/usecases/insighting"
	"github.com/vfg2006/ad-publisher-api/pkg/apiErrors"
	"github.com/vfg2006/ad-publisher-api/pkg/log"
	"github.com/vfg2006/ad-publisher-api/pkg/utils"
)

// GetEntityInsights retorna os registros de insights e os totais agregados de
// uma entidade externa no período informado
func GetEntityInsights(service insighting.Insighter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		entityID := httprouter.ParamsFromContext(r.Context()).ByName("entityId")
		logger.WithField("entity_id", entityID).Info("insights: fetching entity insights")

		startDate, err := utils.ParseDate(r.URL.Query().Get("start_date"))
		if err != nil {
			logger.WithFields(log.Fields{
				"entity_id":  entityID,
				"start_date": r.URL.Query().Get("start_date"),
				"error":      err.Error(),
			}).Warn("insights: invalid start_date parameter")

			apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, "Parâmetro start_date inválido", nil)
			return
		}

		endDate, err := utils.ParseDate(r.URL.Query().Get("end_date"))
		if err != nil {
			logger.WithFields(log.Fields{
				"entity_id": entityID,
				"end_date":  r.URL.Query().Get("end_date"),
				"error":     err.Error(),
			}).Warn("insights: invalid end_date parameter")

			apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, "Parâmetro end_date inválido", nil)
			return
		}

		summary, err := service.GetEntityInsights(entityID, startDate, endDate)
		if err != nil {
			if errors.Is(err, insighting.ErrEntityIDRequired) || errors.Is(err, insighting.ErrInvalidDateRange) {
				logger.WithError(err).Warn("insights: invalid request")
				apiErrors.WriteError(w, apiErrors.ErrInvalidRequest, err.Error(), nil)
				return
			}

			logger.WithFields(log.Fields{
				"entity_id": entityID,
				"error":     err.Error(),
			}).Error("insights: failed to get entity insights")

			apiErrors.WriteError(w, apiErrors.ErrDatabaseOperation, "Erro ao consultar insights", nil)
			return
		}

		if summary.NoData {
			logger.WithField("entity_id", entityID).Info("insights: no data for entity in period")
		} else {
			logger.WithFields(log.Fields{
				"entity_id": entityID,
				"records":   len(summary.Records),
			}).Info("insights: entity insights retrieved")
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			logger.WithFields(log.Fields{
				"entity_id": entityID,
				"error":     err.Error(),
			}).Error("insights: failed to encode response")

			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// WatchEntity registra uma entidade externa para coleta periódica de insights,
// opcionalmente vinculada a um prediction_id
func WatchEntity(service insighting.Insighter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		var req insighting.WatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.WithError(err).Warn("insights: invalid watch request body")
			apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, "Corpo da requisição inválido", nil)
			return
		}

		if err := service.WatchEntity(&req); err != nil {
			switch {
			case errors.Is(err, insighting.ErrEntityIDRequired),
				errors.Is(err, insighting.ErrInvalidPlatform),
				errors.Is(err, insighting.ErrInvalidEntityType):
				logger.WithError(err).Warn("insights: watch request validation failed")
				apiErrors.WriteError(w, apiErrors.ErrMissingRequiredData, err.Error(), nil)

			default:
				logger.WithError(err).Error("insights: failed to register watched entity")
				apiErrors.WriteError(w, apiErrors.ErrDatabaseOperation, "Erro ao registrar entidade", nil)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"entity_id": req.EntityID,
			"status":    "watching",
		})
	})
}

// EnableWatchedEntity reativa manualmente a coleta de uma entidade suprimida
// após falhas permanentes consecutivas
func EnableWatchedEntity(service insighting.Insighter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		rawID := httprouter.ParamsFromContext(r.Context()).ByName("id")
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			logger.WithField("id", rawID).Warn("insights: invalid watched entity id")
			apiErrors.WriteError(w, apiErrors.ErrInvalidFormat, "ID de entidade inválido", nil)
			return
		}

		if err := service.EnableEntity(id); err != nil {
			if errors.Is(err, insighting.ErrEntityNotFound) {
				logger.WithField("id", id).Warn("insights: watched entity not found")
				apiErrors.WriteError(w, apiErrors.ErrEntityNotFound, "Entidade acompanhada não encontrada", nil)
				return
			}

			logger.WithFields(log.Fields{
				"id":    id,
				"error": err.Error(),
			}).Error("insights: failed to enable watched entity")

			apiErrors.WriteError(w, apiErrors.ErrDatabaseOperation, "Erro ao reativar entidade", nil)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":         id,
			"enabled_at": time.Now(),
		})
	})
}
