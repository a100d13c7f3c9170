package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/internal/scheduler"
	"github.com/vfg2006/ad-publisher-api/internal/usecases/publishing"
	"github.com/vfg2006/ad-publisher-api/pkg/apiErrors"
)

// CronJobType define o tipo de cron job que será executada
const (
	CronJobTypeInsights = "insights"
	CronJobTypeAll      = "all"
)

// CronJobServices contém os serviços em background expostos para disparo e
// inspeção manuais
type CronJobServices struct {
	InsightSyncService *scheduler.InsightSyncService
	PublisherEngine    *publishing.Engine
}

// RunCronJob executa manualmente uma cron job específica
func RunCronJob(services CronJobServices) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logrus.Info("INIT - RunCronJob")

		// Obter o tipo de cron job da URL
		cronType := httprouter.ParamsFromContext(r.Context()).ByName("type")
		if cronType == "" {
			apiErrors.WriteError(w, apiErrors.ErrMissingRequiredData, "Tipo de cron job não especificado", nil)
			return
		}

		// Validar o tipo de cron job
		switch cronType {
		case CronJobTypeInsights:
			// Executar sincronização de insights
			if services.InsightSyncService == nil {
				apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Serviço de sincronização de insights não disponível", nil)
				return
			}
			services.InsightSyncService.TriggerManualSync()

		case CronJobTypeAll:
			if services.InsightSyncService != nil {
				services.InsightSyncService.TriggerManualSync()
			}

		default:
			apiErrors.WriteError(w, apiErrors.ErrInvalidRequest, "Tipo de cron job inválido. Valores aceitos: insights, all", nil)
			return
		}

		// Responder com sucesso
		response := map[string]any{
			"message": "Cron job iniciada com sucesso",
			"type":    cronType,
		}
		json.NewEncoder(w).Encode(response)
	}
}

// GetCronStatus retorna o status das cron jobs e do workflow engine
func GetCronStatus(services CronJobServices) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logrus.Info("INIT - GetCronStatus")

		status := map[string]any{}
		if services.InsightSyncService != nil {
			status["insights"] = services.InsightSyncService.GetStatus()
		}
		if services.PublisherEngine != nil {
			status["publisher"] = services.PublisherEngine.GetStatus()
		}

		json.NewEncoder(w).Encode(status)
	}
}
