package predicting

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/internal/config"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Linker encaminha métricas realizadas ao serviço de predição, permitindo a
// comparação entre o previsto e o observado
type Linker interface {
	// LinkInsights associa as métricas realizadas ao prediction_id de origem
	LinkInsights(link *domain.PredictionLink) error
}

// WebhookLinker envia os vínculos via webhook HTTP para o serviço de predição
type WebhookLinker struct {
	webhookURL string
	httpClient *http.Client
}

// NewLinker cria o linker conforme a configuração: webhook quando há URL
// configurada, caso contrário um no-op que apenas registra em log
func NewLinker(cfg *config.Config) Linker {
	if cfg.Prediction.WebhookURL == "" {
		logrus.Info("Webhook de predição não configurado; vínculos de insights serão apenas logados")
		return &NoopLinker{}
	}

	timeout := time.Duration(cfg.Prediction.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookLinker{
		webhookURL: cfg.Prediction.WebhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LinkInsights envia o vínculo ao serviço de predição. Falhas aqui não
// interrompem o ciclo de sincronização; o chamador apenas registra o erro.
func (l *WebhookLinker) LinkInsights(link *domain.PredictionLink) error {
	body, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("erro ao serializar vínculo de predição: %w", err)
	}

	resp, err := l.httpClient.Post(l.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("erro ao enviar vínculo ao serviço de predição: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("serviço de predição retornou status %d", resp.StatusCode)
	}

	logrus.WithFields(logrus.Fields{
		"prediction_id": link.PredictionID,
		"entity_id":     link.EntityID,
	}).Info("Vínculo de predição enviado com sucesso")

	return nil
}

// NoopLinker registra o vínculo em log sem encaminhá-lo a nenhum serviço
type NoopLinker struct{}

// LinkInsights apenas loga o vínculo
func (l *NoopLinker) LinkInsights(link *domain.PredictionLink) error {
	logrus.WithFields(logrus.Fields{
		"prediction_id": link.PredictionID,
		"entity_id":     link.EntityID,
	}).Info("Vínculo de predição registrado (modo no-op)")
	return nil
}

var (
	_ Linker = (*WebhookLinker)(nil)
	_ Linker = (*NoopLinker)(nil)
)
