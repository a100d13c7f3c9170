package insighting

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/repository"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

// Erros específicos para o contexto de insights
var (
	ErrEntityIDRequired  = errors.New("entity ID is required")
	ErrInvalidEntityType = errors.New("invalid entity type")
	ErrInvalidPlatform   = errors.New("invalid platform")
	ErrEntityNotFound    = errors.New("watched entity not found")
	ErrInvalidDateRange  = errors.New("start date must be before end date")
)

// WatchRequest registra uma entidade externa para coleta de insights,
// opcionalmente vinculada a uma predição
type WatchRequest struct {
	Platform     string  `json:"platform"`
	EntityType   string  `json:"entity_type"`
	EntityID     string  `json:"entity_id"`
	PredictionID *string `json:"prediction_id,omitempty"`
}

// Insighter define a leitura de insights da API de status e o gerenciamento
// da watch-list de coleta
type Insighter interface {
	// GetEntityInsights retorna os registros e totais de uma entidade no
	// período. NoData quando não há nenhum registro para a janela.
	GetEntityInsights(entityID string, startDate, endDate *time.Time) (*domain.InsightSummary, error)

	// WatchEntity registra uma entidade para coleta periódica de insights
	WatchEntity(req *WatchRequest) error

	// EnableEntity reativa a coleta de uma entidade suprimida por falhas
	EnableEntity(id int64) error
}

type service struct {
	insightRepo repository.InsightRecordRepository
	watchedRepo repository.WatchedEntityRepository
}

// NewService cria o serviço de leitura de insights
func NewService(
	insightRepo repository.InsightRecordRepository,
	watchedRepo repository.WatchedEntityRepository,
) Insighter {
	return &service{
		insightRepo: insightRepo,
		watchedRepo: watchedRepo,
	}
}

func (s *service) GetEntityInsights(entityID string, startDate, endDate *time.Time) (*domain.InsightSummary, error) {
	if entityID == "" {
		return nil, ErrEntityIDRequired
	}

	// Sem datas informadas o período cobre os últimos 30 dias
	end := time.Now()
	if endDate != nil && !endDate.IsZero() {
		end = *endDate
	}
	start := end.AddDate(0, 0, -30)
	if startDate != nil && !startDate.IsZero() {
		start = *startDate
	}
	if start.After(end) {
		return nil, ErrInvalidDateRange
	}

	records, err := s.insightRepo.ListByEntity(entityID, start, end)
	if err != nil {
		return nil, err
	}

	summary := &domain.InsightSummary{
		EntityID: entityID,
	}

	if len(records) == 0 {
		// Ausência de registros é reportada como no_data, nunca como zeros
		summary.NoData = true
		return summary, nil
	}

	summary.Records = records
	summary.Totals = aggregateMetrics(records)

	return summary, nil
}

func (s *service) WatchEntity(req *WatchRequest) error {
	if req.EntityID == "" {
		return ErrEntityIDRequired
	}

	platform := domain.Platform(req.Platform)
	if !platform.IsValid() {
		return ErrInvalidPlatform
	}

	entityType := domain.EntityType(req.EntityType)
	if !entityType.IsValid() {
		return ErrInvalidEntityType
	}

	entity := &domain.WatchedEntity{
		Platform:     platform,
		EntityType:   entityType,
		EntityID:     req.EntityID,
		PredictionID: req.PredictionID,
		Active:       true,
	}

	if err := s.watchedRepo.SaveOrUpdate(entity); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"platform":    platform,
		"entity_type": entityType,
		"entity_id":   req.EntityID,
	}).Info("Entidade registrada para coleta de insights")

	return nil
}

func (s *service) EnableEntity(id int64) error {
	enabled, err := s.watchedRepo.Enable(id)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrEntityNotFound
	}

	logrus.WithField("watched_entity_id", id).Info("Coleta de insights da entidade reativada manualmente")
	return nil
}

// aggregateMetrics soma as métricas dos registros e deriva as taxas sobre os
// totais, com proteção contra divisão por zero
func aggregateMetrics(records []*domain.InsightRecord) *domain.EntityMetrics {
	totals := &domain.EntityMetrics{}

	for _, record := range records {
		if record.Metrics == nil {
			continue
		}
		totals.Impressions += record.Metrics.Impressions
		totals.Clicks += record.Metrics.Clicks
		totals.Spend += record.Metrics.Spend
		totals.Conversions += record.Metrics.Conversions
		totals.Reach += record.Metrics.Reach
	}

	totals.CTR = domain.SafeCTR(totals.Clicks, totals.Impressions)
	if totals.Clicks > 0 {
		totals.CPC = totals.Spend / float64(totals.Clicks)
	}

	return totals
}

var _ Insighter = (*service)(nil)
