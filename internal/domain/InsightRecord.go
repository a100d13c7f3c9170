package domain

import (
	"time"
)

// EntityType identifica o tipo de entidade externa de uma plataforma
type EntityType string

const (
	EntityTypeAd       EntityType = "ad"
	EntityTypeAdSet    EntityType = "adset"
	EntityTypeCampaign EntityType = "campaign"
)

// IsValid verifica se o tipo de entidade é conhecido
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeAd, EntityTypeAdSet, EntityTypeCampaign:
		return true
	}
	return false
}

// EntityMetrics contém as métricas normalizadas de uma entidade em uma janela.
// Todos os valores são não-negativos; NoData indica que a plataforma não tinha
// dados para a janela (nunca zeros sintetizados como se fossem dados).
type EntityMetrics struct {
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Spend       float64 `json:"spend"`
	Conversions int64   `json:"conversions"`
	Reach       int64   `json:"reach"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	NoData      bool    `json:"no_data,omitempty"`
}

// SafeCTR calcula clicks/impressions com proteção contra divisão por zero.
// Com impressions igual a zero o resultado é sempre zero.
func SafeCTR(clicks, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return float64(clicks) / float64(impressions)
}

// InsightRecord é o registro normalizado de métricas de uma entidade externa
// em uma janela de tempo. Existe no máximo um registro por
// (platform, entity_type, entity_id, window_start, window_end); uma nova
// coleta para a mesma chave faz upsert.
type InsightRecord struct {
	ID          int64          `json:"id"`
	Platform    Platform       `json:"platform"`
	EntityType  EntityType     `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	Metrics     *EntityMetrics `json:"metrics"`
	FetchedAt   time.Time      `json:"fetched_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// InsightWindow define a janela de coleta de métricas
type InsightWindow struct {
	Start time.Time
	End   time.Time
}

// InsightSummary é a projeção de leitura da API de status para uma entidade
type InsightSummary struct {
	EntityID string           `json:"entity_id"`
	NoData   bool             `json:"no_data"`
	Records  []*InsightRecord `json:"records,omitempty"`
	Totals   *EntityMetrics   `json:"totals,omitempty"`
}
