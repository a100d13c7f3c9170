package domain

import (
	"time"
)

// WatchedEntity é uma entidade externa acompanhada pelo agendador de insights.
// Entra na lista quando um job de publicação é concluído ou quando registrada
// externamente (watch-list), com prediction_id opcional do sistema de predição.
type WatchedEntity struct {
	ID                  int64      `json:"id"`
	Platform            Platform   `json:"platform"`
	EntityType          EntityType `json:"entity_type"`
	EntityID            string     `json:"entity_id"`
	PredictionID        *string    `json:"prediction_id,omitempty"`
	SourceJobID         *string    `json:"source_job_id,omitempty"`
	Active              bool       `json:"active"`
	ConsecutiveFailures int        `json:"consecutive_failures"`

	// InsightsDisabled é ligado após falhas permanentes consecutivas na coleta
	// de métricas e suprime novas tentativas até reativação manual.
	InsightsDisabled bool      `json:"insights_disabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
