package domain

import (
	"time"
)

// PredictionLink vincula métricas observadas a uma previsão feita pelo sistema
// externo de predição. É um objeto de fronteira write-once: emitido uma vez
// por evento de vinculação, nunca persistido localmente.
type PredictionLink struct {
	PredictionID string    `json:"prediction_id"`
	EntityID     string    `json:"entity_id"`
	ActualCTR    float64   `json:"actual_ctr"`
	ActualROAS   *float64  `json:"actual_roas,omitempty"`
	LinkedAt     time.Time `json:"linked_at"`
}
