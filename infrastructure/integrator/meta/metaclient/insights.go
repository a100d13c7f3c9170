package metaclient

import (
	"context"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
	metadomain "github.com/vfg2006/ad-publisher-api/infrastructure/integrator/meta/domain"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

type responseInsights struct {
	Data []metadomain.InsightRow `json:"data"`
}

// GetInsights busca as métricas de uma entidade (anúncio, conjunto ou
// campanha) na janela informada e normaliza para o modelo interno. Janela sem
// dados retorna métricas zeradas com o marcador NoData, nunca valores
// fabricados em falha parcial.
func (c *MetaClient) GetInsights(ctx context.Context, entityID string, window domain.InsightWindow) (*domain.EntityMetrics, error) {
	const op = "get_insights"

	params := url.Values{}
	params.Set("fields", "impressions,clicks,spend,reach,ctr,cpc,actions")
	params.Set("time_range", insightWindowParam(window))

	body, err := c.get(ctx, op, "/"+entityID+"/insights", params)
	if err != nil {
		return nil, err
	}

	var response responseInsights
	if err := json.Unmarshal(body, &response); err != nil {
		logrus.WithError(err).Error("Erro ao decodificar resposta de insights do Meta")
		return nil, adplatform.NewPermanent(op, err)
	}

	if len(response.Data) == 0 {
		return &domain.EntityMetrics{NoData: true}, nil
	}

	row := response.Data[0]
	metrics := &domain.EntityMetrics{
		Impressions: row.ImpressionsValue(),
		Clicks:      row.ClicksValue(),
		Spend:       row.SpendValue(),
		Conversions: row.ConversionsValue(),
		Reach:       row.ReachValue(),
		CPC:         row.CPCValue(),
	}
	metrics.CTR = domain.SafeCTR(metrics.Clicks, metrics.Impressions)

	return metrics, nil
}
