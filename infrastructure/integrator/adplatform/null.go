package adplatform

import (
	"context"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

const (
	dryRunIDLength   = 10
	dryRunCharacters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NullClient é a implementação dry-run do Client: usada quando a plataforma
// não tem credenciais configuradas. Gera IDs externos sintéticos com prefixo
// "dryrun_" e nunca retorna métricas fabricadas, de forma que o orquestrador
// executa o mesmo workflow sem ramificações condicionais de dry-run.
type NullClient struct {
	platform domain.Platform
}

// NewNullClient cria um client dry-run para a plataforma informada
func NewNullClient(platform domain.Platform) *NullClient {
	return &NullClient{platform: platform}
}

// Platform identifica a plataforma simulada
func (c *NullClient) Platform() domain.Platform {
	return c.platform
}

// UploadMedia simula o envio de mídia e retorna um ID sintético
func (c *NullClient) UploadMedia(ctx context.Context, mediaPath string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"platform":   c.platform,
		"media_path": mediaPath,
	}).Info("Dry-run: upload de mídia simulado")

	return c.dryRunID()
}

// CreateCreative simula o registro do criativo
func (c *NullClient) CreateCreative(ctx context.Context, spec domain.CreativeSpec, mediaID string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"platform": c.platform,
		"media_id": mediaID,
		"title":    spec.Title,
	}).Info("Dry-run: criação de criativo simulada")

	return c.dryRunID()
}

// CreateAd simula a criação do anúncio
func (c *NullClient) CreateAd(ctx context.Context, adSetID, creativeID, name string) (string, error) {
	logrus.WithFields(logrus.Fields{
		"platform":    c.platform,
		"ad_set_id":   adSetID,
		"creative_id": creativeID,
		"name":        name,
	}).Info("Dry-run: criação de anúncio simulada")

	return c.dryRunID()
}

// SetAdStatus simula a alteração de status do anúncio
func (c *NullClient) SetAdStatus(ctx context.Context, adID string, status AdStatus) error {
	logrus.WithFields(logrus.Fields{
		"platform": c.platform,
		"ad_id":    adID,
		"status":   status,
	}).Info("Dry-run: alteração de status simulada")

	return nil
}

// GetInsights retorna métricas zeradas com o marcador NoData
func (c *NullClient) GetInsights(ctx context.Context, entityID string, window domain.InsightWindow) (*domain.EntityMetrics, error) {
	return &domain.EntityMetrics{NoData: true}, nil
}

func (c *NullClient) dryRunID() (string, error) {
	id, err := gonanoid.Generate(dryRunCharacters, dryRunIDLength)
	if err != nil {
		return "", NewPermanent("dry_run_id", err)
	}
	return "dryrun_" + id, nil
}

var _ Client = (*NullClient)(nil)
