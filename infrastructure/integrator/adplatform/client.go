package adplatform

import (
	"context"

	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

// AdStatus representa o status de um anúncio na plataforma externa
type AdStatus string

const (
	AdStatusActive AdStatus = "ACTIVE"
	AdStatusPaused AdStatus = "PAUSED"
)

//go:generate mockgen -source=client.go -destination=mocks/client_mock.go -package=mocks

// Client é a abstração de capacidade sobre as operações de escrita/leitura de
// uma única plataforma de anúncios. O orquestrador depende somente deste
// contrato, nunca de um SDK concreto; novas plataformas são adicionadas
// implementando a interface.
//
// Todos os métodos retornam erros classificados pela taxonomia deste pacote:
// transitório (timeout de rede, rate limit, 5xx) ou permanente (id inválido,
// falha de autenticação, erro de validação).
type Client interface {
	// Platform identifica a plataforma atendida por esta implementação
	Platform() domain.Platform

	// UploadMedia envia a mídia do anúncio e retorna o ID externo gerado
	UploadMedia(ctx context.Context, mediaPath string) (string, error)

	// CreateCreative registra o criativo e retorna o ID externo gerado
	CreateCreative(ctx context.Context, spec domain.CreativeSpec, mediaID string) (string, error)

	// CreateAd cria o anúncio no conjunto informado e retorna o ID externo
	CreateAd(ctx context.Context, adSetID, creativeID, name string) (string, error)

	// SetAdStatus altera o status de um anúncio já criado
	SetAdStatus(ctx context.Context, adID string, status AdStatus) error

	// GetInsights busca as métricas da entidade na janela informada. Quando a
	// plataforma não tem dados para a janela retorna métricas zeradas com o
	// marcador NoData, nunca valores sintetizados.
	GetInsights(ctx context.Context, entityID string, window domain.InsightWindow) (*domain.EntityMetrics, error)
}

// Registry resolve o Client concreto de cada plataforma configurada
type Registry map[domain.Platform]Client

// Resolve retorna o client da plataforma ou erro permanente se desconhecida
func (r Registry) Resolve(platform domain.Platform) (Client, error) {
	client, ok := r[platform]
	if !ok {
		return nil, NewPermanent("registry", ErrUnsupportedPlatform)
	}
	return client, nil
}
