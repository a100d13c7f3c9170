package publishing

import (
	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

// PublishRequest é a fronteira de entrada de uma publicação de anúncio
type PublishRequest struct {
	Platform   string              `json:"platform"`
	CampaignID string              `json:"campaign_id"`
	AdSetID    string              `json:"ad_set_id"`
	MediaPath  string              `json:"media_path"`
	Creative   domain.CreativeSpec `json:"creative"`
	Name       string              `json:"name"`
}

// Publisher define as operações de ciclo de vida de jobs de publicação
// expostas pela API de status
type Publisher interface {
	// Publish valida a requisição, cria o job enfileirado e retorna o ID
	// imediatamente (processamento assíncrono)
	Publish(req *PublishRequest) (string, error)

	// GetJob retorna a projeção de um job pelo ID
	GetJob(id string) (*domain.PublishJob, error)

	// ListJobs retorna a projeção de jobs conforme o filtro
	ListJobs(filter *domain.JobFilter) ([]*domain.PublishJob, error)

	// CancelJob cancela um job não-terminal; ConflictError se já terminal
	CancelJob(id string) error

	// RetryJob devolve um job failed à fila, retomando do primeiro passo
	// não sucedido; ConflictError se o job não está em failed
	RetryJob(id string) error
}
