package publishing

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
	"github.com/vfg2006/ad-publisher-api/infrastructure/repository"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

const (
	jobIDLength     = 12
	jobIDCharacters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Service implementa Publisher sobre o repositório de jobs e o registry de
// plataformas. A execução dos jobs fica a cargo do Engine; o Service apenas
// valida, cria e opera o ciclo de vida.
type Service struct {
	jobRepo repository.PublishJobRepository
	clients adplatform.Registry
	engine  *Engine
}

// NewService cria o serviço de publicação
func NewService(
	jobRepo repository.PublishJobRepository,
	clients adplatform.Registry,
	engine *Engine,
) *Service {
	return &Service{
		jobRepo: jobRepo,
		clients: clients,
		engine:  engine,
	}
}

// Publish valida a requisição e enfileira um novo job de publicação
func (s *Service) Publish(req *PublishRequest) (string, error) {
	if err := s.validate(req); err != nil {
		return "", err
	}

	id, err := gonanoid.Generate(jobIDCharacters, jobIDLength)
	if err != nil {
		return "", errors.Wrap(err, "erro ao gerar ID do job")
	}

	job := &domain.PublishJob{
		ID:       id,
		Platform: domain.Platform(req.Platform),
		State:    domain.JobStateQueued,
		Steps:    domain.NewJobSteps(),
		Input: domain.PublishInput{
			CampaignID: req.CampaignID,
			AdSetID:    req.AdSetID,
			MediaPath:  req.MediaPath,
			Creative:   req.Creative,
			Name:       req.Name,
		},
	}

	if err := s.jobRepo.Create(job); err != nil {
		return "", errors.Wrap(ErrDatabaseOperation, err.Error())
	}

	logrus.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"platform": job.Platform,
		"ad_name":  job.Input.Name,
	}).Info("Job de publicação criado e enfileirado")

	// Acorda o engine sem esperar o próximo tick de polling
	if s.engine != nil {
		s.engine.Notify()
	}

	return job.ID, nil
}

// GetJob retorna um job pelo ID
func (s *Service) GetJob(id string) (*domain.PublishJob, error) {
	job, err := s.jobRepo.GetByID(id)
	if err != nil {
		return nil, errors.Wrap(ErrDatabaseOperation, err.Error())
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListJobs lista jobs conforme o filtro
func (s *Service) ListJobs(filter *domain.JobFilter) ([]*domain.PublishJob, error) {
	jobs, err := s.jobRepo.List(filter)
	if err != nil {
		return nil, errors.Wrap(ErrDatabaseOperation, err.Error())
	}
	return jobs, nil
}

// CancelJob marca o job como cancelado. O cancelamento é observado pelo
// workflow entre tentativas; uma chamada de plataforma já em andamento termina
// normalmente mas seu resultado é descartado.
func (s *Service) CancelJob(id string) error {
	job, err := s.GetJob(id)
	if err != nil {
		return err
	}

	cancelled, err := s.jobRepo.Cancel(id)
	if err != nil {
		return errors.Wrap(ErrDatabaseOperation, err.Error())
	}
	if !cancelled {
		return NewConflictError(id, job.State, ErrJobTerminal)
	}

	logrus.WithFields(logrus.Fields{
		"job_id":         id,
		"previous_state": job.State,
	}).Info("Job de publicação cancelado")

	return nil
}

// RetryJob devolve um job failed para a fila. Passos já sucedidos são
// preservados: a execução retoma do primeiro passo não sucedido.
func (s *Service) RetryJob(id string) error {
	job, err := s.GetJob(id)
	if err != nil {
		return err
	}

	requeued, err := s.jobRepo.Requeue(id)
	if err != nil {
		return errors.Wrap(ErrDatabaseOperation, err.Error())
	}
	if !requeued {
		return NewConflictError(id, job.State, ErrJobNotFailed)
	}

	logrus.WithField("job_id", id).Info("Job de publicação devolvido à fila para retentativa")

	if s.engine != nil {
		s.engine.Notify()
	}

	return nil
}

func (s *Service) validate(req *PublishRequest) error {
	if req.Platform == "" {
		return NewValidationError("platform", ErrPlatformRequired)
	}
	platform := domain.Platform(req.Platform)
	if !platform.IsValid() {
		return NewValidationError("platform", ErrUnsupportedPlatform)
	}
	if _, err := s.clients.Resolve(platform); err != nil {
		return NewValidationError("platform", ErrUnsupportedPlatform)
	}
	if req.CampaignID == "" {
		return NewValidationError("campaign_id", ErrCampaignIDRequired)
	}
	if req.AdSetID == "" {
		return NewValidationError("ad_set_id", ErrAdSetIDRequired)
	}
	if req.MediaPath == "" {
		return NewValidationError("media_path", ErrMediaPathRequired)
	}
	if req.Creative.Title == "" {
		return NewValidationError("creative.title", ErrCreativeTitleRequired)
	}
	if req.Creative.Message == "" {
		return NewValidationError("creative.message", ErrCreativeMessageRequired)
	}
	if req.Name == "" {
		return NewValidationError("name", ErrAdNameRequired)
	}
	return nil
}

var _ Publisher = (*Service)(nil)
