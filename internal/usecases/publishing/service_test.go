package publishing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

func validPublishRequest() *PublishRequest {
	return &PublishRequest{
		Platform:   "meta",
		CampaignID: "camp_1",
		AdSetID:    "adset_1",
		MediaPath:  "media/banner.png",
		Creative: domain.CreativeSpec{
			Title:   "Oferta de Inverno",
			Message: "Aproveite os descontos da estação",
		},
		Name: "Anúncio Inverno 2026",
	}
}

func newTestService(jobRepo *fakePublishJobRepo) *Service {
	clients := adplatform.Registry{
		domain.PlatformMeta: adplatform.NewNullClient(domain.PlatformMeta),
	}
	return NewService(jobRepo, clients, nil)
}

func TestService_Publish(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(req *PublishRequest)
		validate func(t *testing.T, jobID string, err error)
	}{
		{
			name:   "Requisição válida - deve criar job enfileirado com os três passos pendentes",
			mutate: func(req *PublishRequest) {},
			validate: func(t *testing.T, jobID string, err error) {
				require.NoError(t, err)
				assert.Len(t, jobID, 12)
			},
		},
		{
			name: "Plataforma ausente - deve rejeitar de forma síncrona",
			mutate: func(req *PublishRequest) {
				req.Platform = ""
			},
			validate: func(t *testing.T, jobID string, err error) {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.True(t, errors.Is(err, ErrPlatformRequired))
			},
		},
		{
			name: "Plataforma desconhecida - deve rejeitar de forma síncrona",
			mutate: func(req *PublishRequest) {
				req.Platform = "orkut"
			},
			validate: func(t *testing.T, jobID string, err error) {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
			},
		},
		{
			name: "Plataforma conhecida mas não configurada - deve rejeitar de forma síncrona",
			mutate: func(req *PublishRequest) {
				req.Platform = "google"
			},
			validate: func(t *testing.T, jobID string, err error) {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
			},
		},
		{
			name: "Campanha ausente - deve rejeitar de forma síncrona",
			mutate: func(req *PublishRequest) {
				req.CampaignID = ""
			},
			validate: func(t *testing.T, jobID string, err error) {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrCampaignIDRequired))
			},
		},
		{
			name: "Mídia ausente - deve rejeitar de forma síncrona",
			mutate: func(req *PublishRequest) {
				req.MediaPath = ""
			},
			validate: func(t *testing.T, jobID string, err error) {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMediaPathRequired))
			},
		},
		{
			name: "Título do criativo ausente - deve rejeitar de forma síncrona",
			mutate: func(req *PublishRequest) {
				req.Creative.Title = ""
			},
			validate: func(t *testing.T, jobID string, err error) {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrCreativeTitleRequired))
			},
		},
		{
			name: "Nome do anúncio ausente - deve rejeitar de forma síncrona",
			mutate: func(req *PublishRequest) {
				req.Name = ""
			},
			validate: func(t *testing.T, jobID string, err error) {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrAdNameRequired))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobRepo := newFakePublishJobRepo()
			service := newTestService(jobRepo)

			req := validPublishRequest()
			tt.mutate(req)

			jobID, err := service.Publish(req)
			tt.validate(t, jobID, err)
		})
	}
}

func TestService_Publish_PersistsQueuedJob(t *testing.T) {
	jobRepo := newFakePublishJobRepo()
	service := newTestService(jobRepo)

	jobID, err := service.Publish(validPublishRequest())
	require.NoError(t, err)

	job, err := service.GetJob(jobID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStateQueued, job.State)
	assert.Equal(t, domain.PlatformMeta, job.Platform)
	assert.Equal(t, "camp_1", job.Input.CampaignID)

	require.Len(t, job.Steps, 3)
	for _, step := range job.Steps {
		assert.Equal(t, domain.StepStatusPending, step.Status)
		assert.Zero(t, step.Attempts)
	}
}

func TestService_GetJob_NotFound(t *testing.T) {
	service := newTestService(newFakePublishJobRepo())

	job, err := service.GetJob("NAOEXISTE123")
	assert.Nil(t, job)
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestService_CancelJob(t *testing.T) {
	tests := []struct {
		name     string
		state    domain.JobState
		validate func(t *testing.T, service *Service, err error)
	}{
		{
			name:  "Job enfileirado - deve cancelar",
			state: domain.JobStateQueued,
			validate: func(t *testing.T, service *Service, err error) {
				require.NoError(t, err)

				job, getErr := service.GetJob("JOBCANCEL001")
				require.NoError(t, getErr)
				assert.Equal(t, domain.JobStateCancelled, job.State)
				assert.NotNil(t, job.CompletedAt)
			},
		},
		{
			name:  "Job em execução - deve cancelar",
			state: domain.JobStateCreatingCreative,
			validate: func(t *testing.T, service *Service, err error) {
				require.NoError(t, err)
			},
		},
		{
			name:  "Job concluído - deve retornar conflito",
			state: domain.JobStateCompleted,
			validate: func(t *testing.T, service *Service, err error) {
				require.Error(t, err)
				assert.True(t, IsConflict(err))
				assert.True(t, errors.Is(err, ErrJobTerminal))
			},
		},
		{
			name:  "Job já cancelado - deve retornar conflito",
			state: domain.JobStateCancelled,
			validate: func(t *testing.T, service *Service, err error) {
				require.Error(t, err)
				assert.True(t, IsConflict(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobRepo := newFakePublishJobRepo()
			service := newTestService(jobRepo)

			job := newTestJob("JOBCANCEL001")
			job.State = tt.state
			if tt.state.IsTerminal() {
				now := time.Now()
				job.CompletedAt = &now
			}
			require.NoError(t, jobRepo.Create(job))

			err := service.CancelJob("JOBCANCEL001")
			tt.validate(t, service, err)
		})
	}
}

func TestService_RetryJob(t *testing.T) {
	tests := []struct {
		name     string
		state    domain.JobState
		validate func(t *testing.T, service *Service, err error)
	}{
		{
			name:  "Job com falha - deve devolver à fila preservando passos sucedidos",
			state: domain.JobStateFailed,
			validate: func(t *testing.T, service *Service, err error) {
				require.NoError(t, err)

				job, getErr := service.GetJob("JOBRETRY001")
				require.NoError(t, getErr)
				assert.Equal(t, domain.JobStateQueued, job.State)
				assert.Nil(t, job.CompletedAt)
				assert.Equal(t, domain.StepStatusSucceeded, job.Step(domain.StepUploadingMedia).Status,
					"passo sucedido deve ser preservado na retentativa")
			},
		},
		{
			name:  "Job concluído - deve retornar conflito",
			state: domain.JobStateCompleted,
			validate: func(t *testing.T, service *Service, err error) {
				require.Error(t, err)
				assert.True(t, IsConflict(err))
				assert.True(t, errors.Is(err, ErrJobNotFailed))
			},
		},
		{
			name:  "Job em execução - deve retornar conflito",
			state: domain.JobStateUploadingMedia,
			validate: func(t *testing.T, service *Service, err error) {
				require.Error(t, err)
				assert.True(t, IsConflict(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobRepo := newFakePublishJobRepo()
			service := newTestService(jobRepo)

			job := newTestJob("JOBRETRY001")
			job.State = tt.state
			job.Steps[0].Status = domain.StepStatusSucceeded
			job.Steps[0].ExternalID = "media_123"
			require.NoError(t, jobRepo.Create(job))

			err := service.RetryJob("JOBRETRY001")
			tt.validate(t, service, err)
		})
	}
}
