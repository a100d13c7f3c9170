package publishing

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform/mocks"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
	"github.com/vfg2006/ad-publisher-api/pkg/retry"
	"go.uber.org/mock/gomock"
)

// fakePublishJobRepo é um repositório em memória com a mesma semântica de
// escrita guardada do repositório Postgres (transições bloqueadas em estados
// terminais)
type fakePublishJobRepo struct {
	mu           sync.Mutex
	jobs         map[string]*domain.PublishJob
	claims       map[string]string
	claimExpires map[string]time.Time
}

func newFakePublishJobRepo() *fakePublishJobRepo {
	return &fakePublishJobRepo{
		jobs:         make(map[string]*domain.PublishJob),
		claims:       make(map[string]string),
		claimExpires: make(map[string]time.Time),
	}
}

func cloneJob(job *domain.PublishJob) *domain.PublishJob {
	clone := *job
	clone.Steps = make([]domain.JobStep, len(job.Steps))
	copy(clone.Steps, job.Steps)
	return &clone
}

func (f *fakePublishJobRepo) Create(job *domain.PublishJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	clone := cloneJob(job)
	clone.CreatedAt = time.Now()
	clone.UpdatedAt = time.Now()
	f.jobs[clone.ID] = clone
	return nil
}

func (f *fakePublishJobRepo) GetByID(id string) (*domain.PublishJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	return cloneJob(job), nil
}

func (f *fakePublishJobRepo) List(filter *domain.JobFilter) ([]*domain.PublishJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	jobs := make([]*domain.PublishJob, 0)
	for _, job := range f.jobs {
		if filter != nil && filter.Platform != nil && job.Platform != *filter.Platform {
			continue
		}
		if filter != nil && len(filter.States) > 0 {
			match := false
			for _, state := range filter.States {
				if job.State == state {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		jobs = append(jobs, cloneJob(job))
	}
	return jobs, nil
}

func (f *fakePublishJobRepo) ListQueued(limit int) ([]*domain.PublishJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	jobs := make([]*domain.PublishJob, 0)
	for _, job := range f.jobs {
		if job.State == domain.JobStateQueued {
			jobs = append(jobs, cloneJob(job))
		}
		if limit > 0 && len(jobs) >= limit {
			break
		}
	}
	return jobs, nil
}

// Claim reproduz a cláusula do UPDATE guardado do repositório Postgres:
// o claim só é concedido quando livre, expirado ou já do mesmo dono
func (f *fakePublishJobRepo) Claim(jobID, owner string, lease time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[jobID]
	if !ok || job.State.IsTerminal() {
		return false, nil
	}

	holder, held := f.claims[jobID]
	if held && holder != owner && time.Now().Before(f.claimExpires[jobID]) {
		return false, nil
	}

	f.claims[jobID] = owner
	f.claimExpires[jobID] = time.Now().Add(lease)
	return true, nil
}

func (f *fakePublishJobRepo) ReleaseClaim(jobID, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claims[jobID] == owner {
		delete(f.claims, jobID)
		delete(f.claimExpires, jobID)
	}
	return nil
}

func (f *fakePublishJobRepo) AdvanceState(jobID string, state domain.JobState, steps []domain.JobStep) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[jobID]
	if !ok || job.State.IsTerminal() {
		return false, nil
	}

	job.State = state
	job.Steps = make([]domain.JobStep, len(steps))
	copy(job.Steps, steps)
	job.UpdatedAt = time.Now()
	if state.IsTerminal() {
		now := time.Now()
		job.CompletedAt = &now
	}
	return true, nil
}

func (f *fakePublishJobRepo) Requeue(jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[jobID]
	if !ok || job.State != domain.JobStateFailed {
		return false, nil
	}

	job.State = domain.JobStateQueued
	job.CompletedAt = nil
	job.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakePublishJobRepo) Cancel(jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[jobID]
	if !ok || job.State.IsTerminal() {
		return false, nil
	}

	job.State = domain.JobStateCancelled
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now
	return true, nil
}

func (f *fakePublishJobRepo) ListCompletedAdEntities() ([]*domain.WatchedEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entities := make([]*domain.WatchedEntity, 0)
	for _, job := range f.jobs {
		if job.State != domain.JobStateCompleted {
			continue
		}
		adID := job.AdExternalID()
		if adID == "" {
			continue
		}
		jobID := job.ID
		entities = append(entities, &domain.WatchedEntity{
			Platform:    job.Platform,
			EntityType:  domain.EntityTypeAd,
			EntityID:    adID,
			SourceJobID: &jobID,
			Active:      true,
		})
	}
	return entities, nil
}

// fakeWatchedEntityRepo é a watch-list em memória
type fakeWatchedEntityRepo struct {
	mu       sync.Mutex
	nextID   int64
	entities []*domain.WatchedEntity
}

func newFakeWatchedEntityRepo() *fakeWatchedEntityRepo {
	return &fakeWatchedEntityRepo{}
}

func (f *fakeWatchedEntityRepo) find(platform domain.Platform, entityType domain.EntityType, entityID string) *domain.WatchedEntity {
	for _, entity := range f.entities {
		if entity.Platform == platform && entity.EntityType == entityType && entity.EntityID == entityID {
			return entity
		}
	}
	return nil
}

func (f *fakeWatchedEntityRepo) EnsureWatched(entity *domain.WatchedEntity) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing := f.find(entity.Platform, entity.EntityType, entity.EntityID); existing != nil {
		return nil
	}

	f.nextID++
	clone := *entity
	clone.ID = f.nextID
	f.entities = append(f.entities, &clone)
	return nil
}

func (f *fakeWatchedEntityRepo) SaveOrUpdate(entity *domain.WatchedEntity) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing := f.find(entity.Platform, entity.EntityType, entity.EntityID); existing != nil {
		existing.PredictionID = entity.PredictionID
		existing.Active = entity.Active
		return nil
	}

	f.nextID++
	clone := *entity
	clone.ID = f.nextID
	f.entities = append(f.entities, &clone)
	return nil
}

func (f *fakeWatchedEntityRepo) ListActive() ([]*domain.WatchedEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	active := make([]*domain.WatchedEntity, 0)
	for _, entity := range f.entities {
		if entity.Active && !entity.InsightsDisabled {
			clone := *entity
			active = append(active, &clone)
		}
	}
	return active, nil
}

func (f *fakeWatchedEntityRepo) RegisterFetchFailure(id int64, maxConsecutive int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entity := range f.entities {
		if entity.ID == id {
			entity.ConsecutiveFailures++
			if entity.ConsecutiveFailures >= maxConsecutive {
				entity.InsightsDisabled = true
			}
			return entity.InsightsDisabled, nil
		}
	}
	return false, nil
}

func (f *fakeWatchedEntityRepo) ResetFetchFailures(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entity := range f.entities {
		if entity.ID == id {
			entity.ConsecutiveFailures = 0
		}
	}
	return nil
}

func (f *fakeWatchedEntityRepo) Enable(id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, entity := range f.entities {
		if entity.ID == id {
			entity.InsightsDisabled = false
			entity.ConsecutiveFailures = 0
			return true, nil
		}
	}
	return false, nil
}

func newTestEngine(jobRepo *fakePublishJobRepo, watchedRepo *fakeWatchedEntityRepo, clients adplatform.Registry, maxAttempts int) *Engine {
	return &Engine{
		config: EngineConfig{
			Workers:      1,
			PollInterval: time.Second,
			ClaimLease:   time.Minute,
			StepTimeout:  0,
			Backoff: retry.Backoff{
				Base:        time.Millisecond,
				Max:         4 * time.Millisecond,
				MaxAttempts: maxAttempts,
			},
			Enabled: true,
		},
		jobRepo:     jobRepo,
		watchedRepo: watchedRepo,
		clients:     clients,
		workerID:    "engine-test",
		wake:        make(chan struct{}, 1),
	}
}

func newTestJob(id string) *domain.PublishJob {
	return &domain.PublishJob{
		ID:       id,
		Platform: domain.PlatformMeta,
		State:    domain.JobStateQueued,
		Steps:    domain.NewJobSteps(),
		Input: domain.PublishInput{
			CampaignID: "camp_1",
			AdSetID:    "adset_1",
			MediaPath:  "media/banner.png",
			Creative: domain.CreativeSpec{
				Title:   "Oferta de Inverno",
				Message: "Aproveite os descontos da estação",
			},
			Name: "Anúncio Inverno 2026",
		},
	}
}

func TestEngine_RunJob_CompletesAllSteps(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockClient(ctrl)
	mockClient.EXPECT().UploadMedia(gomock.Any(), "media/banner.png").Return("media_123", nil)
	mockClient.EXPECT().CreateCreative(gomock.Any(), gomock.Any(), "media_123").Return("creative_456", nil)
	mockClient.EXPECT().CreateAd(gomock.Any(), "adset_1", "creative_456", "Anúncio Inverno 2026").Return("ad_789", nil)
	mockClient.EXPECT().SetAdStatus(gomock.Any(), "ad_789", adplatform.AdStatusActive).Return(nil)

	jobRepo := newFakePublishJobRepo()
	watchedRepo := newFakeWatchedEntityRepo()
	engine := newTestEngine(jobRepo, watchedRepo, adplatform.Registry{domain.PlatformMeta: mockClient}, 3)

	job := newTestJob("JOB001")
	require.NoError(t, jobRepo.Create(job))

	engine.runJob(context.Background(), job)

	stored, err := jobRepo.GetByID("JOB001")
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.Equal(t, domain.JobStateCompleted, stored.State)
	assert.NotNil(t, stored.CompletedAt)

	require.Len(t, stored.Steps, 3)
	expectedIDs := map[string]string{
		domain.StepUploadingMedia:   "media_123",
		domain.StepCreatingCreative: "creative_456",
		domain.StepCreatingAd:       "ad_789",
	}
	for _, step := range stored.Steps {
		assert.Equal(t, domain.StepStatusSucceeded, step.Status, "passo %s", step.Name)
		assert.Equal(t, expectedIDs[step.Name], step.ExternalID, "passo %s", step.Name)
		assert.Equal(t, 1, step.Attempts, "passo %s", step.Name)
		assert.NotNil(t, step.FinishedAt, "passo %s", step.Name)
	}

	// O anúncio concluído entra na watch-list de insights
	active, err := watchedRepo.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ad_789", active[0].EntityID)
	assert.Equal(t, domain.EntityTypeAd, active[0].EntityType)
	require.NotNil(t, active[0].SourceJobID)
	assert.Equal(t, "JOB001", *active[0].SourceJobID)
}

func TestEngine_RunJob_PermanentFailureStopsWithoutRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockClient(ctrl)
	mockClient.EXPECT().
		UploadMedia(gomock.Any(), "media/banner.png").
		Return("", adplatform.NewPermanent("upload_media", adplatform.ErrInvalidMedia)).
		Times(1)

	jobRepo := newFakePublishJobRepo()
	watchedRepo := newFakeWatchedEntityRepo()
	engine := newTestEngine(jobRepo, watchedRepo, adplatform.Registry{domain.PlatformMeta: mockClient}, 5)

	job := newTestJob("JOB002")
	require.NoError(t, jobRepo.Create(job))

	engine.runJob(context.Background(), job)

	stored, err := jobRepo.GetByID("JOB002")
	require.NoError(t, err)

	assert.Equal(t, domain.JobStateFailed, stored.State)
	assert.NotNil(t, stored.CompletedAt)

	uploadStep := stored.Step(domain.StepUploadingMedia)
	require.NotNil(t, uploadStep)
	assert.Equal(t, domain.StepStatusFailed, uploadStep.Status)
	assert.Equal(t, 1, uploadStep.Attempts, "erro permanente não deve ser retentado")
	assert.True(t, strings.Contains(uploadStep.Error, "invalid media"))

	// Passos seguintes permanecem intocados
	assert.Equal(t, domain.StepStatusPending, stored.Step(domain.StepCreatingCreative).Status)
	assert.Equal(t, domain.StepStatusPending, stored.Step(domain.StepCreatingAd).Status)

	active, err := watchedRepo.ListActive()
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestEngine_RunJob_TransientErrorIsRetriedWithBackoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		mockClient.EXPECT().
			UploadMedia(gomock.Any(), "media/banner.png").
			Return("", adplatform.NewTransient("upload_media", adplatform.ErrRateLimited)),
		mockClient.EXPECT().
			UploadMedia(gomock.Any(), "media/banner.png").
			Return("media_123", nil),
	)
	mockClient.EXPECT().CreateCreative(gomock.Any(), gomock.Any(), "media_123").Return("creative_456", nil)
	mockClient.EXPECT().CreateAd(gomock.Any(), "adset_1", "creative_456", "Anúncio Inverno 2026").Return("ad_789", nil)
	mockClient.EXPECT().SetAdStatus(gomock.Any(), "ad_789", adplatform.AdStatusActive).Return(nil)

	jobRepo := newFakePublishJobRepo()
	engine := newTestEngine(jobRepo, newFakeWatchedEntityRepo(), adplatform.Registry{domain.PlatformMeta: mockClient}, 3)

	job := newTestJob("JOB003")
	require.NoError(t, jobRepo.Create(job))

	engine.runJob(context.Background(), job)

	stored, err := jobRepo.GetByID("JOB003")
	require.NoError(t, err)

	assert.Equal(t, domain.JobStateCompleted, stored.State)
	assert.Equal(t, 2, stored.Step(domain.StepUploadingMedia).Attempts)
	assert.Equal(t, 1, stored.Step(domain.StepCreatingCreative).Attempts)
}

func TestEngine_RunJob_ResumesFromFirstPendingStep(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// UploadMedia nunca é chamado: o passo já sucedeu na execução anterior
	mockClient := mocks.NewMockClient(ctrl)
	mockClient.EXPECT().CreateCreative(gomock.Any(), gomock.Any(), "media_123").Return("creative_456", nil)
	mockClient.EXPECT().CreateAd(gomock.Any(), "adset_1", "creative_456", "Anúncio Inverno 2026").Return("ad_789", nil)
	mockClient.EXPECT().SetAdStatus(gomock.Any(), "ad_789", adplatform.AdStatusActive).Return(nil)

	jobRepo := newFakePublishJobRepo()
	engine := newTestEngine(jobRepo, newFakeWatchedEntityRepo(), adplatform.Registry{domain.PlatformMeta: mockClient}, 3)

	job := newTestJob("JOB004")
	job.Steps[0].Status = domain.StepStatusSucceeded
	job.Steps[0].ExternalID = "media_123"
	job.Steps[0].Attempts = 1
	require.NoError(t, jobRepo.Create(job))

	engine.runJob(context.Background(), job)

	stored, err := jobRepo.GetByID("JOB004")
	require.NoError(t, err)

	assert.Equal(t, domain.JobStateCompleted, stored.State)
	assert.Equal(t, "media_123", stored.Step(domain.StepUploadingMedia).ExternalID,
		"id externo do passo já sucedido deve ser preservado")
	assert.Equal(t, 1, stored.Step(domain.StepUploadingMedia).Attempts)
}

func TestEngine_RunJob_ActivationRetryDoesNotDuplicateAd(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockClient(ctrl)
	mockClient.EXPECT().UploadMedia(gomock.Any(), "media/banner.png").Return("media_123", nil)
	mockClient.EXPECT().CreateCreative(gomock.Any(), gomock.Any(), "media_123").Return("creative_456", nil)

	// O anúncio é criado exatamente uma vez; a falha transitória da ativação
	// repete apenas a ativação
	mockClient.EXPECT().
		CreateAd(gomock.Any(), "adset_1", "creative_456", "Anúncio Inverno 2026").
		Return("ad_789", nil).
		Times(1)
	gomock.InOrder(
		mockClient.EXPECT().
			SetAdStatus(gomock.Any(), "ad_789", adplatform.AdStatusActive).
			Return(adplatform.NewTransient("set_ad_status", adplatform.ErrRateLimited)),
		mockClient.EXPECT().
			SetAdStatus(gomock.Any(), "ad_789", adplatform.AdStatusActive).
			Return(nil),
	)

	jobRepo := newFakePublishJobRepo()
	engine := newTestEngine(jobRepo, newFakeWatchedEntityRepo(), adplatform.Registry{domain.PlatformMeta: mockClient}, 3)

	job := newTestJob("JOB005")
	require.NoError(t, jobRepo.Create(job))

	engine.runJob(context.Background(), job)

	stored, err := jobRepo.GetByID("JOB005")
	require.NoError(t, err)

	assert.Equal(t, domain.JobStateCompleted, stored.State)

	adStep := stored.Step(domain.StepCreatingAd)
	assert.Equal(t, domain.StepStatusSucceeded, adStep.Status)
	assert.Equal(t, "ad_789", adStep.ExternalID)
	assert.Equal(t, 2, adStep.Attempts)
}

func TestEngine_RunJob_CancelDiscardsInFlightResult(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobRepo := newFakePublishJobRepo()

	// O cancelamento chega enquanto a chamada de upload está em andamento: a
	// chamada termina normalmente, mas o resultado é descartado e nenhum passo
	// seguinte executa
	mockClient := mocks.NewMockClient(ctrl)
	mockClient.EXPECT().
		UploadMedia(gomock.Any(), "media/banner.png").
		DoAndReturn(func(ctx context.Context, mediaPath string) (string, error) {
			cancelled, err := jobRepo.Cancel("JOB006")
			require.NoError(t, err)
			require.True(t, cancelled)
			return "media_123", nil
		})

	engine := newTestEngine(jobRepo, newFakeWatchedEntityRepo(), adplatform.Registry{domain.PlatformMeta: mockClient}, 3)

	job := newTestJob("JOB006")
	require.NoError(t, jobRepo.Create(job))

	engine.runJob(context.Background(), job)

	stored, err := jobRepo.GetByID("JOB006")
	require.NoError(t, err)

	assert.Equal(t, domain.JobStateCancelled, stored.State)
	assert.NotNil(t, stored.CompletedAt)
	assert.NotEqual(t, domain.StepStatusSucceeded, stored.Step(domain.StepUploadingMedia).Status,
		"resultado da chamada em andamento deve ser descartado")
}

func TestEngine_RunJob_TimeoutExhaustionMarksStepUncertain(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mocks.NewMockClient(ctrl)
	mockClient.EXPECT().
		UploadMedia(gomock.Any(), "media/banner.png").
		Return("", adplatform.NewTransient("upload_media", context.DeadlineExceeded)).
		Times(2)

	jobRepo := newFakePublishJobRepo()
	engine := newTestEngine(jobRepo, newFakeWatchedEntityRepo(), adplatform.Registry{domain.PlatformMeta: mockClient}, 2)

	job := newTestJob("JOB007")
	require.NoError(t, jobRepo.Create(job))

	engine.runJob(context.Background(), job)

	stored, err := jobRepo.GetByID("JOB007")
	require.NoError(t, err)

	assert.Equal(t, domain.JobStateFailed, stored.State)

	uploadStep := stored.Step(domain.StepUploadingMedia)
	assert.Equal(t, domain.StepStatusUncertain, uploadStep.Status,
		"esgotamento só por timeout nunca é assumido como sucesso nem falha definitiva")
	assert.Equal(t, 2, uploadStep.Attempts)
}

func TestEngine_Process_ConcurrentDispatchesRunJobOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobRepo := newFakePublishJobRepo()

	// O primeiro despacho fica parado dentro do upload segurando o claim;
	// cada chamada de plataforma é esperada exatamente uma vez
	uploadStarted := make(chan struct{})
	releaseUpload := make(chan struct{})

	mockClient := mocks.NewMockClient(ctrl)
	mockClient.EXPECT().
		UploadMedia(gomock.Any(), "media/banner.png").
		DoAndReturn(func(ctx context.Context, mediaPath string) (string, error) {
			close(uploadStarted)
			<-releaseUpload
			return "media_123", nil
		})
	mockClient.EXPECT().CreateCreative(gomock.Any(), gomock.Any(), "media_123").Return("creative_456", nil)
	mockClient.EXPECT().CreateAd(gomock.Any(), "adset_1", "creative_456", "Anúncio Inverno 2026").Return("ad_789", nil)
	mockClient.EXPECT().SetAdStatus(gomock.Any(), "ad_789", adplatform.AdStatusActive).Return(nil)

	engine := newTestEngine(jobRepo, newFakeWatchedEntityRepo(), adplatform.Registry{domain.PlatformMeta: mockClient}, 3)

	job := newTestJob("JOB009")
	require.NoError(t, jobRepo.Create(job))

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.process(context.Background(), cloneJob(job))
	}()
	<-uploadStarted

	// O segundo despacho do mesmo job perde o claim e retorna sem executar
	// nenhuma chamada de plataforma
	engine.process(context.Background(), cloneJob(job))

	close(releaseUpload)
	<-done

	stored, err := jobRepo.GetByID("JOB009")
	require.NoError(t, err)

	assert.Equal(t, domain.JobStateCompleted, stored.State)
	assert.Equal(t, 1, stored.Step(domain.StepUploadingMedia).Attempts,
		"despachos concorrentes do mesmo job não podem duplicar execução")
}

func TestEngine_Dispatch_ShutdownReleasesWaitingWorkers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	jobRepo := newFakePublishJobRepo()

	// Com um único worker ocupado, o segundo job fica aguardando vaga; o
	// cancelamento do contexto deve liberá-lo sem processar
	uploadStarted := make(chan struct{})
	releaseUpload := make(chan struct{})

	mockClient := mocks.NewMockClient(ctrl)
	mockClient.EXPECT().
		UploadMedia(gomock.Any(), "media/banner.png").
		DoAndReturn(func(ctx context.Context, mediaPath string) (string, error) {
			close(uploadStarted)
			<-releaseUpload
			return "", adplatform.NewPermanent("upload_media", adplatform.ErrInvalidMedia)
		})

	engine := newTestEngine(jobRepo, newFakeWatchedEntityRepo(), adplatform.Registry{domain.PlatformMeta: mockClient}, 3)

	require.NoError(t, jobRepo.Create(newTestJob("JOB010")))
	require.NoError(t, jobRepo.Create(newTestJob("JOB011")))

	ctx, cancel := context.WithCancel(context.Background())
	semaphore := make(chan struct{}, 1)
	var wg sync.WaitGroup

	// O despacho retorna imediatamente mesmo com mais jobs do que vagas
	engine.dispatch(ctx, semaphore, &wg)
	<-uploadStarted

	cancel()
	close(releaseUpload)
	wg.Wait()

	queued, err := jobRepo.ListQueued(10)
	require.NoError(t, err)
	assert.Len(t, queued, 1, "worker em espera desiste no shutdown sem processar")
}

func TestEngine_RunJob_UnknownPlatformFailsJob(t *testing.T) {
	jobRepo := newFakePublishJobRepo()
	engine := newTestEngine(jobRepo, newFakeWatchedEntityRepo(), adplatform.Registry{}, 3)

	job := newTestJob("JOB008")
	require.NoError(t, jobRepo.Create(job))

	engine.runJob(context.Background(), job)

	stored, err := jobRepo.GetByID("JOB008")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, stored.State)
}
