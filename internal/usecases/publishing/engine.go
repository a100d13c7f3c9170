package publishing

import (
	"context"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
	"github.com/vfg2006/ad-publisher-api/infrastructure/repository"
	"github.com/vfg2006/ad-publisher-api/internal/config"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
	"github.com/vfg2006/ad-publisher-api/pkg/retry"
)

// EngineConfig representa a configuração do workflow engine de publicação
type EngineConfig struct {
	Workers      int
	PollInterval time.Duration
	ClaimLease   time.Duration
	StepTimeout  time.Duration
	Backoff      retry.Backoff
	Enabled      bool
}

// Engine executa os workflows de publicação com paralelismo limitado.
// Jobs distintos rodam concorrentemente sem coordenação; dentro de um job os
// passos são estritamente sequenciais. O claim com lease no Job Store garante
// que exatamente um worker processa cada job (single-writer).
type Engine struct {
	config      EngineConfig
	jobRepo     repository.PublishJobRepository
	watchedRepo repository.WatchedEntityRepository
	clients     adplatform.Registry

	workerID string
	wake     chan struct{}

	statusMutex        sync.Mutex
	lastDispatchAt     time.Time
	dispatchedJobCount int64
}

// NewEngine cria o workflow engine a partir da configuração global
func NewEngine(
	jobRepo repository.PublishJobRepository,
	watchedRepo repository.WatchedEntityRepository,
	clients adplatform.Registry,
	appConfig *config.Config,
) *Engine {
	engineConfig := EngineConfig{
		Workers:      appConfig.Publisher.MaxConcurrentJobs,
		PollInterval: time.Duration(appConfig.Publisher.PollIntervalSeconds) * time.Second,
		ClaimLease:   time.Duration(appConfig.Publisher.ClaimLeaseSeconds) * time.Second,
		StepTimeout:  time.Duration(appConfig.Publisher.StepTimeoutSeconds) * time.Second,
		Backoff: retry.Backoff{
			Base:        time.Duration(appConfig.Publisher.RetryBaseDelaySeconds) * time.Second,
			Max:         time.Duration(appConfig.Publisher.RetryMaxDelaySeconds) * time.Second,
			MaxAttempts: appConfig.Publisher.MaxStepAttempts,
		},
		Enabled: appConfig.Publisher.Enabled,
	}

	workerID, _ := gonanoid.Generate(jobIDCharacters, 8)

	logrus.WithFields(logrus.Fields{
		"workers":           engineConfig.Workers,
		"poll_interval":     engineConfig.PollInterval.String(),
		"claim_lease":       engineConfig.ClaimLease.String(),
		"step_timeout":      engineConfig.StepTimeout.String(),
		"max_step_attempts": engineConfig.Backoff.MaxAttempts,
		"enabled":           engineConfig.Enabled,
	}).Info("Configuração do workflow engine de publicação carregada")

	return &Engine{
		config:      engineConfig,
		jobRepo:     jobRepo,
		watchedRepo: watchedRepo,
		clients:     clients,
		workerID:    "engine-" + workerID,
		wake:        make(chan struct{}, 1),
	}
}

// Start inicia o loop de despacho em background
func (e *Engine) Start(ctx context.Context) error {
	if !e.config.Enabled {
		logrus.Info("Workflow engine de publicação desabilitado por configuração")
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"worker_id": e.workerID,
		"workers":   e.config.Workers,
	}).Info("Iniciando workflow engine de publicação")

	go e.loop(ctx)
	return nil
}

// Notify acorda o loop de despacho sem esperar o próximo tick de polling
func (e *Engine) Notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) loop(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	// Pool de workers de tamanho fixo, independente do pool do agendador de
	// insights. O orçamento de rate limit da plataforma fica no client.
	semaphore := make(chan struct{}, e.config.Workers)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Parando workflow engine de publicação")
			wg.Wait()
			return
		case <-ticker.C:
		case <-e.wake:
		}

		e.dispatch(ctx, semaphore, &wg)
	}
}

func (e *Engine) dispatch(ctx context.Context, semaphore chan struct{}, wg *sync.WaitGroup) {
	jobs, err := e.jobRepo.ListQueued(e.config.Workers * 2)
	if err != nil {
		logrus.WithError(err).Error("Erro ao buscar jobs enfileirados")
		return
	}

	if len(jobs) == 0 {
		return
	}

	e.statusMutex.Lock()
	e.lastDispatchAt = time.Now()
	e.statusMutex.Unlock()

	for _, job := range jobs {
		wg.Add(1)

		go func(j *domain.PublishJob) {
			defer wg.Done()

			// A vaga é disputada dentro do goroutine: o loop de despacho nunca
			// bloqueia e continua observando ctx.Done() com todos os workers
			// ocupados; no shutdown, quem espera vaga desiste.
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				return
			}

			e.process(ctx, j)
		}(job)
	}
}

// process adquire o claim do job e executa o workflow. O dono do claim é único
// por aquisição: dois despachos do mesmo job, mesmo dentro deste engine,
// disputam o claim e somente um executa. Jobs cujo claim não foi obtido são de
// outro worker e simplesmente ignorados.
func (e *Engine) process(ctx context.Context, job *domain.PublishJob) {
	suffix, _ := gonanoid.Generate(jobIDCharacters, 8)
	owner := e.workerID + "-" + suffix

	claimed, err := e.jobRepo.Claim(job.ID, owner, e.config.ClaimLease)
	if err != nil {
		logrus.WithError(err).WithField("job_id", job.ID).Error("Erro ao adquirir claim do job")
		return
	}
	if !claimed {
		return
	}

	defer func() {
		if err := e.jobRepo.ReleaseClaim(job.ID, owner); err != nil {
			logrus.WithError(err).WithField("job_id", job.ID).Warn("Erro ao liberar claim do job")
		}
	}()

	e.statusMutex.Lock()
	e.dispatchedJobCount++
	e.statusMutex.Unlock()

	e.runJob(ctx, job)
}

// GetStatus retorna o status atual do engine para a API de administração
func (e *Engine) GetStatus() map[string]any {
	e.statusMutex.Lock()
	defer e.statusMutex.Unlock()

	return map[string]any{
		"enabled":           e.config.Enabled,
		"worker_id":         e.workerID,
		"workers":           e.config.Workers,
		"poll_interval":     e.config.PollInterval.String(),
		"max_step_attempts": e.config.Backoff.MaxAttempts,
		"last_dispatch_at":  e.lastDispatchAt,
		"dispatched_jobs":   e.dispatchedJobCount,
	}
}
