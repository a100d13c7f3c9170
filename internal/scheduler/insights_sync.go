package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
	"github.com/vfg2006/ad-publisher-api/infrastructure/repository"
	"github.com/vfg2006/ad-publisher-api/internal/config"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
	"github.com/vfg2006/ad-publisher-api/internal/usecases/predicting"
)

// InsightSyncConfig representa a configuração do agendador de insights
type InsightSyncConfig struct {
	CronSchedule           string
	LookbackDays           int
	MaxConcurrentFetches   int
	FetchTimeoutSeconds    int
	MaxConsecutiveFailures int
	SyncEnabled            bool
}

// InsightSyncService gerencia o agendamento e execução da sincronização de
// insights das entidades acompanhadas. Cada ciclo é isolado por entidade:
// a falha de uma coleta nunca impede as demais.
type InsightSyncService struct {
	scheduler   *gocron.Scheduler
	config      InsightSyncConfig
	appConfig   *config.Config
	watchedRepo repository.WatchedEntityRepository
	insightRepo repository.InsightRecordRepository
	jobRepo     repository.PublishJobRepository
	clients     adplatform.Registry
	linker      predicting.Linker

	syncRunning         bool
	syncMutex           sync.Mutex
	lastSyncStartedAt   time.Time
	lastSyncCompletedAt time.Time
	lastSyncSynced      int
	lastSyncSkipped     int
	lastSyncFailed      int
}

// NewInsightSyncService cria uma nova instância do serviço de sincronização de insights
func NewInsightSyncService(
	watchedRepo repository.WatchedEntityRepository,
	insightRepo repository.InsightRecordRepository,
	jobRepo repository.PublishJobRepository,
	clients adplatform.Registry,
	linker predicting.Linker,
	appConfig *config.Config,
) *InsightSyncService {
	// Criar a configuração com base na config global
	syncConfig := InsightSyncConfig{
		CronSchedule:           appConfig.InsightSync.CronSchedule,
		LookbackDays:           appConfig.InsightSync.LookbackDays,
		MaxConcurrentFetches:   appConfig.InsightSync.MaxConcurrentFetches,
		FetchTimeoutSeconds:    appConfig.InsightSync.FetchTimeoutSeconds,
		MaxConsecutiveFailures: appConfig.InsightSync.MaxConsecutiveFailures,
		SyncEnabled:            appConfig.InsightSync.Enabled,
	}

	// Criar o agendador
	scheduler := gocron.NewScheduler(time.Local)

	logrus.WithFields(logrus.Fields{
		"cron_schedule":            syncConfig.CronSchedule,
		"lookback_days":            syncConfig.LookbackDays,
		"max_concurrent_fetches":   syncConfig.MaxConcurrentFetches,
		"fetch_timeout_seconds":    syncConfig.FetchTimeoutSeconds,
		"max_consecutive_failures": syncConfig.MaxConsecutiveFailures,
		"sync_enabled":             syncConfig.SyncEnabled,
	}).Info("Configuração do agendador de insights carregada")

	return &InsightSyncService{
		scheduler:   scheduler,
		config:      syncConfig,
		appConfig:   appConfig,
		watchedRepo: watchedRepo,
		insightRepo: insightRepo,
		jobRepo:     jobRepo,
		clients:     clients,
		linker:      linker,
		syncRunning: false,
	}
}

// Start inicia o agendador
func (s *InsightSyncService) Start(ctx context.Context) error {
	if !s.config.SyncEnabled {
		logrus.Info("Sincronização de insights desabilitada por configuração")
		return nil
	}

	logrus.WithField("cron", s.config.CronSchedule).Info("Iniciando agendador de sincronização de insights")

	// Agendar a sincronização de insights. O gocron não sobrepõe execuções do
	// mesmo job; o mutex abaixo cobre também os disparos manuais.
	_, err := s.scheduler.Cron(s.config.CronSchedule).Do(func() {
		s.syncAllInsights(ctx)
	})
	if err != nil {
		return fmt.Errorf("erro ao agendar sincronização de insights: %w", err)
	}

	// Executar o agendador em uma goroutine separada
	s.scheduler.StartAsync()

	// Configurar o cancelamento do agendador quando o contexto for cancelado
	go func() {
		<-ctx.Done()
		logrus.Info("Parando agendador de sincronização de insights")
		s.scheduler.Stop()
	}()

	return nil
}

// syncAllInsights executa um ciclo completo: reconcilia a watch-list com os
// jobs de publicação concluídos e coleta métricas de cada entidade ativa
func (s *InsightSyncService) syncAllInsights(ctx context.Context) {
	s.syncMutex.Lock()
	if s.syncRunning {
		s.syncMutex.Unlock()
		logrus.Info("Sincronização de insights já em andamento, ignorando")
		return
	}
	s.syncRunning = true
	s.syncMutex.Unlock()

	startTime := time.Now()

	s.syncMutex.Lock()
	s.lastSyncStartedAt = startTime
	s.syncMutex.Unlock()

	defer func() {
		s.syncMutex.Lock()
		s.syncRunning = false
		s.syncMutex.Unlock()
	}()

	logrus.Info("Iniciando sincronização de insights para todas as entidades acompanhadas")

	// Anúncios de jobs concluídos entram na watch-list antes da coleta, então
	// um anúncio publicado entre ticks já é coletado neste ciclo
	s.reconcileWatchList()

	entities, err := s.watchedRepo.ListActive()
	if err != nil {
		logrus.WithError(err).Error("Erro ao buscar entidades acompanhadas para sincronização de insights")
		return
	}

	if len(entities) == 0 {
		logrus.Info("Nenhuma entidade ativa encontrada para sincronização de insights")
		return
	}

	window := s.getWindowToProcess()
	logrus.WithFields(logrus.Fields{
		"entities":     len(entities),
		"window_start": window.Start.Format(time.DateOnly),
		"window_end":   window.End.Format(time.DateOnly),
	}).Info("Período para sincronização de insights")

	synced, skipped, failed := s.processEntities(ctx, entities, window)

	duration := time.Since(startTime)
	logrus.WithFields(logrus.Fields{
		"duration": duration.String(),
		"entities": len(entities),
		"synced":   synced,
		"skipped":  skipped,
		"failed":   failed,
	}).Info("Sincronização de insights concluída")

	s.syncMutex.Lock()
	s.lastSyncCompletedAt = time.Now()
	s.lastSyncSynced = synced
	s.lastSyncSkipped = skipped
	s.lastSyncFailed = failed
	s.syncMutex.Unlock()
}

// reconcileWatchList garante que todo anúncio produzido por um job concluído
// esteja na watch-list, mesmo que o registro na conclusão do job tenha falhado
func (s *InsightSyncService) reconcileWatchList() {
	entities, err := s.jobRepo.ListCompletedAdEntities()
	if err != nil {
		logrus.WithError(err).Error("Erro ao buscar anúncios de jobs concluídos para a watch-list")
		return
	}

	for _, entity := range entities {
		if err := s.watchedRepo.EnsureWatched(entity); err != nil {
			logrus.WithFields(logrus.Fields{
				"entity_id": entity.EntityID,
				"error":     err.Error(),
			}).Warn("Erro ao registrar anúncio concluído na watch-list")
		}
	}
}

// getWindowToProcess cria a janela de coleta com base no lookback configurado
func (s *InsightSyncService) getWindowToProcess() domain.InsightWindow {
	now := time.Now()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := end.AddDate(0, 0, -s.config.LookbackDays)
	return domain.InsightWindow{Start: start, End: end}
}

// processEntities coleta métricas das entidades com paralelismo limitado
func (s *InsightSyncService) processEntities(
	ctx context.Context,
	entities []*domain.WatchedEntity,
	window domain.InsightWindow,
) (synced, skipped, failed int) {
	// Criar um canal para controlar o número de workers concorrentes
	semaphore := make(chan struct{}, s.config.MaxConcurrentFetches)
	var wg sync.WaitGroup
	var countMutex sync.Mutex

	for _, entity := range entities {
		wg.Add(1)
		semaphore <- struct{}{} // Adquirir semáforo

		go func(e *domain.WatchedEntity) {
			defer func() {
				<-semaphore // Liberar semáforo
				wg.Done()
			}()

			outcome := s.processEntity(ctx, e, window)

			countMutex.Lock()
			switch outcome {
			case outcomeSynced:
				synced++
			case outcomeSkipped:
				skipped++
			case outcomeFailed:
				failed++
			}
			countMutex.Unlock()
		}(entity)
	}

	// Aguardar todos os workers terminarem
	wg.Wait()
	return synced, skipped, failed
}

type entityOutcome int

const (
	outcomeSynced entityOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// processEntity coleta e persiste as métricas de uma entidade. Erros
// transitórios apenas pulam a entidade neste ciclo; erros permanentes
// incrementam o contador de falhas consecutivas e, no limite, desabilitam a
// coleta até reativação manual.
func (s *InsightSyncService) processEntity(
	ctx context.Context,
	entity *domain.WatchedEntity,
	window domain.InsightWindow,
) entityOutcome {
	logger := logrus.WithFields(logrus.Fields{
		"platform":    entity.Platform,
		"entity_type": entity.EntityType,
		"entity_id":   entity.EntityID,
	})

	client, err := s.clients.Resolve(entity.Platform)
	if err != nil {
		logger.WithError(err).Error("Plataforma sem client configurado para coleta de insights")
		return s.registerFailure(logger, entity)
	}

	fetchCtx := ctx
	if s.config.FetchTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, time.Duration(s.config.FetchTimeoutSeconds)*time.Second)
		defer cancel()
	}

	metrics, err := client.GetInsights(fetchCtx, entity.EntityID, window)
	if err != nil {
		if adplatform.IsTransient(err) {
			logger.WithError(err).Warn("Erro transitório na coleta de insights; entidade pulada neste ciclo")
			return outcomeSkipped
		}

		logger.WithError(err).Error("Erro permanente na coleta de insights")
		return s.registerFailure(logger, entity)
	}

	if err := s.watchedRepo.ResetFetchFailures(entity.ID); err != nil {
		logger.WithError(err).Warn("Erro ao zerar contador de falhas da entidade")
	}

	if metrics.NoData {
		// Ausência de dados não é erro nem vira zeros sintetizados; a API de
		// status reporta no_data para a janela
		logger.Info("Plataforma sem dados de insights para a janela")
		return outcomeSynced
	}

	record := &domain.InsightRecord{
		Platform:    entity.Platform,
		EntityType:  entity.EntityType,
		EntityID:    entity.EntityID,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Metrics:     metrics,
		FetchedAt:   time.Now(),
	}

	if err := s.insightRepo.SaveOrUpdate(record); err != nil {
		logger.WithError(err).Error("Erro ao salvar insights no banco de dados")
		return outcomeFailed
	}

	logger.WithFields(logrus.Fields{
		"impressions": metrics.Impressions,
		"clicks":      metrics.Clicks,
		"ctr":         metrics.CTR,
	}).Info("Insights salvos com sucesso para a entidade")

	s.linkPrediction(logger, entity, metrics)

	return outcomeSynced
}

// registerFailure incrementa as falhas consecutivas da entidade e reporta se
// a coleta foi desabilitada
func (s *InsightSyncService) registerFailure(logger *logrus.Entry, entity *domain.WatchedEntity) entityOutcome {
	disabled, err := s.watchedRepo.RegisterFetchFailure(entity.ID, s.config.MaxConsecutiveFailures)
	if err != nil {
		logger.WithError(err).Error("Erro ao registrar falha de coleta da entidade")
		return outcomeFailed
	}

	if disabled {
		logger.WithField("max_consecutive_failures", s.config.MaxConsecutiveFailures).
			Warn("Entidade marcada como insights-unavailable após falhas permanentes consecutivas; reative manualmente")
	}

	return outcomeFailed
}

// linkPrediction encaminha as métricas realizadas ao serviço de predição
// quando a entidade tem um prediction_id associado
func (s *InsightSyncService) linkPrediction(logger *logrus.Entry, entity *domain.WatchedEntity, metrics *domain.EntityMetrics) {
	if entity.PredictionID == nil || s.linker == nil {
		return
	}

	link := &domain.PredictionLink{
		PredictionID: *entity.PredictionID,
		EntityID:     entity.EntityID,
		ActualCTR:    metrics.CTR,
		LinkedAt:     time.Now(),
	}

	if err := s.linker.LinkInsights(link); err != nil {
		logger.WithFields(logrus.Fields{
			"prediction_id": *entity.PredictionID,
			"error":         err.Error(),
		}).Warn("Erro ao vincular insights à predição")
	}
}

// TriggerManualSync inicia manualmente uma sincronização de insights
func (s *InsightSyncService) TriggerManualSync() {
	s.syncMutex.Lock()
	if s.syncRunning {
		s.syncMutex.Unlock()
		logrus.Info("Sincronização de insights já em andamento, ignorando solicitação manual")
		return
	}
	s.syncMutex.Unlock()

	logrus.Info("Iniciando sincronização manual de insights")
	go s.syncAllInsights(context.Background())
}

// GetStatus retorna o status atual do agendador
func (s *InsightSyncService) GetStatus() map[string]any {
	s.syncMutex.Lock()
	defer s.syncMutex.Unlock()

	return map[string]any{
		"sync_enabled":             s.config.SyncEnabled,
		"sync_cron":                s.config.CronSchedule,
		"sync_lookback_days":       s.config.LookbackDays,
		"sync_max_concurrent":      s.config.MaxConcurrentFetches,
		"max_consecutive_failures": s.config.MaxConsecutiveFailures,
		"sync_running":             s.syncRunning,
		"last_sync_started_at":     s.lastSyncStartedAt,
		"last_sync_completed_at":   s.lastSyncCompletedAt,
		"last_sync_synced":         s.lastSyncSynced,
		"last_sync_skipped":        s.lastSyncSkipped,
		"last_sync_failed":         s.lastSyncFailed,
	}
}
