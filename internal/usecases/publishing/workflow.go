package publishing

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/ad-publisher-api/infrastructure/integrator/adplatform"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
	"github.com/vfg2006/ad-publisher-api/pkg/retry"
)

// errJobCancelled aborta o loop de retentativas quando o cancelamento é
// observado entre tentativas
var errJobCancelled = errors.New("job cancelled while in flight")

// runJob avança o job pela máquina de estados do workflow:
// queued → uploading_media → creating_creative → creating_ad → completed.
// failed e cancelled são alcançáveis de qualquer estado não-terminal. Passos
// já sucedidos nunca são reexecutados; a retomada começa no primeiro passo
// pendente.
func (e *Engine) runJob(ctx context.Context, job *domain.PublishJob) {
	logger := logrus.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"platform": job.Platform,
	})

	client, err := e.clients.Resolve(job.Platform)
	if err != nil {
		logger.WithError(err).Error("Plataforma sem client configurado; job marcado como failed")
		e.failJob(job, job.FirstPendingStep(), err)
		return
	}

	for {
		step := job.FirstPendingStep()
		if step == nil {
			e.completeJob(logger, job)
			return
		}

		// Transição para o estado do passo corrente. A escrita guardada
		// retorna false se o job foi cancelado nesse meio tempo.
		now := time.Now()
		step.Status = domain.StepStatusRunning
		step.StartedAt = &now

		advanced, err := e.jobRepo.AdvanceState(job.ID, domain.StateForStep(step.Name), job.Steps)
		if err != nil {
			logger.WithError(err).WithField("step", step.Name).Error("Erro ao persistir transição de estado do job")
			return
		}
		if !advanced {
			logger.WithField("step", step.Name).Info("Job cancelado antes do passo; execução abandonada")
			return
		}
		job.State = domain.StateForStep(step.Name)

		externalID, attempts, execErr := e.executeStep(ctx, logger, client, job, step)
		step.Attempts += attempts
		finished := time.Now()
		step.FinishedAt = &finished

		if execErr == nil {
			step.Status = domain.StepStatusSucceeded
			step.ExternalID = externalID
			step.Error = ""

			// O id externo produzido é persistido como parte da conclusão
			// atômica do passo, antes de avançar para o próximo estado
			persisted, err := e.jobRepo.AdvanceState(job.ID, job.State, job.Steps)
			if err != nil {
				logger.WithError(err).WithField("step", step.Name).Error("Erro ao persistir conclusão do passo")
				return
			}
			if !persisted {
				logger.WithFields(logrus.Fields{
					"step":        step.Name,
					"external_id": externalID,
				}).Info("Job cancelado durante o passo; resultado da chamada descartado")
				return
			}

			logger.WithFields(logrus.Fields{
				"step":        step.Name,
				"external_id": externalID,
				"attempts":    step.Attempts,
			}).Info("Passo do workflow concluído com sucesso")
			continue
		}

		if errors.Is(execErr, errJobCancelled) {
			logger.WithField("step", step.Name).Info("Job cancelado entre tentativas; execução abandonada")
			return
		}

		// Esgotamento só por timeouts deixa o desfecho real desconhecido: o
		// passo é marcado uncertain e exposto como pendente de reconciliação,
		// nunca assumido como sucesso ou falha na plataforma
		if errors.Is(execErr, context.DeadlineExceeded) {
			step.Status = domain.StepStatusUncertain
		} else {
			step.Status = domain.StepStatusFailed
		}
		step.Error = execErr.Error()

		e.failJob(job, step, execErr)

		logger.WithFields(logrus.Fields{
			"step":        step.Name,
			"step_status": step.Status,
			"attempts":    step.Attempts,
			"error":       execErr.Error(),
		}).Error("Passo do workflow falhou; job marcado como failed")
		return
	}
}

// executeStep executa a chamada de plataforma do passo com retentativa
// exponencial para erros transitórios. O cancelamento do job é verificado
// entre tentativas; erros permanentes interrompem imediatamente.
func (e *Engine) executeStep(
	ctx context.Context,
	logger *logrus.Entry,
	client adplatform.Client,
	job *domain.PublishJob,
	step *domain.JobStep,
) (string, int, error) {
	var externalID string

	cfg := retry.Config{
		Backoff:   e.config.Backoff,
		Retryable: adplatform.IsTransient,
		OnRetry: func(attempt int, err error) error {
			logger.WithFields(logrus.Fields{
				"step":    step.Name,
				"attempt": attempt,
				"error":   err.Error(),
			}).Warn("Erro transitório no passo; nova tentativa com backoff")

			return e.checkCancelled(job.ID)
		},
	}

	attempts, err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		stepCtx := ctx
		if e.config.StepTimeout > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, e.config.StepTimeout)
			defer cancel()
		}

		id, err := e.execPlatformCall(stepCtx, client, job, step)
		if err != nil {
			return err
		}
		externalID = id
		return nil
	})

	return externalID, attempts, err
}

// execPlatformCall despacha a chamada externa correspondente ao passo
func (e *Engine) execPlatformCall(
	ctx context.Context,
	client adplatform.Client,
	job *domain.PublishJob,
	step *domain.JobStep,
) (string, error) {
	switch step.Name {
	case domain.StepUploadingMedia:
		return client.UploadMedia(ctx, job.Input.MediaPath)

	case domain.StepCreatingCreative:
		media := job.Step(domain.StepUploadingMedia)
		return client.CreateCreative(ctx, job.Input.Creative, media.ExternalID)

	case domain.StepCreatingAd:
		// O anúncio é criado uma única vez; retentativas só repetem a
		// ativação. O id é persistido assim que a criação retorna, então uma
		// queda entre a chamada e a ativação não perde o recurso criado.
		if step.ExternalID == "" {
			creative := job.Step(domain.StepCreatingCreative)
			adID, err := client.CreateAd(ctx, job.Input.AdSetID, creative.ExternalID, job.Input.Name)
			if err != nil {
				return "", err
			}
			step.ExternalID = adID

			if _, err := e.jobRepo.AdvanceState(job.ID, job.State, job.Steps); err != nil {
				logrus.WithError(err).WithField("job_id", job.ID).Warn("Erro ao persistir id do anúncio recém-criado")
			}
		}

		if err := client.SetAdStatus(ctx, step.ExternalID, adplatform.AdStatusActive); err != nil {
			return "", err
		}
		return step.ExternalID, nil
	}

	return "", adplatform.NewPermanent(step.Name, errors.New("unknown workflow step"))
}

// checkCancelled consulta o estado corrente do job entre tentativas
func (e *Engine) checkCancelled(jobID string) error {
	current, err := e.jobRepo.GetByID(jobID)
	if err != nil {
		logrus.WithError(err).WithField("job_id", jobID).Warn("Erro ao verificar cancelamento do job")
		return nil
	}
	if current != nil && current.State == domain.JobStateCancelled {
		return errJobCancelled
	}
	return nil
}

// completeJob marca o job como concluído e registra o anúncio produzido na
// watch-list do agendador de insights
func (e *Engine) completeJob(logger *logrus.Entry, job *domain.PublishJob) {
	completed, err := e.jobRepo.AdvanceState(job.ID, domain.JobStateCompleted, job.Steps)
	if err != nil {
		logger.WithError(err).Error("Erro ao persistir conclusão do job")
		return
	}
	if !completed {
		logger.Info("Job cancelado antes da conclusão; resultado descartado")
		return
	}
	job.State = domain.JobStateCompleted

	logger.Info("Job de publicação concluído com sucesso")

	adID := job.AdExternalID()
	if adID == "" || e.watchedRepo == nil {
		return
	}

	sourceJobID := job.ID
	watched := &domain.WatchedEntity{
		Platform:    job.Platform,
		EntityType:  domain.EntityTypeAd,
		EntityID:    adID,
		SourceJobID: &sourceJobID,
		Active:      true,
	}
	if err := e.watchedRepo.EnsureWatched(watched); err != nil {
		logger.WithError(err).WithField("ad_id", adID).Warn("Erro ao registrar anúncio na watch-list de insights")
	}
}

// failJob registra o passo causador e leva o job ao estado failed
func (e *Engine) failJob(job *domain.PublishJob, step *domain.JobStep, cause error) {
	if step != nil && step.Status != domain.StepStatusUncertain {
		step.Status = domain.StepStatusFailed
		if step.Error == "" {
			step.Error = cause.Error()
		}
	}

	failed, err := e.jobRepo.AdvanceState(job.ID, domain.JobStateFailed, job.Steps)
	if err != nil {
		logrus.WithError(err).WithField("job_id", job.ID).Error("Erro ao persistir falha do job")
		return
	}
	if !failed {
		logrus.WithField("job_id", job.ID).Info("Job cancelado durante a falha do passo; estado preservado")
		return
	}
	job.State = domain.JobStateFailed
}
