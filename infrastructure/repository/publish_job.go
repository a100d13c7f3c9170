package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/vfg2006/ad-publisher-api/infrastructure/database/postgres"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

const (
	publishJobsTable = "publish_jobs"
)

var terminalStates = []string{
	string(domain.JobStateCompleted),
	string(domain.JobStateFailed),
	string(domain.JobStateCancelled),
}

// PublishJobRepository é o dono exclusivo da persistência de PublishJob.
// As atualizações são por linha e guardadas por estado, preservando o
// invariante de single-writer junto com o claim de lease.
type PublishJobRepository interface {
	Create(job *domain.PublishJob) error
	GetByID(id string) (*domain.PublishJob, error)
	List(filter *domain.JobFilter) ([]*domain.PublishJob, error)
	ListQueued(limit int) ([]*domain.PublishJob, error)

	// Claim adquire o lease de processamento do job para o dono informado.
	// Retorna false se outro worker detém um lease ainda válido ou se o job
	// já está em estado terminal.
	Claim(jobID, owner string, lease time.Duration) (bool, error)
	ReleaseClaim(jobID, owner string) error

	// AdvanceState grava estado e passos em uma única operação. A escrita é
	// descartada (retorna false) se o job já atingiu estado terminal, o que
	// cobre o cancelamento durante uma chamada em andamento.
	AdvanceState(jobID string, state domain.JobState, steps []domain.JobStep) (bool, error)

	// Requeue devolve um job failed para a fila preservando os passos já
	// sucedidos (retomada idempotente)
	Requeue(jobID string) (bool, error)

	// Cancel marca o job como cancelado; retorna false se já era terminal
	Cancel(jobID string) (bool, error)

	// ListCompletedAdEntities retorna as entidades de anúncio produzidas por
	// jobs concluídos, para alimentar a watch-list do agendador de insights
	ListCompletedAdEntities() ([]*domain.WatchedEntity, error)
}

type publishJobRepository struct {
	conn *postgres.Connection
}

// NewPublishJobRepository cria o repositório de jobs de publicação
func NewPublishJobRepository(conn *postgres.Connection) PublishJobRepository {
	return &publishJobRepository{
		conn: conn,
	}
}

func (r *publishJobRepository) Create(job *domain.PublishJob) error {
	stepsJSON, err := json.Marshal(job.Steps)
	if err != nil {
		return fmt.Errorf("erro ao serializar passos do job: %w", err)
	}

	inputJSON, err := json.Marshal(job.Input)
	if err != nil {
		return fmt.Errorf("erro ao serializar input do job: %w", err)
	}

	query, args, err := squirrel.
		Insert(publishJobsTable).
		Columns("id", "platform", "state", "steps", "input").
		Values(job.ID, job.Platform, job.State, stepsJSON, inputJSON).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("erro ao construir a query: %w", err)
	}

	_, err = r.conn.Exec(query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("erro no banco de dados: %w (código: %s)", pqErr, pqErr.Code)
		}
		return fmt.Errorf("erro ao executar a query: %w", err)
	}

	return nil
}

func (r *publishJobRepository) GetByID(id string) (*domain.PublishJob, error) {
	query, args, err := squirrel.
		Select("id, platform, state, steps, input, created_at, updated_at, completed_at").
		From(publishJobsTable).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	row := r.conn.QueryRow(query, args...)
	job, err := r.scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("erro ao escanear job: %w", err)
	}

	return job, nil
}

func (r *publishJobRepository) List(filter *domain.JobFilter) ([]*domain.PublishJob, error) {
	builder := squirrel.
		Select("id, platform, state, steps, input, created_at, updated_at, completed_at").
		From(publishJobsTable).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	if filter != nil {
		if len(filter.States) > 0 {
			states := make([]string, 0, len(filter.States))
			for _, state := range filter.States {
				states = append(states, string(state))
			}
			builder = builder.Where(squirrel.Eq{"state": states})
		}
		if filter.Platform != nil {
			builder = builder.Where(squirrel.Eq{"platform": string(*filter.Platform)})
		}
		if filter.Limit > 0 {
			builder = builder.Limit(uint64(filter.Limit))
		}
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	return r.queryJobs(query, args...)
}

func (r *publishJobRepository) ListQueued(limit int) ([]*domain.PublishJob, error) {
	query, args, err := squirrel.
		Select("id, platform, state, steps, input, created_at, updated_at, completed_at").
		From(publishJobsTable).
		Where(squirrel.Eq{"state": string(domain.JobStateQueued)}).
		Where("claimed_by IS NULL OR claim_expires_at < NOW()").
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	return r.queryJobs(query, args...)
}

func (r *publishJobRepository) Claim(jobID, owner string, lease time.Duration) (bool, error) {
	query, args, err := squirrel.
		Update(publishJobsTable).
		Set("claimed_by", owner).
		Set("claim_expires_at", squirrel.Expr("NOW() + make_interval(secs => ?)", lease.Seconds())).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": jobID}).
		Where(squirrel.NotEq{"state": terminalStates}).
		Where(squirrel.Or{
			squirrel.Eq{"claimed_by": nil},
			squirrel.Eq{"claimed_by": owner},
			squirrel.Expr("claim_expires_at < NOW()"),
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("erro ao construir a query: %w", err)
	}

	return r.execAffected(query, args...)
}

func (r *publishJobRepository) ReleaseClaim(jobID, owner string) error {
	query, args, err := squirrel.
		Update(publishJobsTable).
		Set("claimed_by", nil).
		Set("claim_expires_at", nil).
		Where(squirrel.Eq{"id": jobID, "claimed_by": owner}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("erro ao construir a query: %w", err)
	}

	_, err = r.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("erro ao executar a query: %w", err)
	}

	return nil
}

func (r *publishJobRepository) AdvanceState(jobID string, state domain.JobState, steps []domain.JobStep) (bool, error) {
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return false, fmt.Errorf("erro ao serializar passos do job: %w", err)
	}

	builder := squirrel.
		Update(publishJobsTable).
		Set("state", string(state)).
		Set("steps", stepsJSON).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": jobID}).
		Where(squirrel.NotEq{"state": terminalStates}).
		PlaceholderFormat(squirrel.Dollar)

	// completed_at é setado se e somente se o estado é terminal
	if state.IsTerminal() {
		builder = builder.Set("completed_at", squirrel.Expr("NOW()"))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return false, fmt.Errorf("erro ao construir a query: %w", err)
	}

	return r.execAffected(query, args...)
}

func (r *publishJobRepository) Requeue(jobID string) (bool, error) {
	query, args, err := squirrel.
		Update(publishJobsTable).
		Set("state", string(domain.JobStateQueued)).
		Set("completed_at", nil).
		Set("claimed_by", nil).
		Set("claim_expires_at", nil).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": jobID, "state": string(domain.JobStateFailed)}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("erro ao construir a query: %w", err)
	}

	return r.execAffected(query, args...)
}

func (r *publishJobRepository) Cancel(jobID string) (bool, error) {
	query, args, err := squirrel.
		Update(publishJobsTable).
		Set("state", string(domain.JobStateCancelled)).
		Set("completed_at", squirrel.Expr("NOW()")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": jobID}).
		Where(squirrel.NotEq{"state": terminalStates}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("erro ao construir a query: %w", err)
	}

	return r.execAffected(query, args...)
}

func (r *publishJobRepository) ListCompletedAdEntities() ([]*domain.WatchedEntity, error) {
	query, args, err := squirrel.
		Select("id, platform, steps").
		From(publishJobsTable).
		Where(squirrel.Eq{"state": string(domain.JobStateCompleted)}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := r.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("erro ao executar a query: %w", err)
	}
	defer rows.Close()

	entities := make([]*domain.WatchedEntity, 0)
	for rows.Next() {
		var jobID string
		var platform string
		var stepsJSON []byte

		if err := rows.Scan(&jobID, &platform, &stepsJSON); err != nil {
			return nil, fmt.Errorf("erro ao escanear job concluído: %w", err)
		}

		var steps []domain.JobStep
		if err := json.Unmarshal(stepsJSON, &steps); err != nil {
			return nil, fmt.Errorf("erro ao deserializar passos do job %s: %w", jobID, err)
		}

		for _, step := range steps {
			if step.Name == domain.StepCreatingAd && step.ExternalID != "" {
				sourceJobID := jobID
				entities = append(entities, &domain.WatchedEntity{
					Platform:    domain.Platform(platform),
					EntityType:  domain.EntityTypeAd,
					EntityID:    step.ExternalID,
					SourceJobID: &sourceJobID,
					Active:      true,
				})
			}
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return entities, nil
}

func (r *publishJobRepository) execAffected(query string, args ...interface{}) (bool, error) {
	result, err := r.conn.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("erro ao executar a query: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("erro ao obter número de linhas afetadas: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *publishJobRepository) queryJobs(query string, args ...interface{}) ([]*domain.PublishJob, error) {
	rows, err := r.conn.Query(query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("erro ao executar a query: %w", err)
	}
	defer rows.Close()

	jobs := make([]*domain.PublishJob, 0)
	for rows.Next() {
		job, err := r.scanJobRows(rows)
		if err != nil {
			return nil, fmt.Errorf("erro ao escanear jobs: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return jobs, nil
}

func (r *publishJobRepository) scanJob(row *sql.Row) (*domain.PublishJob, error) {
	job := &domain.PublishJob{}
	var stepsJSON, inputJSON []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.Platform,
		&job.State,
		&stepsJSON,
		&inputJSON,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	return r.hydrateJob(job, stepsJSON, inputJSON, completedAt)
}

func (r *publishJobRepository) scanJobRows(rows *sql.Rows) (*domain.PublishJob, error) {
	job := &domain.PublishJob{}
	var stepsJSON, inputJSON []byte
	var completedAt sql.NullTime

	err := rows.Scan(
		&job.ID,
		&job.Platform,
		&job.State,
		&stepsJSON,
		&inputJSON,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	return r.hydrateJob(job, stepsJSON, inputJSON, completedAt)
}

func (r *publishJobRepository) hydrateJob(job *domain.PublishJob, stepsJSON, inputJSON []byte, completedAt sql.NullTime) (*domain.PublishJob, error) {
	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &job.Steps); err != nil {
			return nil, fmt.Errorf("erro ao deserializar JSON de steps: %w", err)
		}
	}

	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &job.Input); err != nil {
			return nil, fmt.Errorf("erro ao deserializar JSON de input: %w", err)
		}
	}

	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return job, nil
}
