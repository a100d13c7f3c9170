package repository

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/vfg2006/ad-publisher-api/infrastructure/database/postgres"
	"github.com/vfg2006/ad-publisher-api/internal/domain"
)

const (
	watchedEntitiesTable = "watched_entities"
)

// WatchedEntityRepository mantém a lista de entidades externas acompanhadas
// pelo agendador de insights, com o controle de falhas consecutivas que
// suprime coletas de entidades marcadas como insights-unavailable.
type WatchedEntityRepository interface {
	// EnsureWatched insere a entidade se ainda não acompanhada (idempotente)
	EnsureWatched(entity *domain.WatchedEntity) error

	// SaveOrUpdate insere ou atualiza prediction_id e ativação da entidade
	SaveOrUpdate(entity *domain.WatchedEntity) error

	// ListActive retorna as entidades ativas e não suprimidas
	ListActive() ([]*domain.WatchedEntity, error)

	// RegisterFetchFailure incrementa o contador de falhas permanentes
	// consecutivas e desabilita a coleta ao atingir o limite. Retorna se a
	// entidade ficou desabilitada.
	RegisterFetchFailure(id int64, maxConsecutive int) (bool, error)

	// ResetFetchFailures zera o contador após uma coleta bem-sucedida
	ResetFetchFailures(id int64) error

	// Enable reativa manualmente uma entidade suprimida
	Enable(id int64) (bool, error)
}

type watchedEntityRepository struct {
	conn *postgres.Connection
}

// NewWatchedEntityRepository cria o repositório da watch-list de insights
func NewWatchedEntityRepository(conn *postgres.Connection) WatchedEntityRepository {
	return &watchedEntityRepository{
		conn: conn,
	}
}

func (r *watchedEntityRepository) EnsureWatched(entity *domain.WatchedEntity) error {
	query, args, err := squirrel.
		Insert(watchedEntitiesTable).
		Columns("platform", "entity_type", "entity_id", "prediction_id", "source_job_id", "active").
		Values(entity.Platform, entity.EntityType, entity.EntityID, entity.PredictionID, entity.SourceJobID, entity.Active).
		Suffix("ON CONFLICT (platform, entity_type, entity_id) DO NOTHING").
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

func (r *watchedEntityRepository) SaveOrUpdate(entity *domain.WatchedEntity) error {
	query, args, err := squirrel.
		Insert(watchedEntitiesTable).
		Columns("platform", "entity_type", "entity_id", "prediction_id", "source_job_id", "active").
		Values(entity.Platform, entity.EntityType, entity.EntityID, entity.PredictionID, entity.SourceJobID, entity.Active).
		Suffix(`
			ON CONFLICT (platform, entity_type, entity_id) DO UPDATE SET
				prediction_id = EXCLUDED.prediction_id,
				active = EXCLUDED.active,
				updated_at = NOW()
		`).
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

func (r *watchedEntityRepository) ListActive() ([]*domain.WatchedEntity, error) {
	query, args, err := squirrel.
		Select("id, platform, entity_type, entity_id, prediction_id, source_job_id, active, consecutive_failures, insights_disabled, created_at, updated_at").
		From(watchedEntitiesTable).
		Where(squirrel.Eq{"active": true, "insights_disabled": false}).
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("erro ao construir a query: %w", err)
	}

	rows, err := r.conn.Query(query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("erro ao executar a query: %w", err)
	}
	defer rows.Close()

	entities := make([]*domain.WatchedEntity, 0)
	for rows.Next() {
		entity, err := r.scanEntityRows(rows)
		if err != nil {
			return nil, fmt.Errorf("erro ao escanear watched entities: %w", err)
		}
		entities = append(entities, entity)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return entities, nil
}

func (r *watchedEntityRepository) RegisterFetchFailure(id int64, maxConsecutive int) (bool, error) {
	query, args, err := squirrel.
		Update(watchedEntitiesTable).
		Set("consecutive_failures", squirrel.Expr("consecutive_failures + 1")).
		Set("insights_disabled", squirrel.Expr("consecutive_failures + 1 >= ?", maxConsecutive)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING insights_disabled").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("erro ao construir a query: %w", err)
	}

	var disabled bool
	if err := r.conn.QueryRow(query, args...).Scan(&disabled); err != nil {
		return false, fmt.Errorf("erro ao executar a query: %w", err)
	}

	return disabled, nil
}

func (r *watchedEntityRepository) ResetFetchFailures(id int64) error {
	query, args, err := squirrel.
		Update(watchedEntitiesTable).
		Set("consecutive_failures", 0).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
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

func (r *watchedEntityRepository) Enable(id int64) (bool, error) {
	query, args, err := squirrel.
		Update(watchedEntitiesTable).
		Set("insights_disabled", false).
		Set("consecutive_failures", 0).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("erro ao construir a query: %w", err)
	}

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

func (r *watchedEntityRepository) scanEntityRows(rows *sql.Rows) (*domain.WatchedEntity, error) {
	entity := &domain.WatchedEntity{}
	var predictionID, sourceJobID sql.NullString

	err := rows.Scan(
		&entity.ID,
		&entity.Platform,
		&entity.EntityType,
		&entity.EntityID,
		&predictionID,
		&sourceJobID,
		&entity.Active,
		&entity.ConsecutiveFailures,
		&entity.InsightsDisabled,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if predictionID.Valid {
		entity.PredictionID = &predictionID.String
	}
	if sourceJobID.Valid {
		entity.SourceJobID = &sourceJobID.String
	}

	return entity, nil
}
