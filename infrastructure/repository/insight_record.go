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
	insightRecordsTable = "insight_records"
)

// InsightRecordRepository é o dono exclusivo da persistência de InsightRecord.
// A chave (platform, entity_type, entity_id, window_start, window_end) é
// única: uma nova coleta para a mesma chave faz upsert, nunca duplica.
type InsightRecordRepository interface {
	SaveOrUpdate(record *domain.InsightRecord) error
	ListByEntity(entityID string, startDate, endDate time.Time) ([]*domain.InsightRecord, error)
	GetByKey(platform domain.Platform, entityType domain.EntityType, entityID string, windowStart, windowEnd time.Time) (*domain.InsightRecord, error)
}

type insightRecordRepository struct {
	conn *postgres.Connection
}

// NewInsightRecordRepository cria o repositório de registros de insights
func NewInsightRecordRepository(conn *postgres.Connection) InsightRecordRepository {
	return &insightRecordRepository{
		conn: conn,
	}
}

func (r *insightRecordRepository) SaveOrUpdate(record *domain.InsightRecord) error {
	var metricsJSON []byte
	var err error

	if record.Metrics != nil {
		metricsJSON, err = json.Marshal(record.Metrics)
		if err != nil {
			return fmt.Errorf("erro ao serializar métricas para JSON: %w", err)
		}
	}

	query := squirrel.StatementBuilder.
		Insert(insightRecordsTable).
		Columns("platform", "entity_type", "entity_id", "window_start", "window_end", "metrics", "fetched_at").
		Values(
			record.Platform,
			record.EntityType,
			record.EntityID,
			record.WindowStart,
			record.WindowEnd,
			metricsJSON,
			record.FetchedAt,
		).
		Suffix(`
			ON CONFLICT (platform, entity_type, entity_id, window_start, window_end) DO UPDATE SET
				metrics = EXCLUDED.metrics,
				fetched_at = EXCLUDED.fetched_at,
				updated_at = NOW()
		`).
		PlaceholderFormat(squirrel.Dollar)

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("erro ao construir a query: %w", err)
	}

	_, err = r.conn.Exec(sqlQuery, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("erro no banco de dados: %w (código: %s)", pqErr, pqErr.Code)
		}
		return fmt.Errorf("erro ao executar a query: %w", err)
	}

	return nil
}

func (r *insightRecordRepository) ListByEntity(entityID string, startDate, endDate time.Time) ([]*domain.InsightRecord, error) {
	query, args, err := squirrel.
		Select("id, platform, entity_type, entity_id, window_start, window_end, metrics, fetched_at, created_at, updated_at").
		From(insightRecordsTable).
		Where(squirrel.Eq{"entity_id": entityID}).
		Where(squirrel.GtOrEq{"window_start": startDate}).
		Where(squirrel.LtOrEq{"window_end": endDate}).
		OrderBy("window_start ASC").
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

	records := make([]*domain.InsightRecord, 0)
	for rows.Next() {
		record, err := r.scanRecordRows(rows)
		if err != nil {
			return nil, fmt.Errorf("erro ao escanear insight records: %w", err)
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("erro durante a iteração de linhas: %w", err)
	}

	return records, nil
}

func (r *insightRecordRepository) GetByKey(platform domain.Platform, entityType domain.EntityType, entityID string, windowStart, windowEnd time.Time) (*domain.InsightRecord, error) {
	query, args, err := squirrel.
		Select("id, platform, entity_type, entity_id, window_start, window_end, metrics, fetched_at, created_at, updated_at").
		From(insightRecordsTable).
		Where(squirrel.Eq{
			"platform":     string(platform),
			"entity_type":  string(entityType),
			"entity_id":    entityID,
			"window_start": windowStart,
			"window_end":   windowEnd,
		}).
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

	if !rows.Next() {
		return nil, rows.Err()
	}

	record, err := r.scanRecordRows(rows)
	if err != nil {
		return nil, fmt.Errorf("erro ao escanear insight record: %w", err)
	}

	return record, nil
}

func (r *insightRecordRepository) scanRecordRows(rows *sql.Rows) (*domain.InsightRecord, error) {
	record := &domain.InsightRecord{}
	var metricsJSON []byte

	err := rows.Scan(
		&record.ID,
		&record.Platform,
		&record.EntityType,
		&record.EntityID,
		&record.WindowStart,
		&record.WindowEnd,
		&metricsJSON,
		&record.FetchedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if metricsJSON != nil {
		metrics := &domain.EntityMetrics{}
		if err := json.Unmarshal(metricsJSON, metrics); err != nil {
			return nil, fmt.Errorf("erro ao deserializar JSON de metrics: %w", err)
		}
		record.Metrics = metrics
	}

	return record, nil
}
