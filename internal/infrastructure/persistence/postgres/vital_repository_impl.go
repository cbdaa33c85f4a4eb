package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/repository"
	_ "github.com/lib/pq"
)

const vitalColumns = `id, page_id, tag, target, url, kind, name, started_at, duration, score, received_at`

// Schema создает таблицу vitals, если ее нет
const Schema = `
CREATE TABLE IF NOT EXISTS vitals (
	id          UUID PRIMARY KEY,
	page_id     TEXT NOT NULL DEFAULT '',
	tag         TEXT NOT NULL DEFAULT '',
	target      TEXT NOT NULL,
	url         TEXT NOT NULL,
	kind        TEXT NOT NULL,
	name        TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	duration    BIGINT NOT NULL,
	score       DOUBLE PRECISION,
	received_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vitals_kind_received_at ON vitals (kind, received_at);
CREATE INDEX IF NOT EXISTS idx_vitals_url_received_at ON vitals (url, received_at DESC);
`

// PostgresVitalRepository реализует repository.VitalRepository для PostgreSQL
type PostgresVitalRepository struct {
	db *sql.DB
}

var _ repository.VitalRepository = (*PostgresVitalRepository)(nil)

// NewPostgresVitalRepository создает новый PostgreSQL repository
func NewPostgresVitalRepository(db *sql.DB) *PostgresVitalRepository {
	return &PostgresVitalRepository{db: db}
}

// EnsureSchema применяет Schema
func (r *PostgresVitalRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply vitals schema: %w", err)
	}
	return nil
}

// SaveBatch сохраняет несколько записей одной транзакцией
func (r *PostgresVitalRepository) SaveBatch(ctx context.Context, records []*entity.VitalRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vitals (`+vitalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		model := ToDBModel(record)
		_, err = stmt.ExecContext(ctx,
			model.ID,
			model.PageID,
			model.Tag,
			model.Target,
			model.URL,
			model.Kind,
			model.Name,
			model.StartedAt,
			model.Duration,
			model.Score,
			model.ReceivedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert vital: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Find находит записи по фильтру
func (r *PostgresVitalRepository) Find(ctx context.Context, q repository.VitalQuery) ([]*entity.VitalRecord, error) {
	query, args := buildFindQuery(q)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vitals: %w", err)
	}
	defer rows.Close()

	return r.scanVitals(rows)
}

// buildFindQuery собирает WHERE из заданных полей фильтра
func buildFindQuery(q repository.VitalQuery) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Kind != "" {
		conditions = append(conditions, "kind = "+arg(q.Kind.String()))
	}
	if !q.TimeRange.Start().IsZero() {
		conditions = append(conditions, fmt.Sprintf("received_at BETWEEN %s AND %s",
			arg(q.TimeRange.Start()), arg(q.TimeRange.End())))
	}
	if q.URL != "" {
		conditions = append(conditions, "url = "+arg(q.URL))
	}

	var b strings.Builder
	b.WriteString("SELECT " + vitalColumns + " FROM vitals")
	if len(conditions) > 0 {
		b.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY started_at ASC")
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + arg(q.Limit))
	}

	return b.String(), args
}

// FindLatestByURL находит все записи последнего полученного envelope страницы
func (r *PostgresVitalRepository) FindLatestByURL(ctx context.Context, url string) ([]*entity.VitalRecord, error) {
	query := `
		SELECT ` + vitalColumns + `
		FROM vitals
		WHERE url = $1 AND received_at = (
			SELECT MAX(received_at) FROM vitals WHERE url = $1
		)
		ORDER BY started_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, url)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest vitals: %w", err)
	}
	defer rows.Close()

	return r.scanVitals(rows)
}

// DeleteOlderThan удаляет записи, полученные раньше before
func (r *PostgresVitalRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM vitals WHERE received_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old vitals: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted vitals: %w", err)
	}

	return rowsAffected, nil
}

// scanVitals сканирует несколько строк в слайс записей
func (r *PostgresVitalRepository) scanVitals(rows *sql.Rows) ([]*entity.VitalRecord, error) {
	var records []*entity.VitalRecord

	for rows.Next() {
		model, err := ScanVitalRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vital row: %w", err)
		}

		record, err := ToEntity(model)
		if err != nil {
			return nil, fmt.Errorf("failed to convert to entity: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}
