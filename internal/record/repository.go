package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/fwtrader/internal/contracts"
)

// Schema creates the cycle record table
const Schema = `
	CREATE SCHEMA IF NOT EXISTS trader;
	CREATE TABLE IF NOT EXISTS trader.cycle_records (
		cycle_id     TEXT PRIMARY KEY,
		strategy_id  TEXT NOT NULL,
		sequence     BIGINT NOT NULL,
		status       TEXT NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL,
		finished_at  TIMESTAMPTZ NOT NULL,
		payload      JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS cycle_records_strategy_started_idx
		ON trader.cycle_records (strategy_id, started_at DESC)
`

// Repository persists cycle records in postgres
// ⭐ SSOT: Cycle Record DB 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new record repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create cycle record table: %w", err)
	}
	return nil
}

// Record implements contracts.Recorder
func (r *Repository) Record(ctx context.Context, rec *contracts.CycleRecord) error {
	return r.Save(ctx, rec)
}

// Save inserts a record (레코드는 불변 → 중복 ID는 무시)
func (r *Repository) Save(ctx context.Context, rec *contracts.CycleRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle record: %w", err)
	}

	query := `
		INSERT INTO trader.cycle_records (
			cycle_id, strategy_id, sequence, status, started_at, finished_at, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cycle_id) DO NOTHING
	`

	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.StrategyID, rec.Sequence, string(rec.Status),
		rec.StartedAt, rec.FinishedAt, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle record: %w", err)
	}
	return nil
}

// Latest returns the newest record of a strategy (nil when none)
func (r *Repository) Latest(ctx context.Context, strategyID string) (*contracts.CycleRecord, error) {
	query := `
		SELECT payload
		FROM trader.cycle_records
		WHERE strategy_id = $1
		ORDER BY started_at DESC, sequence DESC
		LIMIT 1
	`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, strategyID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest cycle record: %w", err)
	}

	var rec contracts.CycleRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cycle record: %w", err)
	}
	return &rec, nil
}

// List returns up to limit records, newest first
func (r *Repository) List(ctx context.Context, strategyID string, limit int) ([]*contracts.CycleRecord, error) {
	query := `
		SELECT payload
		FROM trader.cycle_records
		WHERE strategy_id = $1
		ORDER BY started_at DESC, sequence DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, strategyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle records: %w", err)
	}
	defer rows.Close()

	records := make([]*contracts.CycleRecord, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan cycle record: %w", err)
		}
		var rec contracts.CycleRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cycle record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}
