package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the Context into trader.context (one row per strategy)
// ⭐ SSOT: Context DB 저장/조회는 여기서만
type PostgresStore struct {
	pool       *pgxpool.Pool
	strategyID string
}

// NewPostgresStore creates a postgres-backed store
func NewPostgresStore(pool *pgxpool.Pool, strategyID string) *PostgresStore {
	return &PostgresStore{pool: pool, strategyID: strategyID}
}

// EnsureSchema creates the table when missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS trader;
		CREATE TABLE IF NOT EXISTS trader.context (
			strategy_id  TEXT PRIMARY KEY,
			payload      JSONB NOT NULL,
			cycle_count  BIGINT NOT NULL DEFAULT 0,
			updated_at   TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create context table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*Context, error) {
	query := `
		SELECT payload
		FROM trader.context
		WHERE strategy_id = $1
	`

	var payload []byte
	err := s.pool.QueryRow(ctx, query, s.strategyID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load context: %w", err)
	}

	return Restore(payload)
}

func (s *PostgresStore) Save(ctx context.Context, c *Context) error {
	payload, err := c.Serialize()
	if err != nil {
		return fmt.Errorf("serialize context: %w", err)
	}

	query := `
		INSERT INTO trader.context (strategy_id, payload, cycle_count, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (strategy_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			cycle_count = EXCLUDED.cycle_count,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query, s.strategyID, payload, c.CycleCount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save context: %w", err)
	}
	return nil
}
