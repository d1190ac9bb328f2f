package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/pkg/logger"
)

// JournalSchema creates the intent journal table
const JournalSchema = `
	CREATE SCHEMA IF NOT EXISTS trader;
	CREATE TABLE IF NOT EXISTS trader.intents (
		intent_id       TEXT PRIMARY KEY,
		engine          TEXT NOT NULL,
		sequence        INT NOT NULL,
		asset           TEXT NOT NULL,
		side            TEXT NOT NULL,
		quantity        DOUBLE PRECISION NOT NULL,
		reason          TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'submitted',
		filled_quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
		fill_price      DOUBLE PRECISION NOT NULL DEFAULT 0,
		order_id        TEXT,
		message         TEXT,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)
`

// JournalEntry is one row of the intent journal
type JournalEntry struct {
	Intent    contracts.TradeIntent
	Engine    string
	Status    string
	Filled    float64
	Price     float64
	OrderID   string
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository handles intent journal persistence
// ⭐ SSOT: 주문 의도/결과 DB 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new journal repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the journal table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, JournalSchema); err != nil {
		return fmt.Errorf("failed to create intent journal: %w", err)
	}
	return nil
}

// SaveIntent records an intent before it is submitted
func (r *Repository) SaveIntent(ctx context.Context, engine string, intent contracts.TradeIntent) error {
	query := `
		INSERT INTO trader.intents (
			intent_id, engine, sequence, asset, side, quantity, reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (intent_id) DO NOTHING
	`

	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, query,
		intent.ID, engine, intent.Sequence, intent.Asset, string(intent.Side),
		intent.Quantity, string(intent.Reason), now,
	)
	if err != nil {
		return fmt.Errorf("failed to save intent: %w", err)
	}
	return nil
}

// SaveResult updates an intent with its engine outcome
func (r *Repository) SaveResult(ctx context.Context, result contracts.IntentResult) error {
	query := `
		UPDATE trader.intents
		SET status = $1, filled_quantity = $2, fill_price = $3,
		    order_id = $4, message = $5, updated_at = $6
		WHERE intent_id = $7
	`

	_, err := r.pool.Exec(ctx, query,
		string(result.Status), result.FilledQuantity, result.Price,
		result.OrderID, result.Message, time.Now().UTC(), result.IntentID,
	)
	if err != nil {
		return fmt.Errorf("failed to save intent result: %w", err)
	}
	return nil
}

// GetIntent retrieves a journal entry by intent ID
func (r *Repository) GetIntent(ctx context.Context, intentID string) (*JournalEntry, error) {
	query := `
		SELECT intent_id, engine, sequence, asset, side, quantity, reason,
		       status, filled_quantity, fill_price, COALESCE(order_id, ''), COALESCE(message, ''),
		       created_at, updated_at
		FROM trader.intents
		WHERE intent_id = $1
	`

	entry, err := scanEntry(r.pool.QueryRow(ctx, query, intentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("intent not found: %s", intentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}
	return entry, nil
}

// ListRecent returns the latest journal entries, newest first
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]JournalEntry, error) {
	query := `
		SELECT intent_id, engine, sequence, asset, side, quantity, reason,
		       status, filled_quantity, fill_price, COALESCE(order_id, ''), COALESCE(message, ''),
		       created_at, updated_at
		FROM trader.intents
		ORDER BY created_at DESC, sequence DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query intents: %w", err)
	}
	defer rows.Close()

	entries := make([]JournalEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan intent: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.Row) (*JournalEntry, error) {
	var e JournalEntry
	var side, reason string
	err := row.Scan(
		&e.Intent.ID, &e.Engine, &e.Intent.Sequence, &e.Intent.Asset, &side, &e.Intent.Quantity, &reason,
		&e.Status, &e.Filled, &e.Price, &e.OrderID, &e.Message,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Intent.Side = contracts.Side(side)
	e.Intent.Reason = contracts.IntentReason(reason)
	return &e, nil
}

// journal is the write side used by JournaledEngine
type journal interface {
	SaveIntent(ctx context.Context, engine string, intent contracts.TradeIntent) error
	SaveResult(ctx context.Context, result contracts.IntentResult) error
}

// JournaledEngine records every intent and result around Submit
// 저널 기록 실패는 로그만 남기고 주문 흐름은 막지 않음
type JournaledEngine struct {
	Engine
	journal journal
	log     *logger.Logger
}

// NewJournaledEngine wraps inner with an intent journal
func NewJournaledEngine(inner Engine, j journal, log *logger.Logger) *JournaledEngine {
	return &JournaledEngine{Engine: inner, journal: j, log: log.WithComponent("journal")}
}

func (e *JournaledEngine) Submit(ctx context.Context, intent contracts.TradeIntent) (contracts.IntentResult, error) {
	if err := e.journal.SaveIntent(ctx, e.Engine.Name(), intent); err != nil {
		e.log.WithError(err).WithField("intent_id", intent.ID).Warn("journal intent failed")
	}

	result, err := e.Engine.Submit(ctx, intent)

	rec := result
	if err != nil {
		rec = contracts.IntentResult{
			IntentID: intent.ID,
			Asset:    intent.Asset,
			Side:     intent.Side,
			Status:   contracts.IntentError,
			Message:  err.Error(),
		}
	}
	if rec.IntentID == "" {
		rec.IntentID = intent.ID
	}
	if jerr := e.journal.SaveResult(ctx, rec); jerr != nil {
		e.log.WithError(jerr).WithField("intent_id", intent.ID).Warn("journal result failed")
	}
	return result, err
}

func (e *JournaledEngine) Unwrap() Engine { return e.Engine }
