package s1_universe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/pkg/redis"
)

// StaticSource returns a fixed asset list
type StaticSource struct {
	Assets []string
}

// NewStaticSource creates a source over a fixed list
func NewStaticSource(assets ...string) *StaticSource {
	return &StaticSource{Assets: assets}
}

func (s *StaticSource) Name() string { return "static" }

// Fetch returns a copy of the configured assets
func (s *StaticSource) Fetch(ctx context.Context) ([]string, error) {
	out := make([]string, len(s.Assets))
	copy(out, s.Assets)
	return out, nil
}

// FileSource reads one symbol per line ('#' 주석, 빈 줄 무시)
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "file" }

// Fetch reads the file on every call so edits apply on the next refresh
func (s *FileSource) Fetch(ctx context.Context) ([]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer f.Close()

	assets := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		assets = append(assets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	return assets, nil
}

// PostgresSource lists active assets from trader.assets
type PostgresSource struct {
	db *pgxpool.Pool
}

// NewPostgresSource creates a source backed by the assets table
func NewPostgresSource(db *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{db: db}
}

// AssetsSchema creates the assets table used by PostgresSource
const AssetsSchema = `
	CREATE SCHEMA IF NOT EXISTS trader;
	CREATE TABLE IF NOT EXISTS trader.assets (
		symbol       TEXT PRIMARY KEY,
		active       BOOLEAN NOT NULL DEFAULT TRUE,
		fractionable BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

func (s *PostgresSource) Name() string { return "postgres" }

// Fetch returns active symbols ordered by symbol
func (s *PostgresSource) Fetch(ctx context.Context) ([]string, error) {
	query := `
		SELECT symbol
		FROM trader.assets
		WHERE active = TRUE
		ORDER BY symbol
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	assets := make([]string, 0)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

// CachedSource caches another source's list in Redis (TTL 기본 1일)
// Redis 비활성 시 매번 원본 소스 호출
type CachedSource struct {
	inner contracts.UniverseSource
	cache *redis.Cache
	ttl   time.Duration
}

// NewCachedSource wraps inner with a Redis cache
func NewCachedSource(inner contracts.UniverseSource, cache *redis.Cache, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	return &CachedSource{inner: inner, cache: cache, ttl: ttl}
}

func (s *CachedSource) Name() string { return s.inner.Name() }

// Fetch returns the cached list or populates it from the inner source
func (s *CachedSource) Fetch(ctx context.Context) ([]string, error) {
	var assets []string
	err := s.cache.GetOrSet(ctx, redis.UniverseKey(s.inner.Name()), &assets, s.ttl, func() (interface{}, error) {
		return s.inner.Fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}
