package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wonny/fwtrader/internal/brain"
	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/execution"
	"github.com/wonny/fwtrader/internal/framework"
	"github.com/wonny/fwtrader/internal/metrics"
	"github.com/wonny/fwtrader/internal/record"
	"github.com/wonny/fwtrader/internal/s1_universe"
	"github.com/wonny/fwtrader/internal/state"
	"github.com/wonny/fwtrader/internal/strategyconfig"
	"github.com/wonny/fwtrader/pkg/config"
	"github.com/wonny/fwtrader/pkg/database"
	"github.com/wonny/fwtrader/pkg/logger"
	"github.com/wonny/fwtrader/pkg/redis"
)

// app holds the wired process components
// ⭐ SSOT: 프로세스 조립(config → engine → store → trader)은 여기서만
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	strategy *strategyconfig.Config

	db    *database.DB
	redis *redis.Client
	cache *redis.Cache

	engine     execution.Engine
	store      state.Store
	collection *framework.Collection

	history  *record.History
	hub      *record.Hub
	registry *prometheus.Registry
	trader   *brain.Trader

	closers []func()
}

// appOptions selects optional surfaces
type appOptions struct {
	withHub bool // websocket 스트림 (start 전용)
}

// loadEnv loads process config and the logger
func loadEnv() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if strategyFile != "" {
		cfg.Trader.StrategyFile = strategyFile
	}
	return cfg, logger.New(cfg), nil
}

// newApp wires every component the trader needs
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, log, err := loadEnv()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}

	if err := a.init(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, opts appOptions) error {
	// 1. Strategy
	strategy, _, err := strategyconfig.Load(a.cfg.Trader.StrategyFile)
	if err != nil {
		return fmt.Errorf("load strategy %s: %w", a.cfg.Trader.StrategyFile, err)
	}
	for _, w := range strategyconfig.Warn(strategy) {
		a.log.WithFields(map[string]interface{}{
			"code":    w.Code,
			"message": w.Message,
		}).Warn("Strategy warning")
	}
	a.strategy = strategy

	// 2. Storage backends
	if err := a.connect(ctx); err != nil {
		return err
	}

	// 3. Engine
	engine, err := a.buildEngine()
	if err != nil {
		return err
	}
	a.engine = engine

	// 4. State store
	store, err := a.buildStore(ctx, strategy.Meta.StrategyID)
	if err != nil {
		return err
	}
	a.store = store

	// 5. Strategy pipeline
	deps := framework.Deps{Cache: a.cache, Engine: engine, Logger: a.log}
	if a.db != nil {
		deps.DB = a.db.Pool
	}
	collection, err := framework.Build(strategy, deps)
	if err != nil {
		return fmt.Errorf("build strategy: %w", err)
	}
	a.collection = collection

	// 6. Context (복원 또는 신규)
	initial, err := a.loadContext(ctx)
	if err != nil {
		return err
	}

	// 7. Record sinks + metrics
	recorder, err := a.buildRecorder(opts)
	if err != nil {
		return err
	}
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if a.db != nil {
		a.registry.MustRegister(database.NewPoolCollector(a.db))
	}
	observer := metrics.New(a.registry)

	// 8. Trader
	a.trader = brain.NewTrader(initial, collection.Pipeline, engine, collection.Options(brain.Options{
		Store:    store,
		Recorder: recorder,
		Observer: observer,
	}), a.log)

	a.log.WithFields(map[string]interface{}{
		"strategy_id": strategy.Meta.StrategyID,
		"config_hash": collection.ConfigHash,
		"engine":      engine.Name(),
		"state":       a.cfg.Trader.StateBackend,
		"sequence":    initial.CycleCount,
	}).Info("Trader initialized")

	return nil
}

// connect opens Postgres (optional) and Redis (disabled-safe)
func (a *app) connect(ctx context.Context) error {
	if a.cfg.Database.URL != "" {
		db, err := database.New(ctx, a.cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, db.Close)

		if err := db.Migrate(ctx, s1_universe.AssetsSchema, record.Schema, execution.JournalSchema); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.log.Info("Connected to database")
	}

	client, err := redis.New(ctx, a.cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = client
	a.cache = redis.NewCache(client, client.Prefix())
	a.closers = append(a.closers, func() { _ = client.Close() })
	return nil
}

func (a *app) buildEngine() (execution.Engine, error) {
	var engine execution.Engine

	switch a.cfg.Engine.Kind {
	case "paper":
		paper := execution.NewPaperEngine(a.cfg.Trader.InitialCash)
		prices, err := parsePrices(a.cfg.Engine.PaperPrices)
		if err != nil {
			return nil, err
		}
		for asset, price := range prices {
			paper.SetPrice(asset, price)
		}
		engine = paper
	case "alpaca":
		limiter := redis.NewRateLimiter(a.redis, a.redis.Prefix())
		engine = execution.NewAlpacaEngine(a.cfg, a.log, limiter, a.cache)
	default:
		return nil, fmt.Errorf("unknown engine %q", a.cfg.Engine.Kind)
	}

	if a.cfg.Engine.RateLimit > 0 {
		engine = execution.NewRateLimitedEngine(engine, a.cfg.Engine.RateLimit)
	}
	if a.db != nil {
		engine = execution.NewJournaledEngine(engine, execution.NewRepository(a.db.Pool), a.log)
	}
	return engine, nil
}

func (a *app) buildStore(ctx context.Context, strategyID string) (state.Store, error) {
	switch a.cfg.Trader.StateBackend {
	case "memory":
		return state.NewMemoryStore(), nil
	case "file":
		return state.NewFileStore(a.cfg.Trader.StatePath), nil
	case "postgres":
		if a.db == nil {
			return nil, errors.New("postgres state backend requires DATABASE_URL")
		}
		store := state.NewPostgresStore(a.db.Pool, strategyID)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "redis":
		return state.NewRedisStore(a.redis, strategyID), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", a.cfg.Trader.StateBackend)
	}
}

// loadContext restores the persisted Context or starts fresh
func (a *app) loadContext(ctx context.Context) (*state.Context, error) {
	strategyID := a.strategy.Meta.StrategyID

	restored, err := a.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}
	if restored == nil {
		a.log.WithField("cash", a.cfg.Trader.InitialCash).Info("No saved context, starting fresh")
		return state.New(strategyID, a.cfg.Trader.InitialCash), nil
	}
	if restored.StrategyID != strategyID {
		return nil, fmt.Errorf("saved context belongs to strategy %q, not %q", restored.StrategyID, strategyID)
	}
	return restored, nil
}

func (a *app) buildRecorder(opts appOptions) (contracts.Recorder, error) {
	a.history = record.NewHistory(record.DefaultHistorySize)
	sinks := record.Multi{a.history, record.NewLogRecorder(a.log)}

	if a.cfg.Trader.RecordPath != "" {
		sinks = append(sinks, record.NewFileRecorder(a.cfg.Trader.RecordPath))
	}
	if a.db != nil {
		sinks = append(sinks, record.NewRepository(a.db.Pool))
	}
	if a.cfg.Kafka.Enabled {
		k, err := record.NewKafkaRecorder(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic)
		if err != nil {
			return nil, fmt.Errorf("kafka recorder: %w", err)
		}
		a.closers = append(a.closers, func() { _ = k.Close() })
		sinks = append(sinks, k)
	}
	if opts.withHub {
		a.hub = record.NewHub(a.log)
		a.closers = append(a.closers, a.hub.Close)
		sinks = append(sinks, a.hub)
	}
	return sinks, nil
}

// Close releases resources in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// parsePrices parses "SYM=price" pairs
func parsePrices(pairs []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		asset, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("PAPER_PRICES: %q is not SYMBOL=PRICE", pair)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || price <= 0 {
			return nil, fmt.Errorf("PAPER_PRICES: invalid price for %s", asset)
		}
		prices[strings.TrimSpace(asset)] = price
	}
	return prices, nil
}
