package framework

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/fwtrader/internal/brain"
	"github.com/wonny/fwtrader/internal/clock"
	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/execution"
	"github.com/wonny/fwtrader/internal/portfolio"
	"github.com/wonny/fwtrader/internal/risk"
	"github.com/wonny/fwtrader/internal/s1_universe"
	"github.com/wonny/fwtrader/internal/s2_signals"
	"github.com/wonny/fwtrader/internal/selection"
	"github.com/wonny/fwtrader/internal/strategyconfig"
	"github.com/wonny/fwtrader/pkg/logger"
	"github.com/wonny/fwtrader/pkg/redis"
)

// Deps are the runtime collaborators stage constructors may need
type Deps struct {
	DB     *pgxpool.Pool    // postgres 유니버스 소스
	Cache  *redis.Cache     // 유니버스 캐시 (nil = 미사용)
	Engine execution.Engine // 소수 단위 거래 가능 여부 조회
	Logger *logger.Logger
}

// Collection is a fully resolved strategy
// ⭐ SSOT: 전략 설정 → 파이프라인 조립은 여기서만
type Collection struct {
	StrategyID string
	ConfigHash string
	Pipeline   brain.Pipeline

	Cadence            clock.Cadence
	EngineTimeout      time.Duration
	AbortOnEngineError bool
}

// Options fills the cycle settings of base from the strategy
func (c *Collection) Options(base brain.Options) brain.Options {
	base.ConfigHash = c.ConfigHash
	base.Cadence = c.Cadence
	base.EngineTimeout = c.EngineTimeout
	base.AbortOnEngineError = c.AbortOnEngineError
	return base
}

// Build resolves every stage kind named in cfg
// 알 수 없는 kind는 설정 오류
func Build(cfg *strategyconfig.Config, deps Deps) (*Collection, error) {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash strategy: %w", err)
	}

	universe, err := buildUniverse(cfg.Universe, deps)
	if err != nil {
		return nil, err
	}
	selector, err := buildSelector(cfg.Selector, deps)
	if err != nil {
		return nil, err
	}
	generator, err := buildGenerator(cfg.Signals)
	if err != nil {
		return nil, err
	}
	builder, err := buildPortfolio(cfg.Portfolio, deps)
	if err != nil {
		return nil, err
	}
	manager, err := buildRisk(cfg.Risk, deps)
	if err != nil {
		return nil, err
	}
	cadence, err := clock.ParseCadence(cfg.Execution.Cadence)
	if err != nil {
		return nil, fmt.Errorf("execution.cadence: %w", err)
	}

	return &Collection{
		StrategyID: cfg.Meta.StrategyID,
		ConfigHash: hash,
		Pipeline: brain.Pipeline{
			Universe:  universe,
			Selector:  selector,
			Signals:   s2_signals.NewBuilder(generator, deps.Logger),
			Portfolio: builder,
			Risk:      manager,
			Planner:   execution.NewPlanner(cfg.Execution.MinTradable),
		},
		Cadence:            cadence,
		EngineTimeout:      cfg.Execution.EngineTimeout,
		AbortOnEngineError: cfg.Execution.AbortOnEngineError,
	}, nil
}

func buildUniverse(cfg strategyconfig.Universe, deps Deps) (*s1_universe.Builder, error) {
	sources := make([]contracts.UniverseSource, 0, len(cfg.Sources))
	for i, src := range cfg.Sources {
		var s contracts.UniverseSource
		switch src.Kind {
		case "static":
			s = s1_universe.NewStaticSource(src.Assets...)
		case "file":
			s = &s1_universe.FileSource{Path: src.Path}
		case "postgres":
			if deps.DB == nil {
				return nil, fmt.Errorf("universe.sources[%d]: postgres source requires a database", i)
			}
			s = s1_universe.NewPostgresSource(deps.DB)
		default:
			return nil, fmt.Errorf("universe.sources[%d]: unknown kind %q", i, src.Kind)
		}

		if cfg.CacheTTL > 0 && deps.Cache != nil {
			s = s1_universe.NewCachedSource(s, deps.Cache, cfg.CacheTTL)
		}
		sources = append(sources, s)
	}

	var cadence clock.Cadence
	if cfg.Cadence != "" {
		c, err := clock.ParseCadence(cfg.Cadence)
		if err != nil {
			return nil, fmt.Errorf("universe.cadence: %w", err)
		}
		cadence = c
	}

	return s1_universe.NewBuilder(sources, s1_universe.Config{
		Cadence: cadence,
		Timeout: cfg.Timeout,
		Exclude: cfg.Exclude,
	}, deps.Logger), nil
}

func buildSelector(cfg strategyconfig.Selector, deps Deps) (contracts.AssetSelector, error) {
	switch cfg.Kind {
	case "", "all":
		return selection.All{}, nil
	case "manual":
		return selection.NewManual(cfg.Assets...), nil
	case "filter":
		f := cfg.Filter
		return selection.NewScreener(selection.ScreenerConfig{
			MinPrice:      f.MinPrice,
			MaxPrice:      f.MaxPrice,
			RequirePrice:  f.RequirePrice,
			MaxAssets:     f.MaxAssets,
			HoldingsFirst: f.HoldingsFirst,
		}, deps.Logger), nil
	default:
		return nil, fmt.Errorf("selector: unknown kind %q", cfg.Kind)
	}
}

func buildGenerator(cfg strategyconfig.Signals) (contracts.SignalGenerator, error) {
	switch cfg.Kind {
	case "constant":
		dir, err := parseDirection(cfg.Constant.Direction)
		if err != nil {
			return nil, err
		}
		return &s2_signals.Constant{Direction: dir, Strength: cfg.Constant.Strength}, nil
	case "null":
		return s2_signals.Null{}, nil
	case "threshold":
		return &s2_signals.Threshold{Percent: cfg.Threshold.Percent}, nil
	case "rsi":
		p := cfg.RSI
		return s2_signals.NewRSI(p.Period, p.Oversold, p.Overbought), nil
	case "sma_cross":
		g, err := s2_signals.NewSMACross(cfg.SMACross.Fast, cfg.SMACross.Slow)
		if err != nil {
			return nil, fmt.Errorf("signals.sma_cross: %w", err)
		}
		return g, nil
	case "stochastic":
		p := cfg.Stochastic
		g, err := s2_signals.NewStochastic(p.FastK, p.SlowK, p.SlowD, p.Oversold, p.Overbought)
		if err != nil {
			return nil, fmt.Errorf("signals.stochastic: %w", err)
		}
		return g, nil
	case "momentum":
		return s2_signals.NewMomentum(cfg.Momentum.Lookback, cfg.Momentum.MinReturn), nil
	default:
		return nil, fmt.Errorf("signals: unknown kind %q", cfg.Kind)
	}
}

func parseDirection(s string) (contracts.Direction, error) {
	switch s {
	case "", "up":
		return contracts.DirectionUp, nil
	case "flat":
		return contracts.DirectionFlat, nil
	case "down":
		return contracts.DirectionDown, nil
	default:
		return 0, fmt.Errorf("signals.constant.direction: unknown direction %q", s)
	}
}

func buildPortfolio(cfg strategyconfig.Portfolio, deps Deps) (contracts.PortfolioBuilder, error) {
	sizer := &portfolio.Sizer{
		WholeUnits: cfg.WholeUnits,
		Precision:  cfg.Precision,
	}
	// Engine이 자산별 소수 단위 여부를 알려주면 사용
	if frac, ok := execution.As[portfolio.Fractionability](deps.Engine); ok {
		sizer.Fractions = frac
	}

	config := portfolio.Config{
		MaxPositions: cfg.MaxPositions,
		CashReserve:  cfg.CashReserve,
	}
	constraints := portfolio.Constraints{
		MaxWeight: cfg.MaxWeight,
		MinWeight: cfg.MinWeight,
		BlackList: cfg.Blacklist,
	}

	switch cfg.Kind {
	case "", "equal_weight":
		return portfolio.NewEqualWeight(config, constraints, sizer, deps.Logger), nil
	case "score_weighted":
		return portfolio.NewScoreWeighted(config, constraints, sizer, deps.Logger), nil
	case "adjust":
		return portfolio.NewAdjust(config, constraints, sizer, cfg.AdjustStep, deps.Logger), nil
	default:
		return nil, fmt.Errorf("portfolio: unknown kind %q", cfg.Kind)
	}
}

// buildRisk chains rules in file order; shadow/off rules are gated
func buildRisk(rules []strategyconfig.RiskRule, deps Deps) (contracts.RiskManager, error) {
	if len(rules) == 0 {
		return risk.Null{}, nil
	}

	managers := make([]contracts.RiskManager, 0, len(rules))
	for i, rule := range rules {
		m, err := buildRule(rule)
		if err != nil {
			return nil, fmt.Errorf("risk[%d]: %w", i, err)
		}

		mode, err := risk.ParseGateMode(rule.Mode)
		if err != nil {
			return nil, fmt.Errorf("risk[%d]: %w", i, err)
		}
		if mode != risk.GateModeEnforce {
			m = risk.NewGate(m, mode, deps.Logger)
		}
		managers = append(managers, m)
	}

	if len(managers) == 1 {
		return managers[0], nil
	}
	return &risk.Chain{Managers: managers}, nil
}

func buildRule(rule strategyconfig.RiskRule) (contracts.RiskManager, error) {
	switch rule.Kind {
	case "null":
		return risk.Null{}, nil
	case "fixed_stop_loss":
		return risk.NewFixedStopLoss(rule.PercentLoss), nil
	case "position_limit":
		return &risk.PositionLimit{MaxWeight: rule.MaxWeight, MaxQuantity: rule.MaxQuantity}, nil
	case "volatility_limit":
		return risk.NewVolatilityLimit(risk.Limits{
			MaxVolatility: rule.MaxVolatility,
			MaxVaR95:      rule.MaxVaR95,
		}, rule.Lookback), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", rule.Kind)
	}
}
