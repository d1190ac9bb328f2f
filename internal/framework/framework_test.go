package framework

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fwtrader/internal/brain"
	"github.com/wonny/fwtrader/internal/clock"
	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/execution"
	"github.com/wonny/fwtrader/internal/portfolio"
	"github.com/wonny/fwtrader/internal/risk"
	"github.com/wonny/fwtrader/internal/s2_signals"
	"github.com/wonny/fwtrader/internal/selection"
	"github.com/wonny/fwtrader/internal/state"
	"github.com/wonny/fwtrader/internal/strategyconfig"
)

const baseYAML = `
meta:
  strategy_id: demo
universe:
  sources:
    - kind: static
      assets: [A, B]
signals:
  kind: constant
portfolio:
  kind: equal_weight
execution:
  cadence: 1h
  engine_timeout: 5s
  min_tradable: 0.001
`

func parse(t *testing.T, extra string) *strategyconfig.Config {
	t.Helper()
	cfg, err := strategyconfig.Parse([]byte(baseYAML + extra))
	require.NoError(t, err)
	return cfg
}

func TestBuild_ResolvesStages(t *testing.T) {
	coll, err := Build(parse(t, ""), Deps{})
	require.NoError(t, err)

	assert.Equal(t, "demo", coll.StrategyID)
	assert.Len(t, coll.ConfigHash, 64)
	assert.IsType(t, selection.All{}, coll.Pipeline.Selector)
	assert.IsType(t, &portfolio.EqualWeight{}, coll.Pipeline.Portfolio)
	assert.IsType(t, risk.Null{}, coll.Pipeline.Risk)
	assert.Equal(t, "constant", coll.Pipeline.Signals.Name())
	assert.Equal(t, 0.001, coll.Pipeline.Planner.MinTradableQuantity)
	assert.Equal(t, clock.Interval{Every: time.Hour}, coll.Cadence)
	assert.Equal(t, 5*time.Second, coll.EngineTimeout)

	opts := coll.Options(brain.Options{})
	assert.Equal(t, coll.ConfigHash, opts.ConfigHash)
	assert.Equal(t, coll.Cadence, opts.Cadence)
}

func TestBuild_SignalKinds(t *testing.T) {
	tests := []struct {
		kind string
		name string
	}{
		{"constant", "constant"},
		{"null", "null"},
		{"threshold", "threshold"},
		{"rsi", "rsi"},
		{"sma_cross", "sma_cross"},
		{"momentum", "momentum"},
		{"stochastic", "stochastic"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := parse(t, "")
			cfg.Signals.Kind = tt.kind

			coll, err := Build(cfg, Deps{})
			require.NoError(t, err)
			assert.Equal(t, tt.name, coll.Pipeline.Signals.Name())
		})
	}
}

func TestBuild_Selectors(t *testing.T) {
	cfg := parse(t, "selector:\n  kind: manual\n  assets: [A]\n")
	coll, err := Build(cfg, Deps{})
	require.NoError(t, err)
	assert.IsType(t, &selection.Manual{}, coll.Pipeline.Selector)

	cfg = parse(t, "selector:\n  kind: filter\n  filter:\n    max_assets: 1\n")
	coll, err = Build(cfg, Deps{})
	require.NoError(t, err)
	assert.IsType(t, &selection.Screener{}, coll.Pipeline.Selector)
}

func TestBuild_RiskChainAndGates(t *testing.T) {
	cfg := parse(t, `
risk:
  - kind: fixed_stop_loss
  - kind: position_limit
    mode: shadow
    max_weight: 0.2
`)
	coll, err := Build(cfg, Deps{})
	require.NoError(t, err)

	chain, ok := coll.Pipeline.Risk.(*risk.Chain)
	require.True(t, ok)
	require.Len(t, chain.Managers, 2)
	assert.IsType(t, &risk.FixedStopLoss{}, chain.Managers[0])

	gate, ok := chain.Managers[1].(*risk.Gate)
	require.True(t, ok)
	assert.Equal(t, risk.GateModeShadow, gate.Mode())
	assert.Equal(t, "position_limit", gate.Name())

	single := parse(t, "risk:\n  - kind: volatility_limit\n    max_volatility: 0.05\n")
	coll, err = Build(single, Deps{})
	require.NoError(t, err)
	assert.IsType(t, &risk.VolatilityLimit{}, coll.Pipeline.Risk)
}

func TestBuild_PortfolioKinds(t *testing.T) {
	tests := []struct {
		kind string
		want interface{}
	}{
		{"equal_weight", &portfolio.EqualWeight{}},
		{"score_weighted", &portfolio.ScoreWeighted{}},
		{"adjust", &portfolio.Adjust{}},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := parse(t, "")
			cfg.Portfolio.Kind = tt.kind

			coll, err := Build(cfg, Deps{})
			require.NoError(t, err)
			assert.IsType(t, tt.want, coll.Pipeline.Portfolio)
			assert.Equal(t, tt.kind, coll.Pipeline.Portfolio.Name())
		})
	}
}

func TestBuild_UnknownKinds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *strategyconfig.Config)
	}{
		{"selector", func(cfg *strategyconfig.Config) { cfg.Selector.Kind = "random" }},
		{"signals", func(cfg *strategyconfig.Config) { cfg.Signals.Kind = "macd" }},
		{"portfolio", func(cfg *strategyconfig.Config) { cfg.Portfolio.Kind = "risk_parity" }},
		{"risk", func(cfg *strategyconfig.Config) {
			cfg.Risk = []strategyconfig.RiskRule{{Kind: "trailing_stop"}}
		}},
		{"gate mode", func(cfg *strategyconfig.Config) {
			cfg.Risk = []strategyconfig.RiskRule{{Kind: "null", Mode: "canary"}}
		}},
		{"universe source", func(cfg *strategyconfig.Config) {
			cfg.Universe.Sources = []strategyconfig.UniverseSource{{Kind: "s3"}}
		}},
		{"postgres without db", func(cfg *strategyconfig.Config) {
			cfg.Universe.Sources = []strategyconfig.UniverseSource{{Kind: "postgres"}}
		}},
		{"constant direction", func(cfg *strategyconfig.Config) { cfg.Signals.Constant.Direction = "sideways" }},
		{"sma periods", func(cfg *strategyconfig.Config) {
			cfg.Signals.Kind = "sma_cross"
			cfg.Signals.SMACross = strategyconfig.SMACrossParams{Fast: 20, Slow: 5}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := parse(t, "")
			tt.mutate(cfg)

			_, err := Build(cfg, Deps{})
			assert.Error(t, err)
		})
	}
}

// 설정 → 파이프라인 → 사이클 1회 (PaperEngine)
func TestBuild_RunsCycle(t *testing.T) {
	engine := execution.NewPaperEngine(10_000)
	engine.SetPrice("A", 300)
	engine.SetPrice("B", 50)
	engine.SetWholeUnits("A")

	coll, err := Build(parse(t, ""), Deps{Engine: engine})
	require.NoError(t, err)

	fixed := clock.NewFixed(time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC))
	trader := brain.NewTrader(
		state.New(coll.StrategyID, 10_000),
		coll.Pipeline,
		engine,
		coll.Options(brain.Options{Clock: fixed}),
		nil,
	)

	rec, err := trader.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.CycleSuccess, rec.Status)
	assert.Equal(t, coll.ConfigHash, rec.ConfigHash)

	snap := trader.Snapshot()
	// A: 5000/300 = 16.67 → 정수 단위 16
	assert.Equal(t, 16.0, snap.Quantity("A"))
	assert.Equal(t, 100.0, snap.Quantity("B"))
}

func TestBuild_SignalsBuilderIsolation(t *testing.T) {
	coll, err := Build(parse(t, ""), Deps{})
	require.NoError(t, err)
	assert.IsType(t, &s2_signals.Builder{}, coll.Pipeline.Signals)
}
