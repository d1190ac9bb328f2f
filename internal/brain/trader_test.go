package brain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fwtrader/internal/clock"
	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/execution"
	"github.com/wonny/fwtrader/internal/portfolio"
	"github.com/wonny/fwtrader/internal/risk"
	"github.com/wonny/fwtrader/internal/s1_universe"
	"github.com/wonny/fwtrader/internal/s2_signals"
	"github.com/wonny/fwtrader/internal/selection"
	"github.com/wonny/fwtrader/internal/state"
)

var start = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

// mapSignals returns a fixed direction per asset, or an error
type mapSignals struct {
	directions map[string]contracts.Direction
	errs       map[string]error
}

func (m *mapSignals) Name() string { return "map" }

func (m *mapSignals) Generate(ctx context.Context, asset string, view state.View) (*contracts.Signal, error) {
	if err, ok := m.errs[asset]; ok {
		return nil, err
	}
	_ = view.Scratch().Put("seen:"+asset, true)
	d, ok := m.directions[asset]
	if !ok {
		return nil, nil
	}
	return &contracts.Signal{Asset: asset, Direction: d, Strength: float64(d)}, nil
}

type failingBuilder struct {
	err   error
	panic bool
}

func (f *failingBuilder) Name() string { return "failing" }

func (f *failingBuilder) Build(ctx context.Context, signals []contracts.Signal, view state.View) (*contracts.TargetAllocation, error) {
	if f.panic {
		panic("boom")
	}
	return nil, f.err
}

type negativeRisk struct{}

func (negativeRisk) Name() string { return "negative" }

func (negativeRisk) Adjust(ctx context.Context, target *contracts.TargetAllocation, view state.View) (*contracts.TargetAllocation, error) {
	out := target.Clone()
	out.Set(contracts.Target{Asset: "A", Quantity: -5})
	return out, nil
}

// blockingSelector blocks until released
type blockingSelector struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSelector) Name() string { return "blocking" }

func (b *blockingSelector) Select(ctx context.Context, universe []string, view state.View) ([]string, error) {
	close(b.entered)
	<-b.release
	return universe, nil
}

type collector struct {
	mu      sync.Mutex
	records []*contracts.CycleRecord
	err     error
}

func (c *collector) Record(ctx context.Context, rec *contracts.CycleRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return c.err
}

func (c *collector) last() *contracts.CycleRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.records) == 0 {
		return nil
	}
	return c.records[len(c.records)-1]
}

type failingStore struct{}

func (failingStore) Load(ctx context.Context) (*state.Context, error) { return nil, nil }
func (failingStore) Save(ctx context.Context, c *state.Context) error {
	return errors.New("disk full")
}

type harness struct {
	trader   *Trader
	engine   *execution.PaperEngine
	records  *collector
	clock    *clock.Fixed
	pipeline Pipeline
}

// newHarness builds a trader over assets A, B with equity 10000 (cash only)
func newHarness(t *testing.T, initial *state.Context, mutate func(p *Pipeline, o *Options)) *harness {
	t.Helper()

	engine := execution.NewPaperEngine(initial.Cash)
	engine.SetPrice("A", 100)
	engine.SetPrice("B", 50)
	for _, pos := range initial.SortedPositions() {
		engine.SetPosition(pos.Asset, pos.Quantity)
	}

	pipeline := Pipeline{
		Universe:  s1_universe.NewBuilder([]contracts.UniverseSource{s1_universe.NewStaticSource("A", "B")}, s1_universe.Config{}, nil),
		Selector:  selection.All{},
		Signals:   s2_signals.NewBuilder(&mapSignals{directions: map[string]contracts.Direction{"A": contracts.DirectionUp, "B": contracts.DirectionFlat}}, nil),
		Portfolio: portfolio.NewEqualWeight(portfolio.Config{}, portfolio.DefaultConstraints(), nil, nil),
		Risk:      risk.Null{},
		Planner:   execution.NewPlanner(0.0001),
	}
	records := &collector{}
	fixed := clock.NewFixed(start)
	opts := Options{
		ConfigHash: "hash",
		Clock:      fixed,
		Recorder:   records,
	}
	if mutate != nil {
		mutate(&pipeline, &opts)
	}

	return &harness{
		trader:   NewTrader(initial, pipeline, engine, opts, nil),
		engine:   engine,
		records:  records,
		clock:    fixed,
		pipeline: pipeline,
	}
}

func TestRunCycle_BuysEqualWeightTarget(t *testing.T) {
	h := newHarness(t, state.New("test", 10_000), nil)

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, contracts.CycleSuccess, rec.Status)
	assert.Equal(t, []string{"A", "B"}, rec.Selected)
	require.Len(t, rec.Intents, 1)
	in := rec.Intents[0]
	assert.Equal(t, "A", in.Asset)
	assert.Equal(t, contracts.SideBuy, in.Side)
	assert.Equal(t, 100.0, in.Quantity)

	snap := h.trader.Snapshot()
	assert.Equal(t, 100.0, snap.Quantity("A"))
	assert.InDelta(t, 0, snap.Cash, 1e-9)
	assert.InDelta(t, 10_000, snap.Equity, 1e-9)
	assert.Equal(t, int64(1), snap.CycleCount)
	assert.Equal(t, start, snap.LastCycleAt)
	assert.Equal(t, 100.0, snap.Positions["A"].CostBasis)

	assert.Same(t, rec, h.records.last())
	assert.Equal(t, "hash", rec.ConfigHash)
	assert.Equal(t, contracts.PhaseIdle, h.trader.Phase())
}

func TestRunCycle_EmptyUniverseIsNoop(t *testing.T) {
	initial := state.New("test", 10_000)
	h := newHarness(t, initial, func(p *Pipeline, o *Options) {
		p.Universe = s1_universe.NewBuilder([]contracts.UniverseSource{s1_universe.NewStaticSource()}, s1_universe.Config{}, nil)
	})
	before, err := initial.Serialize()
	require.NoError(t, err)

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, contracts.CycleNoop, rec.Status)
	assert.Equal(t, "empty universe", rec.NoopReason)
	assert.Empty(t, h.engine.Submitted())

	after, err := h.trader.Snapshot().Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
	assert.Len(t, h.records.records, 1)
}

func TestRunCycle_LiquidatesDroppedAsset(t *testing.T) {
	initial := state.New("test", 5_000)
	initial.Positions["A"] = state.Position{Asset: "A", Quantity: 50, CostBasis: 80}

	h := newHarness(t, initial, func(p *Pipeline, o *Options) {
		p.Selector = selection.NewManual("B")
	})

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.Intents, 1)
	assert.Equal(t, "A", rec.Intents[0].Asset)
	assert.Equal(t, contracts.SideSell, rec.Intents[0].Side)
	assert.Equal(t, 50.0, rec.Intents[0].Quantity)
	assert.Equal(t, contracts.ReasonLiquidate, rec.Intents[0].Reason)

	snap := h.trader.Snapshot()
	assert.Zero(t, snap.Quantity("A"))
	assert.InDelta(t, 10_000, snap.Cash, 1e-9)
	assert.InDelta(t, 50*(100-80), snap.RealizedPnL, 1e-9)
}

func TestRunCycle_SellsBeforeBuys(t *testing.T) {
	initial := state.New("test", 0)
	initial.Positions["B"] = state.Position{Asset: "B", Quantity: 200, CostBasis: 50}

	// A UP, B FLAT → B 청산 후 A 매수
	h := newHarness(t, initial, nil)

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.Intents, 2)

	submitted := h.engine.Submitted()
	require.Len(t, submitted, 2)
	assert.Equal(t, contracts.SideSell, submitted[0].Side)
	assert.Equal(t, "B", submitted[0].Asset)
	assert.Equal(t, contracts.SideBuy, submitted[1].Side)
	assert.Equal(t, "A", submitted[1].Asset)

	// 매도 대금으로 매수 체결
	assert.Equal(t, contracts.CycleSuccess, rec.Status)
	assert.Equal(t, 100.0, h.trader.Snapshot().Quantity("A"))
}

func TestRunCycle_RejectionLeavesPositionsUnchanged(t *testing.T) {
	initial := state.New("test", 10_000)
	h := newHarness(t, initial, nil)
	h.engine.Reject("A", "market closed")

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, contracts.CyclePartial, rec.Status)
	require.Len(t, rec.Results, 1)
	assert.Equal(t, contracts.IntentRejected, rec.Results[0].Status)
	assert.Equal(t, 1, rec.FailedCount())

	snap := h.trader.Snapshot()
	assert.Empty(t, snap.Positions)
	assert.Equal(t, 10_000.0, snap.Cash)
}

func TestRunCycle_SignalFailureIsIsolated(t *testing.T) {
	h := newHarness(t, state.New("test", 10_000), func(p *Pipeline, o *Options) {
		p.Signals = s2_signals.NewBuilder(&mapSignals{
			directions: map[string]contracts.Direction{"A": contracts.DirectionUp, "B": contracts.DirectionUp},
			errs:       map[string]error{"B": errors.New("no history")},
		}, nil)
	})

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, rec.Signals, 1)
	assert.Equal(t, "A", rec.Signals[0].Asset)
	require.Len(t, rec.SignalFailures, 1)
	assert.Equal(t, "B", rec.SignalFailures[0].Asset)
	assert.Contains(t, rec.Warnings, "signal B: no history")

	// A에 전액 배분
	require.Len(t, rec.Intents, 1)
	assert.Equal(t, "A", rec.Intents[0].Asset)
	assert.Equal(t, 100.0, rec.Intents[0].Quantity)
}

func TestRunCycle_StageFailureDiscardsWorkingCopy(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Pipeline, o *Options)
		stage  contracts.Stage
	}{
		{"builder error", func(p *Pipeline, o *Options) {
			p.Portfolio = &failingBuilder{err: errors.New("bad weights")}
		}, contracts.StagePortfolio},
		{"builder panic", func(p *Pipeline, o *Options) {
			p.Portfolio = &failingBuilder{panic: true}
		}, contracts.StagePortfolio},
		{"negative target from risk", func(p *Pipeline, o *Options) {
			p.Risk = negativeRisk{}
		}, contracts.StageRisk},
		{"selector outside universe", func(p *Pipeline, o *Options) {
			p.Selector = &fixedSelector{assets: []string{"Z"}}
		}, contracts.StageSelector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initial := state.New("test", 10_000)
			h := newHarness(t, initial, tt.mutate)

			rec, err := h.trader.RunCycle(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, contracts.ErrStageFailed)

			var stageErr *contracts.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.stage, stageErr.Stage)

			assert.Equal(t, contracts.CycleFailed, rec.Status)
			assert.Equal(t, tt.stage, rec.FailedStage)
			assert.Empty(t, h.engine.Submitted())

			snap := h.trader.Snapshot()
			assert.Zero(t, snap.CycleCount)
			assert.True(t, snap.LastCycleAt.IsZero())
			assert.Empty(t, snap.Namespaces, "stage scratch data must not be committed")
			assert.Same(t, rec, h.records.last())
			assert.Equal(t, contracts.PhaseIdle, h.trader.Phase())
		})
	}
}

type fixedSelector struct{ assets []string }

func (f *fixedSelector) Name() string { return "fixed" }

func (f *fixedSelector) Select(ctx context.Context, universe []string, view state.View) ([]string, error) {
	return f.assets, nil
}

func TestRunCycle_EngineSnapshotFailure(t *testing.T) {
	h := newHarness(t, state.New("test", 10_000), nil)
	h.engine.FailEquity(errors.New("account locked"))

	rec, err := h.trader.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, contracts.StageEngine, rec.FailedStage)
}

func TestRunCycle_PriceFailureIsWarning(t *testing.T) {
	h := newHarness(t, state.New("test", 10_000), nil)
	h.engine.FailPrice("B", errors.New("no quote"))

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Contains(t, rec.Warnings, "price B: no quote")
	assert.Equal(t, contracts.CycleSuccess, rec.Status)
}

func TestRunCycle_NoSignalsCommitsScratch(t *testing.T) {
	h := newHarness(t, state.New("test", 10_000), func(p *Pipeline, o *Options) {
		p.Signals = s2_signals.NewBuilder(&mapSignals{}, nil)
	})

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.CycleNoop, rec.Status)
	assert.Equal(t, "no signals", rec.NoopReason)

	snap := h.trader.Snapshot()
	assert.Equal(t, int64(1), snap.CycleCount)
	assert.True(t, snap.Namespace("map").Has("seen:A"))
}

func TestRunCycle_AbortOnEngineError(t *testing.T) {
	initial := state.New("test", 0)
	initial.Positions["B"] = state.Position{Asset: "B", Quantity: 200, CostBasis: 50}

	h := newHarness(t, initial, func(p *Pipeline, o *Options) {
		o.AbortOnEngineError = true
	})
	h.engine.FailSubmit("B", errors.New("gateway timeout"))

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.Results, 2)

	assert.Equal(t, contracts.IntentError, rec.Results[0].Status)
	assert.Equal(t, "gateway timeout", rec.Results[0].Message)
	assert.Equal(t, contracts.IntentError, rec.Results[1].Status)
	assert.Equal(t, abortedMessage, rec.Results[1].Message)
	assert.Len(t, h.engine.Submitted(), 1)
	assert.Equal(t, contracts.CyclePartial, rec.Status)

	// 실패한 주문은 Context 변경 없음
	assert.Equal(t, 200.0, h.trader.Snapshot().Quantity("B"))
}

func TestRunCycle_OverlappingTriggerRejected(t *testing.T) {
	sel := &blockingSelector{entered: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, state.New("test", 10_000), func(p *Pipeline, o *Options) {
		p.Selector = sel
	})

	done := make(chan error, 1)
	go func() {
		_, err := h.trader.RunCycle(context.Background())
		done <- err
	}()

	<-sel.entered
	assert.Equal(t, contracts.PhaseSelecting, h.trader.Phase())

	_, err := h.trader.RunCycle(context.Background())
	assert.ErrorIs(t, err, contracts.ErrCycleInProgress)
	assert.True(t, IsCycleInProgress(err))
	assert.ErrorIs(t, h.trader.Reset(context.Background(), 1), contracts.ErrCycleInProgress)

	close(sel.release)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), h.trader.Snapshot().CycleCount)
}

func TestRunCycle_PersistsContext(t *testing.T) {
	store := state.NewMemoryStore()
	h := newHarness(t, state.New("test", 10_000), func(p *Pipeline, o *Options) {
		o.Store = store
	})

	_, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 100.0, loaded.Quantity("A"))
	assert.Equal(t, int64(1), loaded.CycleCount)

	// 재시작: 복원된 Context로 다음 사이클 → 추가 주문 없음
	h2 := newHarness(t, loaded, nil)
	rec, err := h2.trader.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rec.Intents)
	assert.Equal(t, int64(2), rec.Sequence)
}

func TestRunCycle_StoreFailureIsWarning(t *testing.T) {
	h := newHarness(t, state.New("test", 10_000), func(p *Pipeline, o *Options) {
		o.Store = failingStore{}
	})

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.CycleSuccess, rec.Status)
	assert.Contains(t, rec.Warnings, "context save failed: disk full")
	assert.Equal(t, 100.0, h.trader.Snapshot().Quantity("A"))
}

func TestRunCycle_RecorderFailureIgnored(t *testing.T) {
	h := newHarness(t, state.New("test", 10_000), nil)
	h.records.err = errors.New("sink down")

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, contracts.CycleSuccess, rec.Status)
}

func TestRunCycle_ReconcilesWithEngine(t *testing.T) {
	initial := state.New("test", 10_000)
	h := newHarness(t, initial, nil)
	// 외부에서 생긴 포지션
	h.engine.SetPosition("A", 100)

	rec, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Contains(t, rec.Warnings, "reconciled positions with engine: A")
}

func TestRunIfDue(t *testing.T) {
	h := newHarness(t, state.New("test", 10_000), func(p *Pipeline, o *Options) {
		o.Cadence = clock.Interval{Every: time.Hour}
	})
	ctx := context.Background()

	_, ran, err := h.trader.RunIfDue(ctx)
	require.NoError(t, err)
	assert.True(t, ran, "first cycle is always due")

	h.clock.Advance(30 * time.Minute)
	_, ran, err = h.trader.RunIfDue(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	h.clock.Advance(30 * time.Minute)
	rec, ran, err := h.trader.RunIfDue(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int64(2), rec.Sequence)
}

func TestRunIfDue_ChecksCadenceUnderCycleLock(t *testing.T) {
	sel := &blockingSelector{entered: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, state.New("test", 10_000), func(p *Pipeline, o *Options) {
		p.Selector = sel
		o.Cadence = clock.Interval{Every: time.Hour}
	})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, _, err := h.trader.RunIfDue(ctx)
		done <- err
	}()
	<-sel.entered

	// 진행 중인 사이클이 있으면 due 판단 없이 거부
	rec, ran, err := h.trader.RunIfDue(ctx)
	assert.ErrorIs(t, err, contracts.ErrCycleInProgress)
	assert.False(t, ran)
	assert.Nil(t, rec)

	close(sel.release)
	require.NoError(t, <-done)

	_, ran, err = h.trader.RunIfDue(ctx)
	require.NoError(t, err)
	assert.False(t, ran, "cadence sees the committed cycle")
	assert.Equal(t, int64(1), h.trader.Snapshot().CycleCount)
}

func TestReset(t *testing.T) {
	store := state.NewMemoryStore()
	h := newHarness(t, state.New("test", 10_000), func(p *Pipeline, o *Options) {
		o.Store = store
	})
	_, err := h.trader.RunCycle(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.trader.Reset(context.Background(), 500))
	snap := h.trader.Snapshot()
	assert.Equal(t, "test", snap.StrategyID)
	assert.Equal(t, 500.0, snap.Cash)
	assert.Empty(t, snap.Positions)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500.0, loaded.Cash)
}

func TestValidateSelection(t *testing.T) {
	u := &contracts.UniverseSnapshot{Assets: []string{"A", "B"}}

	assert.NoError(t, validateSelection([]string{"B", "A"}, u))
	assert.NoError(t, validateSelection(nil, u))
	assert.ErrorIs(t, validateSelection([]string{"A", "A"}, u), contracts.ErrInvalidOutput)
	assert.ErrorIs(t, validateSelection([]string{""}, u), contracts.ErrInvalidOutput)
	assert.ErrorIs(t, validateSelection([]string{"C"}, u), contracts.ErrInvalidOutput)
}

// slowEngine blocks Submit until the call context ends
type slowEngine struct {
	*execution.PaperEngine
}

func (s slowEngine) Submit(ctx context.Context, intent contracts.TradeIntent) (contracts.IntentResult, error) {
	<-ctx.Done()
	return contracts.IntentResult{}, ctx.Err()
}

func TestRunCycle_EngineTimeoutIsPerIntentFailure(t *testing.T) {
	h := newHarness(t, state.New("test", 10_000), nil)
	trader := NewTrader(state.New("test", 10_000), h.pipeline, slowEngine{h.engine}, Options{
		Clock:         h.clock,
		Recorder:      h.records,
		EngineTimeout: 10 * time.Millisecond,
	}, nil)

	rec, err := trader.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.Results, 1)

	assert.Equal(t, contracts.IntentError, rec.Results[0].Status)
	assert.Contains(t, rec.Results[0].Message, context.DeadlineExceeded.Error())
	assert.Equal(t, contracts.CyclePartial, rec.Status)

	snap := trader.Snapshot()
	assert.Zero(t, snap.Quantity("A"))
	assert.Equal(t, 10_000.0, snap.Cash)
}

// scriptedSource returns batches in order, then the last batch forever
type scriptedSource struct {
	batches [][]string
	calls   int
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Fetch(ctx context.Context) ([]string, error) {
	i := min(s.calls, len(s.batches)-1)
	s.calls++
	return s.batches[i], nil
}

func TestRunCycle_EmptyRefreshIsNotServedFromStaleUniverse(t *testing.T) {
	src := &scriptedSource{batches: [][]string{{"A", "B"}, {}}}
	h := newHarness(t, state.New("test", 10_000), func(p *Pipeline, o *Options) {
		p.Universe = s1_universe.NewBuilder([]contracts.UniverseSource{src},
			s1_universe.Config{Cadence: clock.Interval{Every: time.Hour}}, nil)
	})
	ctx := context.Background()

	rec, err := h.trader.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, contracts.CycleSuccess, rec.Status)

	h.clock.Advance(time.Hour)
	rec, err = h.trader.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, contracts.CycleNoop, rec.Status)
	assert.Equal(t, []string{"A", "B"}, h.trader.Snapshot().Universe, "noop leaves Context untouched")

	// cadence 안쪽이지만 마지막 조회가 비어 있었으므로 캐시 대신 재조회
	h.clock.Advance(time.Minute)
	rec, err = h.trader.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, contracts.CycleNoop, rec.Status)
	assert.False(t, rec.Universe.Cached)
	assert.Empty(t, rec.Selected)
	assert.Equal(t, 3, src.calls)
	assert.Len(t, h.engine.Submitted(), 1, "only the first cycle traded")
}

// statuslessEngine reports a fill without an outcome status
type statuslessEngine struct {
	*execution.PaperEngine
}

func (s statuslessEngine) Submit(ctx context.Context, intent contracts.TradeIntent) (contracts.IntentResult, error) {
	return contracts.IntentResult{FilledQuantity: intent.Quantity, Price: 100}, nil
}

func TestRunCycle_UnknownEngineStatusIsError(t *testing.T) {
	h := newHarness(t, state.New("test", 10_000), nil)
	trader := NewTrader(state.New("test", 10_000), h.pipeline, statuslessEngine{h.engine}, Options{
		Clock:    h.clock,
		Recorder: h.records,
	}, nil)

	rec, err := trader.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.Results, 1)

	res := rec.Results[0]
	assert.Equal(t, contracts.IntentError, res.Status)
	assert.Contains(t, res.Message, "unknown engine status")
	assert.Equal(t, rec.Intents[0].ID, res.IntentID)
	assert.Equal(t, contracts.CyclePartial, rec.Status)

	snap := trader.Snapshot()
	assert.Zero(t, snap.Quantity("A"))
	assert.Equal(t, 10_000.0, snap.Cash)
}
