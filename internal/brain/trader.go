package brain

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/fwtrader/internal/clock"
	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/execution"
	"github.com/wonny/fwtrader/internal/state"
	"github.com/wonny/fwtrader/pkg/logger"
)

// UniverseProvider refreshes the universe for a cycle
type UniverseProvider interface {
	Refresh(ctx context.Context, now time.Time, previous []string) (*contracts.UniverseSnapshot, error)
}

// SignalRunner produces signals for the selected assets with per-asset isolation
type SignalRunner interface {
	Name() string
	Build(ctx context.Context, assets []string, view state.View) ([]contracts.Signal, []contracts.AssetFailure)
}

// CycleObserver receives every finished Cycle Record (metrics)
type CycleObserver interface {
	ObserveCycle(rec *contracts.CycleRecord)
}

// Pipeline is the ordered set of strategy stages
type Pipeline struct {
	Universe  UniverseProvider
	Selector  contracts.AssetSelector
	Signals   SignalRunner
	Portfolio contracts.PortfolioBuilder
	Risk      contracts.RiskManager
	Planner   *execution.Planner
}

// Options holds the optional collaborators and cycle settings
type Options struct {
	ConfigHash string

	Clock    clock.Clock   // nil = clock.System
	Cadence  clock.Cadence // RunIfDue 판단, nil = clock.Always
	Store    state.Store   // nil = 저장 안 함
	Recorder contracts.Recorder
	Observer CycleObserver

	// EngineTimeout: Engine 호출별 타임아웃, 0 = 무제한
	EngineTimeout time.Duration

	// AbortOnEngineError: Submit 오류 발생 시 남은 주문 중단
	AbortOnEngineError bool
}

// Trader runs strategy cycles against one Context
// ⭐ SSOT: 사이클 조율 및 Context 쓰기는 여기서만
type Trader struct {
	pipeline Pipeline
	engine   execution.Engine
	opts     Options
	logger   *logger.Logger

	// cycleMu: 동시에 1개 사이클만 (TryLock)
	cycleMu sync.Mutex

	// stateMu: ctx 포인터 교체/조회 보호
	stateMu sync.RWMutex
	ctx     *state.Context

	phaseMu sync.RWMutex
	phase   contracts.Phase
}

// NewTrader creates a trader around an initial (possibly restored) Context
func NewTrader(initial *state.Context, pipeline Pipeline, engine execution.Engine, opts Options, log *logger.Logger) *Trader {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Cadence == nil {
		opts.Cadence = clock.Always{}
	}
	if pipeline.Planner == nil {
		pipeline.Planner = execution.NewPlanner(0)
	}
	return &Trader{
		pipeline: pipeline,
		engine:   engine,
		opts:     opts,
		logger:   log.WithComponent("trader"),
		ctx:      initial,
		phase:    contracts.PhaseIdle,
	}
}

// Phase reports the phase of the cycle in flight (Idle between cycles)
func (t *Trader) Phase() contracts.Phase {
	t.phaseMu.RLock()
	defer t.phaseMu.RUnlock()
	return t.phase
}

// Snapshot returns a copy of the committed Context
func (t *Trader) Snapshot() *state.Context {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.ctx.Clone()
}

// StrategyID returns the strategy the Context belongs to
func (t *Trader) StrategyID() string {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.ctx.StrategyID
}

// Reset replaces the Context with a fresh one holding cash
// 사이클 진행 중이면 ErrCycleInProgress
func (t *Trader) Reset(ctx context.Context, cash float64) error {
	if !t.cycleMu.TryLock() {
		return contracts.ErrCycleInProgress
	}
	defer t.cycleMu.Unlock()

	fresh := state.New(t.StrategyID(), cash)
	if t.opts.Store != nil {
		if err := t.opts.Store.Save(ctx, fresh); err != nil {
			return err
		}
	}
	t.commit(fresh)
	return nil
}

// RunIfDue runs a cycle only when the cadence says one is due
// 반환 bool = 사이클 실행 여부
// cadence 확인은 cycleMu 획득 후 (동시 호출이 같은 due를 두 번 실행하지 않도록)
func (t *Trader) RunIfDue(ctx context.Context) (*contracts.CycleRecord, bool, error) {
	if !t.cycleMu.TryLock() {
		return nil, false, contracts.ErrCycleInProgress
	}
	defer t.cycleMu.Unlock()

	if !t.opts.Cadence.Due(t.committed().LastCycleAt, t.opts.Clock.Now()) {
		return nil, false, nil
	}
	rec, err := t.runCycle(ctx)
	return rec, true, err
}

func (t *Trader) commit(c *state.Context) {
	t.stateMu.Lock()
	t.ctx = c
	t.stateMu.Unlock()
}

func (t *Trader) committed() *state.Context {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return t.ctx
}

func (t *Trader) setPhase(to contracts.Phase) {
	t.phaseMu.Lock()
	from := t.phase
	t.phase = to
	t.phaseMu.Unlock()

	if !contracts.CanTransition(from, to) {
		t.logger.WithFields(map[string]interface{}{
			"from": from,
			"to":   to,
		}).Warn("Unexpected phase transition")
		return
	}
	t.logger.WithFields(map[string]interface{}{
		"from": from,
		"to":   to,
	}).Debug("Phase transition")
}

// withTimeout applies the per-call engine timeout
func (t *Trader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.opts.EngineTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.opts.EngineTimeout)
}
