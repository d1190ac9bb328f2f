package brain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/execution"
	"github.com/wonny/fwtrader/internal/state"
)

// abortedMessage marks intents skipped after an engine error (AbortOnEngineError)
const abortedMessage = "aborted after earlier engine error"

// RunCycle executes one complete cycle
// 단계 실패(Executing 이전) → Context 변경 없음 + failed 레코드 + StageError 반환
// Executing 이후는 주문 단위로 격리, 체결 확인분만 Context 반영
func (t *Trader) RunCycle(ctx context.Context) (*contracts.CycleRecord, error) {
	if !t.cycleMu.TryLock() {
		return nil, contracts.ErrCycleInProgress
	}
	defer t.cycleMu.Unlock()

	return t.runCycle(ctx)
}

// runCycle is the cycle body, cycleMu must be held
func (t *Trader) runCycle(ctx context.Context) (*contracts.CycleRecord, error) {
	current := t.committed()
	now := t.opts.Clock.Now()
	rec := &contracts.CycleRecord{
		ID:         uuid.NewString(),
		StrategyID: current.StrategyID,
		ConfigHash: t.opts.ConfigHash,
		Sequence:   current.CycleCount + 1,
		StartedAt:  now,
	}
	log := t.logger.WithCycle(rec.ID, rec.Sequence)
	log.Debug("Cycle started")

	// 작업 사본: Executing 진입 전까지 원본 불변
	work := current.Clone()

	t.setPhase(contracts.PhaseSelecting)

	// 1. Universe
	universe, err := t.refreshUniverse(ctx, work, rec)
	if err != nil {
		return t.fail(ctx, rec, current, contracts.StageUniverse, err)
	}
	rec.Universe = universe
	if universe.IsEmpty() {
		// 빈 universe = 정상 no-op, 커밋 없음
		return t.noop(ctx, rec, current, nil, "empty universe")
	}
	work.SetUniverse(universe.Assets)

	// 계좌 스냅샷 (equity, positions 필수 / 가격은 경고)
	if err := t.snapshot(ctx, work, rec); err != nil {
		return t.fail(ctx, rec, current, contracts.StageEngine, err)
	}

	// 2. Selector
	var selected []string
	err = guard(func() error {
		var serr error
		selected, serr = t.pipeline.Selector.Select(ctx, universe.Assets, work.ViewFor(t.pipeline.Selector.Name()))
		if serr != nil {
			return serr
		}
		return validateSelection(selected, universe)
	})
	if err != nil {
		return t.fail(ctx, rec, current, contracts.StageSelector, err)
	}
	rec.Selected = selected
	if len(selected) == 0 {
		return t.noop(ctx, rec, current, work, "no assets selected")
	}

	// 3. Signals (자산별 격리)
	t.setPhase(contracts.PhaseSignaling)
	var signals []contracts.Signal
	var failures []contracts.AssetFailure
	err = guard(func() error {
		signals, failures = t.pipeline.Signals.Build(ctx, selected, work.ViewFor(t.pipeline.Signals.Name()))
		return nil
	})
	if err != nil {
		return t.fail(ctx, rec, current, contracts.StageSignals, err)
	}
	rec.Signals = signals
	rec.SignalFailures = failures
	for _, f := range failures {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("signal %s: %s", f.Asset, f.Error))
	}
	if len(signals) == 0 {
		return t.noop(ctx, rec, current, work, "no signals")
	}

	// 4. Portfolio
	t.setPhase(contracts.PhaseBuilding)
	var target *contracts.TargetAllocation
	err = guard(func() error {
		var berr error
		target, berr = t.pipeline.Portfolio.Build(ctx, signals, work.ViewFor(t.pipeline.Portfolio.Name()))
		if berr != nil {
			return berr
		}
		return target.Validate()
	})
	if err != nil {
		return t.fail(ctx, rec, current, contracts.StagePortfolio, err)
	}
	rec.Target = target.Clone()
	rec.Warnings = append(rec.Warnings, target.Warnings...)

	// 5. Risk
	t.setPhase(contracts.PhaseRiskChecking)
	adjusted := target
	if t.pipeline.Risk != nil {
		err = guard(func() error {
			var rerr error
			adjusted, rerr = t.pipeline.Risk.Adjust(ctx, target.Clone(), work.ViewFor(t.pipeline.Risk.Name()))
			if rerr != nil {
				return rerr
			}
			return adjusted.Validate()
		})
		if err != nil {
			return t.fail(ctx, rec, current, contracts.StageRisk, err)
		}
	}
	rec.Adjusted = adjusted.Clone()
	rec.Warnings = appendNew(rec.Warnings, target.Warnings, adjusted.Warnings)

	// 6. Planner
	t.setPhase(contracts.PhasePlanning)
	pending := t.pendingOrders(ctx, rec)
	var plan execution.Plan
	err = guard(func() error {
		plan = t.pipeline.Planner.Plan(adjusted, work.ViewFor(string(contracts.StagePlanner)), pending)
		return nil
	})
	if err != nil {
		return t.fail(ctx, rec, current, contracts.StagePlanner, err)
	}
	rec.Intents = plan.Intents
	rec.Skipped = plan.Skipped

	// 7. Executing: 이 시점부터 작업 사본이 커밋 대상
	t.setPhase(contracts.PhaseExecuting)
	rec.Results = t.execute(ctx, work, plan.Intents, rec)

	work.Equity = markToMarket(work)
	work.MarkCycle(now)
	t.commit(work)
	t.save(ctx, work, rec)

	rec.Status = contracts.CycleSuccess
	if rec.FailedCount() > 0 {
		rec.Status = contracts.CyclePartial
	}
	t.finish(ctx, rec, work)
	return rec, nil
}

// refreshUniverse fetches the universe, falling back to the previous one on failure
func (t *Trader) refreshUniverse(ctx context.Context, work *state.Context, rec *contracts.CycleRecord) (*contracts.UniverseSnapshot, error) {
	var snap *contracts.UniverseSnapshot
	err := guard(func() error {
		var uerr error
		snap, uerr = t.pipeline.Universe.Refresh(ctx, rec.StartedAt, work.Universe)
		return uerr
	})
	if err == nil {
		return snap, nil
	}
	if len(work.Universe) == 0 {
		return nil, err
	}

	t.logger.WithError(err).Warn("Universe refresh failed, using previous universe")
	rec.Warnings = append(rec.Warnings, fmt.Sprintf("universe refresh failed, using previous: %v", err))
	return &contracts.UniverseSnapshot{
		Assets:      append([]string{}, work.Universe...),
		RefreshedAt: work.LastCycleAt,
		Cached:      true,
	}, nil
}

// snapshot pulls equity, positions, cash and prices from the engine into work
func (t *Trader) snapshot(ctx context.Context, work *state.Context, rec *contracts.CycleRecord) error {
	callCtx, cancel := t.withTimeout(ctx)
	positions, err := t.engine.Positions(callCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}

	callCtx, cancel = t.withTimeout(ctx)
	equity, err := t.engine.Equity(callCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("get equity: %w", err)
	}
	work.Equity = equity

	if cr, ok := execution.As[execution.CashReporter](t.engine); ok {
		callCtx, cancel = t.withTimeout(ctx)
		cash, cerr := cr.Cash(callCtx)
		cancel()
		if cerr != nil {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("cash lookup failed: %v", cerr))
		} else {
			work.Cash = cash
		}
	}

	// 가격: universe ∪ 보유 종목
	assets := append([]string{}, work.Universe...)
	for asset := range positions {
		assets = append(assets, asset)
	}
	for asset := range work.Positions {
		assets = append(assets, asset)
	}
	prices := make(map[string]float64, len(assets))
	for _, asset := range dedupe(assets) {
		callCtx, cancel = t.withTimeout(ctx)
		price, perr := t.engine.Price(callCtx, asset)
		cancel()
		if perr != nil {
			rec.Warnings = append(rec.Warnings, fmt.Sprintf("price %s: %v", asset, perr))
			continue
		}
		prices[asset] = price
	}
	work.SetPrices(prices)

	// Engine 보유 수량이 기준
	if changed := work.Reconcile(positions); len(changed) > 0 {
		t.logger.WithField("assets", changed).Warn("Positions reconciled with engine")
		rec.Warnings = append(rec.Warnings, "reconciled positions with engine: "+strings.Join(changed, ", "))
	}
	return nil
}

// pendingOrders returns assets with an open order (engine이 지원하는 경우만)
func (t *Trader) pendingOrders(ctx context.Context, rec *contracts.CycleRecord) map[string]bool {
	lister, ok := execution.As[execution.OpenOrderLister](t.engine)
	if !ok {
		return nil
	}
	callCtx, cancel := t.withTimeout(ctx)
	defer cancel()

	open, err := lister.OpenOrders(callCtx)
	if err != nil {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("open orders lookup failed: %v", err))
		return nil
	}
	pending := make(map[string]bool, len(open))
	for _, a := range open {
		pending[a] = true
	}
	return pending
}

// execute submits intents sequentially and applies confirmed fills to work
func (t *Trader) execute(ctx context.Context, work *state.Context, intents []contracts.TradeIntent, rec *contracts.CycleRecord) []contracts.IntentResult {
	results := make([]contracts.IntentResult, 0, len(intents))
	aborted := false

	for _, intent := range intents {
		log := t.logger.WithCycle(rec.ID, rec.Sequence).WithFields(map[string]interface{}{
			"intent_id": intent.ID,
			"asset":     intent.Asset,
			"side":      intent.Side,
			"quantity":  intent.Quantity,
		})

		if aborted {
			results = append(results, contracts.IntentResult{
				IntentID: intent.ID,
				Asset:    intent.Asset,
				Side:     intent.Side,
				Status:   contracts.IntentError,
				Message:  abortedMessage,
			})
			continue
		}

		result, err := t.submit(ctx, intent)
		if err != nil {
			log.WithError(err).Warn("Intent failed")
			result = contracts.IntentResult{
				IntentID: intent.ID,
				Asset:    intent.Asset,
				Side:     intent.Side,
				Status:   contracts.IntentError,
				Message:  err.Error(),
			}
			if t.opts.AbortOnEngineError {
				aborted = true
			}
		}
		if result.IntentID == "" {
			result.IntentID = intent.ID
		}
		if result.Asset == "" {
			result.Asset = intent.Asset
		}
		if result.Side == "" {
			result.Side = intent.Side
		}
		if !result.Status.Known() {
			log.WithFields(map[string]interface{}{"status": result.Status}).Warn("Unknown engine status")
			result.Message = fmt.Sprintf("unknown engine status %q", result.Status)
			result.Status = contracts.IntentError
		}

		if result.IsConfirmed() {
			price := result.Price
			if price <= 0 {
				price = intent.ReferencePrice
			}
			qty := result.FilledQuantity
			if qty > intent.Quantity {
				rec.Warnings = append(rec.Warnings, fmt.Sprintf("intent %s overfilled %.6g > %.6g, capped", intent.ID, qty, intent.Quantity))
				qty = intent.Quantity
			}
			work.ApplyFill(intent.Asset, intent.Side == contracts.SideBuy, qty, price)
			log.WithFields(map[string]interface{}{
				"status": result.Status,
				"filled": qty,
				"price":  price,
			}).Debug("Intent confirmed")
		} else if result.IsFailure() && err == nil {
			log.WithField("message", result.Message).Warn("Intent rejected")
		}
		results = append(results, result)
	}
	return results
}

// submit calls the engine with a timeout and recovers engine panics
func (t *Trader) submit(ctx context.Context, intent contracts.TradeIntent) (result contracts.IntentResult, err error) {
	callCtx, cancel := t.withTimeout(ctx)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	return t.engine.Submit(callCtx, intent)
}

// fail finishes a cycle that aborted before Executing. Context 변경 없음
func (t *Trader) fail(ctx context.Context, rec *contracts.CycleRecord, current *state.Context, stage contracts.Stage, err error) (*contracts.CycleRecord, error) {
	t.setPhase(contracts.PhaseFailed)

	stageErr := contracts.NewStageError(stage, err)
	rec.Status = contracts.CycleFailed
	rec.FailedStage = stage
	rec.Error = err.Error()

	t.logger.WithCycle(rec.ID, rec.Sequence).WithFields(map[string]interface{}{
		"stage": stage,
		"error": err.Error(),
	}).Error("Cycle failed")

	t.finish(ctx, rec, current)
	return rec, stageErr
}

// noop finishes a cycle with nothing to trade
// work != nil 이면 네임스페이스/타임스탬프 커밋 (시그널 없음 등), nil 이면 커밋 없음 (빈 universe)
func (t *Trader) noop(ctx context.Context, rec *contracts.CycleRecord, current, work *state.Context, reason string) (*contracts.CycleRecord, error) {
	rec.Status = contracts.CycleNoop
	rec.NoopReason = reason

	final := current
	if work != nil {
		work.MarkCycle(rec.StartedAt)
		t.commit(work)
		t.save(ctx, work, rec)
		final = work
	}
	t.finish(ctx, rec, final)
	return rec, nil
}

func (t *Trader) save(ctx context.Context, c *state.Context, rec *contracts.CycleRecord) {
	if t.opts.Store == nil {
		return
	}
	if err := t.opts.Store.Save(ctx, c); err != nil {
		t.logger.WithError(err).Error("Failed to save context")
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("context save failed: %v", err))
	}
}

// finish stamps the Context summary, emits the record and returns to Idle
func (t *Trader) finish(ctx context.Context, rec *contracts.CycleRecord, final *state.Context) {
	t.setPhase(contracts.PhaseRecording)

	rec.Cash = final.Cash
	rec.Equity = final.Equity
	rec.Positions = final.Holdings()
	rec.FinishedAt = t.opts.Clock.Now()

	if t.opts.Recorder != nil {
		if err := t.opts.Recorder.Record(ctx, rec); err != nil {
			// 기록 실패는 사이클/Context에 영향 없음
			t.logger.WithError(err).Error("Failed to record cycle")
		}
	}
	if t.opts.Observer != nil {
		t.opts.Observer.ObserveCycle(rec)
	}

	t.logger.WithCycle(rec.ID, rec.Sequence).WithFields(map[string]interface{}{
		"status":    rec.Status,
		"intents":   len(rec.Intents),
		"confirmed": rec.ConfirmedCount(),
		"failed":    rec.FailedCount(),
		"warnings":  len(rec.Warnings),
		"duration":  rec.Duration().Seconds(),
	}).Info("Cycle completed")

	t.setPhase(contracts.PhaseDone)
	t.setPhase(contracts.PhaseIdle)
}

// guard runs a stage call and turns a panic into an error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()
	return fn()
}

// validateSelection checks selector output: unique, non-empty, drawn from the universe
func validateSelection(selected []string, universe *contracts.UniverseSnapshot) error {
	allowed := make(map[string]bool, universe.Count())
	for _, a := range universe.Assets {
		allowed[a] = true
	}
	seen := make(map[string]bool, len(selected))
	for _, a := range selected {
		if a == "" {
			return fmt.Errorf("%w: empty asset selected", contracts.ErrInvalidOutput)
		}
		if seen[a] {
			return fmt.Errorf("%w: asset %s selected twice", contracts.ErrInvalidOutput, a)
		}
		if !allowed[a] {
			return fmt.Errorf("%w: asset %s not in universe", contracts.ErrInvalidOutput, a)
		}
		seen[a] = true
	}
	return nil
}

// markToMarket returns cash + Σ quantity × price (가격 없으면 평균 단가)
func markToMarket(c *state.Context) float64 {
	equity := c.Cash
	for asset, pos := range c.Positions {
		price, ok := c.Prices[asset]
		if !ok || price <= 0 {
			price = pos.CostBasis
		}
		equity += pos.Quantity * price
	}
	return equity
}

func dedupe(assets []string) []string {
	seen := make(map[string]bool, len(assets))
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// appendNew appends risk warnings not already carried from the target
func appendNew(dst, existing, next []string) []string {
	have := make(map[string]int, len(existing))
	for _, w := range existing {
		have[w]++
	}
	for _, w := range next {
		if have[w] > 0 {
			have[w]--
			continue
		}
		dst = append(dst, w)
	}
	return dst
}

// IsCycleInProgress reports whether err came from an overlapping trigger
func IsCycleInProgress(err error) bool {
	return errors.Is(err, contracts.ErrCycleInProgress)
}
