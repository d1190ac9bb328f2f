package execution

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/fwtrader/internal/contracts"
)

// PaperEngine simulates a brokerage account in memory
// 테스트 및 paper 모드용. 즉시 체결 (슬리피지 옵션)
type PaperEngine struct {
	mu sync.Mutex

	cash      float64
	positions map[string]float64
	prices    map[string]float64

	slippageBps  float64
	fillRatio    map[string]float64 // asset → 부분 체결 비율 (0~1)
	rejects      map[string]string  // asset → 거절 사유
	failures     map[string]error   // asset → 제출 오류
	priceErrors  map[string]error   // asset → 가격 조회 오류
	openOrders   map[string]bool
	wholeUnits   map[string]bool
	submitted    []contracts.TradeIntent
	positionsErr error
	equityErr    error
	now          func() time.Time
}

// NewPaperEngine creates a paper account with the given cash
func NewPaperEngine(cash float64) *PaperEngine {
	return &PaperEngine{
		cash:        cash,
		positions:   make(map[string]float64),
		prices:      make(map[string]float64),
		fillRatio:   make(map[string]float64),
		rejects:     make(map[string]string),
		failures:    make(map[string]error),
		priceErrors: make(map[string]error),
		openOrders:  make(map[string]bool),
		wholeUnits:  make(map[string]bool),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (e *PaperEngine) Name() string { return "paper" }

// SetPrice sets the price for an asset
func (e *PaperEngine) SetPrice(asset string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[asset] = price
}

// SetPosition sets a held quantity (0 = remove)
func (e *PaperEngine) SetPosition(asset string, qty float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if qty == 0 {
		delete(e.positions, asset)
		return
	}
	e.positions[asset] = qty
}

// SetSlippage sets fill slippage in basis points (buy 불리, sell 불리)
func (e *PaperEngine) SetSlippage(bps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slippageBps = bps
}

// Reject makes every order for asset rejected
func (e *PaperEngine) Reject(asset, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rejects[asset] = reason
}

// FailSubmit makes Submit return err for asset
func (e *PaperEngine) FailSubmit(asset string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[asset] = err
}

// FailPrice makes Price return err for asset
func (e *PaperEngine) FailPrice(asset string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.priceErrors[asset] = err
}

// FailPositions makes Positions return err
func (e *PaperEngine) FailPositions(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.positionsErr = err
}

// FailEquity makes Equity return err
func (e *PaperEngine) FailEquity(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.equityErr = err
}

// PartialFill fills only ratio of each order for asset
func (e *PaperEngine) PartialFill(asset string, ratio float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fillRatio[asset] = ratio
}

// SetOpenOrder marks asset as having a pending order
func (e *PaperEngine) SetOpenOrder(asset string, open bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if open {
		e.openOrders[asset] = true
	} else {
		delete(e.openOrders, asset)
	}
}

// SetWholeUnits marks asset as non-fractionable
func (e *PaperEngine) SetWholeUnits(asset string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wholeUnits[asset] = true
}

// Submitted returns every intent received, in order
func (e *PaperEngine) Submitted() []contracts.TradeIntent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]contracts.TradeIntent, len(e.submitted))
	copy(out, e.submitted)
	return out
}

// Submit fills the intent immediately at the current price
// 현금 부족 / 보유 초과 매도는 거절
func (e *PaperEngine) Submit(ctx context.Context, intent contracts.TradeIntent) (contracts.IntentResult, error) {
	if err := ctx.Err(); err != nil {
		return contracts.IntentResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.submitted = append(e.submitted, intent)
	now := e.now()
	result := contracts.IntentResult{
		IntentID:    intent.ID,
		Asset:       intent.Asset,
		Side:        intent.Side,
		OrderID:     "PAPER-" + uuid.NewString(),
		SubmittedAt: now,
		CompletedAt: now,
	}

	if err, ok := e.failures[intent.Asset]; ok {
		return contracts.IntentResult{}, err
	}
	if reason, ok := e.rejects[intent.Asset]; ok {
		result.Status = contracts.IntentRejected
		result.Message = reason
		return result, nil
	}

	price, ok := e.prices[intent.Asset]
	if !ok || price <= 0 {
		result.Status = contracts.IntentRejected
		result.Message = "no price"
		return result, nil
	}
	if intent.Quantity <= 0 {
		result.Status = contracts.IntentRejected
		result.Message = "non-positive quantity"
		return result, nil
	}

	qty := intent.Quantity
	if ratio, ok := e.fillRatio[intent.Asset]; ok {
		qty = intent.Quantity * ratio
	}

	slip := e.slippageBps / 10000
	switch intent.Side {
	case contracts.SideBuy:
		fill := price * (1 + slip)
		if cost := qty * fill; cost > e.cash+1e-9 {
			result.Status = contracts.IntentRejected
			result.Message = fmt.Sprintf("insufficient cash: need %.2f, have %.2f", cost, e.cash)
			return result, nil
		}
		e.cash -= qty * fill
		e.positions[intent.Asset] += qty
		result.Price = fill
	case contracts.SideSell:
		held := e.positions[intent.Asset]
		if qty > held+1e-9 {
			result.Status = contracts.IntentRejected
			result.Message = fmt.Sprintf("insufficient position: sell %.6g, hold %.6g", qty, held)
			return result, nil
		}
		fill := price * (1 - slip)
		e.cash += qty * fill
		if left := held - qty; math.Abs(left) < 1e-9 {
			delete(e.positions, intent.Asset)
		} else {
			e.positions[intent.Asset] = left
		}
		result.Price = fill
	default:
		result.Status = contracts.IntentRejected
		result.Message = fmt.Sprintf("unknown side %q", intent.Side)
		return result, nil
	}

	result.FilledQuantity = qty
	result.Status = contracts.IntentFilled
	if qty < intent.Quantity {
		result.Status = contracts.IntentPartial
	}
	return result, nil
}

// Positions returns a copy of held quantities
func (e *PaperEngine) Positions(ctx context.Context) (map[string]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.positionsErr != nil {
		return nil, e.positionsErr
	}
	out := make(map[string]float64, len(e.positions))
	for k, v := range e.positions {
		out[k] = v
	}
	return out, nil
}

// Equity returns cash plus marked positions
func (e *PaperEngine) Equity(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.equityErr != nil {
		return 0, e.equityErr
	}
	equity := e.cash
	for asset, qty := range e.positions {
		equity += qty * e.prices[asset]
	}
	return equity, nil
}

// Cash returns the paper cash balance
func (e *PaperEngine) Cash(ctx context.Context) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cash, nil
}

// Price returns the configured price
func (e *PaperEngine) Price(ctx context.Context, asset string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err, ok := e.priceErrors[asset]; ok {
		return 0, err
	}
	price, ok := e.prices[asset]
	if !ok {
		return 0, fmt.Errorf("%w: %s", contracts.ErrNoPrice, asset)
	}
	return price, nil
}

// OpenOrders returns assets marked with SetOpenOrder (sorted)
func (e *PaperEngine) OpenOrders(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.openOrders))
	for a := range e.openOrders {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

// Fractionable reports false for assets marked with SetWholeUnits
func (e *PaperEngine) Fractionable(ctx context.Context, asset string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.wholeUnits[asset], nil
}
