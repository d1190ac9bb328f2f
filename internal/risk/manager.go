package risk

import (
	"context"
	"math"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
)

// Null passes the allocation through unchanged
type Null struct{}

func (Null) Name() string { return "null" }

func (Null) Adjust(ctx context.Context, target *contracts.TargetAllocation, view state.View) (*contracts.TargetAllocation, error) {
	return target.Clone(), nil
}

// FixedStopLoss liquidates positions whose unrealized loss reaches PercentLoss
// ⭐ SSOT: 고정 손절 규칙
type FixedStopLoss struct {
	PercentLoss float64 // 기본 0.10 (-10%)
}

// NewFixedStopLoss creates a stop loss rule (percentLoss <= 0 → 0.10)
func NewFixedStopLoss(percentLoss float64) *FixedStopLoss {
	if percentLoss <= 0 {
		percentLoss = 0.10
	}
	return &FixedStopLoss{PercentLoss: percentLoss}
}

func (s *FixedStopLoss) Name() string { return "fixed_stop_loss" }

// Adjust sets target 0 for every held asset with (price-cost)/cost <= -PercentLoss
// 가격 없는 보유 종목은 판단 불가 → 그대로 둠
func (s *FixedStopLoss) Adjust(ctx context.Context, target *contracts.TargetAllocation, view state.View) (*contracts.TargetAllocation, error) {
	out := target.Clone()

	for _, pos := range view.Positions() {
		price, ok := view.Price(pos.Asset)
		if !ok {
			continue
		}
		ret, ok := pos.UnrealizedReturn(price)
		if !ok || ret > -s.PercentLoss {
			continue
		}

		out.Set(contracts.Target{Asset: pos.Asset, Quantity: 0, Reason: "stop loss"})
		out.Warn("stop loss: %s unrealized return %.2f%% <= -%.2f%%", pos.Asset, ret*100, s.PercentLoss*100)
	}

	return out, nil
}

// PositionLimit caps each target's market value at MaxWeight × equity
type PositionLimit struct {
	MaxWeight   float64 // 0.0 ~ 1.0, 0 = 미사용
	MaxQuantity float64 // 0 = 미사용
}

func (p *PositionLimit) Name() string { return "position_limit" }

// Adjust reduces oversized targets, flooring to whole units when the target was whole
func (p *PositionLimit) Adjust(ctx context.Context, target *contracts.TargetAllocation, view state.View) (*contracts.TargetAllocation, error) {
	out := target.Clone()
	equity := view.Equity()

	for i, t := range out.Targets {
		limit := math.Inf(1)
		if p.MaxQuantity > 0 {
			limit = p.MaxQuantity
		}
		if p.MaxWeight > 0 && equity > 0 {
			if price, ok := view.Price(t.Asset); ok {
				limit = math.Min(limit, p.MaxWeight*equity/price)
			}
		}
		if t.Quantity <= limit {
			continue
		}

		if t.Quantity == math.Trunc(t.Quantity) {
			limit = math.Floor(limit)
		}
		out.Targets[i].Quantity = limit
		out.Targets[i].Reason = "position limit"
		out.Warn("position limit: %s target %.6g capped to %.6g", t.Asset, t.Quantity, limit)
	}

	return out, nil
}

// Chain runs managers in order, feeding each the previous output
type Chain struct {
	Managers []contracts.RiskManager
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Adjust(ctx context.Context, target *contracts.TargetAllocation, view state.View) (*contracts.TargetAllocation, error) {
	current := target.Clone()
	for _, m := range c.Managers {
		next, err := m.Adjust(ctx, current, view)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, contracts.ErrInvalidOutput
		}
		current = next
	}
	return current, nil
}
