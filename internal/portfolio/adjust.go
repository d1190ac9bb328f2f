package portfolio

import (
	"context"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
	"github.com/wonny/fwtrader/pkg/logger"
)

// defaultAdjustStep is the weight change applied per signal
const defaultAdjustStep = 0.05

// Adjust shifts current weights instead of rebuilding the book
// UP +Step, DOWN -Step, 그 외 보유 종목은 현재 수량 유지
type Adjust struct {
	config      Config
	constraints Constraints
	sizer       *Sizer
	step        float64
	logger      *logger.Logger
}

// NewAdjust creates a relative-weight builder, step <= 0 = 0.05
func NewAdjust(config Config, constraints Constraints, sizer *Sizer, step float64, log *logger.Logger) *Adjust {
	if sizer == nil {
		sizer = &Sizer{}
	}
	if step <= 0 {
		step = defaultAdjustStep
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Adjust{
		config:      config,
		constraints: constraints,
		sizer:       sizer,
		step:        step,
		logger:      log.WithComponent("portfolio"),
	}
}

func (b *Adjust) Name() string { return "adjust" }

// Build turns signals into weight deltas and sizes them on top of current holdings
func (b *Adjust) Build(ctx context.Context, signals []contracts.Signal, view state.View) (*contracts.TargetAllocation, error) {
	deltas := make([]Weight, 0, len(signals))
	for _, s := range signals {
		switch s.Direction {
		case contracts.DirectionUp:
			deltas = append(deltas, Weight{Asset: s.Asset, Weight: b.step, Reason: "increase weight"})
		case contracts.DirectionDown:
			if view.Quantity(s.Asset) > 0 {
				deltas = append(deltas, Weight{Asset: s.Asset, Weight: -b.step, Reason: "decrease weight"})
			}
		}
	}

	deltas = b.limit(deltas, view)
	alloc := b.sizer.Adjust(ctx, deltas, view)

	b.logger.WithFields(map[string]interface{}{
		"adjustments":  len(deltas),
		"positions":    alloc.Len(),
		"total_weight": alloc.TotalWeight(),
	}).Debug("Portfolio adjusted")

	return alloc, nil
}

// limit applies blacklist, MaxWeight, MaxPositions and CashReserve to the deltas
// 블랙리스트 보유 종목은 전량 축소
func (b *Adjust) limit(deltas []Weight, view state.View) []Weight {
	equity := view.Equity()
	held := make(map[string]bool)
	invested := 0.0
	for _, p := range view.Positions() {
		if p.Quantity <= 0 {
			continue
		}
		held[p.Asset] = true
		invested += currentWeight(view, p.Asset)
	}

	result := make([]Weight, 0, len(deltas))
	budget := 1.0 - b.config.CashReserve - invested
	for _, d := range deltas {
		current := currentWeight(view, d.Asset)
		if b.constraints.IsBlackListed(d.Asset) {
			if current > 0 {
				result = append(result, Weight{Asset: d.Asset, Weight: -current, Reason: "blacklisted"})
			}
			continue
		}
		if d.Weight < 0 {
			budget -= d.Weight
			result = append(result, d)
			continue
		}

		if !held[d.Asset] && b.config.MaxPositions > 0 && len(held) >= b.config.MaxPositions {
			continue
		}
		if b.constraints.MaxWeight > 0 && current+d.Weight > b.constraints.MaxWeight {
			d.Weight = b.constraints.MaxWeight - current
		}
		if equity > 0 && d.Weight > budget {
			d.Weight = budget
		}
		if d.Weight <= 0 {
			continue
		}
		budget -= d.Weight
		held[d.Asset] = true
		result = append(result, d)
	}
	return result
}

// currentWeight is the asset's market value over equity, 0 without a price
func currentWeight(view state.View, asset string) float64 {
	equity := view.Equity()
	price, ok := view.Price(asset)
	if !ok || equity <= 0 {
		return 0
	}
	return view.Quantity(asset) * price / equity
}
