package portfolio

import (
	"context"
	"math"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
)

// Weight is a builder's intermediate target expressed as a fraction of equity
type Weight struct {
	Asset  string
	Weight float64
	Reason string
}

// Fractionability reports whether an asset can be traded in fractional units
type Fractionability interface {
	Fractionable(ctx context.Context, asset string) (bool, error)
}

// defaultPrecision is the fractional quantity step (Alpaca: 1e-9, 보수적으로 1e-6)
const defaultPrecision = 1e-6

// Sizer converts weights into target quantities
// ⭐ SSOT: 비중 → 수량 변환은 여기서만 (equity × weight ÷ price)
type Sizer struct {
	// Fractions nil = 모든 자산 소수 단위 허용
	Fractions Fractionability

	// WholeUnits forces whole-unit quantities for every asset
	WholeUnits bool

	// Precision is the fractional step, 0 = 1e-6
	Precision float64
}

// Size converts weights into a target allocation using the view's equity and prices
// 가격이 없는 자산은 현재 보유 수량을 유지하고 경고를 남김
func (s *Sizer) Size(ctx context.Context, weights []Weight, view state.View) *contracts.TargetAllocation {
	alloc := contracts.NewTargetAllocation()
	equity := view.Equity()

	for _, w := range weights {
		price, ok := view.Price(w.Asset)
		if !ok {
			alloc.Set(contracts.Target{
				Asset:    w.Asset,
				Quantity: view.Quantity(w.Asset),
				Weight:   w.Weight,
				Reason:   "no price: holding current quantity",
			})
			alloc.Warn("no price for %s: target held at current quantity", w.Asset)
			continue
		}

		qty := 0.0
		if equity > 0 && w.Weight > 0 {
			qty = equity * w.Weight / price
		}
		qty = s.round(ctx, w.Asset, qty, alloc)

		alloc.Set(contracts.Target{
			Asset:    w.Asset,
			Quantity: qty,
			Weight:   w.Weight,
			Reason:   w.Reason,
		})
	}

	return alloc
}

// Adjust sizes weight deltas on top of current holdings (current qty + equity × Δweight ÷ price)
// 조정 대상이 아닌 보유 종목은 현재 수량으로 유지
func (s *Sizer) Adjust(ctx context.Context, deltas []Weight, view state.View) *contracts.TargetAllocation {
	alloc := contracts.NewTargetAllocation()
	equity := view.Equity()

	for _, d := range deltas {
		current := view.Quantity(d.Asset)
		price, ok := view.Price(d.Asset)
		if !ok {
			alloc.Set(contracts.Target{
				Asset:    d.Asset,
				Quantity: current,
				Reason:   "no price: holding current quantity",
			})
			alloc.Warn("no price for %s: adjustment skipped", d.Asset)
			continue
		}

		qty := current
		if equity > 0 {
			qty += equity * d.Weight / price
		}
		qty = s.round(ctx, d.Asset, qty, alloc)

		weight := 0.0
		if equity > 0 {
			weight = qty * price / equity
		}
		alloc.Set(contracts.Target{
			Asset:    d.Asset,
			Quantity: qty,
			Weight:   weight,
			Reason:   d.Reason,
		})
	}

	for _, p := range view.Positions() {
		if _, ok := alloc.Get(p.Asset); ok || p.Quantity <= 0 {
			continue
		}
		weight := 0.0
		if price, ok := view.Price(p.Asset); ok && equity > 0 {
			weight = p.Quantity * price / equity
		}
		alloc.Set(contracts.Target{
			Asset:    p.Asset,
			Quantity: p.Quantity,
			Weight:   weight,
			Reason:   "unchanged",
		})
	}

	return alloc
}

// round floors qty to whole units for non-fractionable assets, otherwise to Precision
func (s *Sizer) round(ctx context.Context, asset string, qty float64, alloc *contracts.TargetAllocation) float64 {
	if qty <= 0 {
		return 0
	}

	whole := s.WholeUnits
	if !whole && s.Fractions != nil {
		fractionable, err := s.Fractions.Fractionable(ctx, asset)
		if err != nil {
			alloc.Warn("fractionability lookup failed for %s, using whole units: %v", asset, err)
			fractionable = false
		}
		whole = !fractionable
	}

	if whole {
		return floorUnits(qty)
	}

	step := s.Precision
	if step <= 0 {
		step = defaultPrecision
	}
	scale := math.Round(1 / step)
	return floorUnits(qty*scale) / scale
}

// floorUnits floors x, treating values within float noise of an integer as that integer
func floorUnits(x float64) float64 {
	if r := math.Round(x); math.Abs(x-r) < 1e-6 {
		return r
	}
	return math.Floor(x)
}
