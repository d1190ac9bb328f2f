package execution

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
)

// Planner converts a target allocation into trade intents
// ⭐ SSOT: 목표 수량 → 주문 의도 변환은 여기서만
type Planner struct {
	// MinTradableQuantity: |delta| 가 이 값 미만이면 주문 생략
	MinTradableQuantity float64

	newID func() string
}

// NewPlanner creates a planner
func NewPlanner(minTradable float64) *Planner {
	return &Planner{
		MinTradableQuantity: minTradable,
		newID:               uuid.NewString,
	}
}

// Plan is the planner output
type Plan struct {
	Intents []contracts.TradeIntent
	Skipped []contracts.SkippedAsset
}

type planItem struct {
	asset   string
	current float64
	target  float64
	delta   float64
}

// Plan diffs target against holdings
// 대상 = target ∪ 보유 종목. target에 없는 보유 종목은 0으로 청산
// 순서: 매도 전체 → 매수 전체. 각 그룹 내에서는 target 삽입 순서, target 밖 보유 종목은 정렬 순서로 뒤에
// pending: 미체결 주문이 있는 종목 (이번 사이클 생략)
func (p *Planner) Plan(target *contracts.TargetAllocation, view state.View, pending map[string]bool) Plan {
	items := p.collect(target, view)

	var plan Plan
	var sells, buys []contracts.TradeIntent

	for _, it := range items {
		if it.delta == 0 {
			continue
		}
		if math.Abs(it.delta) < p.MinTradableQuantity {
			plan.Skipped = append(plan.Skipped, contracts.SkippedAsset{
				Asset:  it.asset,
				Delta:  it.delta,
				Reason: "below min tradable quantity",
			})
			continue
		}
		if pending[it.asset] {
			plan.Skipped = append(plan.Skipped, contracts.SkippedAsset{
				Asset:  it.asset,
				Delta:  it.delta,
				Reason: "open order pending",
			})
			continue
		}

		intent := contracts.TradeIntent{
			ID:              p.id(),
			Asset:           it.asset,
			Quantity:        math.Abs(it.delta),
			CurrentQuantity: it.current,
			TargetQuantity:  it.target,
		}
		if price, ok := view.Price(it.asset); ok {
			intent.ReferencePrice = price
		}

		if it.delta < 0 {
			intent.Side = contracts.SideSell
			intent.Reason = contracts.ReasonReduce
			if it.target == 0 {
				intent.Reason = contracts.ReasonLiquidate
			}
			sells = append(sells, intent)
		} else {
			intent.Side = contracts.SideBuy
			intent.Reason = contracts.ReasonIncrease
			if it.current == 0 {
				intent.Reason = contracts.ReasonOpen
			}
			buys = append(buys, intent)
		}
	}

	plan.Intents = append(sells, buys...)
	for i := range plan.Intents {
		plan.Intents[i].Sequence = i + 1
	}
	return plan
}

func (p *Planner) collect(target *contracts.TargetAllocation, view state.View) []planItem {
	items := make([]planItem, 0, target.Len())
	seen := make(map[string]bool, target.Len())

	if target != nil {
		for _, t := range target.Targets {
			if seen[t.Asset] {
				continue
			}
			seen[t.Asset] = true
			cur := view.Quantity(t.Asset)
			items = append(items, planItem{asset: t.Asset, current: cur, target: t.Quantity, delta: t.Quantity - cur})
		}
	}

	// target 밖 보유 종목 (정렬된 순서)
	held := view.Positions()
	sort.Slice(held, func(i, j int) bool { return held[i].Asset < held[j].Asset })
	for _, pos := range held {
		if seen[pos.Asset] || pos.Quantity == 0 {
			continue
		}
		seen[pos.Asset] = true
		items = append(items, planItem{asset: pos.Asset, current: pos.Quantity, target: 0, delta: -pos.Quantity})
	}
	return items
}

func (p *Planner) id() string {
	if p.newID == nil {
		return uuid.NewString()
	}
	return p.newID()
}
