package execution

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
)

func newTestPlanner(min float64) *Planner {
	p := NewPlanner(min)
	n := 0
	p.newID = func() string {
		n++
		return fmt.Sprintf("intent-%d", n)
	}
	return p
}

func holdings(t *testing.T, qty map[string]float64) state.View {
	t.Helper()
	c := state.New("test", 10_000)
	for asset, q := range qty {
		c.Positions[asset] = state.Position{Asset: asset, Quantity: q, CostBasis: 100}
	}
	c.SetPrices(map[string]float64{"A": 100, "B": 50, "C": 20})
	return c.ViewFor("planner")
}

func allocation(targets ...contracts.Target) *contracts.TargetAllocation {
	a := contracts.NewTargetAllocation()
	for _, t := range targets {
		a.Set(t)
	}
	return a
}

func TestPlanner_OpenPosition(t *testing.T) {
	p := newTestPlanner(0)
	plan := p.Plan(allocation(contracts.Target{Asset: "A", Quantity: 100}), holdings(t, nil), nil)

	require.Len(t, plan.Intents, 1)
	in := plan.Intents[0]
	assert.Equal(t, "A", in.Asset)
	assert.Equal(t, contracts.SideBuy, in.Side)
	assert.Equal(t, 100.0, in.Quantity)
	assert.Equal(t, contracts.ReasonOpen, in.Reason)
	assert.Equal(t, 100.0, in.ReferencePrice)
	assert.Equal(t, 1, in.Sequence)
	assert.Equal(t, "intent-1", in.ID)
}

func TestPlanner_LiquidatesHoldingsOutsideTarget(t *testing.T) {
	p := newTestPlanner(0)
	plan := p.Plan(contracts.NewTargetAllocation(), holdings(t, map[string]float64{"A": 50}), nil)

	require.Len(t, plan.Intents, 1)
	assert.Equal(t, contracts.SideSell, plan.Intents[0].Side)
	assert.Equal(t, 50.0, plan.Intents[0].Quantity)
	assert.Equal(t, contracts.ReasonLiquidate, plan.Intents[0].Reason)
	assert.Equal(t, 0.0, plan.Intents[0].TargetQuantity)
}

func TestPlanner_SellsBeforeBuys(t *testing.T) {
	p := newTestPlanner(0)
	target := allocation(
		contracts.Target{Asset: "C", Quantity: 10}, // buy (open)
		contracts.Target{Asset: "A", Quantity: 20}, // sell (reduce)
		contracts.Target{Asset: "B", Quantity: 30}, // buy (increase)
	)
	view := holdings(t, map[string]float64{"A": 40, "B": 10, "D": 5})

	plan := p.Plan(target, view, nil)

	var order []string
	for _, in := range plan.Intents {
		order = append(order, fmt.Sprintf("%s:%s", in.Side, in.Asset))
	}
	// 매도: target 순서(A) → target 밖 보유(D) / 매수: target 순서(C, B)
	assert.Equal(t, []string{"sell:A", "sell:D", "buy:C", "buy:B"}, order)

	for i, in := range plan.Intents {
		assert.Equal(t, i+1, in.Sequence)
	}
	assert.Equal(t, contracts.ReasonReduce, plan.Intents[0].Reason)
	assert.Equal(t, contracts.ReasonLiquidate, plan.Intents[1].Reason)
	assert.Equal(t, contracts.ReasonIncrease, plan.Intents[3].Reason)
}

func TestPlanner_SkipsBelowMinTradable(t *testing.T) {
	p := newTestPlanner(1)
	target := allocation(
		contracts.Target{Asset: "A", Quantity: 100.5},
		contracts.Target{Asset: "B", Quantity: 12},
	)
	plan := p.Plan(target, holdings(t, map[string]float64{"A": 100, "B": 10}), nil)

	require.Len(t, plan.Intents, 1)
	assert.Equal(t, "B", plan.Intents[0].Asset)
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, "A", plan.Skipped[0].Asset)
	assert.InDelta(t, 0.5, plan.Skipped[0].Delta, 1e-9)
}

func TestPlanner_NoChangeNoIntent(t *testing.T) {
	p := newTestPlanner(0)
	plan := p.Plan(allocation(contracts.Target{Asset: "A", Quantity: 10}), holdings(t, map[string]float64{"A": 10}), nil)
	assert.Empty(t, plan.Intents)
	assert.Empty(t, plan.Skipped)
}

func TestPlanner_SkipsPendingOrders(t *testing.T) {
	p := newTestPlanner(0)
	target := allocation(
		contracts.Target{Asset: "A", Quantity: 10},
		contracts.Target{Asset: "B", Quantity: 10},
	)
	plan := p.Plan(target, holdings(t, nil), map[string]bool{"A": true})

	require.Len(t, plan.Intents, 1)
	assert.Equal(t, "B", plan.Intents[0].Asset)
	require.Len(t, plan.Skipped, 1)
	assert.Equal(t, "open order pending", plan.Skipped[0].Reason)
}

func TestPlanner_UniqueIDs(t *testing.T) {
	p := NewPlanner(0)
	target := allocation(
		contracts.Target{Asset: "A", Quantity: 1},
		contracts.Target{Asset: "B", Quantity: 1},
		contracts.Target{Asset: "C", Quantity: 1},
	)
	plan := p.Plan(target, holdings(t, nil), nil)

	ids := make(map[string]bool)
	for _, in := range plan.Intents {
		assert.NotEmpty(t, in.ID)
		ids[in.ID] = true
	}
	assert.Len(t, ids, 3)
}
