package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContext(t *testing.T) *Context {
	t.Helper()

	c := New("demo", 10000)
	c.Positions["A"] = Position{Asset: "A", Quantity: 50, CostBasis: 90}
	c.Positions["B"] = Position{Asset: "B", Quantity: 1.5, CostBasis: 200}
	c.Prices["A"] = 100
	c.Prices["B"] = 210
	c.SetUniverse([]string{"A", "B", "C"})
	c.MarkCycle(time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC))
	require.NoError(t, c.Namespace("threshold").Put("last:A", 99.5))
	require.NoError(t, c.Namespace("rsi").Put("history:A", []float64{1, 2, 3}))
	return c
}

func TestContext_SerializeRestoreRoundTrip(t *testing.T) {
	original := sampleContext(t)

	data, err := original.Serialize()
	require.NoError(t, err)

	restored, err := Restore(data)
	require.NoError(t, err)

	assert.Equal(t, original, restored)

	var last float64
	found, err := restored.Namespace("threshold").Get("last:A", &last)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 99.5, last)
}

func TestContext_RestoreEmptyDocument(t *testing.T) {
	restored, err := Restore([]byte(`{"strategy_id":"x"}`))
	require.NoError(t, err)

	assert.NotNil(t, restored.Positions)
	assert.NotNil(t, restored.Namespaces)
	assert.Equal(t, 0.0, restored.Quantity("A"))
}

func TestContext_RestoreInvalid(t *testing.T) {
	_, err := Restore([]byte(`{not json`))
	assert.Error(t, err)
}

func TestContext_CloneIsDeep(t *testing.T) {
	original := sampleContext(t)
	clone := original.Clone()

	clone.ApplyFill("A", true, 10, 100)
	clone.Prices["A"] = 1
	clone.Universe[0] = "Z"
	require.NoError(t, clone.Namespace("threshold").Put("last:A", 1.0))
	require.NoError(t, clone.Namespace("new").Put("k", "v"))

	assert.Equal(t, 50.0, original.Quantity("A"))
	assert.Equal(t, 100.0, original.Prices["A"])
	assert.Equal(t, "A", original.Universe[0])
	assert.NotContains(t, original.Namespaces, "new")

	var last float64
	_, err := original.Namespace("threshold").Get("last:A", &last)
	require.NoError(t, err)
	assert.Equal(t, 99.5, last)
}

func TestContext_ApplyFill(t *testing.T) {
	tests := []struct {
		name         string
		buy          bool
		qty, price   float64
		wantQty      float64
		wantBasis    float64
		wantCash     float64
		wantRealized float64
	}{
		{"buy averages cost", true, 50, 110, 100, 100, 10000 - 5500, 0},
		{"partial sell realizes pnl", false, 20, 100, 30, 90, 10000 + 2000, 200},
		{"full sell removes position", false, 50, 80, 0, 0, 10000 + 4000, -500},
		{"zero quantity ignored", true, 0, 100, 50, 90, 10000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("demo", 10000)
			c.Positions["A"] = Position{Asset: "A", Quantity: 50, CostBasis: 90}

			c.ApplyFill("A", tt.buy, tt.qty, tt.price)

			assert.InDelta(t, tt.wantQty, c.Quantity("A"), 1e-9)
			assert.InDelta(t, tt.wantBasis, c.Positions["A"].CostBasis, 1e-9)
			assert.InDelta(t, tt.wantCash, c.Cash, 1e-9)
			assert.InDelta(t, tt.wantRealized, c.RealizedPnL, 1e-9)
			if tt.wantQty == 0 {
				assert.NotContains(t, c.Positions, "A")
			}
		})
	}
}

func TestContext_Reconcile(t *testing.T) {
	c := New("demo", 0)
	c.Positions["A"] = Position{Asset: "A", Quantity: 50, CostBasis: 90}
	c.Positions["B"] = Position{Asset: "B", Quantity: 10, CostBasis: 20}
	c.Positions["C"] = Position{Asset: "C", Quantity: 5, CostBasis: 30}
	c.Prices["D"] = 12

	changed := c.Reconcile(map[string]float64{"A": 50, "B": 7, "D": 3})

	assert.Equal(t, []string{"B", "C", "D"}, changed)
	assert.Equal(t, 50.0, c.Quantity("A"))
	assert.Equal(t, 7.0, c.Quantity("B"))
	assert.Equal(t, 20.0, c.Positions["B"].CostBasis)
	assert.NotContains(t, c.Positions, "C")
	assert.Equal(t, 12.0, c.Positions["D"].CostBasis)
}

func TestView_ReadOnlySurface(t *testing.T) {
	c := sampleContext(t)
	view := c.ViewFor("threshold")

	assert.Equal(t, "demo", view.StrategyID())
	assert.Equal(t, 10000.0, view.Cash())
	assert.Equal(t, int64(1), view.CycleCount())

	price, ok := view.Price("A")
	assert.True(t, ok)
	assert.Equal(t, 100.0, price)

	_, ok = view.Price("missing")
	assert.False(t, ok)

	positions := view.Positions()
	require.Len(t, positions, 2)
	assert.Equal(t, "A", positions[0].Asset)

	// 반환된 슬라이스 수정이 Context에 영향 없음
	universe := view.Universe()
	universe[0] = "Z"
	assert.Equal(t, "A", c.Universe[0])

	// Scratch는 해당 단계 네임스페이스
	require.NoError(t, view.Scratch().Put("k", 1))
	assert.True(t, c.Namespaces["threshold"].Has("k"))
	assert.False(t, c.Namespace("rsi").Has("k"))
}

func TestPosition_UnrealizedReturn(t *testing.T) {
	p := Position{Asset: "A", Quantity: 1, CostBasis: 100}

	r, ok := p.UnrealizedReturn(90)
	assert.True(t, ok)
	assert.InDelta(t, -0.10, r, 1e-12)

	_, ok = Position{Asset: "A", Quantity: 1}.UnrealizedReturn(90)
	assert.False(t, ok)
}
