package s2_signals

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
)

type scriptedGenerator struct{}

func (scriptedGenerator) Name() string { return "scripted" }

func (scriptedGenerator) Generate(ctx context.Context, asset string, view state.View) (*contracts.Signal, error) {
	switch asset {
	case "B":
		return nil, errors.New("no data for B")
	case "C":
		panic("boom")
	case "D":
		return &contracts.Signal{Asset: "X", Direction: contracts.DirectionUp}, nil
	case "E":
		return &contracts.Signal{Asset: "E", Strength: math.NaN()}, nil
	case "F":
		return nil, nil
	}
	return &contracts.Signal{Direction: contracts.DirectionUp, Strength: 1}, nil
}

func TestBuilder_IsolatesAssetFailures(t *testing.T) {
	b := NewBuilder(scriptedGenerator{}, nil)
	view := state.New("test", 0).ViewFor("scripted")

	signals, failures := b.Build(context.Background(), []string{"A", "B", "C", "D", "E", "F", "G"}, view)

	require.Len(t, signals, 2)
	assert.Equal(t, "A", signals[0].Asset)
	assert.Equal(t, "G", signals[1].Asset)

	failed := make([]string, 0, len(failures))
	for _, f := range failures {
		failed = append(failed, f.Asset)
		assert.NotEmpty(t, f.Error)
	}
	assert.Equal(t, []string{"B", "C", "D", "E"}, failed)
	assert.Equal(t, "scripted", b.Name())
}

func TestConstantAndNull(t *testing.T) {
	view := state.New("test", 0).ViewFor("constant")

	sig, err := (&Constant{Direction: contracts.DirectionUp, Strength: 0.5}).Generate(context.Background(), "A", view)
	require.NoError(t, err)
	assert.Equal(t, contracts.Signal{Asset: "A", Direction: contracts.DirectionUp, Strength: 0.5}, *sig)

	sig, err = Null{}.Generate(context.Background(), "A", view)
	assert.NoError(t, err)
	assert.Nil(t, sig)
}

// runCycles feeds one price per cycle through a fresh view each time
func runCycles(t *testing.T, gen contracts.SignalGenerator, prices []float64) *contracts.Signal {
	t.Helper()
	c := state.New("test", 0)
	var sig *contracts.Signal
	for _, p := range prices {
		c.SetPrices(map[string]float64{"A": p})
		var err error
		sig, err = gen.Generate(context.Background(), "A", c.ViewFor(gen.Name()))
		require.NoError(t, err)
	}
	return sig
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   contracts.Direction
	}{
		{"first observation", []float64{100}, contracts.DirectionFlat},
		{"up move", []float64{100, 103}, contracts.DirectionUp},
		{"down move", []float64{100, 97}, contracts.DirectionDown},
		{"small move", []float64{100, 101}, contracts.DirectionFlat},
		{"compares with previous cycle only", []float64{100, 103, 104}, contracts.DirectionFlat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := runCycles(t, &Threshold{Percent: 0.02}, tt.prices)
			require.NotNil(t, sig)
			assert.Equal(t, tt.want, sig.Direction)
		})
	}
}

func TestThreshold_NoPrice(t *testing.T) {
	_, err := (&Threshold{Percent: 0.02}).Generate(context.Background(), "A", state.New("test", 0).ViewFor("threshold"))
	assert.ErrorIs(t, err, contracts.ErrNoPrice)
}

func TestRSI(t *testing.T) {
	rsi := NewRSI(5, 0, 0)

	down := []float64{110, 108, 106, 104, 102, 100, 98}
	up := []float64{100, 102, 104, 106, 108, 110, 112}

	// 히스토리 부족 → 시그널 없음
	assert.Nil(t, runCycles(t, rsi, down[:5]))

	sig := runCycles(t, rsi, down)
	require.NotNil(t, sig)
	assert.Equal(t, contracts.DirectionUp, sig.Direction)

	sig = runCycles(t, rsi, up)
	require.NotNil(t, sig)
	assert.Equal(t, contracts.DirectionDown, sig.Direction)
	assert.Contains(t, sig.Metadata, "rsi")
}

func TestRSI_FlatSeriesIsNeutral(t *testing.T) {
	sig := runCycles(t, NewRSI(3, 0, 0), []float64{100, 100, 100, 100, 100})
	require.NotNil(t, sig)
	assert.Equal(t, contracts.DirectionFlat, sig.Direction)
	assert.Zero(t, sig.Strength)
	assert.Equal(t, 50.0, sig.Metadata["rsi"])
}

func TestStochastic(t *testing.T) {
	_, err := NewStochastic(3, 2, 2, 90, 10)
	assert.Error(t, err)

	gen, err := NewStochastic(3, 2, 2, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 20.0, gen.Oversold)
	assert.Equal(t, 80.0, gen.Overbought)

	// lookback = 3 + 2 + 2 - 2 = 5
	assert.Nil(t, runCycles(t, gen, []float64{1, 2, 3, 4}))

	sig := runCycles(t, gen, []float64{10, 9, 8, 7, 6, 5})
	require.NotNil(t, sig)
	assert.Equal(t, contracts.DirectionUp, sig.Direction, "close at the window low")
	assert.InDelta(t, 0, sig.Metadata["stoch_k"], 1e-9)
	assert.InDelta(t, 1, sig.Strength, 1e-9)

	sig = runCycles(t, gen, []float64{5, 6, 7, 8, 9, 10})
	require.NotNil(t, sig)
	assert.Equal(t, contracts.DirectionDown, sig.Direction, "close at the window high")
	assert.InDelta(t, 100, sig.Metadata["stoch_k"], 1e-9)

	sig = runCycles(t, gen, []float64{5, 6, 7, 7, 7, 7})
	require.NotNil(t, sig)
	assert.Equal(t, contracts.DirectionFlat, sig.Direction)
	assert.Equal(t, true, sig.Metadata["flat"])
}

func TestSMACross(t *testing.T) {
	_, err := NewSMACross(5, 5)
	assert.Error(t, err)

	gen, err := NewSMACross(2, 4)
	require.NoError(t, err)

	assert.Nil(t, runCycles(t, gen, []float64{1, 2, 3}))

	sig := runCycles(t, gen, []float64{1, 2, 3, 4})
	require.NotNil(t, sig)
	assert.Equal(t, contracts.DirectionUp, sig.Direction)

	sig = runCycles(t, gen, []float64{4, 3, 2, 1})
	require.NotNil(t, sig)
	assert.Equal(t, contracts.DirectionDown, sig.Direction)
}

func TestMomentum(t *testing.T) {
	gen := NewMomentum(3, 0.05)

	assert.Nil(t, runCycles(t, gen, []float64{100, 101, 102}))

	sig := runCycles(t, gen, []float64{100, 101, 102, 110})
	require.NotNil(t, sig)
	assert.Equal(t, contracts.DirectionUp, sig.Direction)
	assert.InDelta(t, 0.10, sig.Metadata["return"], 1e-9)

	sig = runCycles(t, gen, []float64{100, 101, 102, 103})
	require.NotNil(t, sig)
	assert.Equal(t, contracts.DirectionFlat, sig.Direction)
}

func TestAppendCloseCapsHistory(t *testing.T) {
	ns := state.New("test", 0).Namespace("rsi")
	for i := 1; i <= 5; i++ {
		_, err := appendClose(ns, "A", float64(i), 3)
		require.NoError(t, err)
	}

	var closes []float64
	found, err := ns.Get(closesKey("A"), &closes)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []float64{3, 4, 5}, closes)
}
