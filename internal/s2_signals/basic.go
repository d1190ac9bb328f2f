package s2_signals

import (
	"context"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
)

// Constant emits the same direction for every asset
type Constant struct {
	Direction contracts.Direction
	Strength  float64
}

func (c *Constant) Name() string { return "constant" }

// Generate returns the configured direction
func (c *Constant) Generate(ctx context.Context, asset string, view state.View) (*contracts.Signal, error) {
	return &contracts.Signal{
		Asset:     asset,
		Direction: c.Direction,
		Strength:  c.Strength,
	}, nil
}

// Null never emits a signal
type Null struct{}

func (Null) Name() string { return "null" }

func (Null) Generate(ctx context.Context, asset string, view state.View) (*contracts.Signal, error) {
	return nil, nil
}

// Threshold compares the current price with the price seen on the previous cycle
// 직전 가격은 네임스페이스에 저장 (사이클 간 유지)
type Threshold struct {
	Percent float64 // 예: 0.02 = 2% 이상 움직이면 UP/DOWN
}

func (t *Threshold) Name() string { return "threshold" }

// Generate emits UP/DOWN when |price/last - 1| >= Percent, otherwise FLAT
func (t *Threshold) Generate(ctx context.Context, asset string, view state.View) (*contracts.Signal, error) {
	price, ok := view.Price(asset)
	if !ok {
		return nil, contracts.ErrNoPrice
	}

	ns := view.Scratch()
	key := "last_price:" + asset

	var last float64
	found, err := ns.Get(key, &last)
	if err != nil {
		return nil, err
	}
	if err := ns.Put(key, price); err != nil {
		return nil, err
	}

	// 첫 관측: 비교 대상 없음
	if !found || last <= 0 {
		return &contracts.Signal{Asset: asset, Direction: contracts.DirectionFlat,
			Metadata: map[string]interface{}{"warmup": true}}, nil
	}

	change := price/last - 1
	dir := contracts.DirectionFlat
	switch {
	case change >= t.Percent:
		dir = contracts.DirectionUp
	case change <= -t.Percent:
		dir = contracts.DirectionDown
	}

	return &contracts.Signal{
		Asset:     asset,
		Direction: dir,
		Strength:  change,
		Metadata: map[string]interface{}{
			"last_price": last,
			"price":      price,
		},
	}, nil
}
