package s2_signals

import (
	"context"
	"fmt"
	"math"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
)

// Momentum emits UP when the lookback return exceeds MinReturn
// ⭐ SSOT: 모멘텀 시그널 계산은 여기서만
type Momentum struct {
	Lookback  int     // 사이클 수 기준 (기본 20)
	MinReturn float64 // UP 임계값 (예: 0.05 = 5%)
}

// NewMomentum creates a momentum generator
func NewMomentum(lookback int, minReturn float64) *Momentum {
	if lookback <= 0 {
		lookback = 20
	}
	return &Momentum{Lookback: lookback, MinReturn: minReturn}
}

func (m *Momentum) Name() string { return "momentum" }

// Generate evaluates the return over Lookback cycles
func (m *Momentum) Generate(ctx context.Context, asset string, view state.View) (*contracts.Signal, error) {
	price, ok := view.Price(asset)
	if !ok {
		return nil, contracts.ErrNoPrice
	}

	closes, err := appendClose(view.Scratch(), asset, price, m.Lookback+1)
	if err != nil {
		return nil, fmt.Errorf("momentum history: %w", err)
	}
	if len(closes) < m.Lookback+1 {
		return nil, nil
	}

	past := closes[0]
	if past <= 0 {
		return nil, nil
	}
	ret := (price - past) / past

	dir := contracts.DirectionFlat
	switch {
	case ret >= m.MinReturn:
		dir = contracts.DirectionUp
	case ret <= -m.MinReturn:
		dir = contracts.DirectionDown
	}

	return &contracts.Signal{
		Asset:     asset,
		Direction: dir,
		// Normalize to -1.0 ~ 1.0 using tanh
		Strength: math.Tanh(ret * 2),
		Metadata: map[string]interface{}{"return": ret},
	}, nil
}
