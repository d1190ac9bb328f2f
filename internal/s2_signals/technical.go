package s2_signals

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
)

// RSI emits UP when oversold and DOWN when overbought
// ⭐ SSOT: 기술적 지표 계산은 go-talib 사용
type RSI struct {
	Period     int     // 기본 14
	Oversold   float64 // 기본 30
	Overbought float64 // 기본 70
}

// NewRSI creates an RSI generator with defaults for zero fields
func NewRSI(period int, oversold, overbought float64) *RSI {
	if period < 2 {
		period = 14
	}
	if oversold <= 0 {
		oversold = 30
	}
	if overbought <= 0 {
		overbought = 70
	}
	return &RSI{Period: period, Oversold: oversold, Overbought: overbought}
}

func (r *RSI) Name() string { return "rsi" }

// Generate appends the current price and evaluates RSI(Period)
// 히스토리 부족 시 시그널 없음
func (r *RSI) Generate(ctx context.Context, asset string, view state.View) (*contracts.Signal, error) {
	price, ok := view.Price(asset)
	if !ok {
		return nil, contracts.ErrNoPrice
	}

	closes, err := appendClose(view.Scratch(), asset, price, r.Period*4)
	if err != nil {
		return nil, fmt.Errorf("rsi history: %w", err)
	}
	if len(closes) < r.Period+1 {
		return nil, nil
	}
	// 변동 없는 구간: talib Rsi는 0 (= 과매도)을 반환하므로 중립 처리
	if isFlat(closes) {
		return flatSignal(asset, "rsi", 50), nil
	}

	rsi, ok := last(talib.Rsi(closes, r.Period))
	if !ok {
		return nil, nil
	}

	dir := contracts.DirectionFlat
	switch {
	case rsi <= r.Oversold:
		dir = contracts.DirectionUp
	case rsi >= r.Overbought:
		dir = contracts.DirectionDown
	}

	return &contracts.Signal{
		Asset:     asset,
		Direction: dir,
		Strength:  (50 - rsi) / 50, // 과매도일수록 +1
		Metadata:  map[string]interface{}{"rsi": rsi},
	}, nil
}

// SMACross emits UP while the fast SMA is above the slow SMA
type SMACross struct {
	Fast int // 기본 10
	Slow int // 기본 30
}

// NewSMACross creates an SMA cross generator
func NewSMACross(fast, slow int) (*SMACross, error) {
	if fast <= 0 {
		fast = 10
	}
	if slow <= 0 {
		slow = 30
	}
	if fast >= slow {
		return nil, fmt.Errorf("sma_cross: fast period %d must be < slow period %d", fast, slow)
	}
	return &SMACross{Fast: fast, Slow: slow}, nil
}

func (s *SMACross) Name() string { return "sma_cross" }

// Generate appends the current price and compares SMA(Fast) with SMA(Slow)
func (s *SMACross) Generate(ctx context.Context, asset string, view state.View) (*contracts.Signal, error) {
	price, ok := view.Price(asset)
	if !ok {
		return nil, contracts.ErrNoPrice
	}

	closes, err := appendClose(view.Scratch(), asset, price, s.Slow*2)
	if err != nil {
		return nil, fmt.Errorf("sma history: %w", err)
	}
	if len(closes) < s.Slow {
		return nil, nil
	}

	fast, okFast := last(talib.Sma(closes, s.Fast))
	slow, okSlow := last(talib.Sma(closes, s.Slow))
	if !okFast || !okSlow || slow == 0 {
		return nil, nil
	}

	spread := (fast - slow) / slow
	dir := contracts.DirectionFlat
	switch {
	case fast > slow:
		dir = contracts.DirectionUp
	case fast < slow:
		dir = contracts.DirectionDown
	}

	return &contracts.Signal{
		Asset:     asset,
		Direction: dir,
		Strength:  spread,
		Metadata: map[string]interface{}{
			"sma_fast": fast,
			"sma_slow": slow,
		},
	}, nil
}

// Stochastic emits UP when %K is oversold and DOWN when overbought
// 고가/저가 없이 종가 히스토리만 사용 (high = low = close)
type Stochastic struct {
	FastK      int     // 기본 14
	SlowK      int     // 기본 3
	SlowD      int     // 기본 3
	Oversold   float64 // 기본 20
	Overbought float64 // 기본 80
}

// NewStochastic creates a stochastic generator with defaults for zero fields
func NewStochastic(fastK, slowK, slowD int, oversold, overbought float64) (*Stochastic, error) {
	st := &Stochastic{FastK: fastK, SlowK: slowK, SlowD: slowD, Oversold: oversold, Overbought: overbought}
	if st.FastK <= 0 {
		st.FastK = 14
	}
	if st.SlowK <= 0 {
		st.SlowK = 3
	}
	if st.SlowD <= 0 {
		st.SlowD = 3
	}
	if st.Oversold <= 0 {
		st.Oversold = 20
	}
	if st.Overbought <= 0 {
		st.Overbought = 80
	}
	if st.Oversold >= st.Overbought {
		return nil, fmt.Errorf("stochastic: oversold %.0f must be < overbought %.0f", st.Oversold, st.Overbought)
	}
	return st, nil
}

func (s *Stochastic) Name() string { return "stochastic" }

// lookback is the closes talib.Stoch needs before its first output
func (s *Stochastic) lookback() int {
	return s.FastK + s.SlowK + s.SlowD - 2
}

func (s *Stochastic) Generate(ctx context.Context, asset string, view state.View) (*contracts.Signal, error) {
	price, ok := view.Price(asset)
	if !ok {
		return nil, contracts.ErrNoPrice
	}

	closes, err := appendClose(view.Scratch(), asset, price, s.lookback()*2)
	if err != nil {
		return nil, fmt.Errorf("stochastic history: %w", err)
	}
	if len(closes) < s.lookback() {
		return nil, nil
	}
	// 최고 = 최저 구간은 %K 분모가 0
	if isFlat(closes[len(closes)-s.FastK:]) {
		return flatSignal(asset, "stoch_k", 50), nil
	}

	slowK, slowD := talib.Stoch(closes, closes, closes, s.FastK, s.SlowK, talib.SMA, s.SlowD, talib.SMA)
	k, okK := last(slowK)
	d, okD := last(slowD)
	if !okK || !okD {
		return nil, nil
	}

	dir := contracts.DirectionFlat
	switch {
	case k <= s.Oversold:
		dir = contracts.DirectionUp
	case k >= s.Overbought:
		dir = contracts.DirectionDown
	}

	return &contracts.Signal{
		Asset:     asset,
		Direction: dir,
		Strength:  (50 - k) / 50,
		Metadata:  map[string]interface{}{"stoch_k": k, "stoch_d": d},
	}, nil
}

func isFlat(closes []float64) bool {
	return len(closes) > 0 && floats.Max(closes) == floats.Min(closes)
}

// flatSignal is the neutral reading for a series without movement
func flatSignal(asset, key string, neutral float64) *contracts.Signal {
	return &contracts.Signal{
		Asset:     asset,
		Direction: contracts.DirectionFlat,
		Metadata:  map[string]interface{}{key: neutral, "flat": true},
	}
}
