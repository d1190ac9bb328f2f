package risk

import (
	"context"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
)

// Limits 변동성 리스크 한도, 0 = 미사용
type Limits struct {
	MaxVolatility float64 `json:"max_volatility"` // 사이클 수익률 표준편차 상한
	MaxVaR95      float64 `json:"max_var_95"`     // 95% VaR 상한
}

// VolatilityLimit blocks increases for assets whose recent returns breach the limits
// 가격 히스토리는 네임스페이스에 사이클마다 누적
type VolatilityLimit struct {
	Limits   Limits
	Lookback int // 수익률 표본 수 (기본 20)
}

// NewVolatilityLimit creates a volatility limit
func NewVolatilityLimit(limits Limits, lookback int) *VolatilityLimit {
	if lookback < 2 {
		lookback = 20
	}
	return &VolatilityLimit{Limits: limits, Lookback: lookback}
}

func (v *VolatilityLimit) Name() string { return "volatility_limit" }

// Adjust caps target at the current quantity when volatility or VaR95 exceed limits
// 표본 부족 시 통과
func (v *VolatilityLimit) Adjust(ctx context.Context, target *contracts.TargetAllocation, view state.View) (*contracts.TargetAllocation, error) {
	out := target.Clone()
	ns := view.Scratch()

	for i, t := range out.Targets {
		price, ok := view.Price(t.Asset)
		if !ok {
			continue
		}

		key := "prices:" + t.Asset
		var prices []float64
		if _, err := ns.Get(key, &prices); err != nil {
			return nil, err
		}
		prices = append(prices, price)
		if len(prices) > v.Lookback+1 {
			prices = prices[len(prices)-v.Lookback-1:]
		}
		if err := ns.Put(key, prices); err != nil {
			return nil, err
		}

		returns := Returns(prices, ReturnSimple)
		if len(returns) < v.Lookback {
			continue
		}

		current := view.Quantity(t.Asset)
		if t.Quantity <= current {
			continue
		}

		vol := Volatility(returns)
		var95 := CalculateVaR(returns, 0.95).VaR
		breach := (v.Limits.MaxVolatility > 0 && vol > v.Limits.MaxVolatility) ||
			(v.Limits.MaxVaR95 > 0 && var95 > v.Limits.MaxVaR95)
		if !breach {
			continue
		}

		out.Targets[i].Quantity = current
		out.Targets[i].Reason = "volatility limit"
		out.Warn("volatility limit: %s vol=%.4f var95=%.4f, increase blocked", t.Asset, vol, var95)
	}

	return out, nil
}
