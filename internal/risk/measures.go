package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ReturnType 수익률 계산 방식
type ReturnType string

const (
	ReturnSimple ReturnType = "simple" // (P1 - P0) / P0
	ReturnLog    ReturnType = "log"    // ln(P1 / P0)
)

// VaRResult historical VaR, 손실을 양수로 표현
// VaR=0.05 → 신뢰수준에서 최대 5% 손실, CVaR = tail 평균 손실
type VaRResult struct {
	Confidence float64 `json:"confidence"`
	VaR        float64 `json:"var"`
	CVaR       float64 `json:"cvar"`
}

// CalculateVaR computes historical-simulation VaR and CVaR over cycle returns
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	res := VaRResult{Confidence: confidence}
	if len(returns) == 0 {
		return res
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// 하위 (1-confidence) 분위수
	q := stat.Quantile(1-confidence, stat.Empirical, sorted, nil)

	tail := sorted[:sort.SearchFloat64s(sorted, math.Nextafter(q, math.Inf(1)))]
	res.VaR = lossOf(q)
	res.CVaR = lossOf(stat.Mean(tail, nil))
	return res
}

// lossOf returns a return as a positive loss (이익이면 0)
func lossOf(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}

// Returns converts a price series (oldest first) into period returns
// 0 이하 가격은 건너뜀
func Returns(prices []float64, rt ReturnType) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		p0, p1 := prices[i-1], prices[i]
		if p0 <= 0 || p1 <= 0 {
			continue
		}
		if rt == ReturnLog {
			out = append(out, math.Log(p1/p0))
		} else {
			out = append(out, (p1-p0)/p0)
		}
	}
	return out
}

// Volatility 표본 표준편차 (gonum stat)
func Volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil)
}
