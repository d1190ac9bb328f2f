package s2_signals

import (
	"github.com/wonny/fwtrader/internal/state"
)

// closesKey is the namespace key holding an asset's rolling close history
func closesKey(asset string) string {
	return "closes:" + asset
}

// appendClose adds price to the asset's rolling history and returns it (oldest first)
// 최대 maxLen 개만 유지
func appendClose(ns state.Namespace, asset string, price float64, maxLen int) ([]float64, error) {
	var closes []float64
	if _, err := ns.Get(closesKey(asset), &closes); err != nil {
		return nil, err
	}

	closes = append(closes, price)
	if maxLen > 0 && len(closes) > maxLen {
		closes = closes[len(closes)-maxLen:]
	}

	if err := ns.Put(closesKey(asset), closes); err != nil {
		return nil, err
	}
	return closes, nil
}

// last returns the final element of a talib output series
func last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if v != v { // NaN
		return 0, false
	}
	return v, true
}
