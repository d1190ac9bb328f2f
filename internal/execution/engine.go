package execution

import (
	"context"
	"errors"

	"github.com/wonny/fwtrader/internal/contracts"
)

// ErrUnsupported is returned by wrappers when the wrapped engine lacks an optional capability
var ErrUnsupported = errors.New("engine capability not supported")

// Engine is the broker boundary
// ⭐ SSOT: 브로커 연동 인터페이스는 여기서만 정의
// Submit의 error 반환 = 해당 주문만 실패 (사이클 전체 실패 아님)
type Engine interface {
	Name() string

	// Submit sends one intent and returns its confirmed outcome
	Submit(ctx context.Context, intent contracts.TradeIntent) (contracts.IntentResult, error)

	// Positions returns asset → quantity
	Positions(ctx context.Context) (map[string]float64, error)

	// Equity returns total account value (cash + positions)
	Equity(ctx context.Context) (float64, error)

	// Price returns the latest price for an asset
	Price(ctx context.Context, asset string) (float64, error)
}

// CashReporter is implemented by engines that report settled cash
type CashReporter interface {
	Cash(ctx context.Context) (float64, error)
}

// OpenOrderLister is implemented by engines that expose pending orders
type OpenOrderLister interface {
	// OpenOrders returns the assets with a pending order
	OpenOrders(ctx context.Context) ([]string, error)
}

// Unwrapper is implemented by engine decorators
type Unwrapper interface {
	Unwrap() Engine
}

// As finds the first engine in the decorator chain implementing T
func As[T any](e Engine) (T, bool) {
	for e != nil {
		if v, ok := e.(T); ok {
			return v, true
		}
		u, ok := e.(Unwrapper)
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	var zero T
	return zero, false
}
