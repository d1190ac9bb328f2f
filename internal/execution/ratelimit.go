package execution

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/wonny/fwtrader/internal/contracts"
)

// RateLimitedEngine throttles order submission
// 조회(Positions/Equity/Price)는 제한하지 않음
type RateLimitedEngine struct {
	Engine
	limiter *rate.Limiter
}

// NewRateLimitedEngine limits Submit to perSecond calls (burst = perSecond)
func NewRateLimitedEngine(inner Engine, perSecond int) *RateLimitedEngine {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &RateLimitedEngine{
		Engine:  inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}
}

func (e *RateLimitedEngine) Submit(ctx context.Context, intent contracts.TradeIntent) (contracts.IntentResult, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return contracts.IntentResult{}, err
	}
	return e.Engine.Submit(ctx, intent)
}

func (e *RateLimitedEngine) Unwrap() Engine { return e.Engine }
