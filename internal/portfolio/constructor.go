package portfolio

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
	"github.com/wonny/fwtrader/pkg/logger"
)

// Config defines portfolio construction parameters
type Config struct {
	MaxPositions int     // 최대 종목 수, 0 = 제한 없음
	CashReserve  float64 // 현금 보유 비중 (0.0 ~ 1.0)
}

// EqualWeight gives every UP signal the same weight
// ⭐ SSOT: 동일 비중 포트폴리오 구성
type EqualWeight struct {
	config      Config
	constraints Constraints
	sizer       *Sizer
	logger      *logger.Logger
}

// NewEqualWeight creates an equal-weight builder
func NewEqualWeight(config Config, constraints Constraints, sizer *Sizer, log *logger.Logger) *EqualWeight {
	if sizer == nil {
		sizer = &Sizer{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &EqualWeight{
		config:      config,
		constraints: constraints,
		sizer:       sizer,
		logger:      log.WithComponent("portfolio"),
	}
}

func (b *EqualWeight) Name() string { return "equal_weight" }

// Build allocates (1 - CashReserve) / n to each of the n UP signals
func (b *EqualWeight) Build(ctx context.Context, signals []contracts.Signal, view state.View) (*contracts.TargetAllocation, error) {
	up := selectTopN(contracts.FilterUp(signals), b.config.MaxPositions)
	if len(up) == 0 {
		return contracts.NewTargetAllocation(), nil
	}

	available := 1.0 - b.config.CashReserve
	each := available / float64(len(up))

	weights := make([]Weight, 0, len(up))
	for _, s := range up {
		weights = append(weights, Weight{Asset: s.Asset, Weight: each, Reason: "equal weight"})
	}

	return b.finish(ctx, weights, view), nil
}

func (b *EqualWeight) finish(ctx context.Context, weights []Weight, view state.View) *contracts.TargetAllocation {
	weights = b.constraints.Apply(weights)
	alloc := b.sizer.Size(ctx, weights, view)

	b.logger.WithFields(map[string]interface{}{
		"positions":    alloc.Len(),
		"total_weight": alloc.TotalWeight(),
		"cash_reserve": b.config.CashReserve,
	}).Debug("Portfolio constructed")

	return alloc
}

// ScoreWeighted weights UP signals in proportion to their strength
type ScoreWeighted struct {
	EqualWeight
}

// NewScoreWeighted creates a strength-proportional builder
func NewScoreWeighted(config Config, constraints Constraints, sizer *Sizer, log *logger.Logger) *ScoreWeighted {
	return &ScoreWeighted{EqualWeight: *NewEqualWeight(config, constraints, sizer, log)}
}

func (b *ScoreWeighted) Name() string { return "score_weighted" }

// Build allocates (1 - CashReserve) proportionally to positive strengths
// 양의 strength가 하나도 없으면 동일 비중으로 대체
func (b *ScoreWeighted) Build(ctx context.Context, signals []contracts.Signal, view state.View) (*contracts.TargetAllocation, error) {
	up := selectTopN(contracts.FilterUp(signals), b.config.MaxPositions)
	if len(up) == 0 {
		return contracts.NewTargetAllocation(), nil
	}

	scores := make([]float64, len(up))
	for i, s := range up {
		if s.Strength > 0 {
			scores[i] = s.Strength
		}
	}

	total := floats.Sum(scores)
	if total == 0 {
		return b.EqualWeight.Build(ctx, up, view)
	}

	available := 1.0 - b.config.CashReserve
	floats.Scale(available/total, scores)

	weights := make([]Weight, 0, len(up))
	for i, s := range up {
		if scores[i] <= 0 {
			continue
		}
		weights = append(weights, Weight{Asset: s.Asset, Weight: scores[i], Reason: "score weighted"})
	}

	return b.finish(ctx, weights, view), nil
}

// selectTopN keeps the first n signals (n <= 0 = 전부)
func selectTopN(signals []contracts.Signal, n int) []contracts.Signal {
	if n <= 0 || len(signals) <= n {
		return signals
	}
	return signals[:n]
}
