package s2_signals

import (
	"context"
	"fmt"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
	"github.com/wonny/fwtrader/pkg/logger"
)

// Builder runs a SignalGenerator over the selected assets
// 자산별 오류는 격리: 해당 자산만 제외하고 나머지는 계속
// ⭐ SSOT: 시그널 생성 오케스트레이션은 여기서만
type Builder struct {
	generator contracts.SignalGenerator
	logger    *logger.Logger
}

// NewBuilder creates a new signal builder
func NewBuilder(generator contracts.SignalGenerator, log *logger.Logger) *Builder {
	if log == nil {
		log = logger.NewNop()
	}
	return &Builder{
		generator: generator,
		logger:    log.WithComponent("signals"),
	}
}

// Name returns the wrapped generator's name
func (b *Builder) Name() string {
	return b.generator.Name()
}

// Build generates signals for every asset, in input order
func (b *Builder) Build(ctx context.Context, assets []string, view state.View) ([]contracts.Signal, []contracts.AssetFailure) {
	signals := make([]contracts.Signal, 0, len(assets))
	failures := make([]contracts.AssetFailure, 0)

	for _, asset := range assets {
		sig, err := b.generate(ctx, asset, view)
		if err != nil {
			b.logger.WithFields(map[string]interface{}{
				"asset": asset,
				"error": err.Error(),
			}).Warn("Failed to calculate signal for asset")
			failures = append(failures, contracts.AssetFailure{Asset: asset, Error: err.Error()})
			continue
		}
		if sig == nil {
			continue
		}
		signals = append(signals, *sig)
	}

	b.logger.WithFields(map[string]interface{}{
		"total":   len(assets),
		"signals": len(signals),
		"failed":  len(failures),
	}).Debug("Signal generation completed")

	return signals, failures
}

// generate calls the generator for one asset, converting panics into errors
func (b *Builder) generate(ctx context.Context, asset string, view state.View) (sig *contracts.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig = nil
			err = fmt.Errorf("signal generator panic: %v", r)
		}
	}()

	sig, err = b.generator.Generate(ctx, asset, view)
	if err != nil || sig == nil {
		return sig, err
	}

	if sig.Asset == "" {
		sig.Asset = asset
	}
	if sig.Asset != asset {
		return nil, fmt.Errorf("%w: signal for %s returned asset %s", contracts.ErrInvalidOutput, asset, sig.Asset)
	}
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return sig, nil
}
