package selection

import (
	"context"

	"github.com/wonny/fwtrader/internal/state"
	"github.com/wonny/fwtrader/pkg/logger"
)

// Screener applies hard-cut filters to the universe
// ⭐ SSOT: 자산 스크리닝 로직은 여기서만
type Screener struct {
	config ScreenerConfig
	logger *logger.Logger
}

// ScreenerConfig defines hard cut conditions
type ScreenerConfig struct {
	MinPrice      float64 // 최소 가격, 0 = 제한 없음
	MaxPrice      float64 // 최대 가격, 0 = 제한 없음
	RequirePrice  bool    // 가격 스냅샷 없는 자산 제외
	MaxAssets     int     // 최대 선택 개수, 0 = 제한 없음
	HoldingsFirst bool    // 보유 종목을 상한 적용 전에 우선 배치
	Exclude       []string
}

// NewScreener creates a new screener
func NewScreener(config ScreenerConfig, log *logger.Logger) *Screener {
	if log == nil {
		log = logger.NewNop()
	}
	return &Screener{
		config: config,
		logger: log.WithComponent("screener"),
	}
}

func (s *Screener) Name() string { return "filter" }

// Select filters the universe using the prices in view
func (s *Screener) Select(ctx context.Context, universe []string, view state.View) ([]string, error) {
	exclude := make(map[string]struct{}, len(s.config.Exclude))
	for _, a := range s.config.Exclude {
		exclude[a] = struct{}{}
	}

	passed := make([]string, 0, len(universe))
	filtered := make(map[string]int) // Filter name -> count

	for _, asset := range universe {
		if _, skip := exclude[asset]; skip {
			filtered["exclude"]++
			continue
		}
		if reason := s.checkConditions(asset, view); reason != "" {
			filtered[reason]++
			continue
		}
		passed = append(passed, asset)
	}

	if s.config.HoldingsFirst {
		passed = holdingsFirst(passed, view)
	}

	if s.config.MaxAssets > 0 && len(passed) > s.config.MaxAssets {
		filtered["max_assets"] = len(passed) - s.config.MaxAssets
		passed = passed[:s.config.MaxAssets]
	}

	s.logger.WithFields(map[string]interface{}{
		"total_input":  len(universe),
		"passed":       len(passed),
		"filtered_out": len(universe) - len(passed),
		"filters":      filtered,
	}).Debug("Screening completed")

	return passed, nil
}

// checkConditions returns the failing filter name, or "" when the asset passes
func (s *Screener) checkConditions(asset string, view state.View) string {
	price, ok := view.Price(asset)
	if !ok {
		if s.config.RequirePrice || s.config.MinPrice > 0 || s.config.MaxPrice > 0 {
			return "no_price"
		}
		return ""
	}

	if s.config.MinPrice > 0 && price < s.config.MinPrice {
		return "min_price"
	}
	if s.config.MaxPrice > 0 && price > s.config.MaxPrice {
		return "max_price"
	}
	return ""
}

// holdingsFirst moves currently held assets to the front, preserving order
func holdingsFirst(assets []string, view state.View) []string {
	held := make([]string, 0, len(assets))
	rest := make([]string, 0, len(assets))
	for _, a := range assets {
		if view.Quantity(a) > 0 {
			held = append(held, a)
		} else {
			rest = append(rest, a)
		}
	}
	return append(held, rest...)
}
