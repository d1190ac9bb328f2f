package portfolio

import "slices"

// Constraints defines portfolio construction constraints
// ⭐ SSOT: 포트폴리오 제약조건은 여기서만
type Constraints struct {
	MaxWeight float64  // 종목당 최대 비중 (0.0 ~ 1.0), 0 = 제한 없음
	MinWeight float64  // 종목당 최소 비중 (0.0 ~ 1.0), 미달 시 제외
	BlackList []string // 제외 종목 리스트
}

// IsBlackListed checks if an asset is in the blacklist
func (c *Constraints) IsBlackListed(asset string) bool {
	return slices.Contains(c.BlackList, asset)
}

// Apply caps, drops and filters weights, preserving order
// 정규화는 하지 않음 (cap으로 줄어든 비중은 현금으로 남김)
func (c *Constraints) Apply(weights []Weight) []Weight {
	result := make([]Weight, 0, len(weights))

	for _, w := range weights {
		if c.IsBlackListed(w.Asset) {
			continue
		}

		// Apply max weight constraint
		if c.MaxWeight > 0 && w.Weight > c.MaxWeight {
			w.Weight = c.MaxWeight
		}

		// Apply min weight constraint
		if w.Weight < c.MinWeight {
			continue // 제외
		}

		result = append(result, w)
	}

	return result
}

// DefaultConstraints returns default constraint configuration
func DefaultConstraints() Constraints {
	return Constraints{
		MaxWeight: 1.0,
		MinWeight: 0,
		BlackList: []string{},
	}
}
