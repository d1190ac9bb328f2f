package contracts

import "time"

// UniverseSnapshot represents the tradable assets for one cycle
// ⭐ SSOT: Universe → Selector 자산 목록 전달
type UniverseSnapshot struct {
	Assets      []string  `json:"assets"`
	Added       []string  `json:"added,omitempty"`
	Removed     []string  `json:"removed,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Cached      bool      `json:"cached"` // cadence 미도래로 이전 목록 재사용
}

// Contains checks if an asset is in the universe
func (u *UniverseSnapshot) Contains(asset string) bool {
	for _, a := range u.Assets {
		if a == asset {
			return true
		}
	}
	return false
}

// Count returns the number of assets
func (u *UniverseSnapshot) Count() int {
	return len(u.Assets)
}

// IsEmpty reports whether there is nothing to trade
func (u *UniverseSnapshot) IsEmpty() bool {
	return u == nil || len(u.Assets) == 0
}
