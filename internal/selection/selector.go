package selection

import (
	"context"

	"github.com/wonny/fwtrader/internal/state"
)

// All passes the universe through unchanged
type All struct{}

func (All) Name() string { return "all" }

// Select returns a copy of the universe
func (All) Select(ctx context.Context, universe []string, view state.View) ([]string, error) {
	out := make([]string, len(universe))
	copy(out, universe)
	return out, nil
}

// Manual selects a fixed symbol list, restricted to the current universe
// 유니버스에 없는 종목은 조용히 제외 (상장폐지/거래정지 대비)
type Manual struct {
	Symbols []string
}

// NewManual creates a manual selector
func NewManual(symbols ...string) *Manual {
	return &Manual{Symbols: symbols}
}

func (m *Manual) Name() string { return "manual" }

// Select returns Symbols ∩ universe in Symbols order
func (m *Manual) Select(ctx context.Context, universe []string, view state.View) ([]string, error) {
	inUniverse := make(map[string]struct{}, len(universe))
	for _, a := range universe {
		inUniverse[a] = struct{}{}
	}

	seen := make(map[string]struct{}, len(m.Symbols))
	selected := make([]string, 0, len(m.Symbols))
	for _, s := range m.Symbols {
		if _, ok := inUniverse[s]; !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		selected = append(selected, s)
	}
	return selected, nil
}
