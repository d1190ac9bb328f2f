package contracts

import (
	"fmt"
	"math"
)

// Target is a single desired holding
// ⭐ 계약: Quantity가 정규 표현, Weight는 정보용 (planner는 Quantity만 사용)
type Target struct {
	Asset    string  `json:"asset"`
	Quantity float64 `json:"quantity"`
	Weight   float64 `json:"weight,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// TargetAllocation represents desired holdings passed from Portfolio to Risk and Planner
// ⭐ SSOT: Portfolio → Risk → Planner 목표 수량 전달
// Targets 순서 = 삽입 순서. planner는 이 순서를 그대로 유지
type TargetAllocation struct {
	Targets  []Target `json:"targets"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewTargetAllocation creates an empty allocation
func NewTargetAllocation() *TargetAllocation {
	return &TargetAllocation{Targets: make([]Target, 0)}
}

// Len returns the number of targets
func (a *TargetAllocation) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Targets)
}

// Get returns the target for an asset
func (a *TargetAllocation) Get(asset string) (Target, bool) {
	if a == nil {
		return Target{}, false
	}
	for _, t := range a.Targets {
		if t.Asset == asset {
			return t, true
		}
	}
	return Target{}, false
}

// Quantity returns the target quantity for an asset (0 when absent)
func (a *TargetAllocation) Quantity(asset string) float64 {
	t, _ := a.Get(asset)
	return t.Quantity
}

// Set replaces the target for an asset, appending it when absent
func (a *TargetAllocation) Set(t Target) {
	for i := range a.Targets {
		if a.Targets[i].Asset == t.Asset {
			a.Targets[i] = t
			return
		}
	}
	a.Targets = append(a.Targets, t)
}

// Warn appends a warning carried into the Cycle Record
func (a *TargetAllocation) Warn(format string, args ...interface{}) {
	a.Warnings = append(a.Warnings, fmt.Sprintf(format, args...))
}

// Assets returns target asset IDs in insertion order
func (a *TargetAllocation) Assets() []string {
	out := make([]string, 0, a.Len())
	if a == nil {
		return out
	}
	for _, t := range a.Targets {
		out = append(out, t.Asset)
	}
	return out
}

// TotalWeight returns the sum of informational weights
func (a *TargetAllocation) TotalWeight() float64 {
	total := 0.0
	if a == nil {
		return total
	}
	for _, t := range a.Targets {
		total += t.Weight
	}
	return total
}

// Clone returns a deep copy
func (a *TargetAllocation) Clone() *TargetAllocation {
	if a == nil {
		return nil
	}
	out := &TargetAllocation{
		Targets: make([]Target, len(a.Targets)),
	}
	copy(out.Targets, a.Targets)
	if len(a.Warnings) > 0 {
		out.Warnings = append([]string(nil), a.Warnings...)
	}
	return out
}

// Validate checks the allocation contract: unique assets, finite non-negative
// quantities, finite weights
func (a *TargetAllocation) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil allocation", ErrInvalidOutput)
	}
	seen := make(map[string]bool, len(a.Targets))
	for _, t := range a.Targets {
		if t.Asset == "" {
			return fmt.Errorf("%w: target with empty asset", ErrInvalidOutput)
		}
		if seen[t.Asset] {
			return fmt.Errorf("%w: duplicate target %s", ErrInvalidOutput, t.Asset)
		}
		seen[t.Asset] = true

		if math.IsNaN(t.Quantity) || math.IsInf(t.Quantity, 0) {
			return fmt.Errorf("%w: target %s has non-finite quantity", ErrInvalidOutput, t.Asset)
		}
		if t.Quantity < 0 {
			return fmt.Errorf("%w: target %s has negative quantity %v", ErrInvalidOutput, t.Asset, t.Quantity)
		}
		if math.IsNaN(t.Weight) || math.IsInf(t.Weight, 0) {
			return fmt.Errorf("%w: target %s has non-finite weight", ErrInvalidOutput, t.Asset)
		}
	}
	return nil
}
