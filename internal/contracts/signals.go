package contracts

import (
	"fmt"
	"math"
)

// Direction is the directional component of a signal
type Direction int

const (
	DirectionDown Direction = -1
	DirectionFlat Direction = 0
	DirectionUp   Direction = 1
)

// String returns the direction name
func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "UP"
	case DirectionDown:
		return "DOWN"
	case DirectionFlat:
		return "FLAT"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection converts a name or number into a Direction
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "UP", "up", "1", "+1":
		return DirectionUp, nil
	case "DOWN", "down", "-1":
		return DirectionDown, nil
	case "FLAT", "flat", "0", "":
		return DirectionFlat, nil
	default:
		return DirectionFlat, fmt.Errorf("unknown direction %q", s)
	}
}

// Signal represents a per-asset signal passed from Signals to Portfolio
// ⭐ SSOT: Signals → Portfolio 시그널 전달
type Signal struct {
	Asset     string                 `json:"asset"`
	Direction Direction              `json:"direction"`
	Strength  float64                `json:"strength"` // -1.0 ~ 1.0 권장, 해석은 builder 몫
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// IsUp reports whether the signal points up
func (s Signal) IsUp() bool {
	return s.Direction == DirectionUp
}

// Validate checks basic signal invariants
func (s Signal) Validate() error {
	if s.Asset == "" {
		return fmt.Errorf("%w: signal with empty asset", ErrInvalidOutput)
	}
	if math.IsNaN(s.Strength) || math.IsInf(s.Strength, 0) {
		return fmt.Errorf("%w: signal %s has non-finite strength", ErrInvalidOutput, s.Asset)
	}
	if s.Direction < DirectionDown || s.Direction > DirectionUp {
		return fmt.Errorf("%w: signal %s has direction %d", ErrInvalidOutput, s.Asset, s.Direction)
	}
	return nil
}

// AssetFailure records a per-asset signal computation error
type AssetFailure struct {
	Asset string `json:"asset"`
	Error string `json:"error"`
}

// FilterUp returns the signals pointing up, preserving order
func FilterUp(signals []Signal) []Signal {
	out := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if s.IsUp() {
			out = append(out, s)
		}
	}
	return out
}
