package risk

import (
	"context"
	"fmt"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
	"github.com/wonny/fwtrader/pkg/logger"
)

// GateMode 게이트 동작 모드
type GateMode string

const (
	GateModeShadow  GateMode = "shadow"  // 로깅만, 실제 조정 안함
	GateModeEnforce GateMode = "enforce" // 실제 조정
	GateModeOff     GateMode = "off"     // 비활성화
)

// ParseGateMode validates a gate mode ("" → enforce)
func ParseGateMode(s string) (GateMode, error) {
	switch GateMode(s) {
	case "":
		return GateModeEnforce, nil
	case GateModeShadow, GateModeEnforce, GateModeOff:
		return GateMode(s), nil
	default:
		return "", fmt.Errorf("unknown gate mode %q (enforce|shadow|off)", s)
	}
}

// Gate wraps a risk manager with a rollout mode
// ⭐ SSOT: 리스크 규칙 롤아웃 (shadow → enforce)
type Gate struct {
	inner  contracts.RiskManager
	mode   GateMode
	logger *logger.Logger
}

// NewGate creates a gate around inner
func NewGate(inner contracts.RiskManager, mode GateMode, log *logger.Logger) *Gate {
	if log == nil {
		log = logger.NewNop()
	}
	return &Gate{inner: inner, mode: mode, logger: log.WithComponent("risk_gate")}
}

// Name reports the wrapped manager's name (네임스페이스 공유)
func (g *Gate) Name() string { return g.inner.Name() }

// Mode returns the gate mode
func (g *Gate) Mode() GateMode { return g.mode }

func (g *Gate) Adjust(ctx context.Context, target *contracts.TargetAllocation, view state.View) (*contracts.TargetAllocation, error) {
	// 게이트가 꺼져있으면 통과
	if g.mode == GateModeOff {
		return target.Clone(), nil
	}

	adjusted, err := g.inner.Adjust(ctx, target, view)
	if err != nil {
		return nil, err
	}
	if g.mode == GateModeEnforce {
		return adjusted, nil
	}

	// Shadow: 변경 사항만 기록하고 원본 유지
	out := target.Clone()
	for _, change := range Changes(target, adjusted) {
		out.Warn("shadow %s: %s", g.inner.Name(), change)
	}
	if len(out.Warnings) > len(target.Warnings) {
		g.logger.WithFields(map[string]interface{}{
			"manager": g.inner.Name(),
			"changes": len(out.Warnings) - len(target.Warnings),
		}).Info("Risk gate would adjust allocation")
	}
	return out, nil
}

// Changes describes per-asset quantity differences between two allocations
func Changes(before, after *contracts.TargetAllocation) []string {
	changes := make([]string, 0)
	if after == nil {
		return changes
	}
	for _, t := range after.Targets {
		prev, ok := before.Get(t.Asset)
		switch {
		case !ok:
			changes = append(changes, fmt.Sprintf("%s added with quantity %.6g", t.Asset, t.Quantity))
		case prev.Quantity != t.Quantity:
			changes = append(changes, fmt.Sprintf("%s %.6g -> %.6g", t.Asset, prev.Quantity, t.Quantity))
		}
	}
	for _, t := range before.Targets {
		if _, ok := after.Get(t.Asset); !ok {
			changes = append(changes, fmt.Sprintf("%s removed", t.Asset))
		}
	}
	return changes
}
