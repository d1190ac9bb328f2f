package contracts

import (
	"context"

	"github.com/wonny/fwtrader/internal/state"
)

// 모든 단계는 Context를 읽기 전용 View로만 받음
// 다음 사이클로 넘길 데이터는 view.Scratch() 네임스페이스에만 기록

// UniverseSource supplies tradable asset IDs (Universe)
// ⭐ SSOT: Universe 소스 인터페이스
type UniverseSource interface {
	Name() string
	Fetch(ctx context.Context) ([]string, error)
}

// AssetSelector narrows the universe into this cycle's working set
// ⭐ SSOT: Selector 인터페이스
type AssetSelector interface {
	Name() string
	Select(ctx context.Context, universe []string, view state.View) ([]string, error)
}

// SignalGenerator computes one asset's signal
// nil signal + nil error = 이번 사이클 시그널 없음 (오류 아님)
// ⭐ SSOT: Signals 인터페이스
type SignalGenerator interface {
	Name() string
	Generate(ctx context.Context, asset string, view state.View) (*Signal, error)
}

// PortfolioBuilder converts signals into target quantities
// ⭐ SSOT: Portfolio 인터페이스
type PortfolioBuilder interface {
	Name() string
	Build(ctx context.Context, signals []Signal, view state.View) (*TargetAllocation, error)
}

// RiskManager adjusts or vetoes targets before planning
// ⭐ SSOT: Risk 인터페이스
type RiskManager interface {
	Name() string
	Adjust(ctx context.Context, target *TargetAllocation, view state.View) (*TargetAllocation, error)
}

// Recorder receives one Cycle Record per cycle
// ⭐ SSOT: Record 인터페이스
type Recorder interface {
	Record(ctx context.Context, rec *CycleRecord) error
}
