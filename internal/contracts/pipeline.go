package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, Cycle Record, metrics label에서 이 상수를 사용해야 함
//
// 사이클 흐름:
//   Universe → Selector → Signals → Portfolio → Risk → Planner → Engine → Record

// Stage represents a pipeline stage
type Stage string

const (
	// StageUniverse 거래 가능 자산 목록
	// 위치: internal/s1_universe/
	StageUniverse Stage = "universe"

	// StageEngine 계좌/포지션/가격 스냅샷 조회
	// 위치: internal/execution/engine.go
	StageEngine Stage = "engine"

	// StageSelector 이번 사이클 작업 자산 선정
	// 위치: internal/selection/
	StageSelector Stage = "selector"

	// StageSignals 자산별 방향/강도 시그널
	// 위치: internal/s2_signals/
	StageSignals Stage = "signals"

	// StagePortfolio 목표 수량 결정
	// 위치: internal/portfolio/
	StagePortfolio Stage = "portfolio"

	// StageRisk 목표 수량 조정/차단
	// 위치: internal/risk/
	StageRisk Stage = "risk"

	// StagePlanner 목표 vs 보유 diff → 주문 의도
	// 위치: internal/execution/planner.go
	StagePlanner Stage = "planner"

	// StageExecution 주문 제출
	// 위치: internal/brain/
	StageExecution Stage = "execution"

	// StageRecord Cycle Record 기록
	// 위치: internal/record/
	StageRecord Stage = "record"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageUniverse,
		StageEngine,
		StageSelector,
		StageSignals,
		StagePortfolio,
		StageRisk,
		StagePlanner,
		StageExecution,
		StageRecord,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// Phase is the orchestrator state for the cycle in flight
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseSelecting    Phase = "selecting"
	PhaseSignaling    Phase = "signaling"
	PhaseBuilding     Phase = "building"
	PhaseRiskChecking Phase = "risk_checking"
	PhasePlanning     Phase = "planning"
	PhaseExecuting    Phase = "executing"
	PhaseRecording    Phase = "recording"
	PhaseDone         Phase = "done"
	PhaseFailed       Phase = "failed"
)

// phaseOrder lists the linear transitions. Failed is reachable from any
// phase before Executing.
var phaseOrder = []Phase{
	PhaseIdle,
	PhaseSelecting,
	PhaseSignaling,
	PhaseBuilding,
	PhaseRiskChecking,
	PhasePlanning,
	PhaseExecuting,
	PhaseRecording,
	PhaseDone,
}

// CanTransition reports whether the orchestrator may move from one phase to another
func CanTransition(from, to Phase) bool {
	if to == PhaseFailed {
		return phaseIndex(from) >= 0 && phaseIndex(from) < phaseIndex(PhaseExecuting)
	}
	if from == PhaseFailed {
		return to == PhaseRecording
	}
	if to == PhaseRecording {
		// no-op 사이클은 중간 단계를 건너뛰고 바로 기록
		return phaseIndex(from) >= 0 && phaseIndex(from) < phaseIndex(PhaseRecording)
	}
	if to == PhaseIdle {
		return from == PhaseDone
	}
	return phaseIndex(to) == phaseIndex(from)+1
}

func phaseIndex(p Phase) int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}
