package contracts

import "time"

// CycleStatus represents the outcome of a cycle
type CycleStatus string

const (
	CycleSuccess CycleStatus = "success" // 모든 주문 체결 또는 주문 불필요
	CyclePartial CycleStatus = "partial" // 일부 주문 실패
	CycleNoop    CycleStatus = "noop"    // 빈 universe / 시그널 없음
	CycleFailed  CycleStatus = "failed"  // 단계 실패, 주문 제출 전 중단
)

// CycleRecord is the immutable log entry of one cycle
// ⭐ SSOT: 사이클당 정확히 1개 생성, 생성 후 변경 금지
type CycleRecord struct {
	ID         string      `json:"id"`
	StrategyID string      `json:"strategy_id"`
	ConfigHash string      `json:"config_hash,omitempty"`
	Sequence   int64       `json:"sequence"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Status     CycleStatus `json:"status"`
	NoopReason string      `json:"noop_reason,omitempty"`

	FailedStage Stage  `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`

	Universe *UniverseSnapshot `json:"universe,omitempty"`
	Selected []string          `json:"selected,omitempty"`

	Signals        []Signal       `json:"signals,omitempty"`
	SignalFailures []AssetFailure `json:"signal_failures,omitempty"`

	Target   *TargetAllocation `json:"target,omitempty"`
	Adjusted *TargetAllocation `json:"adjusted,omitempty"`

	Intents []TradeIntent  `json:"intents,omitempty"`
	Skipped []SkippedAsset `json:"skipped,omitempty"`
	Results []IntentResult `json:"results,omitempty"`

	// 사이클 종료 시점 Context 요약
	Cash      float64            `json:"cash"`
	Equity    float64            `json:"equity"`
	Positions map[string]float64 `json:"positions,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// SkippedAsset records an asset the planner deliberately left alone
type SkippedAsset struct {
	Asset  string  `json:"asset"`
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// Duration returns the cycle wall time
func (r *CycleRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ConfirmedCount returns the number of intents with applied fills
func (r *CycleRecord) ConfirmedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.IsConfirmed() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of rejected or erroring intents
func (r *CycleRecord) FailedCount() int {
	n := 0
	for _, res := range r.Results {
		if res.IsFailure() {
			n++
		}
	}
	return n
}

// IsTerminal reports whether the record carries a final status
func (r *CycleRecord) IsTerminal() bool {
	switch r.Status {
	case CycleSuccess, CyclePartial, CycleNoop, CycleFailed:
		return true
	}
	return false
}
