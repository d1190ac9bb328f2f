package contracts

import "time"

// Side represents buy or sell
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// IntentReason explains why the planner emitted an intent
type IntentReason string

const (
	ReasonOpen      IntentReason = "open"      // 신규 진입
	ReasonIncrease  IntentReason = "increase"  // 비중 확대
	ReasonReduce    IntentReason = "reduce"    // 비중 축소
	ReasonLiquidate IntentReason = "liquidate" // 전량 청산
)

// TradeIntent represents an order request passed from Planner to Engine
// ⭐ SSOT: Planner → Engine 주문 의도 전달 (불변, 1회 소비)
type TradeIntent struct {
	ID              string       `json:"id"`
	Sequence        int          `json:"sequence"`
	Asset           string       `json:"asset"`
	Side            Side         `json:"side"`
	Quantity        float64      `json:"quantity"`
	Reason          IntentReason `json:"reason"`
	CurrentQuantity float64      `json:"current_quantity"`
	TargetQuantity  float64      `json:"target_quantity"`
	ReferencePrice  float64      `json:"reference_price,omitempty"` // 계획 시점 스냅샷, 체결가 보장 아님
}

// IsSell checks if the intent reduces a position
func (i TradeIntent) IsSell() bool {
	return i.Side == SideSell
}

// IntentStatus represents the engine outcome of an intent
type IntentStatus string

const (
	IntentFilled   IntentStatus = "filled"
	IntentPartial  IntentStatus = "partial"
	IntentRejected IntentStatus = "rejected"
	IntentError    IntentStatus = "error"
)

// Known reports whether s is one of the four engine outcomes
func (s IntentStatus) Known() bool {
	switch s {
	case IntentFilled, IntentPartial, IntentRejected, IntentError:
		return true
	}
	return false
}

// IntentResult represents the engine response for one intent
type IntentResult struct {
	IntentID       string       `json:"intent_id"`
	Asset          string       `json:"asset"`
	Side           Side         `json:"side"`
	Status         IntentStatus `json:"status"`
	FilledQuantity float64      `json:"filled_quantity"`
	Price          float64      `json:"price"`
	OrderID        string       `json:"order_id,omitempty"` // 브로커 주문번호
	Message        string       `json:"message,omitempty"`
	SubmittedAt    time.Time    `json:"submitted_at"`
	CompletedAt    time.Time    `json:"completed_at"`
}

// IsConfirmed reports whether the result carries a fill that must be applied
func (r IntentResult) IsConfirmed() bool {
	return (r.Status == IntentFilled || r.Status == IntentPartial) && r.FilledQuantity > 0
}

// IsFailure reports whether the intent did not fill
func (r IntentResult) IsFailure() bool {
	return r.Status == IntentRejected || r.Status == IntentError
}
