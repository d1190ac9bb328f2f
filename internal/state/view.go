package state

import "time"

// View is the read-only Context surface handed to pipeline stages
// ⭐ 계약: 단계는 보유/현금을 직접 수정할 수 없음. 상태 저장은 Scratch()만
type View interface {
	StrategyID() string
	Cash() float64
	Equity() float64
	Position(asset string) (Position, bool)
	Quantity(asset string) float64
	Positions() []Position
	Price(asset string) (float64, bool)
	Universe() []string
	LastCycleAt() time.Time
	CycleCount() int64

	// Scratch returns the calling stage's private namespace
	Scratch() Namespace
}

type contextView struct {
	ctx   *Context
	stage string
}

func (v *contextView) StrategyID() string { return v.ctx.StrategyID }
func (v *contextView) Cash() float64      { return v.ctx.Cash }
func (v *contextView) Equity() float64    { return v.ctx.Equity }

func (v *contextView) Position(asset string) (Position, bool) {
	p, ok := v.ctx.Positions[asset]
	return p, ok
}

func (v *contextView) Quantity(asset string) float64 {
	return v.ctx.Quantity(asset)
}

func (v *contextView) Positions() []Position {
	return v.ctx.SortedPositions()
}

func (v *contextView) Price(asset string) (float64, bool) {
	p, ok := v.ctx.Prices[asset]
	return p, ok && p > 0
}

func (v *contextView) Universe() []string {
	return append([]string{}, v.ctx.Universe...)
}

func (v *contextView) LastCycleAt() time.Time { return v.ctx.LastCycleAt }
func (v *contextView) CycleCount() int64      { return v.ctx.CycleCount }

func (v *contextView) Scratch() Namespace {
	return v.ctx.Namespace(v.stage)
}
