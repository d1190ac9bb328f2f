package state

import (
	"math"
	"sort"
	"time"
)

// dustQuantity 이하의 잔량은 포지션 없음으로 취급
const dustQuantity = 1e-9

// Position is the holding of a single asset
type Position struct {
	Asset     string  `json:"asset" msgpack:"asset"`
	Quantity  float64 `json:"quantity" msgpack:"quantity"`
	CostBasis float64 `json:"cost_basis" msgpack:"cost_basis"` // 평균 단가
}

// MarketValue returns quantity × price
func (p Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}

// UnrealizedReturn returns (price − cost basis) / cost basis
func (p Position) UnrealizedReturn(price float64) (float64, bool) {
	if p.CostBasis <= 0 || price <= 0 {
		return 0, false
	}
	return (price - p.CostBasis) / p.CostBasis, true
}

// Context is the cycle-spanning state of a strategy
// ⭐ SSOT: 보유 포지션/현금의 유일한 진실 원천. 쓰기는 orchestrator만
type Context struct {
	StrategyID  string               `json:"strategy_id" msgpack:"strategy_id"`
	Cash        float64              `json:"cash" msgpack:"cash"`
	Equity      float64              `json:"equity" msgpack:"equity"`
	RealizedPnL float64              `json:"realized_pnl" msgpack:"realized_pnl"`
	Positions   map[string]Position  `json:"positions" msgpack:"positions"`
	Prices      map[string]float64   `json:"prices" msgpack:"prices"` // 마지막 사이클 가격 스냅샷
	Universe    []string             `json:"universe" msgpack:"universe"`
	LastCycleAt time.Time            `json:"last_cycle_at" msgpack:"last_cycle_at"`
	CycleCount  int64                `json:"cycle_count" msgpack:"cycle_count"`
	Namespaces  map[string]Namespace `json:"namespaces" msgpack:"namespaces"`
}

// New creates an empty Context
func New(strategyID string, cash float64) *Context {
	return &Context{
		StrategyID: strategyID,
		Cash:       cash,
		Equity:     cash,
		Positions:  make(map[string]Position),
		Prices:     make(map[string]float64),
		Universe:   []string{},
		Namespaces: make(map[string]Namespace),
	}
}

// Clone returns a deep copy used as the working copy of a cycle
func (c *Context) Clone() *Context {
	out := &Context{
		StrategyID:  c.StrategyID,
		Cash:        c.Cash,
		Equity:      c.Equity,
		RealizedPnL: c.RealizedPnL,
		Positions:   make(map[string]Position, len(c.Positions)),
		Prices:      make(map[string]float64, len(c.Prices)),
		LastCycleAt: c.LastCycleAt,
		CycleCount:  c.CycleCount,
		Namespaces:  make(map[string]Namespace, len(c.Namespaces)),
	}
	for k, v := range c.Positions {
		out.Positions[k] = v
	}
	for k, v := range c.Prices {
		out.Prices[k] = v
	}
	if c.Universe != nil {
		out.Universe = append([]string{}, c.Universe...)
	}
	for k, ns := range c.Namespaces {
		out.Namespaces[k] = ns.clone()
	}
	return out
}

// normalize replaces nil maps after decoding
func (c *Context) normalize() {
	if c.Universe == nil {
		c.Universe = []string{}
	}
	c.LastCycleAt = c.LastCycleAt.UTC()
	if c.Positions == nil {
		c.Positions = make(map[string]Position)
	}
	if c.Prices == nil {
		c.Prices = make(map[string]float64)
	}
	if c.Namespaces == nil {
		c.Namespaces = make(map[string]Namespace)
	}
	for k, ns := range c.Namespaces {
		if ns == nil {
			c.Namespaces[k] = Namespace{}
		}
	}
}

// Quantity returns the held quantity of an asset
func (c *Context) Quantity(asset string) float64 {
	return c.Positions[asset].Quantity
}

// SortedPositions returns positions ordered by asset ID
func (c *Context) SortedPositions() []Position {
	out := make([]Position, 0, len(c.Positions))
	for _, p := range c.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Asset < out[j].Asset
	})
	return out
}

// Holdings returns asset → quantity
func (c *Context) Holdings() map[string]float64 {
	out := make(map[string]float64, len(c.Positions))
	for k, p := range c.Positions {
		out[k] = p.Quantity
	}
	return out
}

// Namespace returns the namespace of a stage, creating it on first use
func (c *Context) Namespace(stage string) Namespace {
	ns, ok := c.Namespaces[stage]
	if !ok {
		ns = Namespace{}
		c.Namespaces[stage] = ns
	}
	return ns
}

// ViewFor returns a read-only view whose scratch area is the stage namespace
func (c *Context) ViewFor(stage string) View {
	return &contextView{ctx: c, stage: stage}
}

// SetPrices merges a price snapshot
func (c *Context) SetPrices(prices map[string]float64) {
	for asset, price := range prices {
		if price > 0 && !math.IsInf(price, 0) {
			c.Prices[asset] = price
		}
	}
}

// SetUniverse stores the universe of the cycle
func (c *Context) SetUniverse(assets []string) {
	c.Universe = append([]string{}, assets...)
}

// MarkCycle stamps the completion of a committed cycle
func (c *Context) MarkCycle(now time.Time) {
	c.LastCycleAt = now.UTC()
	c.CycleCount++
}

// ApplyFill applies a confirmed fill to positions, cash and realized PnL
// buy: 평균 단가 갱신 / sell: 실현손익 반영
func (c *Context) ApplyFill(asset string, buy bool, quantity, price float64) {
	if quantity <= 0 {
		return
	}
	pos := c.Positions[asset]
	pos.Asset = asset

	if buy {
		newQty := pos.Quantity + quantity
		if newQty > dustQuantity {
			pos.CostBasis = (pos.Quantity*pos.CostBasis + quantity*price) / newQty
		}
		pos.Quantity = newQty
		c.Cash -= quantity * price
	} else {
		c.RealizedPnL += quantity * (price - pos.CostBasis)
		pos.Quantity -= quantity
		c.Cash += quantity * price
	}

	if math.Abs(pos.Quantity) <= dustQuantity {
		delete(c.Positions, asset)
		return
	}
	c.Positions[asset] = pos
}

// Reconcile aligns position quantities with the engine and returns the
// assets whose quantity differed
func (c *Context) Reconcile(engine map[string]float64) []string {
	changed := make([]string, 0)
	for asset := range c.Positions {
		if _, ok := engine[asset]; !ok {
			changed = append(changed, asset)
			delete(c.Positions, asset)
		}
	}
	for asset, qty := range engine {
		pos, ok := c.Positions[asset]
		if ok && math.Abs(pos.Quantity-qty) <= dustQuantity {
			continue
		}
		if math.Abs(qty) <= dustQuantity {
			if ok {
				changed = append(changed, asset)
				delete(c.Positions, asset)
			}
			continue
		}
		if !ok {
			// 외부 체결로 생긴 포지션은 현재가를 평균 단가로 사용
			pos = Position{Asset: asset, CostBasis: c.Prices[asset]}
		}
		pos.Quantity = qty
		c.Positions[asset] = pos
		changed = append(changed, asset)
	}
	sort.Strings(changed)
	return changed
}
