package execution

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/pkg/config"
	"github.com/wonny/fwtrader/pkg/httputil"
	"github.com/wonny/fwtrader/pkg/logger"
	"github.com/wonny/fwtrader/pkg/redis"
)

// AlpacaEngine submits orders through the Alpaca REST API
// ⭐ SSOT: Alpaca 연동은 여기서만
// 수량/가격은 Alpaca 규약상 문자열 decimal
type AlpacaEngine struct {
	trading     *httputil.Client
	data        *httputil.Client
	tradingURL  string
	dataURL     string
	cache       *redis.Cache
	fillTimeout time.Duration
	pollEvery   time.Duration
	log         *logger.Logger
}

const (
	// 사이클 engine_timeout(기본 10s)보다 짧게
	defaultFillTimeout = 8 * time.Second
	cancelTimeout      = 5 * time.Second
)

// NewAlpacaEngine creates an Alpaca engine
// limiter/cache는 nil 허용 (Redis 비활성)
func NewAlpacaEngine(cfg *config.Config, log *logger.Logger, limiter *redis.RateLimiter, cache *redis.Cache) *AlpacaEngine {
	a := cfg.Engine.Alpaca

	auth := []httputil.Option{
		httputil.WithTimeout(cfg.Engine.Timeout),
		httputil.WithHeader("APCA-API-KEY-ID", a.APIKey),
		httputil.WithHeader("APCA-API-SECRET-KEY", a.SecretKey),
	}
	trading := httputil.New(log, append(auth, httputil.WithRateLimit(limiter, redis.AlpacaRateLimit))...)
	data := httputil.New(log, append(auth, httputil.WithRateLimit(limiter, redis.AlpacaDataRateLimit))...)

	fillTimeout := a.FillTimeout
	if fillTimeout <= 0 {
		fillTimeout = defaultFillTimeout
	}

	return &AlpacaEngine{
		trading:     trading,
		data:        data,
		tradingURL:  strings.TrimRight(a.TradingURL, "/"),
		dataURL:     strings.TrimRight(a.DataURL, "/"),
		cache:       cache,
		fillTimeout: fillTimeout,
		pollEvery:   500 * time.Millisecond,
		log:         log.WithComponent("alpaca"),
	}
}

func (e *AlpacaEngine) Name() string { return "alpaca" }

type alpacaAccount struct {
	Cash           string `json:"cash"`
	Equity         string `json:"equity"`
	PortfolioValue string `json:"portfolio_value"`
	Status         string `json:"status"`
}

type alpacaPosition struct {
	Symbol string `json:"symbol"`
	Qty    string `json:"qty"`
	Side   string `json:"side"`
}

type alpacaOrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id"`
}

type alpacaOrder struct {
	ID             string  `json:"id"`
	ClientOrderID  string  `json:"client_order_id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Qty            string  `json:"qty"`
	FilledQty      string  `json:"filled_qty"`
	FilledAvgPrice *string `json:"filled_avg_price"`
	Status         string  `json:"status"`
}

type alpacaTrade struct {
	Symbol string `json:"symbol"`
	Trade  struct {
		Price float64 `json:"p"`
	} `json:"trade"`
}

type alpacaAsset struct {
	Symbol       string `json:"symbol"`
	Tradable     bool   `json:"tradable"`
	Fractionable bool   `json:"fractionable"`
}

// Equity returns account equity
func (e *AlpacaEngine) Equity(ctx context.Context) (float64, error) {
	acct, err := e.account(ctx)
	if err != nil {
		return 0, err
	}
	return parseDecimal(acct.Equity, "equity")
}

// Cash returns account cash
func (e *AlpacaEngine) Cash(ctx context.Context) (float64, error) {
	acct, err := e.account(ctx)
	if err != nil {
		return 0, err
	}
	return parseDecimal(acct.Cash, "cash")
}

func (e *AlpacaEngine) account(ctx context.Context) (*alpacaAccount, error) {
	var acct alpacaAccount
	if err := e.trading.GetJSON(ctx, e.tradingURL+"/v2/account", &acct); err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &acct, nil
}

// Positions returns symbol → signed quantity
func (e *AlpacaEngine) Positions(ctx context.Context) (map[string]float64, error) {
	var positions []alpacaPosition
	if err := e.trading.GetJSON(ctx, e.tradingURL+"/v2/positions", &positions); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	out := make(map[string]float64, len(positions))
	for _, p := range positions {
		qty, err := parseDecimal(p.Qty, "qty")
		if err != nil {
			return nil, fmt.Errorf("position %s: %w", p.Symbol, err)
		}
		out[p.Symbol] = qty
	}
	return out, nil
}

// Price returns the latest trade price
func (e *AlpacaEngine) Price(ctx context.Context, asset string) (float64, error) {
	var trade alpacaTrade
	u := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", e.dataURL, url.PathEscape(asset))
	if err := e.data.GetJSON(ctx, u, &trade); err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return 0, fmt.Errorf("%w: %s", contracts.ErrNoPrice, asset)
		}
		return 0, fmt.Errorf("get latest trade %s: %w", asset, err)
	}
	if trade.Trade.Price <= 0 {
		return 0, fmt.Errorf("%w: %s", contracts.ErrNoPrice, asset)
	}
	return trade.Trade.Price, nil
}

// OpenOrders returns symbols with an open order
func (e *AlpacaEngine) OpenOrders(ctx context.Context) ([]string, error) {
	var orders []alpacaOrder
	if err := e.trading.GetJSON(ctx, e.tradingURL+"/v2/orders?status=open", &orders); err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	seen := make(map[string]bool, len(orders))
	out := make([]string, 0, len(orders))
	for _, o := range orders {
		if !seen[o.Symbol] {
			seen[o.Symbol] = true
			out = append(out, o.Symbol)
		}
	}
	return out, nil
}

// Fractionable reports whether the asset supports fractional quantities
// 자산 메타데이터는 TTLLong 동안 캐시
func (e *AlpacaEngine) Fractionable(ctx context.Context, asset string) (bool, error) {
	var meta alpacaAsset
	fetch := func() (interface{}, error) {
		var a alpacaAsset
		u := fmt.Sprintf("%s/v2/assets/%s", e.tradingURL, url.PathEscape(asset))
		if err := e.trading.GetJSON(ctx, u, &a); err != nil {
			return nil, fmt.Errorf("get asset %s: %w", asset, err)
		}
		return a, nil
	}

	// nil cache = 매번 조회
	if err := e.cache.GetOrSet(ctx, redis.AssetKey(asset), &meta, redis.TTLLong, fetch); err != nil {
		return false, err
	}
	return meta.Fractionable, nil
}

// Submit places a market order and waits for a terminal status or the fill timeout
// 타임아웃 시 주문 취소 후 그 시점까지의 체결 수량으로 결과 반환
func (e *AlpacaEngine) Submit(ctx context.Context, intent contracts.TradeIntent) (contracts.IntentResult, error) {
	result := contracts.IntentResult{
		IntentID:    intent.ID,
		Asset:       intent.Asset,
		Side:        intent.Side,
		SubmittedAt: time.Now().UTC(),
	}

	req := alpacaOrderRequest{
		Symbol:        intent.Asset,
		Qty:           strconv.FormatFloat(intent.Quantity, 'f', -1, 64),
		Side:          string(intent.Side),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: intent.ID,
	}

	var order alpacaOrder
	if err := e.trading.PostJSON(ctx, e.tradingURL+"/v2/orders", req, &order); err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && (se.StatusCode == http.StatusForbidden || se.StatusCode == http.StatusUnprocessableEntity) {
			// 브로커 거절 (잔고 부족, 거래 불가 종목 등)
			result.Status = contracts.IntentRejected
			result.Message = se.Body
			result.CompletedAt = time.Now().UTC()
			return result, nil
		}
		return contracts.IntentResult{}, fmt.Errorf("submit order %s: %w", intent.Asset, err)
	}
	result.OrderID = order.ID

	e.log.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"asset":    intent.Asset,
		"side":     intent.Side,
		"qty":      req.Qty,
	}).Info("order submitted")

	final, err := e.await(ctx, order)
	if err != nil {
		return contracts.IntentResult{}, err
	}
	return e.toResult(result, final)
}

// await polls until the order is terminal
// fill timeout 또는 호출자 deadline 도달 시 브로커에서 취소 후 부분 체결 반환
func (e *AlpacaEngine) await(ctx context.Context, order alpacaOrder) (alpacaOrder, error) {
	deadline := time.NewTimer(e.fillTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.pollEvery)
	defer ticker.Stop()

	current := order
	for !isTerminalOrder(current.Status) {
		select {
		case <-ctx.Done():
			return e.cancelDetached(ctx, current)
		case <-deadline.C:
			return e.cancel(ctx, current)
		case <-ticker.C:
			var next alpacaOrder
			if err := e.trading.GetJSON(ctx, e.tradingURL+"/v2/orders/"+current.ID, &next); err != nil {
				if ctx.Err() != nil {
					return e.cancelDetached(ctx, current)
				}
				return current, fmt.Errorf("poll order %s: %w", current.ID, err)
			}
			current = next
		}
	}
	return current, nil
}

// cancelDetached cancels after the caller's context is gone
// 주문이 브로커에 남아 있으면 안 되므로 부모 취소와 분리된 짧은 컨텍스트 사용
func (e *AlpacaEngine) cancelDetached(ctx context.Context, order alpacaOrder) (alpacaOrder, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	return e.cancel(cctx, order)
}

func (e *AlpacaEngine) cancel(ctx context.Context, order alpacaOrder) (alpacaOrder, error) {
	// 422 = 이미 체결/종료된 주문, 최종 상태 재조회로 진행
	if err := e.trading.Delete(ctx, e.tradingURL+"/v2/orders/"+order.ID); err != nil {
		var se *httputil.StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusUnprocessableEntity {
			return order, fmt.Errorf("cancel order %s: %w", order.ID, err)
		}
	}

	e.log.WithFields(map[string]interface{}{
		"order_id":   order.ID,
		"filled_qty": order.FilledQty,
	}).Warn("fill timeout, order canceled")

	// 취소 직전까지의 체결 수량 재조회
	var final alpacaOrder
	if err := e.trading.GetJSON(ctx, e.tradingURL+"/v2/orders/"+order.ID, &final); err != nil {
		return order, fmt.Errorf("fetch canceled order %s: %w", order.ID, err)
	}
	if !isTerminalOrder(final.Status) {
		final.Status = "canceled"
	}
	return final, nil
}

func (e *AlpacaEngine) toResult(result contracts.IntentResult, order alpacaOrder) (contracts.IntentResult, error) {
	result.CompletedAt = time.Now().UTC()

	filled := 0.0
	if order.FilledQty != "" {
		v, err := parseDecimal(order.FilledQty, "filled_qty")
		if err != nil {
			return contracts.IntentResult{}, err
		}
		filled = v
	}
	if order.FilledAvgPrice != nil && *order.FilledAvgPrice != "" {
		v, err := parseDecimal(*order.FilledAvgPrice, "filled_avg_price")
		if err != nil {
			return contracts.IntentResult{}, err
		}
		result.Price = v
	}
	result.FilledQuantity = filled

	switch {
	case order.Status == "filled":
		result.Status = contracts.IntentFilled
	case filled > 0:
		result.Status = contracts.IntentPartial
		result.Message = "order " + order.Status
	default:
		result.Status = contracts.IntentRejected
		result.Message = "order " + order.Status
	}
	return result, nil
}

func isTerminalOrder(status string) bool {
	switch status {
	case "filled", "canceled", "expired", "rejected", "done_for_day", "stopped", "suspended":
		return true
	}
	return false
}

func parseDecimal(s, field string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return v, nil
}
