package strategyconfig

import "time"

// Config는 전략 파이프라인의 전체 설정
// ⭐ SSOT: 전략 파일(YAML) 구조는 여기서만 정의
type Config struct {
	Meta      Meta       `yaml:"meta" json:"meta"`
	Universe  Universe   `yaml:"universe" json:"universe"`
	Selector  Selector   `yaml:"selector" json:"selector"`
	Signals   Signals    `yaml:"signals" json:"signals"`
	Portfolio Portfolio  `yaml:"portfolio" json:"portfolio"`
	Risk      []RiskRule `yaml:"risk" json:"risk" validate:"dive"`
	Execution Execution  `yaml:"execution" json:"execution"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID  string `yaml:"strategy_id" json:"strategy_id" validate:"required"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description"`
}

// Universe S1: 거래 가능 자산 풀
type Universe struct {
	Sources []UniverseSource `yaml:"sources" json:"sources" validate:"required,min=1,dive"`
	// "" = 매 사이클 갱신
	Cadence string        `yaml:"cadence" json:"cadence"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" default:"30s"`
	// Redis 캐시 TTL, 0 = 미사용
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	Exclude  []string      `yaml:"exclude" json:"exclude"`
}

// UniverseSource 유니버스 소스 1개
type UniverseSource struct {
	Kind   string   `yaml:"kind" json:"kind" validate:"required,oneof=static file postgres"`
	Assets []string `yaml:"assets" json:"assets"` // static
	Path   string   `yaml:"path" json:"path"`     // file
}

// Selector 자산 선택 단계
type Selector struct {
	Kind   string       `yaml:"kind" json:"kind" default:"all" validate:"oneof=all manual filter"`
	Assets []string     `yaml:"assets" json:"assets"` // manual
	Filter FilterConfig `yaml:"filter" json:"filter"`
}

// FilterConfig 스크리너 하드컷
type FilterConfig struct {
	MinPrice      float64 `yaml:"min_price" json:"min_price" validate:"gte=0"`
	MaxPrice      float64 `yaml:"max_price" json:"max_price" validate:"gte=0"`
	RequirePrice  bool    `yaml:"require_price" json:"require_price"`
	MaxAssets     int     `yaml:"max_assets" json:"max_assets" validate:"gte=0"`
	HoldingsFirst bool    `yaml:"holdings_first" json:"holdings_first"`
}

// Signals S2: 시그널 생성기
type Signals struct {
	Kind       string           `yaml:"kind" json:"kind" validate:"required,oneof=constant null threshold rsi sma_cross momentum stochastic"`
	Constant   ConstantParams   `yaml:"constant" json:"constant"`
	Threshold  ThresholdParams  `yaml:"threshold" json:"threshold"`
	RSI        RSIParams        `yaml:"rsi" json:"rsi"`
	SMACross   SMACrossParams   `yaml:"sma_cross" json:"sma_cross"`
	Momentum   MomentumParams   `yaml:"momentum" json:"momentum"`
	Stochastic StochasticParams `yaml:"stochastic" json:"stochastic"`
}

type ConstantParams struct {
	Direction string  `yaml:"direction" json:"direction" default:"up" validate:"oneof=up flat down"`
	Strength  float64 `yaml:"strength" json:"strength" default:"1"`
}

type ThresholdParams struct {
	Percent float64 `yaml:"percent" json:"percent" default:"0.02" validate:"gt=0"`
}

type RSIParams struct {
	Period     int     `yaml:"period" json:"period" default:"14" validate:"gte=2"`
	Oversold   float64 `yaml:"oversold" json:"oversold" default:"30" validate:"gte=0,lte=100"`
	Overbought float64 `yaml:"overbought" json:"overbought" default:"70" validate:"gte=0,lte=100"`
}

type SMACrossParams struct {
	Fast int `yaml:"fast" json:"fast" default:"10" validate:"gte=1"`
	Slow int `yaml:"slow" json:"slow" default:"30" validate:"gte=2"`
}

type StochasticParams struct {
	FastK      int     `yaml:"fast_k" json:"fast_k" default:"14" validate:"gte=1"`
	SlowK      int     `yaml:"slow_k" json:"slow_k" default:"3" validate:"gte=1"`
	SlowD      int     `yaml:"slow_d" json:"slow_d" default:"3" validate:"gte=1"`
	Oversold   float64 `yaml:"oversold" json:"oversold" default:"20" validate:"gte=0,lte=100"`
	Overbought float64 `yaml:"overbought" json:"overbought" default:"80" validate:"gte=0,lte=100"`
}

type MomentumParams struct {
	Lookback  int     `yaml:"lookback" json:"lookback" default:"20" validate:"gte=1"`
	MinReturn float64 `yaml:"min_return" json:"min_return"`
}

// Portfolio S3: 목표 포트폴리오
type Portfolio struct {
	Kind         string   `yaml:"kind" json:"kind" default:"equal_weight" validate:"oneof=equal_weight score_weighted adjust"`
	MaxPositions int      `yaml:"max_positions" json:"max_positions" validate:"gte=0"`
	CashReserve  float64  `yaml:"cash_reserve" json:"cash_reserve" validate:"gte=0,lt=1"`
	MaxWeight    float64  `yaml:"max_weight" json:"max_weight" default:"1" validate:"gt=0,lte=1"`
	MinWeight    float64  `yaml:"min_weight" json:"min_weight" validate:"gte=0,lte=1"`
	Blacklist    []string `yaml:"blacklist" json:"blacklist"`
	// 모든 자산 정수 수량
	WholeUnits bool `yaml:"whole_units" json:"whole_units"`
	// 소수 수량 단위, 0 = 1e-6
	Precision float64 `yaml:"precision" json:"precision" validate:"gte=0"`
	// adjust: 신호 1개당 비중 변화량
	AdjustStep float64 `yaml:"adjust_step" json:"adjust_step" default:"0.05" validate:"gte=0,lte=1"`
}

// RiskRule 리스크 규칙 1개 (목록 순서대로 체인)
type RiskRule struct {
	Kind string `yaml:"kind" json:"kind" validate:"required,oneof=null fixed_stop_loss position_limit volatility_limit"`
	Mode string `yaml:"mode" json:"mode" default:"enforce" validate:"oneof=enforce shadow off"`

	// fixed_stop_loss
	PercentLoss float64 `yaml:"percent_loss" json:"percent_loss" validate:"gte=0,lt=1"`

	// position_limit
	MaxWeight   float64 `yaml:"max_weight" json:"max_weight" validate:"gte=0,lte=1"`
	MaxQuantity float64 `yaml:"max_quantity" json:"max_quantity" validate:"gte=0"`

	// volatility_limit
	MaxVolatility float64 `yaml:"max_volatility" json:"max_volatility" validate:"gte=0"`
	MaxVaR95      float64 `yaml:"max_var_95" json:"max_var_95" validate:"gte=0"`
	Lookback      int     `yaml:"lookback" json:"lookback" validate:"gte=0"`
}

// Execution S5: 계획/실행
type Execution struct {
	MinTradable        float64 `yaml:"min_tradable" json:"min_tradable" default:"0.000001" validate:"gte=0"`
	AbortOnEngineError bool    `yaml:"abort_on_engine_error" json:"abort_on_engine_error"`
	// "" / always / 15m / cron
	Cadence       string        `yaml:"cadence" json:"cadence"`
	EngineTimeout time.Duration `yaml:"engine_timeout" json:"engine_timeout" default:"10s"`
}
