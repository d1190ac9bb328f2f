package strategyconfig

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/fwtrader/internal/clock"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

var validate = newValidator()

// newValidator reports field paths with YAML names (universe.sources[0].kind)
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === 태그 기반 검증 ===
	if err := validate.Struct(cfg); err != nil {
		return toValidationError(err)
	}

	// === Universe ===
	for i, src := range cfg.Universe.Sources {
		field := fmt.Sprintf("universe.sources[%d]", i)
		switch src.Kind {
		case "static":
			if len(src.Assets) == 0 {
				return ValidationError{field + ".assets", "required for static source"}
			}
		case "file":
			if src.Path == "" {
				return ValidationError{field + ".path", "required for file source"}
			}
		}
	}
	if _, err := clock.ParseCadence(cfg.Universe.Cadence); err != nil {
		return ValidationError{"universe.cadence", err.Error()}
	}

	// === Selector ===
	if cfg.Selector.Kind == "manual" && len(cfg.Selector.Assets) == 0 {
		return ValidationError{"selector.assets", "required for manual selector"}
	}
	f := cfg.Selector.Filter
	if f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		return ValidationError{"selector.filter", "min_price must be <= max_price"}
	}

	// === Signals ===
	switch cfg.Signals.Kind {
	case "rsi":
		if cfg.Signals.RSI.Oversold >= cfg.Signals.RSI.Overbought {
			return ValidationError{"signals.rsi", "oversold must be < overbought"}
		}
	case "sma_cross":
		if cfg.Signals.SMACross.Fast >= cfg.Signals.SMACross.Slow {
			return ValidationError{"signals.sma_cross", "fast must be < slow"}
		}
	case "stochastic":
		if cfg.Signals.Stochastic.Oversold >= cfg.Signals.Stochastic.Overbought {
			return ValidationError{"signals.stochastic", "oversold must be < overbought"}
		}
	}

	// === Portfolio ===
	if cfg.Portfolio.MinWeight > cfg.Portfolio.MaxWeight {
		return ValidationError{"portfolio", "min_weight must be <= max_weight"}
	}

	// === Risk ===
	for i, r := range cfg.Risk {
		field := fmt.Sprintf("risk[%d]", i)
		switch r.Kind {
		case "position_limit":
			if r.MaxWeight == 0 && r.MaxQuantity == 0 {
				return ValidationError{field, "position_limit needs max_weight or max_quantity"}
			}
		case "volatility_limit":
			if r.MaxVolatility == 0 && r.MaxVaR95 == 0 {
				return ValidationError{field, "volatility_limit needs max_volatility or max_var_95"}
			}
			if r.Lookback < 2 {
				return ValidationError{field + ".lookback", "must be >= 2"}
			}
		}
	}

	// === Execution ===
	if _, err := clock.ParseCadence(cfg.Execution.Cadence); err != nil {
		return ValidationError{"execution.cadence", err.Error()}
	}
	if cfg.Execution.EngineTimeout <= 0 {
		return ValidationError{"execution.engine_timeout", "must be > 0"}
	}

	return nil
}

// toValidationError converts the first validator failure
func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	return ValidationError{Field: field, Message: fieldMessage(fe)}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s (got %v)", strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be < %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 리스크 규칙 없음
	if len(cfg.Risk) == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_RISK",
			Message: "risk 규칙 없음: 목표 포트폴리오가 조정 없이 실행됨",
		})
	}

	// shadow/off 모드 규칙
	for i, r := range cfg.Risk {
		if r.Mode == "shadow" || r.Mode == "off" {
			warnings = append(warnings, Warning{
				Code:    "RISK_NOT_ENFORCED",
				Message: fmt.Sprintf("risk[%d] %s: mode=%s, 조정이 적용되지 않음", i, r.Kind, r.Mode),
			})
		}
	}

	// 과도한 현금 비중
	if cfg.Portfolio.CashReserve > 0.5 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_CASH_RESERVE",
			Message: "cash_reserve > 50%: 대부분 현금으로 유지됨",
		})
	}

	// 트리거마다 사이클 실행
	if cfg.Execution.Cadence == "" || cfg.Execution.Cadence == "always" {
		warnings = append(warnings, Warning{
			Code:    "ALWAYS_DUE",
			Message: "execution.cadence 미설정: 모든 트리거에서 사이클 실행",
		})
	}

	// 먼지 주문 허용
	if cfg.Execution.MinTradable == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_MIN_TRADABLE",
			Message: "min_tradable = 0: 아주 작은 수량 차이도 주문으로 제출됨",
		})
	}

	return warnings
}
