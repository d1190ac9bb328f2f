package audit

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/pkg/logger"
)

// ErrNotEnoughCycles is returned when fewer than two valued cycles exist
var ErrNotEnoughCycles = errors.New("not enough cycles for performance analysis")

// Config holds analysis settings
type Config struct {
	// PeriodsPerYear annualizes per-cycle statistics (일 1회 사이클 = 252)
	PeriodsPerYear float64
	// RiskFreeRate is the annual risk-free rate
	RiskFreeRate float64
}

// DefaultConfig returns daily-cycle settings
func DefaultConfig() Config {
	return Config{PeriodsPerYear: 252, RiskFreeRate: 0.03}
}

// Analyzer computes strategy performance from Cycle Records
// ⭐ SSOT: 성과 분석 로직은 여기서만
type Analyzer struct {
	config Config
	logger *logger.Logger
}

// NewAnalyzer creates a new performance analyzer
func NewAnalyzer(config Config, log *logger.Logger) *Analyzer {
	if config.PeriodsPerYear <= 0 {
		config.PeriodsPerYear = DefaultConfig().PeriodsPerYear
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Analyzer{config: config, logger: log.WithComponent("audit")}
}

// PerformanceReport represents performance analysis report
type PerformanceReport struct {
	StrategyID string    `json:"strategy_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Cycles     int       `json:"cycles"`

	StartEquity float64 `json:"start_equity"`
	EndEquity   float64 `json:"end_equity"`

	// 수익률
	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`

	// 리스크 지표
	Volatility  float64 `json:"volatility"`
	Sharpe      float64 `json:"sharpe"`
	Sortino     float64 `json:"sortino"`
	MaxDrawdown float64 `json:"max_drawdown"`

	// 사이클 지표
	WinRate  float64                       `json:"win_rate"` // 수익 사이클 비율
	Statuses map[contracts.CycleStatus]int `json:"statuses"`

	// 주문 지표
	Intents   int     `json:"intents"`
	Confirmed int     `json:"confirmed"`
	Failed    int     `json:"failed"`
	FillRate  float64 `json:"fill_rate"`
	Turnover  float64 `json:"turnover"` // 체결 금액 합계
}

// Analyze builds a report from records ordered oldest first
// failed 사이클은 Context를 커밋하지 않으므로 수익률 계산에서 제외
func (a *Analyzer) Analyze(records []*contracts.CycleRecord) (*PerformanceReport, error) {
	report := &PerformanceReport{Statuses: make(map[contracts.CycleStatus]int)}

	var equity []float64
	var lastSeq int64
	for _, rec := range records {
		if rec == nil {
			continue
		}
		report.Cycles++
		report.Statuses[rec.Status]++
		report.Intents += len(rec.Intents)
		report.Confirmed += rec.ConfirmedCount()
		report.Failed += rec.FailedCount()
		for _, res := range rec.Results {
			if res.IsConfirmed() {
				report.Turnover += res.FilledQuantity * res.Price
			}
		}

		if rec.Status == contracts.CycleFailed || rec.Equity <= 0 {
			continue
		}
		// 시퀀스 역행 = Context 초기화, 새 구간 시작
		if rec.Sequence <= lastSeq {
			equity = equity[:0]
		}
		lastSeq = rec.Sequence

		if report.StrategyID == "" {
			report.StrategyID = rec.StrategyID
		}
		if len(equity) == 0 {
			report.StartDate = rec.StartedAt
		}
		report.EndDate = rec.FinishedAt
		equity = append(equity, rec.Equity)
	}

	if report.Intents > 0 {
		report.FillRate = float64(report.Confirmed) / float64(report.Intents)
	}
	if len(equity) < 2 {
		return report, ErrNotEnoughCycles
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		returns = append(returns, equity[i]/equity[i-1]-1)
	}

	report.StartEquity = equity[0]
	report.EndEquity = equity[len(equity)-1]
	report.TotalReturn = report.EndEquity/report.StartEquity - 1
	report.AnnualReturn = a.annualize(report.TotalReturn, len(returns))
	report.Volatility = a.calculateVolatility(returns)
	report.Sharpe = a.calculateSharpe(report.AnnualReturn, report.Volatility)
	report.Sortino = a.calculateSortino(returns, report.AnnualReturn)
	report.MaxDrawdown = calculateMaxDrawdown(equity)
	report.WinRate = calculateWinRate(returns)

	a.logger.WithFields(map[string]interface{}{
		"strategy_id":  report.StrategyID,
		"cycles":       report.Cycles,
		"total_return": report.TotalReturn,
		"sharpe":       report.Sharpe,
		"max_drawdown": report.MaxDrawdown,
	}).Debug("Performance analysis completed")

	return report, nil
}

// annualize converts a total return over n periods to an annual return
func (a *Analyzer) annualize(totalReturn float64, periods int) float64 {
	if periods == 0 || totalReturn <= -1 {
		return 0
	}
	return math.Pow(1.0+totalReturn, a.config.PeriodsPerYear/float64(periods)) - 1.0
}

// calculateVolatility calculates annualized volatility
func (a *Analyzer) calculateVolatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(a.config.PeriodsPerYear)
}

// calculateSharpe calculates Sharpe ratio
func (a *Analyzer) calculateSharpe(annualReturn, volatility float64) float64 {
	if volatility == 0 {
		return 0
	}
	return (annualReturn - a.config.RiskFreeRate) / volatility
}

// calculateSortino calculates Sortino ratio (downside deviation only)
func (a *Analyzer) calculateSortino(returns []float64, annualReturn float64) float64 {
	var sumSquaredNegative float64
	var countNegative int
	for _, r := range returns {
		if r < 0 {
			sumSquaredNegative += r * r
			countNegative++
		}
	}
	if countNegative == 0 {
		return 0
	}

	downsideVol := math.Sqrt(sumSquaredNegative/float64(countNegative)) * math.Sqrt(a.config.PeriodsPerYear)
	if downsideVol == 0 {
		return 0
	}
	return (annualReturn - a.config.RiskFreeRate) / downsideVol
}

// calculateMaxDrawdown returns the worst peak-to-trough decline (<= 0)
func calculateMaxDrawdown(equity []float64) float64 {
	peak := equity[0]
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if dd := (v - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// calculateWinRate returns the fraction of positive periods
func calculateWinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}
