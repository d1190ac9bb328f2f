package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/fwtrader/internal/audit"
	"github.com/wonny/fwtrader/internal/record"
)

// reportCmd prints performance analytics from the JSONL cycle log
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Cycle Record 파일 기반 성과 리포트",
	Long: `RECORD_PATH(JSONL)의 Cycle Record로 수익률, 변동성, Sharpe, MDD 등을 계산합니다.

Example:
  go run ./cmd/trader report
  go run ./cmd/trader report --file data/cycles.jsonl --periods 52`,
	RunE: runReport,
}

var (
	reportFile     string
	reportPeriods  float64
	reportRiskFree float64
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportFile, "file", "", "cycle record file (default is RECORD_PATH)")
	reportCmd.Flags().Float64Var(&reportPeriods, "periods", 252, "연간 사이클 수 (연율화 기준)")
	reportCmd.Flags().Float64Var(&reportRiskFree, "risk-free", 0.03, "연 무위험 수익률")
}

func runReport(cmd *cobra.Command, args []string) error {
	path := reportFile
	if path == "" {
		cfg, _, err := loadEnv()
		if err != nil {
			return err
		}
		path = cfg.Trader.RecordPath
	}
	if path == "" {
		return fmt.Errorf("no record file: set RECORD_PATH or --file")
	}

	records, err := record.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	analyzer := audit.NewAnalyzer(audit.Config{
		PeriodsPerYear: reportPeriods,
		RiskFreeRate:   reportRiskFree,
	}, nil)
	report, err := analyzer.Analyze(records)
	if err != nil {
		return fmt.Errorf("%s (%d records): %w", path, len(records), err)
	}
	return printJSON(report)
}
