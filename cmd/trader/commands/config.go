package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/fwtrader/internal/strategyconfig"
)

// configCmd represents the config command group
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "전략 설정 관련 명령어",
}

// configCheckCmd validates a strategy file
var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "전략 파일 검증 및 해시 출력",
	Long: `전략 YAML을 로드/검증하고 설정 해시와 경고를 출력합니다.

Example:
  go run ./cmd/trader config check
  go run ./cmd/trader config check --strategy config/strategy.yaml`,
	RunE: checkConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd)
}

func checkConfig(cmd *cobra.Command, args []string) error {
	path := strategyFile
	if path == "" {
		// 환경 설정 전체를 요구하지 않도록 기본 경로만 사용
		path = "config/strategy.yaml"
	}

	cfg, _, err := strategyconfig.Load(path)
	if err != nil {
		return fmt.Errorf("❌ %s: %w", path, err)
	}

	hash, err := strategyconfig.Hash(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s\n", path)
	fmt.Printf("   strategy_id: %s\n", cfg.Meta.StrategyID)
	fmt.Printf("   config_hash: %s\n", hash)
	fmt.Printf("   pipeline:    %d source(s) → %s → %s → %s → %d risk rule(s)\n",
		len(cfg.Universe.Sources), cfg.Selector.Kind, cfg.Signals.Kind, cfg.Portfolio.Kind, len(cfg.Risk))

	for _, w := range strategyconfig.Warn(cfg) {
		fmt.Printf("⚠️  %s: %s\n", w.Code, w.Message)
	}
	return nil
}
