package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "fwtrader - 모듈형 전략 사이클 러너",
	Long: `fwtrader Unified CLI

Universe → Selector → Signals → Portfolio → Risk → Planner → Engine
순서로 전략 사이클을 실행합니다.

Usage:
  go run ./cmd/trader [command]

Examples:
  go run ./cmd/trader config check
  go run ./cmd/trader run
  go run ./cmd/trader start
  go run ./cmd/trader state show`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy file (default is STRATEGY_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logs)")
}
