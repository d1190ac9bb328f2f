package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// stateCmd represents the state command group
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Context 조회/초기화",
	Long: `저장된 전략 Context를 조회하거나 초기화합니다.

Subcommands:
  show   - 저장된 Context 출력
  reset  - 현금만 가진 새 Context로 초기화

Example:
  go run ./cmd/trader state show
  go run ./cmd/trader state reset --cash 50000`,
}

var (
	stateShowCmd = &cobra.Command{
		Use:   "show",
		Short: "저장된 Context 출력",
		RunE:  showState,
	}

	stateResetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Context 초기화 (포지션/네임스페이스 삭제)",
		RunE:  resetState,
	}
)

var (
	resetCash float64
	resetYes  bool
)

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateResetCmd)

	stateResetCmd.Flags().Float64Var(&resetCash, "cash", 0, "초기 현금 (default is INITIAL_CASH)")
	stateResetCmd.Flags().BoolVar(&resetYes, "yes", false, "확인 없이 초기화")
}

func showState(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.trader.Snapshot().Serialize()
	if err != nil {
		return fmt.Errorf("serialize context: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}

func resetState(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return fmt.Errorf("state reset discards positions and namespaces; rerun with --yes")
	}

	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	cash := resetCash
	if cash <= 0 {
		cash = a.cfg.Trader.InitialCash
	}
	if err := a.trader.Reset(cmd.Context(), cash); err != nil {
		return fmt.Errorf("reset context: %w", err)
	}

	fmt.Fprintf(os.Stdout, "✅ Context reset (strategy=%s, cash=%.2f)\n", a.trader.StrategyID(), cash)
	return nil
}
