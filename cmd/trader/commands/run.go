package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// runCmd runs exactly one cycle
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "사이클 1회 실행 후 Cycle Record 출력",
	Long: `전략 사이클을 1회 실행하고 Cycle Record를 JSON으로 출력합니다.

--if-due 지정 시 execution.cadence가 도래한 경우에만 실행합니다.
단계 실패(failed) 시 종료 코드 1.

Example:
  go run ./cmd/trader run
  go run ./cmd/trader run --if-due`,
	RunE: runOnce,
}

var runIfDue bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runIfDue, "if-due", false, "cadence가 도래한 경우에만 실행")
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	var cycleErr error
	if runIfDue {
		rec, ran, err := a.trader.RunIfDue(ctx)
		if !ran && err == nil {
			fmt.Fprintln(os.Stderr, "cycle not due")
			return nil
		}
		if rec != nil {
			if err := printJSON(rec); err != nil {
				return err
			}
		}
		cycleErr = err
	} else {
		rec, err := a.trader.RunCycle(ctx)
		if rec != nil {
			if err := printJSON(rec); err != nil {
				return err
			}
		}
		cycleErr = err
	}

	return cycleErr
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
