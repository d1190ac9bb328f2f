package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wonny/fwtrader/internal/api"
	"github.com/wonny/fwtrader/internal/api/handlers"
	"github.com/wonny/fwtrader/internal/audit"
	"github.com/wonny/fwtrader/internal/scheduler"
	"github.com/wonny/fwtrader/internal/scheduler/jobs"
)

// defaultTrigger is the cron tick when neither CYCLE_SCHEDULE nor a cron cadence is set
// 실제 실행 여부는 RunIfDue(cadence)가 판단
const defaultTrigger = "@every 1m"

// startCmd runs the scheduler and API server until interrupted
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "스케줄러 + API 서버 시작",
	Long: `사이클 스케줄러와 HTTP API 서버를 시작합니다.

Endpoints:
  GET  /health             - Health check
  GET  /metrics            - Prometheus metrics
  GET  /api/cycles         - 최근 Cycle Record (?limit=n)
  GET  /api/cycles/latest  - 최신 Cycle Record
  POST /api/cycles/run     - 수동 사이클 실행 (진행 중이면 409)
  GET  /api/state          - 현재 Context
  GET  /api/jobs           - 스케줄러 작업 통계
  GET  /api/performance    - 성과 리포트 (보관 중인 사이클 기준)
  GET  /ws/cycles          - Cycle Record 스트림 (websocket)

SIGINT/SIGTERM으로 종료합니다.

Example:
  go run ./cmd/trader start
  go run ./cmd/trader start --port 8090`,
	RunE: runStart,
}

var startPort string

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVar(&startPort, "port", "", "API 서버 포트 (default is PORT)")
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{withHub: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if startPort != "" {
		a.cfg.Port = startPort
	}

	// 1. Scheduler
	sched := scheduler.New(a.log)
	trigger := triggerSchedule(a.cfg.Trader.CycleSchedule, a.strategy.Execution.Cadence)
	if err := sched.AddJob(jobs.NewCycleJob(a.trader, trigger, a.log)); err != nil {
		return fmt.Errorf("schedule cycle: %w", err)
	}

	// 2. API
	routes := api.Routes{
		Cycles: handlers.NewCycleHandler(a.trader, a.history, a.log),
		State:  handlers.NewStateHandler(a.trader, a.log),
		Jobs:   handlers.NewJobHandler(sched),
		Stream: a.hub,

		Performance: handlers.NewPerformanceHandler(audit.NewAnalyzer(audit.DefaultConfig(), a.log), a.history, a.log),
	}
	if a.cfg.MetricsEnabled {
		routes.Metrics = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	}
	server := api.New(a.cfg, a.log, api.NewRouter(routes, a.log))

	sched.Start()
	fmt.Printf("✅ Trader running (strategy=%s, trigger=%s, addr=%s)\n", a.strategy.Meta.StrategyID, trigger, server.Addr())
	fmt.Println("Press Ctrl+C to stop")

	// Run은 ctx 종료 시 요청 drain 후 반환
	serveErr := server.Run(ctx)
	if serveErr != nil {
		a.log.WithError(serveErr).Error("API server stopped")
	}

	// 진행 중 사이클 완료 대기
	sched.Stop()
	return serveErr
}

// triggerSchedule picks the cron expression that ticks the cycle job
// CYCLE_SCHEDULE > cron cadence > duration cadence(@every) > defaultTrigger
func triggerSchedule(override, cadence string) string {
	if override != "" {
		return override
	}
	switch {
	case cadence == "" || cadence == "always":
		return defaultTrigger
	case strings.HasPrefix(cadence, "@"):
		return cadence
	}
	if d, err := time.ParseDuration(cadence); err == nil {
		return "@every " + d.String()
	}
	return cadence
}
