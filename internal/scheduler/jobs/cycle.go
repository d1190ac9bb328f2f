package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/scheduler"
	"github.com/wonny/fwtrader/pkg/logger"
)

// CycleRunner runs a strategy cycle when its cadence is due
type CycleRunner interface {
	RunIfDue(ctx context.Context) (*contracts.CycleRecord, bool, error)
}

// CycleJob triggers strategy cycles on a cron schedule
// 재시도 없음: 재시도된 사이클은 새 사이클
type CycleJob struct {
	runner   CycleRunner
	schedule string
	logger   *logger.Logger
}

// NewCycleJob creates a cycle trigger
func NewCycleJob(runner CycleRunner, schedule string, log *logger.Logger) *CycleJob {
	if log == nil {
		log = logger.NewNop()
	}
	return &CycleJob{
		runner:   runner,
		schedule: schedule,
		logger:   log.WithComponent("cycle_job"),
	}
}

// Name returns the job name
func (j *CycleJob) Name() string {
	return "strategy_cycle"
}

// Schedule returns the cron schedule
func (j *CycleJob) Schedule() string {
	return j.schedule
}

// MaxRetries disables scheduler retries
func (j *CycleJob) MaxRetries() int {
	return 0
}

// Run executes one cycle if due
func (j *CycleJob) Run(ctx context.Context) error {
	rec, ran, err := j.runner.RunIfDue(ctx)

	if errors.Is(err, contracts.ErrCycleInProgress) {
		return fmt.Errorf("%w: %v", scheduler.ErrSkipped, err)
	}
	if err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}
	if !ran {
		return fmt.Errorf("%w: cycle not due", scheduler.ErrSkipped)
	}

	j.logger.WithFields(map[string]interface{}{
		"cycle_id": rec.ID,
		"sequence": rec.Sequence,
		"status":   rec.Status,
	}).Debug("Cycle triggered")

	return nil
}
