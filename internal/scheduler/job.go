package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrSkipped marks a run that intentionally did nothing (재시도 안 함, 실패 아님)
// 사이클 미도래 / 사이클 중복 실행이 여기에 해당
var ErrSkipped = errors.New("job skipped")

// Job is one cron-driven unit of work
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string
	Run(ctx context.Context) error
	// Schedule is a cron expression, seconds field optional
	// e.g. "0 */15 * * * *", "@every 15m"
	Schedule() string
}

// Retrier lets a job override the scheduler's retry count
// 사이클 잡은 0 (같은 트리거에서 재실행하지 않음)
type Retrier interface {
	MaxRetries() int
}

// JobResult is one Run outcome after retries
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"`
	Attempts  int           `json:"attempts"`
	Error     string        `json:"error,omitempty"`
}

func (r JobResult) failed() bool { return !r.Success && !r.Skipped }

// JobStats aggregates a job's retained history
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SkippedCount int        `json:"skipped_count"`
	SuccessRate  float64    `json:"success_rate"` // skipped 제외
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

// maxHistory caps the per-job result history
const maxHistory = 100

// JobHistory keeps the most recent results, oldest first
type JobHistory struct {
	Results []JobResult
}

func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if over := len(h.Results) - maxHistory; over > 0 {
		h.Results = append(h.Results[:0:0], h.Results[over:]...)
	}
}

// GetLatestResults returns a copy of the last n results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	n = min(n, len(h.Results))
	out := make([]JobResult, n)
	copy(out, h.Results[len(h.Results)-n:])
	return out
}

func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, r := range h.Results {
		if r.failed() {
			failed = append(failed, r)
		}
	}
	return failed
}

// GetSuccessRate over non-skipped runs (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	return h.summarize().SuccessRate
}

// summarize fills the history-derived fields of JobStats in one pass
func (h *JobHistory) summarize() JobStats {
	var st JobStats
	st.TotalRuns = len(h.Results)
	for _, r := range h.Results {
		at := r.StartTime
		st.LastRun = &at
		switch {
		case r.Success:
			st.SuccessCount++
			st.LastSuccess = &at
		case r.Skipped:
			st.SkippedCount++
		default:
			st.FailureCount++
			st.LastFailure = &at
		}
	}
	if ran := st.SuccessCount + st.FailureCount; ran > 0 {
		st.SuccessRate = float64(st.SuccessCount) / float64(ran)
	}
	return st
}
