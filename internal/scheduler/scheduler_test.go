package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedJob struct {
	name     string
	schedule string
	errs     []error // 호출 순서대로 반환, 소진 후 nil
	calls    atomic.Int32
	retries  *int
}

func (j *scriptedJob) Name() string     { return j.name }
func (j *scriptedJob) Schedule() string { return j.schedule }

func (j *scriptedJob) Run(ctx context.Context) error {
	n := int(j.calls.Add(1)) - 1
	if n < len(j.errs) {
		return j.errs[n]
	}
	return nil
}

type retryingJob struct {
	*scriptedJob
}

func (j retryingJob) MaxRetries() int { return *j.retries }

func newTestScheduler() *Scheduler {
	return New(nil, WithRetries(2, time.Millisecond))
}

func TestRunJob_RetriesUntilSuccess(t *testing.T) {
	s := newTestScheduler()
	job := &scriptedJob{name: "flaky", schedule: "@hourly", errs: []error{errors.New("x"), errors.New("y")}}
	require.NoError(t, s.AddJob(job))

	result := s.runJob(job)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Empty(t, result.Error)
}

func TestRunJob_FailsAfterRetries(t *testing.T) {
	s := newTestScheduler()
	boom := errors.New("boom")
	job := &scriptedJob{name: "broken", schedule: "@hourly", errs: []error{boom, boom, boom, boom}}
	require.NoError(t, s.AddJob(job))

	result := s.runJob(job)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts, "1 run + 2 retries")
	assert.Equal(t, "boom", result.Error)

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJob_PerJobRetries(t *testing.T) {
	s := newTestScheduler()
	zero := 0
	job := retryingJob{&scriptedJob{name: "once", schedule: "@hourly", errs: []error{errors.New("x")}, retries: &zero}}
	require.NoError(t, s.AddJob(job))

	result := s.runJob(job)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
}

func TestRunJob_SkippedIsNotFailure(t *testing.T) {
	s := newTestScheduler()
	job := &scriptedJob{name: "skip", schedule: "@hourly", errs: []error{fmt.Errorf("%w: busy", ErrSkipped)}}
	require.NoError(t, s.AddJob(job))

	result := s.runJob(job)
	assert.True(t, result.Skipped)
	assert.Equal(t, 1, result.Attempts, "skipped runs are not retried")

	stats := s.GetJobStats()["skip"]
	assert.Equal(t, 1, stats.SkippedCount)
	assert.Equal(t, 0, stats.FailureCount)
	assert.Equal(t, 0, stats.SuccessCount)
	assert.Equal(t, 0.0, stats.SuccessRate)
}

func TestAddRemoveJob(t *testing.T) {
	s := newTestScheduler()
	job := &scriptedJob{name: "a", schedule: "@every 1h"}

	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job), "duplicate name")
	assert.Error(t, s.AddJob(&scriptedJob{name: "bad", schedule: "not a schedule"}))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Empty(t, s.cron.Entries())
}

func TestRunJob_Async(t *testing.T) {
	s := newTestScheduler()
	job := &scriptedJob{name: "now", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("now"))
	assert.Error(t, s.RunJob("missing"))

	s.Start()
	s.Stop()

	assert.Equal(t, int32(1), job.calls.Load())
	history, err := s.GetJobHistory("now")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)
}

func TestStop_CancelsRetryWait(t *testing.T) {
	s := New(nil, WithRetries(5, time.Hour))
	job := &scriptedJob{name: "slow", schedule: "@hourly", errs: []error{errors.New("x"), errors.New("x")}}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("slow"))

	require.Eventually(t, func() bool { return job.calls.Load() == 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not interrupt retry wait")
	}
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 150; i++ {
		h.AddResult(JobResult{StartTime: base.Add(time.Duration(i) * time.Minute), Success: i%2 == 0})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(10), 10)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(5))
	assert.Len(t, h.GetFailedResults(), 50)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}

func TestJobHistory_Summarize(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	h := &JobHistory{}
	h.AddResult(JobResult{StartTime: base, Success: true})
	h.AddResult(JobResult{StartTime: base.Add(time.Minute), Skipped: true})
	h.AddResult(JobResult{StartTime: base.Add(2 * time.Minute), Error: "boom"})
	h.AddResult(JobResult{StartTime: base.Add(3 * time.Minute), Skipped: true})

	st := h.summarize()
	assert.Equal(t, 4, st.TotalRuns)
	assert.Equal(t, 1, st.SuccessCount)
	assert.Equal(t, 1, st.FailureCount)
	assert.Equal(t, 2, st.SkippedCount)
	assert.InDelta(t, 0.5, st.SuccessRate, 1e-9)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, base.Add(3*time.Minute), *st.LastRun)
	assert.Equal(t, base, *st.LastSuccess)
	assert.Equal(t, base.Add(2*time.Minute), *st.LastFailure)

	assert.Zero(t, (&JobHistory{}).summarize().SuccessRate)
}

type panickingJob struct{}

func (panickingJob) Name() string                { return "panics" }
func (panickingJob) Schedule() string            { return "@hourly" }
func (panickingJob) MaxRetries() int             { return 0 }
func (panickingJob) Run(_ context.Context) error { panic("nil map") }

func TestRunJob_PanicIsFailedAttempt(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(panickingJob{}))

	result := s.runJob(panickingJob{})
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Contains(t, result.Error, "panicked: nil map")
}

func TestKVFields(t *testing.T) {
	fields := kvFields([]interface{}{"entry", 3, "next", "soon", "dangling"})
	assert.Equal(t, map[string]interface{}{"entry": 3, "next": "soon"}, fields)
}
