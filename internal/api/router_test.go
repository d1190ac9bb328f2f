package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fwtrader/internal/api/handlers"
	"github.com/wonny/fwtrader/internal/audit"
	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/metrics"
	"github.com/wonny/fwtrader/internal/record"
	"github.com/wonny/fwtrader/internal/scheduler"
	"github.com/wonny/fwtrader/internal/state"
	"github.com/wonny/fwtrader/pkg/logger"
)

type fakeTrader struct {
	ctx  *state.Context
	rec  *contracts.CycleRecord
	err  error
	runs int
}

func (f *fakeTrader) RunCycle(ctx context.Context) (*contracts.CycleRecord, error) {
	f.runs++
	return f.rec, f.err
}

func (f *fakeTrader) Snapshot() *state.Context { return f.ctx.Clone() }
func (f *fakeTrader) Phase() contracts.Phase   { return contracts.PhaseIdle }

type fakeJobs struct{}

func (fakeJobs) GetJobStats() map[string]scheduler.JobStats {
	return map[string]scheduler.JobStats{"strategy_cycle": {JobName: "strategy_cycle", TotalRuns: 3}}
}

func newTestRouter(t *testing.T, trader *fakeTrader, history *record.History) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.New(reg).ObserveCycle(&contracts.CycleRecord{Status: contracts.CycleSuccess})

	return NewRouter(Routes{
		Cycles:  handlers.NewCycleHandler(trader, history, nil),
		State:   handlers.NewStateHandler(trader, nil),
		Jobs:    handlers.NewJobHandler(fakeJobs{}),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),

		Performance: handlers.NewPerformanceHandler(audit.NewAnalyzer(audit.DefaultConfig(), nil), history, nil),
	}, nil)
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t, &fakeTrader{ctx: state.New("demo", 1)}, record.NewHistory(10))

	rr := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestRouter_Cycles(t *testing.T) {
	history := record.NewHistory(10)
	h := newTestRouter(t, &fakeTrader{ctx: state.New("demo", 1)}, history)

	rr := do(t, h, http.MethodGet, "/api/cycles/latest")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, history.Record(context.Background(), &contracts.CycleRecord{Sequence: i, Status: contracts.CycleNoop}))
	}

	rr = do(t, h, http.MethodGet, "/api/cycles?limit=2")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Count   int                     `json:"count"`
		Records []contracts.CycleRecord `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, int64(3), body.Records[0].Sequence)

	rr = do(t, h, http.MethodGet, "/api/cycles/latest")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"sequence":3`)

	rr = do(t, h, http.MethodGet, "/api/cycles?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_RunCycle(t *testing.T) {
	tests := []struct {
		name   string
		trader *fakeTrader
		code   int
	}{
		{"success", &fakeTrader{rec: &contracts.CycleRecord{ID: "c1", Status: contracts.CycleSuccess}}, http.StatusOK},
		{"stage failure is recorded", &fakeTrader{
			rec: &contracts.CycleRecord{ID: "c2", Status: contracts.CycleFailed},
			err: contracts.NewStageError(contracts.StageSelector, contracts.ErrInvalidOutput),
		}, http.StatusOK},
		{"in progress", &fakeTrader{err: contracts.ErrCycleInProgress}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.trader.ctx = state.New("demo", 1)
			h := newTestRouter(t, tt.trader, record.NewHistory(10))

			rr := do(t, h, http.MethodPost, "/api/cycles/run")
			assert.Equal(t, tt.code, rr.Code)
			assert.Equal(t, 1, tt.trader.runs)
		})
	}

	// GET은 허용되지 않음
	h := newTestRouter(t, &fakeTrader{ctx: state.New("demo", 1)}, record.NewHistory(10))
	rr := do(t, h, http.MethodGet, "/api/cycles/run")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	rr = do(t, h, http.MethodGet, "/api/unknown")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_State(t *testing.T) {
	ctx := state.New("demo", 5_000)
	h := newTestRouter(t, &fakeTrader{ctx: ctx}, record.NewHistory(10))

	rr := do(t, h, http.MethodGet, "/api/state")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "idle", rr.Header().Get("X-Cycle-Phase"))

	restored, err := state.Restore(rr.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "demo", restored.StrategyID)
	assert.Equal(t, 5_000.0, restored.Cash)
}

func TestRouter_JobsAndMetrics(t *testing.T) {
	h := newTestRouter(t, &fakeTrader{ctx: state.New("demo", 1)}, record.NewHistory(10))

	rr := do(t, h, http.MethodGet, "/api/jobs")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "strategy_cycle")

	rr = do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `fwtrader_cycles_total{status="success"} 1`))
}

func TestRouter_Performance(t *testing.T) {
	history := record.NewHistory(10)
	h := newTestRouter(t, &fakeTrader{ctx: state.New("demo", 1)}, history)

	rr := do(t, h, http.MethodGet, "/api/performance")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	for i, equity := range []float64{100, 105, 110} {
		require.NoError(t, history.Record(context.Background(), &contracts.CycleRecord{
			StrategyID: "demo",
			Sequence:   int64(i + 1),
			Status:     contracts.CycleSuccess,
			Equity:     equity,
		}))
	}

	rr = do(t, h, http.MethodGet, "/api/performance")
	require.Equal(t, http.StatusOK, rr.Code)

	var report audit.PerformanceReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 100.0, report.StartEquity)
	assert.InDelta(t, 0.1, report.TotalReturn, 1e-9)
	assert.Equal(t, 3, report.Cycles)
}

func TestMiddleware_RecoversAndLogsStatus(t *testing.T) {
	var buf strings.Builder
	log := logger.NewWithWriter(&buf, "debug")

	r := mux.NewRouter()
	r.HandleFunc("/boom/{id}", func(http.ResponseWriter, *http.Request) { panic("bad state") })
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom/7", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rr.Body.String())

	out := buf.String()
	assert.Contains(t, out, "Panic recovered")
	assert.Contains(t, out, `"route":"/boom/{id}"`)
	assert.Contains(t, out, `"status":500`)
}
