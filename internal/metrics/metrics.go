package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wonny/fwtrader/internal/contracts"
)

// Recorder exports cycle outcomes as Prometheus metrics
// nil Recorder는 no-op
type Recorder struct {
	cycles         *prometheus.CounterVec
	duration       prometheus.Histogram
	intents        *prometheus.CounterVec
	signalFailures prometheus.Counter
	equity         *prometheus.GaugeVec
	cash           *prometheus.GaugeVec
}

// New registers the trader metrics on reg
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fwtrader_cycles_total",
				Help: "Total number of cycles by final status",
			},
			[]string{"status"},
		),
		duration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fwtrader_cycle_duration_seconds",
				Help:    "Wall time of a cycle in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		intents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fwtrader_intents_total",
				Help: "Total number of trade intents by side and result status",
			},
			[]string{"side", "status"},
		),
		signalFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fwtrader_signal_failures_total",
				Help: "Total number of per-asset signal failures",
			},
		),
		equity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fwtrader_equity",
				Help: "Strategy equity at the end of the last cycle",
			},
			[]string{"strategy"},
		),
		cash: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fwtrader_cash",
				Help: "Strategy cash at the end of the last cycle",
			},
			[]string{"strategy"},
		),
	}
}

// ObserveCycle records one finished cycle
func (r *Recorder) ObserveCycle(rec *contracts.CycleRecord) {
	if r == nil || rec == nil {
		return
	}

	r.cycles.WithLabelValues(string(rec.Status)).Inc()
	r.duration.Observe(rec.Duration().Seconds())
	r.signalFailures.Add(float64(len(rec.SignalFailures)))

	for _, res := range rec.Results {
		r.intents.WithLabelValues(string(res.Side), string(res.Status)).Inc()
	}

	// 실패 사이클은 Context를 커밋하지 않으므로 잔고 게이지 유지
	if rec.Status != contracts.CycleFailed {
		r.equity.WithLabelValues(rec.StrategyID).Set(rec.Equity)
		r.cash.WithLabelValues(rec.StrategyID).Set(rec.Cash)
	}
}
