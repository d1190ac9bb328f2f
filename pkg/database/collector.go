package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector exports pgxpool statistics at scrape time
type PoolCollector struct {
	stat func() *pgxpool.Stat

	acquired    *prometheus.Desc
	idle        *prometheus.Desc
	total       *prometheus.Desc
	max         *prometheus.Desc
	acquires    *prometheus.Desc
	emptyWaits  *prometheus.Desc
	acquireSecs *prometheus.Desc
}

// NewPoolCollector registers nothing by itself; the caller owns the registry
func NewPoolCollector(db *DB) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("fwtrader_db_"+name, help, nil, nil)
	}
	return &PoolCollector{
		stat:        db.Pool.Stat,
		acquired:    desc("acquired_conns", "Connections currently in use"),
		idle:        desc("idle_conns", "Idle connections"),
		total:       desc("total_conns", "Open connections"),
		max:         desc("max_conns", "Pool size limit"),
		acquires:    desc("acquires_total", "Successful acquires"),
		emptyWaits:  desc("empty_acquires_total", "Acquires that waited for a connection"),
		acquireSecs: desc("acquire_seconds_total", "Cumulative time spent acquiring"),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquires
	ch <- c.emptyWaits
	ch <- c.acquireSecs
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyWaits, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireSecs, prometheus.CounterValue, s.AcquireDuration().Seconds())
}
