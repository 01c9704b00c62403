package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatsCollector exports pgxpool statistics to Prometheus. Register it
// once after the pool is built; every scrape reads a fresh pgxpool.Stat
// snapshot, so the collector holds no state of its own.
type PoolStatsCollector struct {
	pool *pgxpool.Pool

	totalConns      *prometheus.Desc
	idleConns       *prometheus.Desc
	acquiredConns   *prometheus.Desc
	maxConns        *prometheus.Desc
	acquireTotal    *prometheus.Desc
	emptyAcquires   *prometheus.Desc
	canceledTotal   *prometheus.Desc
	acquireDuration *prometheus.Desc
}

// NewPoolStatsCollector builds a collector for pool.
func NewPoolStatsCollector(pool *pgxpool.Pool) *PoolStatsCollector {
	return &PoolStatsCollector{
		pool: pool,
		totalConns: prometheus.NewDesc(
			"db_pool_total_conns", "Total connections currently in the pool", nil, nil),
		idleConns: prometheus.NewDesc(
			"db_pool_idle_conns", "Idle connections currently in the pool", nil, nil),
		acquiredConns: prometheus.NewDesc(
			"db_pool_acquired_conns", "Connections currently checked out", nil, nil),
		maxConns: prometheus.NewDesc(
			"db_pool_max_conns", "Configured pool ceiling", nil, nil),
		acquireTotal: prometheus.NewDesc(
			"db_pool_acquire_total", "Cumulative successful acquires", nil, nil),
		emptyAcquires: prometheus.NewDesc(
			"db_pool_empty_acquire_total", "Acquires that had to wait for a free connection", nil, nil),
		canceledTotal: prometheus.NewDesc(
			"db_pool_canceled_acquire_total", "Acquires canceled by the caller's context", nil, nil),
		acquireDuration: prometheus.NewDesc(
			"db_pool_acquire_duration_seconds_total", "Cumulative time spent acquiring connections", nil, nil),
	}
}

var _ prometheus.Collector = (*PoolStatsCollector)(nil)

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalConns
	ch <- c.idleConns
	ch <- c.acquiredConns
	ch <- c.maxConns
	ch <- c.acquireTotal
	ch <- c.emptyAcquires
	ch <- c.canceledTotal
	ch <- c.acquireDuration
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stat()
	ch <- prometheus.MustNewConstMetric(c.totalConns, prometheus.GaugeValue, float64(s.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idleConns, prometheus.GaugeValue, float64(s.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquiredConns, prometheus.GaugeValue, float64(s.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.acquireTotal, prometheus.CounterValue, float64(s.AcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(s.EmptyAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.canceledTotal, prometheus.CounterValue, float64(s.CanceledAcquireCount()))
	ch <- prometheus.MustNewConstMetric(c.acquireDuration, prometheus.CounterValue, s.AcquireDuration().Seconds())
}
