package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolStats is a snapshot of the call log connection pool.
type PoolStats struct {
	Total    int32
	Idle     int32
	Acquired int32
	Max      int32
}

// DBPoolStatFunc reports pool statistics without this package importing
// pgxpool.
type DBPoolStatFunc func() PoolStats

type poolGauge struct {
	desc  *prometheus.Desc
	value func(PoolStats) int32
}

// dbPoolCollector exposes call log pool gauges on every scrape.
type dbPoolCollector struct {
	statFunc DBPoolStatFunc
	gauges   []poolGauge
}

// NewDBPoolCollector creates a collector that reads statFunc at scrape time.
func NewDBPoolCollector(statFunc DBPoolStatFunc) prometheus.Collector {
	labels := prometheus.Labels{"pool": "calls"}
	gauge := func(name, help string, value func(PoolStats) int32) poolGauge {
		return poolGauge{
			desc:  prometheus.NewDesc("pasteagent_db_pool_"+name, help, nil, labels),
			value: value,
		}
	}
	return &dbPoolCollector{
		statFunc: statFunc,
		gauges: []poolGauge{
			gauge("total_conns", "Connections currently open in the pool.", func(s PoolStats) int32 { return s.Total }),
			gauge("idle_conns", "Idle connections in the pool.", func(s PoolStats) int32 { return s.Idle }),
			gauge("acquired_conns", "Connections checked out of the pool.", func(s PoolStats) int32 { return s.Acquired }),
			gauge("max_conns", "Configured pool size limit.", func(s PoolStats) int32 { return s.Max }),
		},
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, g := range c.gauges {
		ch <- g.desc
	}
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.statFunc()
	for _, g := range c.gauges {
		ch <- prometheus.MustNewConstMetric(g.desc, prometheus.GaugeValue, float64(g.value(stats)))
	}
}
