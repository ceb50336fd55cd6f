package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// statsCollector turns pool.Stats and cache.Stats snapshots into metrics at scrape time.
type statsCollector struct {
	src StatsSource

	poolSize     *prometheus.Desc
	poolIdle     *prometheus.Desc
	poolInUse    *prometheus.Desc
	poolWaiting  *prometheus.Desc
	poolEvents   *prometheus.Desc
	cacheEntries *prometheus.Desc
	cacheEvents  *prometheus.Desc
}

func newStatsCollector(src StatsSource) *statsCollector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}
	return &statsCollector{
		src:          src,
		poolSize:     desc("pool", "size", "Live handles plus dials in progress."),
		poolIdle:     desc("pool", "idle", "Idle handles."),
		poolInUse:    desc("pool", "in_use", "Handles checked out."),
		poolWaiting:  desc("pool", "waiting", "Callers queued in Acquire."),
		poolEvents:   desc("pool", "events_total", "Pool lifecycle events.", "event"),
		cacheEntries: desc("cache", "entries", "Entries in the in-process result cache."),
		cacheEvents:  desc("cache", "events_total", "Result cache bookkeeping events.", "event"),
	}
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.poolSize
	ch <- c.poolIdle
	ch <- c.poolInUse
	ch <- c.poolWaiting
	ch <- c.poolEvents
	ch <- c.cacheEntries
	ch <- c.cacheEvents
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	ps := c.src.PoolStats()
	ch <- prometheus.MustNewConstMetric(c.poolSize, prometheus.GaugeValue, float64(ps.Size))
	ch <- prometheus.MustNewConstMetric(c.poolIdle, prometheus.GaugeValue, float64(ps.Idle))
	ch <- prometheus.MustNewConstMetric(c.poolInUse, prometheus.GaugeValue, float64(ps.InUse))
	ch <- prometheus.MustNewConstMetric(c.poolWaiting, prometheus.GaugeValue, float64(ps.Waiting))
	for event, v := range map[string]int64{
		"acquisition":        ps.Acquisitions,
		"dial":               ps.Dials,
		"dial_failure":       ps.DialFailures,
		"wait":               ps.Waits,
		"timeout":            ps.Timeouts,
		"discard":            ps.Discards,
		"retirement":         ps.Retirements,
		"validation_failure": ps.ValidationFailures,
	} {
		ch <- prometheus.MustNewConstMetric(c.poolEvents, prometheus.CounterValue, float64(v), event)
	}

	cs := c.src.CacheStats()
	ch <- prometheus.MustNewConstMetric(c.cacheEntries, prometheus.GaugeValue, float64(cs.Entries))
	for event, v := range map[string]int64{
		"eviction":   cs.Evictions,
		"expiration": cs.Expirations,
		"error":      cs.Errors,
	} {
		ch <- prometheus.MustNewConstMetric(c.cacheEvents, prometheus.CounterValue, float64(v), event)
	}
}
