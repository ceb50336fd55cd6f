// Package metrics exposes query, cache, retry and pool activity as
// Prometheus metrics on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vvka-141/sqlexplorer/internal/cache"
	"github.com/vvka-141/sqlexplorer/internal/pool"
	"github.com/vvka-141/sqlexplorer/internal/query"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

const namespace = "sqlexplorer"

// Outcome label values for sqlexplorer_queries_total.
const (
	OutcomeExecuted = "executed"
	OutcomeCached   = "cached"
)

// Metrics implements query.Observer.
type Metrics struct {
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	attempts      prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	retries       *prometheus.CounterVec
}

var _ query.Observer = (*Metrics)(nil)

// New registers every collector on a fresh registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries by outcome: executed, cached, or the error kind.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Wall time of Execute, cache lookups included.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"cached"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_attempts",
			Help:      "Attempts used by queries that reached the database.",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried attempts by error kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.queries, m.queryDuration, m.attempts, m.cacheLookups, m.retries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry is the registry behind Handler, for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) QueryFinished(o *query.Outcome, err error) {
	if err != nil {
		m.queries.WithLabelValues(sqlexplorer.KindOf(err).String()).Inc()
		if o != nil {
			m.queryDuration.WithLabelValues("false").Observe(o.Elapsed.Seconds())
			m.attempts.Observe(float64(o.Attempts))
			if o.LookedUp {
				m.cacheLookups.WithLabelValues("miss").Inc()
			}
		}
		return
	}
	if o.Cached {
		m.queries.WithLabelValues(OutcomeCached).Inc()
		m.cacheLookups.WithLabelValues("hit").Inc()
		m.queryDuration.WithLabelValues("true").Observe(o.Elapsed.Seconds())
		return
	}
	m.queries.WithLabelValues(OutcomeExecuted).Inc()
	if o.LookedUp {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
	m.queryDuration.WithLabelValues("false").Observe(o.Elapsed.Seconds())
	m.attempts.Observe(float64(o.Attempts))
}

func (m *Metrics) Retried(kind sqlexplorer.ErrorKind, _ int, _ time.Duration) {
	m.retries.WithLabelValues(kind.String()).Inc()
}

// StatsSource is what the pool and cache collectors read from. *query.Service satisfies it.
type StatsSource interface {
	PoolStats() pool.Stats
	CacheStats() cache.Stats
}

// WatchService registers gauges and counters that read src on every scrape.
func (m *Metrics) WatchService(src StatsSource) {
	m.registry.MustRegister(newStatsCollector(src))
}
