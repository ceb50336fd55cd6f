package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlexplorer/internal/cache"
	"github.com/vvka-141/sqlexplorer/internal/pool"
	"github.com/vvka-141/sqlexplorer/internal/query"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

type stubStats struct {
	pool  pool.Stats
	cache cache.Stats
}

func (s stubStats) PoolStats() pool.Stats   { return s.pool }
func (s stubStats) CacheStats() cache.Stats { return s.cache }

func TestQueryFinished_CountsOutcomes(t *testing.T) {
	m := New()

	m.QueryFinished(&query.Outcome{LookedUp: true, Attempts: 1, Elapsed: 20 * time.Millisecond}, nil)
	m.QueryFinished(&query.Outcome{LookedUp: true, Cached: true, Elapsed: time.Millisecond}, nil)
	m.QueryFinished(&query.Outcome{LookedUp: true, Cached: true}, nil)
	m.QueryFinished(&query.Outcome{LookedUp: true, Attempts: 3}, &sqlexplorer.QueryError{
		Kind: sqlexplorer.KindTransientExecution, Attempts: 3, Err: errors.New("timeout"),
	})
	m.QueryFinished(nil, &sqlexplorer.QueryError{Kind: sqlexplorer.KindConfiguration, Err: errors.New("empty")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(OutcomeExecuted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues(OutcomeCached)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(sqlexplorer.KindTransientExecution.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(sqlexplorer.KindConfiguration.String())))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
}

func TestQueryFinished_UncachedRunIsNotAMiss(t *testing.T) {
	m := New()

	// ForceRefresh, a modification, or no cache at all: nothing was looked up.
	m.QueryFinished(&query.Outcome{Attempts: 1}, nil)
	m.QueryFinished(&query.Outcome{Attempts: 2}, &sqlexplorer.QueryError{
		Kind: sqlexplorer.KindPermanentExecution, Attempts: 2, Err: errors.New("syntax"),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues(OutcomeExecuted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
}

func TestRetried(t *testing.T) {
	m := New()
	m.Retried(sqlexplorer.KindTransientExecution, 1, time.Second)
	m.Retried(sqlexplorer.KindTransientExecution, 2, 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.retries.WithLabelValues(sqlexplorer.KindTransientExecution.String())))
}

func TestWatchService(t *testing.T) {
	m := New()
	m.WatchService(stubStats{
		pool:  pool.Stats{Size: 2, Idle: 1, InUse: 1, Acquisitions: 7, Discards: 1},
		cache: cache.Stats{Entries: 4, Evictions: 2},
	})

	expected := `
# HELP sqlexplorer_pool_in_use Handles checked out.
# TYPE sqlexplorer_pool_in_use gauge
sqlexplorer_pool_in_use 1
# HELP sqlexplorer_cache_entries Entries in the in-process result cache.
# TYPE sqlexplorer_cache_entries gauge
sqlexplorer_cache_entries 4
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"sqlexplorer_pool_in_use", "sqlexplorer_cache_entries"))
}

func TestHandler(t *testing.T) {
	m := New()
	m.QueryFinished(&query.Outcome{Attempts: 1}, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sqlexplorer_queries_total{outcome="executed"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
