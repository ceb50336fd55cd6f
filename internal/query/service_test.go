package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlexplorer/internal/cache"
	"github.com/vvka-141/sqlexplorer/internal/pool"
	"github.com/vvka-141/sqlexplorer/internal/testing/fakedb"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

var (
	errDeadlock = errors.New("deadlock victim")
	errSyntax   = errors.New("incorrect syntax near 'FORM'")
)

// stubClassifier treats errDeadlock as transient and everything else as permanent.
type stubClassifier struct{}

func (stubClassifier) Classify(err error) sqlexplorer.ErrorKind {
	switch {
	case errors.Is(err, errDeadlock):
		return sqlexplorer.KindTransientExecution
	case errors.Is(err, sqlexplorer.ErrPoolExhausted):
		return sqlexplorer.KindPoolExhausted
	case errors.Is(err, sqlexplorer.ErrPoolClosed):
		return sqlexplorer.KindPoolClosed
	case errors.Is(err, context.Canceled):
		return sqlexplorer.KindCanceled
	}
	return sqlexplorer.KindPermanentExecution
}

type recordingObserver struct {
	mu       sync.Mutex
	finished []*Outcome
	errs     []error
	retries  []sqlexplorer.ErrorKind
}

func (r *recordingObserver) QueryFinished(o *Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, o)
	r.errs = append(r.errs, err)
}

func (r *recordingObserver) Retried(kind sqlexplorer.ErrorKind, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries = append(r.retries, kind)
}

func testPolicy(maxAttempts int) sqlexplorer.RetryPolicy {
	return sqlexplorer.RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseBackoff: time.Millisecond,
		Multiplier:  2,
		MaxBackoff:  10 * time.Millisecond,
		Retryable:   map[sqlexplorer.ErrorKind]bool{sqlexplorer.KindTransientExecution: true},
	}
}

func newTestService(t *testing.T, dialer *fakedb.Dialer, maxSize int, c cache.Cache, opts ...Option) *Service {
	t.Helper()
	p, err := pool.New(sqlexplorer.PoolConfig{
		MaxSize:            maxSize,
		AcquireTimeout:     2 * time.Second,
		ValidationInterval: time.Minute,
		MaxLifetime:        time.Hour,
	}, dialer)
	require.NoError(t, err)

	opts = append([]Option{WithClassifier(stubClassifier{}), WithRetryPolicy(testPolicy(3))}, opts...)
	svc, err := New(p, c, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})
	return svc
}

func TestNew_RequiresPool(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, sqlexplorer.ErrConfiguration)
}

func TestNew_RejectsInvalidPolicy(t *testing.T) {
	p, err := pool.New(sqlexplorer.PoolConfig{MaxSize: 1}, fakedb.NewDialer())
	require.NoError(t, err)

	_, err = New(p, nil, WithRetryPolicy(sqlexplorer.RetryPolicy{MaxAttempts: 0, Multiplier: 2}))
	assert.ErrorIs(t, err, sqlexplorer.ErrConfiguration)
}

func TestRun_RepeatedQueryServedFromCache(t *testing.T) {
	dialer := fakedb.NewDialer()
	svc := newTestService(t, dialer, 2, cache.NewLRU(16, time.Minute))
	ctx := context.Background()
	req := sqlexplorer.QueryRequest{Statement: "SELECT 1"}

	first, err := svc.Execute(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, first.Attempts)

	second, err := svc.Execute(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 0, second.Attempts)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Result.Rows(), second.Result.Rows())

	assert.Equal(t, int64(1), svc.PoolStats().Acquisitions)
	assert.Equal(t, 1, dialer.Queries())
	assert.Equal(t, int64(1), svc.CacheStats().Hits)
}

func TestRun_ModificationIsNeverCached(t *testing.T) {
	dialer := fakedb.NewDialer()
	lru := cache.NewLRU(16, time.Minute)
	svc := newTestService(t, dialer, 1, lru)
	ctx := context.Background()
	req := sqlexplorer.QueryRequest{Statement: "INSERT INTO audit(msg) VALUES (@p1)", Params: []any{"login"}}

	for i := 0; i < 2; i++ {
		out, err := svc.Execute(ctx, req)
		require.NoError(t, err)
		assert.False(t, out.Cached)
		assert.False(t, out.LookedUp)
		assert.Equal(t, 1, out.Attempts)
	}

	assert.Equal(t, 2, dialer.Queries())
	assert.Equal(t, 0, lru.Len())
	assert.Equal(t, cache.Stats{}, svc.CacheStats())
}

func TestRun_ReadAfterModificationStillCached(t *testing.T) {
	dialer := fakedb.NewDialer()
	svc := newTestService(t, dialer, 1, cache.NewLRU(16, time.Minute))
	ctx := context.Background()

	_, err := svc.Run(ctx, sqlexplorer.QueryRequest{Statement: "-- nightly\nDELETE FROM audit"})
	require.NoError(t, err)

	read := sqlexplorer.QueryRequest{Statement: "SELECT COUNT(*) FROM audit"}
	first, err := svc.Execute(ctx, read)
	require.NoError(t, err)
	assert.True(t, first.LookedUp)
	assert.False(t, first.Cached)

	second, err := svc.Execute(ctx, read)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 2, dialer.Queries())
}

func TestRun_ParamsArePartOfTheKey(t *testing.T) {
	dialer := fakedb.NewDialer()
	svc := newTestService(t, dialer, 1, cache.NewLRU(16, time.Minute))
	ctx := context.Background()

	_, err := svc.Run(ctx, sqlexplorer.QueryRequest{Statement: "SELECT @p1", Params: []any{int64(1)}})
	require.NoError(t, err)
	_, err = svc.Run(ctx, sqlexplorer.QueryRequest{Statement: "SELECT @p1", Params: []any{int64(2)}})
	require.NoError(t, err)

	assert.Equal(t, 2, dialer.Queries())
}

func TestRun_MaxSizeTwoThreeConcurrentCallers(t *testing.T) {
	var active, peak int32
	dialer := fakedb.NewDialer().OnQuery(func(ctx context.Context, _ *fakedb.Session, statement string, _ []any) (*sqlexplorer.ResultSet, error) {
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		return fakedb.Scalar("q", statement), nil
	})
	svc := newTestService(t, dialer, 2, cache.NewLRU(16, time.Minute))

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Run(context.Background(), sqlexplorer.QueryRequest{
				Statement: fmt.Sprintf("SELECT %d", i),
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 2, dialer.Dials())

	stats := svc.PoolStats()
	assert.Equal(t, int64(3), stats.Acquisitions)
	assert.GreaterOrEqual(t, stats.Waits, int64(1))
	assert.Equal(t, 0, stats.InUse)
}

func TestRun_PermanentErrorSingleAttempt(t *testing.T) {
	dialer := fakedb.NewDialer().FailNext("SELECT * FORM t", errSyntax)
	c := cache.NewLRU(16, time.Minute)
	svc := newTestService(t, dialer, 1, c)

	_, err := svc.Run(context.Background(), sqlexplorer.QueryRequest{Statement: "SELECT * FORM t"})
	require.Error(t, err)

	var qerr *sqlexplorer.QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, sqlexplorer.KindPermanentExecution, qerr.Kind)
	assert.Equal(t, 1, qerr.Attempts)
	assert.ErrorIs(t, err, sqlexplorer.ErrPermanentExecution)
	assert.ErrorIs(t, err, errSyntax)
	assert.Equal(t, 1, dialer.Queries())
	assert.Equal(t, 0, c.Len())
}

func TestRun_TransientErrorExhaustsAttempts(t *testing.T) {
	dialer := fakedb.NewDialer().FailNext("SELECT 1", errDeadlock, errDeadlock, errDeadlock)
	c := cache.NewLRU(16, time.Minute)
	obs := &recordingObserver{}
	svc := newTestService(t, dialer, 1, c, WithObserver(obs))

	_, err := svc.Run(context.Background(), sqlexplorer.QueryRequest{Statement: "SELECT 1"})
	require.Error(t, err)

	var qerr *sqlexplorer.QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, sqlexplorer.KindTransientExecution, qerr.Kind)
	assert.Equal(t, 3, qerr.Attempts)
	assert.Equal(t, 3, dialer.Queries())
	assert.Equal(t, 0, c.Len())

	// every failed attempt discards its session
	assert.Equal(t, int64(3), svc.PoolStats().Discards)
	assert.Equal(t, 3, dialer.Dials())

	assert.Equal(t, []sqlexplorer.ErrorKind{
		sqlexplorer.KindTransientExecution, sqlexplorer.KindTransientExecution,
	}, obs.retries)
	require.Len(t, obs.errs, 1)
	assert.Error(t, obs.errs[0])
}

func TestRun_TransientThenSuccess(t *testing.T) {
	dialer := fakedb.NewDialer().FailNext("SELECT 1", errDeadlock)
	svc := newTestService(t, dialer, 1, cache.NewLRU(16, time.Minute))

	out, err := svc.Execute(context.Background(), sqlexplorer.QueryRequest{Statement: "SELECT 1"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Attempts)
	assert.False(t, out.Cached)
}

func TestRun_ForceRefreshBypassesReadButPopulates(t *testing.T) {
	calls := 0
	dialer := fakedb.NewDialer().OnQuery(func(context.Context, *fakedb.Session, string, []any) (*sqlexplorer.ResultSet, error) {
		calls++
		return fakedb.Scalar("n", int64(calls)), nil
	})
	svc := newTestService(t, dialer, 1, cache.NewLRU(16, time.Minute))
	ctx := context.Background()
	req := sqlexplorer.QueryRequest{Statement: "SELECT COUNT(*) FROM orders"}

	_, err := svc.Run(ctx, req)
	require.NoError(t, err)

	req.ForceRefresh = true
	out, err := svc.Execute(ctx, req)
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.False(t, out.LookedUp)
	assert.Equal(t, int64(2), out.Result.Value(0, 0))

	req.ForceRefresh = false
	out, err = svc.Execute(ctx, req)
	require.NoError(t, err)
	assert.True(t, out.Cached)
	assert.Equal(t, int64(2), out.Result.Value(0, 0))
}

func TestRun_TTLOverride(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	dialer := fakedb.NewDialer()
	svc := newTestService(t, dialer, 1, cache.NewLRU(16, time.Hour, cache.WithClock(clock)))
	ctx := context.Background()
	req := sqlexplorer.QueryRequest{Statement: "SELECT 1", TTL: time.Second}

	_, err := svc.Run(ctx, req)
	require.NoError(t, err)

	now = now.Add(1500 * time.Millisecond)
	out, err := svc.Execute(ctx, req)
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.Equal(t, 2, dialer.Queries())
}

func TestRun_NoCache(t *testing.T) {
	dialer := fakedb.NewDialer()
	svc := newTestService(t, dialer, 1, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		out, err := svc.Execute(ctx, sqlexplorer.QueryRequest{Statement: "SELECT 1"})
		require.NoError(t, err)
		assert.False(t, out.Cached)
	}
	assert.Equal(t, 2, dialer.Queries())
	assert.Equal(t, cache.Stats{}, svc.CacheStats())

	svc.ClearCache(ctx)
	svc.Invalidate(ctx, sqlexplorer.QueryRequest{Statement: "SELECT 1"})
}

func TestRun_InvalidRequest(t *testing.T) {
	obs := &recordingObserver{}
	svc := newTestService(t, fakedb.NewDialer(), 1, nil, WithObserver(obs))

	_, err := svc.Run(context.Background(), sqlexplorer.QueryRequest{Statement: "   "})
	require.Error(t, err)
	assert.Equal(t, sqlexplorer.KindConfiguration, sqlexplorer.KindOf(err))
	assert.Equal(t, 0, sqlexplorer.AttemptsOf(err))
	require.Len(t, obs.finished, 1)
	assert.Nil(t, obs.finished[0])
}

func TestRun_CanceledContext(t *testing.T) {
	svc := newTestService(t, fakedb.NewDialer().WithQueryDelay(time.Second), 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := svc.Run(ctx, sqlexplorer.QueryRequest{Statement: "WAITFOR DELAY '00:00:05'"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlexplorer.ErrCanceled)
}

func TestRun_AfterClose(t *testing.T) {
	svc := newTestService(t, fakedb.NewDialer(), 1, nil)
	require.NoError(t, svc.Close(context.Background()))

	_, err := svc.Run(context.Background(), sqlexplorer.QueryRequest{Statement: "SELECT 1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlexplorer.ErrPoolClosed)
	assert.Equal(t, 1, sqlexplorer.AttemptsOf(err))
}

func TestInvalidateAndClear(t *testing.T) {
	dialer := fakedb.NewDialer()
	svc := newTestService(t, dialer, 1, cache.NewLRU(16, time.Minute))
	ctx := context.Background()
	a := sqlexplorer.QueryRequest{Statement: "SELECT 1"}
	b := sqlexplorer.QueryRequest{Statement: "SELECT 2"}

	for _, r := range []sqlexplorer.QueryRequest{a, b} {
		_, err := svc.Run(ctx, r)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, svc.CacheStats().Entries)

	svc.Invalidate(ctx, a)
	assert.Equal(t, 1, svc.CacheStats().Entries)

	svc.ClearCache(ctx)
	assert.Equal(t, 0, svc.CacheStats().Entries)
}

func TestPing(t *testing.T) {
	dialer := fakedb.NewDialer()
	svc := newTestService(t, dialer, 1, nil)

	require.NoError(t, svc.Ping(context.Background()))

	dialer.Sessions()[0].SetPingError(errors.New("connection reset"))
	err := svc.Ping(context.Background())
	assert.ErrorIs(t, err, sqlexplorer.ErrTransientExecution)
	assert.Equal(t, int64(1), svc.PoolStats().Discards)
}

func TestObserver_CachedOutcome(t *testing.T) {
	obs := &recordingObserver{}
	svc := newTestService(t, fakedb.NewDialer(), 1, cache.NewLRU(4, time.Minute), WithObserver(obs))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Run(ctx, sqlexplorer.QueryRequest{Statement: "SELECT 1"})
		require.NoError(t, err)
	}

	require.Len(t, obs.finished, 2)
	assert.False(t, obs.finished[0].Cached)
	assert.True(t, obs.finished[1].Cached)
	assert.Nil(t, obs.errs[1])
}
