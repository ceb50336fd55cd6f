package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlexplorer/internal/testing/fakedb"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(maxSize int) sqlexplorer.PoolConfig {
	return sqlexplorer.PoolConfig{
		MinSize:            0,
		MaxSize:            maxSize,
		AcquireTimeout:     time.Second,
		ValidationInterval: time.Minute,
		MaxLifetime:        time.Hour,
	}
}

func newTestPool(t *testing.T, cfg sqlexplorer.PoolConfig, dialer *fakedb.Dialer, opts ...Option) *Pool {
	t.Helper()
	p, err := New(cfg, dialer, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func waitForWaiters(t *testing.T, p *Pool, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return p.Stats().Waiting == n }, time.Second, time.Millisecond)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(sqlexplorer.PoolConfig{MaxSize: 0}, fakedb.NewDialer())
	assert.ErrorIs(t, err, sqlexplorer.ErrConfiguration)

	_, err = New(testConfig(1), nil)
	assert.ErrorIs(t, err, sqlexplorer.ErrConfiguration)
}

func TestAcquire_DialsLazilyAndReuses(t *testing.T) {
	dialer := fakedb.NewDialer()
	p := newTestPool(t, testConfig(2), dialer)
	ctx := context.Background()

	assert.Equal(t, 0, dialer.Dials())

	h1, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(h1)

	h2, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer p.Release(h2)

	assert.Same(t, h1, h2)
	assert.Equal(t, 1, dialer.Dials())
	assert.EqualValues(t, 2, h2.UseCount())

	stats := p.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 1, stats.InUse)
	assert.EqualValues(t, 2, stats.Acquisitions)
	assert.EqualValues(t, 1, stats.Dials)
}

func TestAcquire_WaitersAreServedFIFO(t *testing.T) {
	p := newTestPool(t, testConfig(1), fakedb.NewDialer())
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h, err := p.Acquire(ctx)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			p.Release(h)
		}(i)
		waitForWaiters(t, p, i)
	}

	p.Release(held)
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order)
	assert.EqualValues(t, 3, p.Stats().Waits)
	assert.Equal(t, 1, p.Stats().Size)
}

func TestAcquire_TimeoutIsPoolExhausted(t *testing.T) {
	cfg := testConfig(1)
	cfg.AcquireTimeout = 20 * time.Millisecond
	p := newTestPool(t, cfg, fakedb.NewDialer())

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sqlexplorer.ErrPoolExhausted)

	stats := p.Stats()
	assert.EqualValues(t, 1, stats.Timeouts)
	assert.Equal(t, 0, stats.Waiting)

	// The handle released after the waiter gave up goes back to the idle set.
	p.Release(held)
	assert.Equal(t, 1, p.Stats().Idle)
}

func TestAcquire_CallerCancellationIsNotExhaustion(t *testing.T) {
	p := newTestPool(t, testConfig(1), fakedb.NewDialer())
	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(held)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for p.Stats().Waiting == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, sqlexplorer.ErrPoolExhausted)
}

func TestAcquire_DoneContextGetsNoIdleHandle(t *testing.T) {
	dialer := fakedb.NewDialer()
	p := newTestPool(t, testConfig(2), dialer)
	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(h)
	require.Equal(t, 1, p.Stats().Idle)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(canceled)
	assert.ErrorIs(t, err, context.Canceled)

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err = p.Acquire(expired)
	assert.ErrorIs(t, err, sqlexplorer.ErrPoolExhausted)

	s := p.Stats()
	assert.Equal(t, 1, s.Idle, "idle handle stays in the pool")
	assert.Equal(t, int64(1), s.Acquisitions)
	assert.Equal(t, int64(2), s.Timeouts)
	assert.Equal(t, 1, dialer.Dials())
}

func TestGiveBack_LateHandleGoesToNextWaiter(t *testing.T) {
	p := newTestPool(t, testConfig(1), fakedb.NewDialer())
	h, err := p.Acquire(context.Background())
	require.NoError(t, err)

	// Simulate a handle that reached a waiter just after it timed out.
	p.giveBack(grant{handle: h})

	stats := p.Stats()
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 0, stats.InUse)

	next, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, h, next)
	p.Release(next)
}

func TestGiveBack_LatePermitShrinksPool(t *testing.T) {
	p := newTestPool(t, testConfig(1), fakedb.NewDialer())

	p.mu.Lock()
	p.size++ // slot reserved for the waiter that gave up
	p.mu.Unlock()

	p.giveBack(grant{permit: true})
	assert.Equal(t, 0, p.Stats().Size)
}

func TestAcquire_StaleHandleIsValidated(t *testing.T) {
	clock := newFakeClock()
	dialer := fakedb.NewDialer()
	p := newTestPool(t, testConfig(1), dialer, WithClock(clock.Now))
	ctx := context.Background()

	h, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(h)

	h, err = p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(h)
	assert.Equal(t, 0, dialer.Sessions()[0].Pings(), "fresh handle must not be pinged")

	clock.Advance(2 * time.Minute)
	h, err = p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(h)
	assert.Equal(t, 1, dialer.Sessions()[0].Pings())
}

func TestAcquire_BrokenHandleIsReplaced(t *testing.T) {
	clock := newFakeClock()
	dialer := fakedb.NewDialer()
	p := newTestPool(t, testConfig(1), dialer, WithClock(clock.Now))
	ctx := context.Background()

	h, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(h)

	first := dialer.Sessions()[0]
	first.SetPingError(errors.New("connection reset by peer"))
	clock.Advance(2 * time.Minute)

	h2, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer p.Release(h2)

	assert.NotSame(t, h, h2)
	assert.True(t, first.Closed())
	assert.Equal(t, 2, dialer.Dials())

	stats := p.Stats()
	assert.EqualValues(t, 1, stats.ValidationFailures)
	assert.Equal(t, 1, stats.Size)
}

func TestRelease_RetiresExpiredHandle(t *testing.T) {
	clock := newFakeClock()
	dialer := fakedb.NewDialer()
	p := newTestPool(t, testConfig(2), dialer, WithClock(clock.Now))

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	p.Release(h)

	stats := p.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, 0, stats.Idle)
	assert.EqualValues(t, 1, stats.Retirements)
	assert.True(t, dialer.Sessions()[0].Closed())
}

func TestRelease_ExpiredHandleGivesWaiterAFreshDial(t *testing.T) {
	clock := newFakeClock()
	dialer := fakedb.NewDialer()
	p := newTestPool(t, testConfig(1), dialer, WithClock(clock.Now))

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	got := make(chan *Handle, 1)
	go func() {
		h, err := p.Acquire(context.Background())
		assert.NoError(t, err)
		got <- h
	}()
	waitForWaiters(t, p, 1)

	clock.Advance(2 * time.Hour)
	p.Release(held)

	h := <-got
	require.NotNil(t, h)
	assert.NotSame(t, held, h)
	assert.Equal(t, 2, dialer.Dials())
	assert.Equal(t, 1, p.Stats().Size)
	p.Release(h)
}

func TestDiscard_FreesSlotForWaiter(t *testing.T) {
	dialer := fakedb.NewDialer()
	p := newTestPool(t, testConfig(1), dialer)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	got := make(chan error, 1)
	go func() {
		h, err := p.Acquire(context.Background())
		if err == nil {
			p.Release(h)
		}
		got <- err
	}()
	waitForWaiters(t, p, 1)

	p.Discard(held)
	require.NoError(t, <-got)

	assert.True(t, dialer.Sessions()[0].Closed())
	assert.EqualValues(t, 1, p.Stats().Discards)
	assert.Equal(t, 2, dialer.Dials())
}

func TestRelease_TwiceIsNoop(t *testing.T) {
	p := newTestPool(t, testConfig(2), fakedb.NewDialer())
	h, err := p.Acquire(context.Background())
	require.NoError(t, err)

	p.Release(h)
	p.Release(h)
	p.Discard(h)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 1, stats.Size)
}

func TestAcquire_DialFailureFreesSlot(t *testing.T) {
	dialErr := errors.New("mssql: login error: Login failed for user 'app'")
	dialer := fakedb.NewDialer().FailDials(dialErr)
	p := newTestPool(t, testConfig(1), dialer)

	_, err := p.Acquire(context.Background())
	require.ErrorIs(t, err, dialErr)
	assert.Equal(t, 0, p.Stats().Size)
	assert.EqualValues(t, 1, p.Stats().DialFailures)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(h)
}

func TestWarm_DialsMinSize(t *testing.T) {
	cfg := testConfig(4)
	cfg.MinSize = 2
	dialer := fakedb.NewDialer()
	p := newTestPool(t, cfg, dialer)

	require.NoError(t, p.Warm(context.Background()))
	stats := p.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 2, stats.Idle)
	assert.Equal(t, 2, dialer.Dials())
}

func TestShutdown_DrainsAndRejects(t *testing.T) {
	dialer := fakedb.NewDialer()
	p, err := New(testConfig(2), dialer)
	require.NoError(t, err)
	ctx := context.Background()

	busy, err := p.Acquire(ctx)
	require.NoError(t, err)
	extra, err := p.Acquire(ctx)
	require.NoError(t, err)

	waiterErr := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx)
		waiterErr <- err
	}()
	waitForWaiters(t, p, 1)

	done := make(chan error, 1)
	go func() { done <- p.Shutdown(ctx) }()

	assert.ErrorIs(t, <-waiterErr, sqlexplorer.ErrPoolClosed)

	select {
	case <-done:
		t.Fatal("Shutdown returned while handles were in flight")
	case <-time.After(20 * time.Millisecond):
	}

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, sqlexplorer.ErrPoolClosed)

	p.Release(busy)
	p.Discard(extra)
	require.NoError(t, <-done)

	for _, s := range dialer.Sessions() {
		assert.True(t, s.Closed(), "session %d left open", s.ID())
	}
	assert.True(t, dialer.Closed())
	assert.Equal(t, 0, p.Stats().Size)
	assert.True(t, p.Closed())
}

func TestShutdown_ClosesIdleHandles(t *testing.T) {
	cfg := testConfig(3)
	cfg.MinSize = 3
	dialer := fakedb.NewDialer()
	p, err := New(cfg, dialer)
	require.NoError(t, err)
	require.NoError(t, p.Warm(context.Background()))

	require.NoError(t, p.Shutdown(context.Background()))

	require.Len(t, dialer.Sessions(), 3)
	for _, s := range dialer.Sessions() {
		assert.True(t, s.Closed())
	}
	assert.ErrorIs(t, p.Warm(context.Background()), sqlexplorer.ErrPoolClosed)
}

func TestShutdown_HonoursContext(t *testing.T) {
	p, err := New(testConfig(1), fakedb.NewDialer())
	require.NoError(t, err)

	h, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	p.Release(h)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_ConcurrentUseNeverExceedsMaxSize(t *testing.T) {
	const maxSize = 3
	dialer := fakedb.NewDialer()
	cfg := testConfig(maxSize)
	cfg.AcquireTimeout = 5 * time.Second
	p := newTestPool(t, cfg, dialer)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		current int
		peak    int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				h, err := p.Acquire(context.Background())
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()
				time.Sleep(100 * time.Microsecond)
				mu.Lock()
				current--
				mu.Unlock()
				p.Release(h)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, maxSize)
	assert.LessOrEqual(t, dialer.Dials(), maxSize)
	assert.EqualValues(t, 200, p.Stats().Acquisitions)
}
