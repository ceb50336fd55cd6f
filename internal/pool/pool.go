package pool

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vvka-141/sqlexplorer/internal/logging"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Stats is a point-in-time snapshot of pool state and lifetime counters.
type Stats struct {
	Size    int // live handles plus dials in progress
	Idle    int
	InUse   int
	Waiting int

	Acquisitions       int64
	Dials              int64
	DialFailures       int64
	Waits              int64
	Timeouts           int64
	Discards           int64
	Retirements        int64
	ValidationFailures int64
}

// grant is what a queued Acquire receives: a handle, a permit to dial into a
// freed slot, or an error.
type grant struct {
	handle *Handle
	permit bool
	err    error
}

type waiter struct {
	ch chan grant // buffered, written once under p.mu
}

// Pool is a bounded pool of database sessions with FIFO waiters.
// All state is guarded by mu; dials and pings run without holding it.
type Pool struct {
	cfg    sqlexplorer.PoolConfig
	dialer sqlexplorer.Dialer
	logger sqlexplorer.Logger
	now    func() time.Time

	mu      sync.Mutex
	idle    []*Handle
	size    int
	inUse   int
	waiters list.List
	closed  bool
	drained chan struct{}
	stats   Stats

	dialerOnce sync.Once
	dialerErr  error
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for pool events.
func WithLogger(l sqlexplorer.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// New creates an empty pool. Sessions are dialed lazily; call Warm to pre-dial MinSize.
func New(cfg sqlexplorer.PoolConfig, dialer sqlexplorer.Dialer, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dialer == nil {
		return nil, fmt.Errorf("dialer is required: %w", sqlexplorer.ErrConfiguration)
	}
	p := &Pool{
		cfg:     cfg,
		dialer:  dialer,
		logger:  logging.NewNullLogger(),
		now:     time.Now,
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the pool configuration.
func (p *Pool) Config() sqlexplorer.PoolConfig { return p.cfg }

// Acquire returns a healthy handle, dialing one if the pool has room, or
// queues the caller behind earlier waiters. AcquireTimeout applies on top of ctx.
// Fails with ErrPoolExhausted on timeout and ErrPoolClosed after Shutdown.
func (p *Pool) Acquire(ctx context.Context) (*Handle, error) {
	if p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("acquire: %w", sqlexplorer.ErrPoolClosed)
	}
	if ctx.Err() != nil {
		p.stats.Timeouts++
		p.mu.Unlock()
		return nil, p.waitError(ctx)
	}
	p.stats.Acquisitions++

	if n := len(p.idle); n > 0 {
		h := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.checkoutLocked(h)
		p.mu.Unlock()
		return p.prepare(ctx, h)
	}

	if p.size < p.cfg.MaxSize {
		p.size++
		p.mu.Unlock()
		return p.dialInto(ctx)
	}

	w := &waiter{ch: make(chan grant, 1)}
	elem := p.waiters.PushBack(w)
	p.stats.Waits++
	p.mu.Unlock()

	select {
	case g := <-w.ch:
		return p.accept(ctx, g)
	case <-ctx.Done():
	}

	p.mu.Lock()
	var late *grant
	select {
	case g := <-w.ch:
		late = &g
	default:
		p.waiters.Remove(elem)
	}
	p.stats.Timeouts++
	p.mu.Unlock()

	if late != nil {
		p.giveBack(*late)
	}
	return nil, p.waitError(ctx)
}

func (p *Pool) waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("acquire: %w", ctx.Err())
	}
	return fmt.Errorf("no connection available within %v (max size %d): %w",
		p.cfg.AcquireTimeout, p.cfg.MaxSize, sqlexplorer.ErrPoolExhausted)
}

// accept turns a grant received by a waiter into a handle.
func (p *Pool) accept(ctx context.Context, g grant) (*Handle, error) {
	switch {
	case g.err != nil:
		return nil, g.err
	case g.handle != nil:
		return p.prepare(ctx, g.handle)
	default:
		return p.dialInto(ctx)
	}
}

// giveBack returns a grant that arrived after its waiter gave up.
func (p *Pool) giveBack(g grant) {
	switch {
	case g.handle != nil:
		p.Release(g.handle)
	case g.permit:
		p.mu.Lock()
		p.freeSlotLocked()
		p.mu.Unlock()
	}
}

// prepare validates a checked-out handle, replacing it in the same slot when
// it is broken or past its lifetime.
func (p *Pool) prepare(ctx context.Context, h *Handle) (*Handle, error) {
	now := p.now()
	if h.expired(now, p.cfg.MaxLifetime) {
		p.logger.Verbose("pool: retiring expired handle %s", h.ID())
		p.retire(h, func(s *Stats) { s.Retirements++ })
		return p.dialInto(ctx)
	}
	p.mu.Lock()
	stale := h.stale(now, p.cfg.ValidationInterval)
	p.mu.Unlock()
	if !stale {
		return h, nil
	}
	if p.Validate(ctx, h) {
		return h, nil
	}
	p.logger.Verbose("pool: handle %s failed validation, dialing a replacement", h.ID())
	p.retire(h, func(s *Stats) { s.ValidationFailures++ })
	return p.dialInto(ctx)
}

// retire closes a checked-out handle but keeps its slot reserved for the caller.
func (p *Pool) retire(h *Handle, count func(*Stats)) {
	p.mu.Lock()
	h.inUse = false
	p.inUse--
	count(&p.stats)
	p.mu.Unlock()
	p.closeSession(h)
}

// dialInto dials a session into a slot already counted in size.
func (p *Pool) dialInto(ctx context.Context) (*Handle, error) {
	session, err := p.dialer.Dial(ctx)

	p.mu.Lock()
	if err != nil {
		p.stats.DialFailures++
		p.freeSlotLocked()
		p.mu.Unlock()
		return nil, fmt.Errorf("dial: %w", err)
	}
	if p.closed {
		p.freeSlotLocked()
		p.mu.Unlock()
		_ = session.Close()
		return nil, fmt.Errorf("acquire: %w", sqlexplorer.ErrPoolClosed)
	}
	now := p.now()
	h := &Handle{
		id:            uuid.New(),
		session:       session,
		pool:          p,
		createdAt:     now,
		lastValidated: now,
	}
	p.stats.Dials++
	p.checkoutLocked(h)
	p.mu.Unlock()

	p.logger.Verbose("pool: dialed handle %s", h.ID())
	return h, nil
}

func (p *Pool) checkoutLocked(h *Handle) {
	h.inUse = true
	h.useCount++
	p.inUse++
}

// Validate pings the handle and records the result.
func (p *Pool) Validate(ctx context.Context, h *Handle) bool {
	if err := h.session.Ping(ctx); err != nil {
		p.logger.Verbose("pool: ping failed for %s: %v", h.ID(), err)
		return false
	}
	p.mu.Lock()
	h.lastValidated = p.now()
	p.mu.Unlock()
	return true
}

// Release returns a handle after a successful operation. Expired handles are
// closed and their slot passed on; others go to the head waiter or the idle set.
// Releasing a handle twice, or one from another pool, is a no-op.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if h.pool != p || !h.inUse {
		p.mu.Unlock()
		return
	}
	now := p.now()
	h.inUse = false
	h.lastValidated = now
	p.inUse--

	if p.closed || h.expired(now, p.cfg.MaxLifetime) {
		if !p.closed {
			p.stats.Retirements++
		}
		p.freeSlotLocked()
		p.mu.Unlock()
		p.closeSession(h)
		return
	}

	if w := p.popWaiterLocked(); w != nil {
		p.checkoutLocked(h)
		w.ch <- grant{handle: h}
		p.mu.Unlock()
		return
	}

	p.idle = append(p.idle, h)
	p.mu.Unlock()
}

// Discard closes a handle implicated in a failure and frees its slot.
func (p *Pool) Discard(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	if h.pool != p || !h.inUse {
		p.mu.Unlock()
		return
	}
	h.inUse = false
	p.inUse--
	p.stats.Discards++
	p.freeSlotLocked()
	p.mu.Unlock()
	p.closeSession(h)
}

// freeSlotLocked hands a freed slot to the head waiter as a dial permit, or shrinks the pool.
func (p *Pool) freeSlotLocked() {
	if !p.closed {
		if w := p.popWaiterLocked(); w != nil {
			w.ch <- grant{permit: true}
			return
		}
	}
	p.size--
	p.checkDrainedLocked()
}

func (p *Pool) popWaiterLocked() *waiter {
	front := p.waiters.Front()
	if front == nil {
		return nil
	}
	p.waiters.Remove(front)
	return front.Value.(*waiter)
}

func (p *Pool) checkDrainedLocked() {
	if p.closed && p.size == 0 {
		select {
		case <-p.drained:
		default:
			close(p.drained)
		}
	}
}

func (p *Pool) closeSession(h *Handle) {
	if err := h.session.Close(); err != nil {
		p.logger.Verbose("pool: closing handle %s: %v", h.ID(), err)
	}
}

// Warm dials handles until the pool holds MinSize of them.
func (p *Pool) Warm(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return fmt.Errorf("warm: %w", sqlexplorer.ErrPoolClosed)
		}
		if p.size >= p.cfg.MinSize {
			p.mu.Unlock()
			return nil
		}
		p.size++
		p.mu.Unlock()

		h, err := p.dialInto(ctx)
		if err != nil {
			return err
		}
		p.Release(h)
	}
}

// Shutdown stops the pool: idle handles are closed, waiters fail with
// ErrPoolClosed, and the call blocks until every in-flight handle has been
// released (and closed) or ctx expires. The dialer is closed once drained.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	var idle []*Handle
	if !p.closed {
		p.closed = true
		idle = p.idle
		p.idle = nil
		p.size -= len(idle)
		for w := p.popWaiterLocked(); w != nil; w = p.popWaiterLocked() {
			w.ch <- grant{err: fmt.Errorf("acquire: %w", sqlexplorer.ErrPoolClosed)}
		}
		p.checkDrainedLocked()
	}
	p.mu.Unlock()

	for _, h := range idle {
		p.closeSession(h)
	}

	select {
	case <-p.drained:
	case <-ctx.Done():
		return fmt.Errorf("shutdown: waiting for %d in-flight handles: %w", p.Stats().InUse, ctx.Err())
	}
	p.dialerOnce.Do(func() { p.dialerErr = p.dialer.Close() })
	return p.dialerErr
}

// Closed reports whether Shutdown has been called.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Size = p.size
	s.Idle = len(p.idle)
	s.InUse = p.inUse
	s.Waiting = p.waiters.Len()
	return s
}
