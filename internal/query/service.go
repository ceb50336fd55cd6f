package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vvka-141/sqlexplorer/internal/cache"
	"github.com/vvka-141/sqlexplorer/internal/logging"
	"github.com/vvka-141/sqlexplorer/internal/pool"
	"github.com/vvka-141/sqlexplorer/internal/retry"
	"github.com/vvka-141/sqlexplorer/internal/sqltext"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Outcome describes how a result was obtained.
type Outcome struct {
	Result      *sqlexplorer.ResultSet
	Cached      bool
	// LookedUp is false when the cache was not consulted: no cache,
	// ForceRefresh, or a statement that may modify data.
	LookedUp    bool
	Attempts    int
	Elapsed     time.Duration
	Fingerprint string
}

// Observer receives query lifecycle events. internal/metrics implements it.
type Observer interface {
	QueryFinished(o *Outcome, err error)
	Retried(kind sqlexplorer.ErrorKind, attempt int, delay time.Duration)
}

// Service runs statements through the cache, the retry executor and the pool.
// It is safe for concurrent use.
type Service struct {
	pool       *pool.Pool
	cache      cache.Cache
	driver     sqlexplorer.Driver
	classifier sqlexplorer.ErrorClassifier
	policy     sqlexplorer.RetryPolicy
	executor   *retry.Executor
	logger     sqlexplorer.Logger
	observer   Observer
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l sqlexplorer.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithDriver selects the error classifier and catalog SQL dialect. Defaults to SQL Server.
func WithDriver(d sqlexplorer.Driver) Option {
	return func(s *Service) { s.driver = d }
}

// WithClassifier overrides the driver's error classifier.
func WithClassifier(c sqlexplorer.ErrorClassifier) Option {
	return func(s *Service) { s.classifier = c }
}

func WithRetryPolicy(p sqlexplorer.RetryPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New wires a Service around an already constructed pool and cache.
// A nil cache disables caching.
func New(p *pool.Pool, c cache.Cache, opts ...Option) (*Service, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required: %w", sqlexplorer.ErrConfiguration)
	}
	s := &Service{
		pool:   p,
		cache:  c,
		driver: sqlexplorer.DriverSQLServer,
		policy: sqlexplorer.DefaultRetryPolicy(),
		logger: logging.NewNullLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policy.Validate(); err != nil {
		return nil, err
	}
	if s.classifier == nil {
		s.classifier = retry.ForDriver(s.driver)
	}
	s.executor = retry.NewPolicyExecutor(s.classifier, s.policy).WithOnRetry(s.onRetry)
	return s, nil
}

func (s *Service) onRetry(attempt int, err error, delay time.Duration) {
	kind := s.classifier.Classify(err)
	s.logger.Info("Attempt %d/%d failed (%s), retrying in %v: %v", attempt, s.policy.MaxAttempts, kind, delay, err)
	if s.observer != nil {
		s.observer.Retried(kind, attempt, delay)
	}
}

// Run returns the result for req, from the cache when possible.
func (s *Service) Run(ctx context.Context, req sqlexplorer.QueryRequest) (*sqlexplorer.ResultSet, error) {
	out, err := s.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Execute is Run with provenance. Failures are *sqlexplorer.QueryError and are never cached.
func (s *Service) Execute(ctx context.Context, req sqlexplorer.QueryRequest) (*Outcome, error) {
	start := s.now()
	if err := req.Validate(); err != nil {
		qerr := &sqlexplorer.QueryError{Kind: sqlexplorer.KindConfiguration, Err: err}
		s.finish(nil, qerr)
		return nil, qerr
	}

	fp := cache.Fingerprint(req.Statement, req.Params)
	out := &Outcome{Fingerprint: fp}

	// Modifications always reach the database and are never stored.
	cacheable := s.cache != nil && sqltext.ReadOnly(req.Statement)
	if cacheable && !req.ForceRefresh {
		out.LookedUp = true
		if rs, ok := s.cache.Get(ctx, fp); ok {
			out.Result = rs
			out.Cached = true
			out.Elapsed = s.now().Sub(start)
			s.logger.Verbose("Cache hit %s: %s", fp[:12], logging.Statement(req.Statement))
			s.finish(out, nil)
			return out, nil
		}
	}

	s.logger.Verbose("Executing: %s", logging.Statement(req.Statement))
	rs, err := retry.Do(ctx, s.executor, func(ctx context.Context) (*sqlexplorer.ResultSet, error) {
		out.Attempts++
		return s.attempt(ctx, req)
	})
	out.Elapsed = s.now().Sub(start)
	if err != nil {
		var qerr *sqlexplorer.QueryError
		if !errors.As(err, &qerr) {
			qerr = &sqlexplorer.QueryError{Kind: s.classifier.Classify(err), Attempts: out.Attempts, Err: err}
		}
		s.logger.Error("Query failed after %d attempt(s) (%s): %s: %v",
			qerr.Attempts, qerr.Kind, logging.Statement(req.Statement), qerr.Err)
		s.finish(out, qerr)
		return nil, qerr
	}

	out.Result = rs
	if cacheable {
		s.cache.Put(ctx, fp, rs, req.TTL)
	}
	s.logger.Verbose("Fetched %d row(s) in %v (%d attempt(s))", rs.Len(), out.Elapsed, out.Attempts)
	s.finish(out, nil)
	return out, nil
}

// attempt runs req on one pooled session. A failed session is discarded, not reused.
func (s *Service) attempt(ctx context.Context, req sqlexplorer.QueryRequest) (*sqlexplorer.ResultSet, error) {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	rs, err := h.Session().Query(ctx, req.Statement, req.Params)
	if err != nil {
		s.pool.Discard(h)
		return nil, err
	}
	s.pool.Release(h)
	return rs, nil
}

func (s *Service) finish(out *Outcome, err error) {
	if s.observer != nil {
		s.observer.QueryFinished(out, err)
	}
}

// Invalidate drops the cached result for req, if any.
func (s *Service) Invalidate(ctx context.Context, req sqlexplorer.QueryRequest) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, cache.Fingerprint(req.Statement, req.Params))
}

// ClearCache drops every cached result.
func (s *Service) ClearCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.Clear(ctx)
	s.logger.Info("Query cache cleared")
}

// Ping proves that a pooled session can reach the database. It bypasses the cache.
func (s *Service) Ping(ctx context.Context) error {
	h, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if !s.pool.Validate(ctx, h) {
		s.pool.Discard(h)
		return fmt.Errorf("database did not answer ping: %w", sqlexplorer.ErrTransientExecution)
	}
	s.pool.Release(h)
	return nil
}

func (s *Service) PoolStats() pool.Stats { return s.pool.Stats() }

// CacheStats returns zero stats when caching is disabled.
func (s *Service) CacheStats() cache.Stats {
	if s.cache == nil {
		return cache.Stats{}
	}
	return s.cache.Stats()
}

func (s *Service) Driver() sqlexplorer.Driver { return s.driver }

// Close drains the pool. Cached results are kept.
func (s *Service) Close(ctx context.Context) error {
	return s.pool.Shutdown(ctx)
}
