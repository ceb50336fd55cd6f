package retry

import (
	"context"
	"errors"
	"time"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Executor orchestrates retry attempts with backoff and error classification.
//
// Thread Safety:
// The Executor itself is safe for concurrent use when calling Execute().
// WithOnRetry() returns a NEW instance with the callback configured;
// the original Executor remains unchanged.
type Executor struct {
	classifier     sqlexplorer.ErrorClassifier
	strategy       sqlexplorer.BackoffStrategy
	retryable      map[sqlexplorer.ErrorKind]bool
	attemptTimeout time.Duration
	budget         time.Duration
	onRetry        func(attempt int, err error, delay time.Duration)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRetryable replaces the set of kinds that are retried.
func WithRetryable(kinds ...sqlexplorer.ErrorKind) ExecutorOption {
	return func(e *Executor) {
		e.retryable = make(map[sqlexplorer.ErrorKind]bool, len(kinds))
		for _, k := range kinds {
			e.retryable[k] = true
		}
	}
}

// WithAttemptTimeout bounds every attempt independently.
func WithAttemptTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.attemptTimeout = d }
}

// WithBudget bounds the whole retry loop, delays included.
func WithBudget(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.budget = d }
}

// NewExecutor creates a new retry executor. By default only
// KindTransientExecution is retried and no timeouts apply.
// Panics if classifier or strategy is nil.
func NewExecutor(
	classifier sqlexplorer.ErrorClassifier,
	strategy sqlexplorer.BackoffStrategy,
	opts ...ExecutorOption,
) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	e := &Executor{
		classifier: classifier,
		strategy:   strategy,
		retryable:  map[sqlexplorer.ErrorKind]bool{sqlexplorer.KindTransientExecution: true},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewPolicyExecutor builds an executor from a RetryPolicy.
func NewPolicyExecutor(classifier sqlexplorer.ErrorClassifier, policy sqlexplorer.RetryPolicy) *Executor {
	kinds := make([]sqlexplorer.ErrorKind, 0, len(policy.Retryable))
	for k, ok := range policy.Retryable {
		if ok {
			kinds = append(kinds, k)
		}
	}
	return NewExecutor(classifier, NewBackoffFromPolicy(policy),
		WithRetryable(kinds...),
		WithAttemptTimeout(policy.AttemptTimeout),
		WithBudget(policy.Budget),
	)
}

// WithOnRetry returns a new Executor with the specified retry callback.
// The callback receives the 1-indexed attempt that failed, its error, and the
// delay before the next attempt.
//
// This method does NOT modify the receiver; it returns a new instance.
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// Execute runs operation until it succeeds, fails with a non-retryable kind,
// or runs out of attempts or budget. Every failure is returned as *sqlexplorer.QueryError.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	parent := ctx
	if e.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.budget)
		defer cancel()
	}

	maxAttempts := e.strategy.MaxAttempts()
	if maxAttempts == 0 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return e.stopped(parent, attempt-1, err)
		}

		lastErr := e.runAttempt(ctx, operation)
		if lastErr == nil {
			return nil
		}

		kind := e.classifier.Classify(lastErr)
		if parent.Err() != nil {
			kind = sqlexplorer.KindCanceled
			if errors.Is(parent.Err(), context.DeadlineExceeded) {
				kind = sqlexplorer.KindTransientExecution
			}
		}

		if !e.retryable[kind] || (maxAttempts > 0 && attempt >= maxAttempts) || ctx.Err() != nil {
			return &sqlexplorer.QueryError{Kind: kind, Attempts: attempt, Err: lastErr}
		}

		delay := e.strategy.NextDelay(attempt - 1)
		if e.onRetry != nil {
			e.onRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return e.stopped(parent, attempt, errors.Join(lastErr, ctx.Err()))
		case <-timer.C:
		}
	}
}

func (e *Executor) runAttempt(ctx context.Context, operation func(ctx context.Context) error) error {
	if e.attemptTimeout <= 0 {
		return operation(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()
	return operation(attemptCtx)
}

// stopped builds the error for a loop interrupted by the caller or by the budget.
func (e *Executor) stopped(parent context.Context, attempts int, err error) error {
	kind := sqlexplorer.KindTransientExecution
	if errors.Is(parent.Err(), context.Canceled) {
		kind = sqlexplorer.KindCanceled
	}
	return &sqlexplorer.QueryError{Kind: kind, Attempts: attempts, Err: err}
}

// Do runs operation through executor and returns its value.
func Do[T any](ctx context.Context, executor *Executor, operation func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := executor.Execute(ctx, func(ctx context.Context) error {
		v, err := operation(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
