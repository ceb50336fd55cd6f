package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// ExponentialBackoff implements exponential backoff with optional jitter.
// The delay before retry n (1-indexed) is initialDelay * multiplier^(n-1), capped at maxDelay.
type ExponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration

	// multiplier is the factor by which delay increases (typically 2.0)
	multiplier float64

	// maxAttempts is the total number of attempts including the first (-1 = unlimited)
	maxAttempts int

	// jitter randomizes each delay by +/- jitter (0.0-1.0). Zero keeps delays deterministic.
	jitter float64

	// jitterFunc provides random values [0, 1) for jitter calculation
	jitterFunc func() float64
}

// BackoffOption is a functional option for configuring ExponentialBackoff.
type BackoffOption func(*ExponentialBackoff)

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.initialDelay = d
	}
}

// WithMaxDelay sets the maximum delay between retry attempts.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.maxDelay = d
	}
}

// WithMultiplier sets the factor by which delay increases between attempts.
func WithMultiplier(m float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.multiplier = m
	}
}

// WithJitter sets the jitter factor (0.0-1.0) to add randomness to delays.
func WithJitter(j float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitter = j
	}
}

// WithJitterFunc sets a custom function for generating random jitter values.
func WithJitterFunc(f func() float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitterFunc = f
	}
}

// NewExponentialBackoff creates a backoff strategy allowing maxAttempts total attempts.
//
// Example:
//
//	backoff := retry.NewExponentialBackoff(3,
//	    retry.WithInitialDelay(time.Second),
//	    retry.WithMaxDelay(30 * time.Second),
//	)
func NewExponentialBackoff(maxAttempts int, opts ...BackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay: sqlexplorer.DefaultRetryBaseBackoff,
		maxDelay:     sqlexplorer.DefaultRetryMaxBackoff,
		multiplier:   sqlexplorer.DefaultRetryMultiplier,
		maxAttempts:  maxAttempts,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// NewBackoffFromPolicy builds the backoff part of a RetryPolicy.
func NewBackoffFromPolicy(p sqlexplorer.RetryPolicy) *ExponentialBackoff {
	opts := []BackoffOption{
		WithInitialDelay(p.BaseBackoff),
		WithMultiplier(p.Multiplier),
		WithJitter(p.Jitter),
	}
	if p.MaxBackoff > 0 {
		opts = append(opts, WithMaxDelay(p.MaxBackoff))
	}
	return NewExponentialBackoff(p.MaxAttempts, opts...)
}

// NextDelay returns the delay before retry attempt+1 (attempt is zero-indexed).
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt))

	if b.maxDelay > 0 && delay > float64(b.maxDelay) {
		delay = float64(b.maxDelay)
	}

	if b.jitter > 0 {
		jitterFunc := b.jitterFunc
		if jitterFunc == nil {
			jitterFunc = rand.Float64
		}

		// delay * (1 +/- jitter * random), random mapped from [0,1) to [-1,1)
		randomOffset := (jitterFunc() - 0.5) * 2.0
		delay *= 1.0 + (b.jitter * randomOffset)
	}

	return time.Duration(delay)
}

// MaxAttempts returns the total number of attempts.
func (b *ExponentialBackoff) MaxAttempts() int {
	return b.maxAttempts
}

// InitialDelay returns the initial delay for tests and debugging.
func (b *ExponentialBackoff) InitialDelay() time.Duration {
	return b.initialDelay
}

// MaxDelay returns the maximum delay for tests and debugging.
func (b *ExponentialBackoff) MaxDelay() time.Duration {
	return b.maxDelay
}

// Multiplier returns the backoff multiplier for tests and debugging.
func (b *ExponentialBackoff) Multiplier() float64 {
	return b.multiplier
}

// Jitter returns the jitter factor for tests and debugging.
func (b *ExponentialBackoff) Jitter() float64 {
	return b.jitter
}
