// Package pool implements a bounded connection pool over sqlexplorer.Dialer.
//
// Handles are dialed lazily up to MaxSize. Once the pool is saturated,
// Acquire callers queue in arrival order and are served by Release (which
// hands the returned handle straight to the head waiter) or by Discard and
// lifetime retirement (which hand over a permit to dial into the freed slot).
// A waiter that gives up never keeps what it was handed: the grant goes back
// to the pool for the next waiter.
package pool
