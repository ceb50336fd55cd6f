package pool

import (
	"time"

	"github.com/google/uuid"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Handle is one pooled session. While a caller holds a Handle, no other caller
// can obtain it; it must be returned with Pool.Release or Pool.Discard.
type Handle struct {
	id            uuid.UUID
	session       sqlexplorer.Session
	pool          *Pool
	createdAt     time.Time
	lastValidated time.Time
	useCount      int64
	inUse         bool
}

// ID uniquely identifies the handle for logging.
func (h *Handle) ID() string { return h.id.String() }

// Session is the underlying database session.
func (h *Handle) Session() sqlexplorer.Session { return h.session }

// CreatedAt is when the session was dialed.
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// UseCount is how many times the handle has been handed out.
func (h *Handle) UseCount() int64 {
	h.pool.mu.Lock()
	defer h.pool.mu.Unlock()
	return h.useCount
}

// LastValidated is the time of the last successful ping or release.
func (h *Handle) LastValidated() time.Time {
	h.pool.mu.Lock()
	defer h.pool.mu.Unlock()
	return h.lastValidated
}

// expired reports whether the handle outlived maxLifetime. Zero disables the check.
func (h *Handle) expired(now time.Time, maxLifetime time.Duration) bool {
	return maxLifetime > 0 && now.Sub(h.createdAt) >= maxLifetime
}

// stale reports whether the handle must be pinged before reuse.
func (h *Handle) stale(now time.Time, interval time.Duration) bool {
	return interval <= 0 || now.Sub(h.lastValidated) >= interval
}
