package cache

import (
	"context"
	"time"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Tiered puts an in-process LRU in front of a shared Redis cache.
// L2 hits are copied into L1 for the remainder of their lifetime.
type Tiered struct {
	l1  *LRU
	l2  *Redis
	now func() time.Time
}

// NewTiered combines l1 and l2.
func NewTiered(l1 *LRU, l2 *Redis) *Tiered {
	return &Tiered{l1: l1, l2: l2, now: time.Now}
}

func (t *Tiered) Get(ctx context.Context, key string) (*sqlexplorer.ResultSet, bool) {
	if rs, ok := t.l1.Get(ctx, key); ok {
		return rs, true
	}
	rs, expiresAt, ok := t.l2.get(ctx, key)
	if !ok {
		return nil, false
	}
	ttl := time.Duration(0)
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(t.now())
		if ttl <= 0 {
			return nil, false
		}
	}
	t.l1.Put(ctx, key, rs, ttl)
	return rs, true
}

func (t *Tiered) Put(ctx context.Context, key string, rs *sqlexplorer.ResultSet, ttl time.Duration) {
	t.l1.Put(ctx, key, rs, ttl)
	t.l2.Put(ctx, key, rs, ttl)
}

func (t *Tiered) Invalidate(ctx context.Context, key string) {
	t.l1.Invalidate(ctx, key)
	t.l2.Invalidate(ctx, key)
}

func (t *Tiered) Clear(ctx context.Context) {
	t.l1.Clear(ctx)
	t.l2.Clear(ctx)
}

// Stats merges both tiers: a lookup is a hit if either tier answered it.
func (t *Tiered) Stats() Stats {
	s1, s2 := t.l1.Stats(), t.l2.Stats()
	return Stats{
		Entries:     s1.Entries,
		Hits:        s1.Hits + s2.Hits,
		Misses:      s2.Misses,
		Evictions:   s1.Evictions,
		Expirations: s1.Expirations + s2.Expirations,
		Errors:      s2.Errors,
	}
}
