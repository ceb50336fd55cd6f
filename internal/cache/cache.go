package cache

import (
	"context"
	"time"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// Cache stores result sets by fingerprint.
// Implementations are safe for concurrent use. Get never returns an expired entry.
type Cache interface {
	Get(ctx context.Context, key string) (*sqlexplorer.ResultSet, bool)

	// Put overwrites any existing entry. A ttl <= 0 selects the cache default.
	Put(ctx context.Context, key string, rs *sqlexplorer.ResultSet, ttl time.Duration)

	Invalidate(ctx context.Context, key string)
	Clear(ctx context.Context)
	Stats() Stats
}

// Stats counts cache activity since construction.
type Stats struct {
	Entries     int   `json:"entries"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
	Errors      int64 `json:"errors"`
}

// HitRatio is hits over lookups, or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
