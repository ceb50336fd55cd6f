package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vvka-141/sqlexplorer/internal/logging"
	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

// DefaultRedisPrefix namespaces result keys in a shared Redis.
const DefaultRedisPrefix = "sqlexplorer:result:"

// Redis stores results in Redis so several processes share one cache.
// Redis failures are logged and reported as misses; they never fail a query.
type Redis struct {
	client     redis.UniversalClient
	prefix     string
	defaultTTL time.Duration
	logger     sqlexplorer.Logger
	now        func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewRedis creates a Redis-backed cache. An empty prefix selects DefaultRedisPrefix.
func NewRedis(client redis.UniversalClient, prefix string, defaultTTL time.Duration, logger sqlexplorer.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Redis{client: client, prefix: prefix, defaultTTL: defaultTTL, logger: logger, now: time.Now}
}

func (c *Redis) key(k string) string { return c.prefix + k }

func (c *Redis) count(f func(*Stats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}

func (c *Redis) Get(ctx context.Context, key string) (*sqlexplorer.ResultSet, bool) {
	rs, _, ok := c.get(ctx, key)
	return rs, ok
}

func (c *Redis) get(ctx context.Context, key string) (*sqlexplorer.ResultSet, time.Time, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Error("cache: redis get %s: %v", key, err)
			c.count(func(s *Stats) { s.Errors++ })
		}
		c.count(func(s *Stats) { s.Misses++ })
		return nil, time.Time{}, false
	}

	rs, expiresAt, err := decodeResult(data)
	if err != nil {
		c.logger.Error("cache: decoding %s: %v", key, err)
		c.count(func(s *Stats) { s.Errors++; s.Misses++ })
		return nil, time.Time{}, false
	}
	// Redis expires keys itself; a payload past its deadline means another
	// process wrote it with a skewed clock.
	if !expiresAt.IsZero() && !c.now().Before(expiresAt) {
		c.count(func(s *Stats) { s.Expirations++; s.Misses++ })
		return nil, time.Time{}, false
	}
	c.count(func(s *Stats) { s.Hits++ })
	return rs, expiresAt, true
}

func (c *Redis) Put(ctx context.Context, key string, rs *sqlexplorer.ResultSet, ttl time.Duration) {
	if rs == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	data, err := encodeResult(rs, expiresAt)
	if err != nil {
		c.logger.Error("cache: encoding %s: %v", key, err)
		c.count(func(s *Stats) { s.Errors++ })
		return
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		c.logger.Error("cache: redis set %s: %v", key, err)
		c.count(func(s *Stats) { s.Errors++ })
		return
	}
	c.logger.Verbose("cache: stored %s in redis (ttl %v)", key, ttl)
}

func (c *Redis) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.Error("cache: redis del %s: %v", key, err)
		c.count(func(s *Stats) { s.Errors++ })
	}
}

// Clear removes every key under the prefix.
func (c *Redis) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Error("cache: redis scan: %v", err)
		c.count(func(s *Stats) { s.Errors++ })
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Error("cache: redis del: %v", err)
		c.count(func(s *Stats) { s.Errors++ })
	}
}

// Ping checks connectivity, for health reporting.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Stats reports counters. Entries is not tracked for Redis and stays zero.
func (c *Redis) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
