package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/vvka-141/sqlexplorer/pkg/sqlexplorer"
)

type entry struct {
	key        string
	result     *sqlexplorer.ResultSet
	insertedAt time.Time
	ttl        time.Duration
}

func (e *entry) expiresAt() time.Time {
	if e.ttl <= 0 {
		return time.Time{}
	}
	return e.insertedAt.Add(e.ttl)
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.After(e.insertedAt.Add(e.ttl))
}

// LRU is an in-memory cache bounded by entry count, with per-entry TTL.
// Expiry is checked lazily on read; the least recently used entry is evicted
// when an insertion would exceed the bound.
type LRU struct {
	mu         sync.Mutex
	maxEntries int
	defaultTTL time.Duration
	ll         *list.List // front = most recently used
	items      map[string]*list.Element
	now        func() time.Time
	stats      Stats
}

// LRUOption configures an LRU.
type LRUOption func(*LRU)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) LRUOption {
	return func(c *LRU) { c.now = now }
}

// NewLRU creates a cache holding at most maxEntries results (minimum 1).
// defaultTTL applies to Put calls with ttl <= 0; zero means entries never expire.
func NewLRU(maxEntries int, defaultTTL time.Duration, opts ...LRUOption) *LRU {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c := &LRU{
		maxEntries: maxEntries,
		defaultTTL: defaultTTL,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LRU) Get(_ context.Context, key string) (*sqlexplorer.ResultSet, bool) {
	rs, _, ok := c.get(key)
	return rs, ok
}

// get also reports the entry's expiry so a tier above can mirror it.
func (c *LRU) get(key string) (*sqlexplorer.ResultSet, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, time.Time{}, false
	}
	e := el.Value.(*entry)
	if e.expired(c.now()) {
		c.removeLocked(el)
		c.stats.Expirations++
		c.stats.Misses++
		return nil, time.Time{}, false
	}
	c.ll.MoveToFront(el)
	c.stats.Hits++
	return e.result, e.expiresAt(), true
}

func (c *LRU) Put(_ context.Context, key string, rs *sqlexplorer.ResultSet, ttl time.Duration) {
	if rs == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.result = rs
		e.insertedAt = now
		e.ttl = ttl
		c.ll.MoveToFront(el)
		return
	}

	c.items[key] = c.ll.PushFront(&entry{key: key, result: rs, insertedAt: now, ttl: ttl})
	for c.ll.Len() > c.maxEntries {
		c.evictOldestLocked(now)
	}
}

// evictOldestLocked drops the least recently used entry, counting it as an
// expiration rather than an eviction when it had already expired.
func (c *LRU) evictOldestLocked(now time.Time) {
	el := c.ll.Back()
	if el == nil {
		return
	}
	if el.Value.(*entry).expired(now) {
		c.stats.Expirations++
	} else {
		c.stats.Evictions++
	}
	c.removeLocked(el)
}

func (c *LRU) removeLocked(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}

func (c *LRU) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeLocked(el)
	}
}

func (c *LRU) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

// Len is the number of entries held, expired ones included until they are read.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Keys returns keys from most to least recently used.
func (c *LRU) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry).key)
	}
	return keys
}

func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.ll.Len()
	return s
}
