// Package perf provides the engine's performance layer: TTL caches with
// hit-aware eviction, an inverted search index over table entries, and
// cumulative timing metrics.
package perf

import (
	"sort"
	"sync"
	"time"
)

// Cache defaults.
const (
	// DefaultTTL is the expiry applied to entries without an override.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxSize is the per-cache capacity before eviction.
	DefaultMaxSize = 1000
)

// entry is one cached value with its bookkeeping.
type entry[T any] struct {
	data      T
	timestamp time.Time
	hits      int
	ttl       time.Duration // 0 = use cache default
}

// CacheStats is a read-only snapshot of one cache's state.
type CacheStats struct {
	Size    int
	HitRate float64
}

// Cache is a TTL cache with capacity-triggered eviction. When an insert
// finds the cache at capacity, entries are ranked coldest-first (fewest
// hits, then oldest) and the coldest quarter is evicted.
//
// Cache is safe for concurrent use.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	ttl     time.Duration
	maxSize int

	hits   int64
	misses int64

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewCache creates a Cache with the given TTL and capacity. Zero values
// select DefaultTTL and DefaultMaxSize.
func NewCache[T any](ttl time.Duration, maxSize int) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache[T]{
		entries: make(map[string]*entry[T]),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached value for key. Expired entries are removed and
// reported as misses.
//
// Postcondition: A true return increments the entry's hit count.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		c.misses++
		return zero, false
	}
	e.hits++
	c.hits++
	return e.data, true
}

// Put stores data under key with the cache's default TTL.
func (c *Cache[T]) Put(key string, data T) {
	c.PutTTL(key, data, 0)
}

// PutTTL stores data under key with a per-entry TTL override.
// ttl <= 0 uses the cache default.
func (c *Cache[T]) PutTTL(key string, data T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evict()
	}
	c.entries[key] = &entry[T]{
		data:      data,
		timestamp: c.now(),
		ttl:       ttl,
	}
}

// Invalidate removes key from the cache if present.
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Purge removes every entry. Hit/miss counters are retained.
func (c *Cache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[T])
}

// Len returns the number of cached entries, including not-yet-collected
// expired ones.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the cache's current size and lifetime hit rate.
func (c *Cache[T]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{Size: len(c.entries), HitRate: rate}
}

func (c *Cache[T]) expired(e *entry[T]) bool {
	ttl := e.ttl
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.now().Sub(e.timestamp) > ttl
}

// evict drops the coldest quarter of the cache: fewest hits first, and
// among entries with equal hits, oldest first. A zero-hit entry is
// always evicted before any entry with recorded hits.
//
// Precondition: c.mu is held.
func (c *Cache[T]) evict() {
	type ranked struct {
		key string
		e   *entry[T]
	}
	all := make([]ranked, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, ranked{k, e})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].e.hits != all[j].e.hits {
			return all[i].e.hits < all[j].e.hits
		}
		return all[i].e.timestamp.Before(all[j].e.timestamp)
	})

	drop := len(all) / 4
	if drop < 1 {
		drop = 1
	}
	for _, r := range all[:drop] {
		delete(c.entries, r.key)
	}
}
