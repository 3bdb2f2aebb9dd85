package perf

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := NewCache[string](time.Minute, 10)
	c.Put("k", "v")

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache[string](time.Minute, 10)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.Put("k", "v")
	clock = clock.Add(2 * time.Minute)

	_, ok := c.Get("k")
	assert.False(t, ok, "entry past the cache TTL must be a miss")
	assert.Equal(t, 0, c.Len(), "expired entries are removed on access")
}

func TestCache_PerEntryTTLOverride(t *testing.T) {
	c := NewCache[string](time.Minute, 10)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	c.PutTTL("long", "v", time.Hour)
	c.Put("short", "v")
	clock = clock.Add(10 * time.Minute)

	_, ok := c.Get("long")
	assert.True(t, ok, "per-entry TTL overrides the cache default")
	_, ok = c.Get("short")
	assert.False(t, ok)
}

// TestCache_Eviction_ZeroHitBeforeNonzero verifies the eviction
// ordering: a zero-hit entry is always evicted before any entry with
// recorded hits, even when the latter is older.
func TestCache_Eviction_ZeroHitBeforeNonzero(t *testing.T) {
	c := NewCache[int](time.Hour, 8)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	// "hot" is inserted first (oldest) and accessed; the rest are cold.
	c.Put("hot", 0)
	_, ok := c.Get("hot")
	require.True(t, ok)

	for i := 0; i < 7; i++ {
		clock = clock.Add(time.Second)
		c.Put(fmt.Sprintf("cold-%d", i), i)
	}
	require.Equal(t, 8, c.Len())

	// Inserting past capacity evicts the coldest quarter.
	clock = clock.Add(time.Second)
	c.Put("overflow", 99)

	_, ok = c.Get("hot")
	assert.True(t, ok, "the hit entry must survive eviction of cold entries")
	assert.Less(t, c.Len(), 9, "capacity must not grow past max")
}

func TestCache_Eviction_OldestFirstAmongEqualHits(t *testing.T) {
	c := NewCache[int](time.Hour, 4)
	clock := time.Now()
	c.now = func() time.Time { return clock }

	for i := 0; i < 4; i++ {
		c.Put(fmt.Sprintf("k-%d", i), i)
		clock = clock.Add(time.Second)
	}
	c.Put("overflow", 99)

	_, ok := c.Get("k-0")
	assert.False(t, ok, "the oldest zero-hit entry is evicted first")
	_, ok = c.Get("k-3")
	assert.True(t, ok)
}

func TestCache_Stats(t *testing.T) {
	c := NewCache[string](time.Minute, 10)
	c.Put("k", "v")

	c.Get("k")      // hit
	c.Get("k")      // hit
	c.Get("absent") // miss

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
}

func TestCache_Purge(t *testing.T) {
	c := NewCache[string](time.Minute, 10)
	c.Put("a", "1")
	c.Put("b", "2")
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache[string](time.Minute, 10)
	c.Put("a", "1")
	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_ZeroConfigDefaults(t *testing.T) {
	c := NewCache[string](0, 0)
	assert.Equal(t, DefaultTTL, c.ttl)
	assert.Equal(t, DefaultMaxSize, c.maxSize)
}
