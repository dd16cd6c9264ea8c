// Package plancache implements a bounded query plan cache: canonicalized
// query text maps to a compiled plan, with both an entry-count LRU bound
// and a memory-byte bound.
package plancache

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Statistics is the cache's public introspection snapshot.
type Statistics struct {
	CachedPlans     int
	HitRate         float64
	CurrentMemoryBytes int64
	MaxMemoryBytes  int64
}

type entry struct {
	plan any
	size int64
}

// Cache is a count-bounded LRU additionally bounded by total plan size
// in bytes; inserting a plan larger than the remaining budget evicts
// least-recently-used entries until it fits or the cache is empty.
type Cache struct {
	mu            sync.Mutex
	lru           *lru.Cache[string, *entry]
	maxMemory     int64
	currentMemory int64

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache bounded by maxEntries (LRU eviction) and maxMemory
// bytes (size-based eviction), guarded by a mutex with LRU bookkeeping.
func New(maxEntries int, maxMemory int64) (*Cache, error) {
	c := &Cache{maxMemory: maxMemory}
	inner, err := lru.NewWithEvict(maxEntries, func(_ string, ev *entry) {
		c.currentMemory -= ev.size
	})
	if err != nil {
		return nil, err
	}
	c.lru = inner
	return c, nil
}

// Lookup returns the cached plan for key, or ok=false on a miss. Hit/miss
// counters are lock-free atomics, since they sit on this hot path.
func (c *Cache) Lookup(key string) (any, bool) {
	c.mu.Lock()
	e, ok := c.lru.Get(key)
	c.mu.Unlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.plan, true
}

// Insert stores plan under key with the given size in bytes, evicting
// least-recently-used entries first if needed to respect the memory
// bound.
func (c *Cache) Insert(key string, plan any, size int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		c.currentMemory -= old.size
		c.lru.Remove(key)
	}

	for c.currentMemory+size > c.maxMemory && c.lru.Len() > 0 {
		_, _, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
	}
	if size > c.maxMemory {
		// Too large to ever fit; do not cache it, but don't error —
		// the caller still gets a correct plan, just uncached.
		return
	}
	c.lru.Add(key, &entry{plan: plan, size: size})
	c.currentMemory += size
}

// Clear empties the cache and resets hit/miss counters, serving the
// `clear_plan_cache` operation.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.lru.Purge()
	c.currentMemory = 0
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Statistics returns a point-in-time snapshot.
func (c *Cache) Statistics() Statistics {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses
	rate := 0.0
	if total > 0 {
		rate = float64(hits) / float64(total)
	}
	c.mu.Lock()
	cached := c.lru.Len()
	mem := c.currentMemory
	c.mu.Unlock()
	return Statistics{
		CachedPlans:        cached,
		HitRate:            rate,
		CurrentMemoryBytes: mem,
		MaxMemoryBytes:     c.maxMemory,
	}
}
