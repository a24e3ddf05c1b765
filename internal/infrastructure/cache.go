package infrastructure

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value     V
	fetchedAt time.Time
}

// TTLCache is a keyed cache with timestamp-based expiry. Reads may interleave
// freely; writes that change the underlying data must evict explicitly.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]cacheEntry[V]
	ttl     time.Duration
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		entries: make(map[K]cacheEntry[V]),
		ttl:     ttl,
	}
}

// Get returns the cached value if present and fresh.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	return c.GetAt(key, time.Now())
}

// GetAt is Get with an explicit clock, for tests.
func (c *TTLCache[K, V]) GetAt(key K, now time.Time) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && now.Sub(entry.fetchedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if e, still := c.entries[key]; still && now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return entry.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V) {
	c.SetAt(key, value, time.Now())
}

func (c *TTLCache[K, V]) SetAt(key K, value V, now time.Time) {
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: value, fetchedAt: now}
	c.mu.Unlock()
}

// Delete evicts one key.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeleteFunc evicts every entry the predicate matches. Used when a write
// invalidates an unknown set of keys, e.g. a credential rotation.
func (c *TTLCache[K, V]) DeleteFunc(match func(key K, value V) bool) {
	c.mu.Lock()
	for k, e := range c.entries {
		if match(k, e.value) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
