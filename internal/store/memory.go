package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrNotFound is returned when a record or cache entry does not exist.
	ErrNotFound = errors.New("not found")
)

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// MemoryCache is a concurrency-safe in-memory cache with a fixed time-to-live.
// Expired entries are dropped when read or when Prune runs; there is no size bound.
type MemoryCache[V any] struct {
	mu sync.Mutex

	data  map[string]cacheEntry[V]
	ttl   time.Duration
	clock clockwork.Clock
}

// NewMemoryCache creates a cache whose entries live for ttl.
// A nil clock uses the real wall clock.
func NewMemoryCache[V any](ttl time.Duration, clock clockwork.Clock) *MemoryCache[V] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache[V]{
		data:  make(map[string]cacheEntry[V]),
		ttl:   ttl,
		clock: clock,
	}
}

// Get returns the value stored under key while it is younger than the TTL.
// An expired entry is removed and reported as a miss.
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.fresh(e) {
		delete(c.data, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Peek returns the value stored under key whether or not it has expired.
// It never removes entries.
func (c *MemoryCache[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	return e.value, ok
}

// Set stores value under key, replacing any previous entry and restarting its TTL.
func (c *MemoryCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry[V]{value: value, storedAt: c.clock.Now()}
}

// Delete removes key and reports whether it was present.
func (c *MemoryCache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.data[key]
	delete(c.data, key)
	return ok
}

// Clear removes every entry and returns how many were dropped.
func (c *MemoryCache[V]) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.data)
	c.data = make(map[string]cacheEntry[V])
	return n
}

// Prune removes all expired entries and returns how many were dropped.
func (c *MemoryCache[V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.data {
		if !c.fresh(e) {
			delete(c.data, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.data)
}

func (c *MemoryCache[V]) fresh(e cacheEntry[V]) bool {
	return c.clock.Since(e.storedAt) < c.ttl
}
