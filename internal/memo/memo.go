// Package memo caches computed tables keyed on the parameters that produced
// them. Entries live until invalidated; concurrent misses on one key share a
// single computation.
package memo

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes values of type V under string keys.
type Cache[V any] struct {
	mu       sync.RWMutex
	entries  map[string]V
	gens     map[string]uint64 // bumped when a key is invalidated
	inflight map[string]int    // keys with a computation running
	epoch    uint64            // bumped by Purge
	group    singleflight.Group
	hits     int64
	misses   int64
}

// New returns an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{
		entries:  make(map[string]V),
		gens:     make(map[string]uint64),
		inflight: make(map[string]int),
	}
}

// Get returns the cached value for key, computing and storing it with fn on a
// miss. Errors are returned to every waiter and never cached.
func (c *Cache[V]) Get(key string, fn func() (V, error)) (V, error) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		v, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}
		c.mu.Lock()
		gen, epoch := c.gens[key], c.epoch
		c.inflight[key]++
		c.mu.Unlock()

		v, err := fn()

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.inflight[key]--; c.inflight[key] == 0 {
			delete(c.inflight, key)
		}
		if err != nil {
			return v, err
		}
		c.misses++
		// A result computed across an invalidation is returned to its
		// waiters but never stored.
		if c.gens[key] == gen && c.epoch == epoch {
			c.entries[key] = v
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Invalidate drops key. It reports whether an entry was present.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	c.drop(key)
	return ok
}

// drop removes key and marks any running computation for it as stale.
// c.mu must be held.
func (c *Cache[V]) drop(key string) {
	delete(c.entries, key)
	if _, running := c.inflight[key]; running {
		c.gens[key]++
	} else {
		delete(c.gens, key)
	}
	c.group.Forget(key)
}

// Purge drops every entry and returns how many were removed.
func (c *Cache[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]V)
	c.gens = make(map[string]uint64)
	c.epoch++
	for k := range c.inflight {
		c.group.Forget(k)
	}
	return n
}

// Stats reports entry count, hits and computed misses.
func (c *Cache[V]) Stats() (entries int, hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), c.hits, c.misses
}

// InvalidateFunc drops every key for which match returns true and returns how
// many were removed.
func (c *Cache[V]) InvalidateFunc(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if match(k) {
			c.drop(k)
			n++
		}
	}
	for k := range c.inflight {
		if match(k) {
			c.drop(k)
		}
	}
	return n
}
