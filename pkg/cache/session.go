package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/mvnresolve/pkg/observability"
)

// Map is an unbounded concurrent map. Resolution sessions use it for state
// that must not be evicted, such as the set of (file, repository) pairs
// already checked for updates.
type Map[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// NewMap returns an empty Map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

// Get returns the value stored under k.
func (c *Map[K, V]) Get(k K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[k]
	return v, ok
}

// Set stores v under k.
func (c *Map[K, V]) Set(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[k] = v
}

// SetIfAbsent stores v under k unless a value exists. It reports whether v
// was stored.
func (c *Map[K, V]) SetIfAbsent(k K, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.m[k]; ok {
		return false
	}
	c.m[k] = v
	return true
}

// Delete removes k.
func (c *Map[K, V]) Delete(k K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, k)
}

// Len returns the number of entries.
func (c *Map[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// LRU is a bounded concurrent cache that reports hits and misses to the
// registered cache hooks under its name.
type LRU[K comparable, V any] struct {
	name  string
	inner *lru.Cache[K, V]
}

// DefaultLRUSize bounds session caches when no size is configured.
const DefaultLRUSize = 4096

// NewLRU returns an LRU holding at most size entries.
func NewLRU[K comparable, V any](name string, size int) *LRU[K, V] {
	if size <= 0 {
		size = DefaultLRUSize
	}
	inner, err := lru.New[K, V](size)
	if err != nil {
		// only returned for size <= 0
		panic(err)
	}
	return &LRU[K, V]{name: name, inner: inner}
}

// Get returns the cached value.
func (c *LRU[K, V]) Get(ctx context.Context, k K) (V, bool) {
	v, ok := c.inner.Get(k)
	if ok {
		observability.Cache().OnCacheHit(ctx, c.name)
	} else {
		observability.Cache().OnCacheMiss(ctx, c.name)
	}
	return v, ok
}

// Add stores v under k.
func (c *LRU[K, V]) Add(ctx context.Context, k K, v V) {
	c.inner.Add(k, v)
	observability.Cache().OnCacheSet(ctx, c.name, 1)
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int { return c.inner.Len() }

// Purge drops all entries.
func (c *LRU[K, V]) Purge() { c.inner.Purge() }
