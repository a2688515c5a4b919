// Package cache provides the caches used during a resolution session and
// across CLI invocations.
//
// Session caches ([Map], [LRU]) are in-memory, typed and safe for concurrent
// use; they live exactly as long as the session that owns them. [FileCache]
// persists rendered outputs between runs of the CLI.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the cached value and true, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
