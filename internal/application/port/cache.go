package port

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for caching operations
type Cache interface {
	// Get decodes the cached value into dest or returns ErrCacheMiss
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value; ttl <= 0 uses the cache default
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Close closes the cache connection
	Close() error
}
