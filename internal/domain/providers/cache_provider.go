package providers

import (
	"context"
)

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)
}

// RateLimiter counts tool invocations per tenant over a rolling window.
// Counters are the only state shared across call sessions besides the
// tenant data store itself.
type RateLimiter interface {
	// Allow consumes one unit for the key and reports whether the caller is
	// within its per-minute budget
	Allow(ctx context.Context, key string, limit int) (bool, error)
}
