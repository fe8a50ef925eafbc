package rules

import (
	"context"
	"time"
)

// OutcomeCache provides an abstraction for caching successful evaluation results.
// Results are deterministic for a given ruleset version and request, so a cached
// payload is indistinguishable from a fresh evaluation.
// This allows swapping between in-memory, Redis, or other caching implementations
type OutcomeCache interface {
	// Get retrieves a cached payload, returns false on a miss or expired entry
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a payload under key
	Set(ctx context.Context, key string, payload []byte)

	// Invalidate clears the cache
	Invalidate(ctx context.Context)
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries
	// Set to 0 for no expiration (manual invalidation only)
	TTL time.Duration

	// MaxEntries bounds the in-memory cache; 0 means unbounded
	MaxEntries int
}

// DefaultCacheConfig returns sensible defaults for outcome caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        10 * time.Minute,
		MaxEntries: 10000,
	}
}
