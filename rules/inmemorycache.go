package rules

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	payload  []byte
	cachedAt time.Time
}

// InMemoryOutcomeCache is a simple in-memory implementation of OutcomeCache
// Thread-safe for concurrent access
type InMemoryOutcomeCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	mu      sync.RWMutex
}

// NewInMemoryOutcomeCache creates a new in-memory outcome cache
func NewInMemoryOutcomeCache(config CacheConfig) *InMemoryOutcomeCache {
	return &InMemoryOutcomeCache{
		entries: make(map[string]cacheEntry),
		config:  config,
	}
}

// Get retrieves a cached payload
// Returns false if the key is missing or expired
func (c *InMemoryOutcomeCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	// Check TTL if configured
	if c.config.TTL > 0 && time.Since(entry.cachedAt) > c.config.TTL {
		return nil, false
	}

	// Return copy to prevent external modifications
	payloadCopy := make([]byte, len(entry.payload))
	copy(payloadCopy, entry.payload)
	return payloadCopy, true
}

// Set stores a payload in the cache
func (c *InMemoryOutcomeCache) Set(_ context.Context, key string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.MaxEntries > 0 && len(c.entries) >= c.config.MaxEntries {
		if _, exists := c.entries[key]; !exists {
			c.evictLocked()
		}
	}

	// Store copy to prevent external modifications
	stored := make([]byte, len(payload))
	copy(stored, payload)
	c.entries[key] = cacheEntry{payload: stored, cachedAt: time.Now()}
}

// evictLocked drops expired entries, or the oldest entry when none has expired
func (c *InMemoryOutcomeCache) evictLocked() {
	var oldestKey string
	var oldest time.Time
	evicted := false
	for k, e := range c.entries {
		if c.config.TTL > 0 && time.Since(e.cachedAt) > c.config.TTL {
			delete(c.entries, k)
			evicted = true
			continue
		}
		if oldestKey == "" || e.cachedAt.Before(oldest) {
			oldestKey, oldest = k, e.cachedAt
		}
	}
	if !evicted && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Invalidate clears the cache
func (c *InMemoryOutcomeCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of stored entries, expired ones included
func (c *InMemoryOutcomeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
