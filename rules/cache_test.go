package rules

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestInMemoryOutcomeCache_GetSet verifies stored payloads are returned
func TestInMemoryOutcomeCache_GetSet(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryOutcomeCache(DefaultCacheConfig())

	if _, ok := cache.Get(ctx, "k"); ok {
		t.Fatal("Expected miss on empty cache")
	}

	cache.Set(ctx, "k", []byte("payload"))
	got, ok := cache.Get(ctx, "k")
	if !ok {
		t.Fatal("Expected hit after Set")
	}
	if string(got) != "payload" {
		t.Errorf("Get() = %q, want %q", got, "payload")
	}
}

// TestInMemoryOutcomeCache_Copies verifies callers cannot modify stored payloads
func TestInMemoryOutcomeCache_Copies(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryOutcomeCache(DefaultCacheConfig())

	payload := []byte("abc")
	cache.Set(ctx, "k", payload)
	payload[0] = 'x'

	got, _ := cache.Get(ctx, "k")
	got[1] = 'y'

	again, _ := cache.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored payload was modified: %q", again)
	}
}

// TestInMemoryOutcomeCache_TTL verifies expired entries are misses
func TestInMemoryOutcomeCache_TTL(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryOutcomeCache(CacheConfig{TTL: 10 * time.Millisecond})

	cache.Set(ctx, "k", []byte("v"))
	time.Sleep(25 * time.Millisecond)

	if _, ok := cache.Get(ctx, "k"); ok {
		t.Error("Expected expired entry to be a miss")
	}
}

// TestInMemoryOutcomeCache_NoTTL verifies a zero TTL never expires
func TestInMemoryOutcomeCache_NoTTL(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryOutcomeCache(CacheConfig{})

	cache.Set(ctx, "k", []byte("v"))
	time.Sleep(5 * time.Millisecond)

	if _, ok := cache.Get(ctx, "k"); !ok {
		t.Error("Expected entry without TTL to stay cached")
	}
}

// TestInMemoryOutcomeCache_Eviction verifies the oldest entry is dropped at capacity
func TestInMemoryOutcomeCache_Eviction(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryOutcomeCache(CacheConfig{MaxEntries: 2})

	cache.Set(ctx, "first", []byte("1"))
	time.Sleep(2 * time.Millisecond)
	cache.Set(ctx, "second", []byte("2"))
	time.Sleep(2 * time.Millisecond)

	// Overwriting an existing key never evicts
	cache.Set(ctx, "second", []byte("2b"))
	if cache.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cache.Len())
	}

	cache.Set(ctx, "third", []byte("3"))
	if cache.Len() != 2 {
		t.Fatalf("Len() = %d after eviction, want 2", cache.Len())
	}
	if _, ok := cache.Get(ctx, "first"); ok {
		t.Error("Expected oldest entry to be evicted")
	}
	if _, ok := cache.Get(ctx, "third"); !ok {
		t.Error("Expected newest entry to be cached")
	}
}

// TestInMemoryOutcomeCache_Invalidate verifies the cache is cleared
func TestInMemoryOutcomeCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryOutcomeCache(DefaultCacheConfig())

	cache.Set(ctx, "a", []byte("1"))
	cache.Set(ctx, "b", []byte("2"))
	cache.Invalidate(ctx)

	if cache.Len() != 0 {
		t.Errorf("Len() = %d after Invalidate, want 0", cache.Len())
	}
}

// TestInMemoryOutcomeCache_Concurrent verifies concurrent access is safe
func TestInMemoryOutcomeCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryOutcomeCache(CacheConfig{MaxEntries: 10})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			cache.Set(ctx, key, []byte(key))
			cache.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	if cache.Len() > 10 {
		t.Errorf("Len() = %d, want at most 10", cache.Len())
	}
}
