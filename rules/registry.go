package rules

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Registry hands out the engine bound to a ruleset source. The ruleset is loaded
// and compiled on first use and then shared read-only: the registry is
// write-once-read-many and concurrent first callers build a single engine.
type Registry struct {
	source Source
	cache  OutcomeCache

	mu     sync.Mutex // serializes the first load
	engine atomic.Pointer[Engine]
}

// NewRegistry creates a registry over source. cache may be nil.
func NewRegistry(source Source, cache OutcomeCache) *Registry {
	return &Registry{source: source, cache: cache}
}

// Engine returns the shared engine, loading and compiling the ruleset on first use.
// A failed load is not remembered, so a later call retries. Once built, the engine
// is returned without locking.
func (r *Registry) Engine(ctx context.Context) (*Engine, error) {
	if engine := r.engine.Load(); engine != nil {
		return engine, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if engine := r.engine.Load(); engine != nil {
		return engine, nil
	}

	rs, err := r.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ruleset from %s: %w", r.source.Describe(), err)
	}

	engine, err := NewEngineWithCache(rs, r.cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine for %s@%s: %w", rs.Name, rs.Version, err)
	}

	r.engine.Store(engine)
	return engine, nil
}

// Loaded reports whether the engine has been built
func (r *Registry) Loaded() bool {
	return r.engine.Load() != nil
}

// Source returns the ruleset source of the registry
func (r *Registry) Source() Source {
	return r.source
}
