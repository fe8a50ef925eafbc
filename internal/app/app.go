// Package app assembles the ruleset source, outcome cache, registry, evaluator and
// metrics from configuration. Every entry point builds on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/liamcoop/excedencia/calculator"
	"github.com/liamcoop/excedencia/internal/config"
	"github.com/liamcoop/excedencia/internal/logger"
	"github.com/liamcoop/excedencia/internal/metrics"
	"github.com/liamcoop/excedencia/rules"
)

// App holds the wired calculator components
type App struct {
	Config    *config.Config
	Registry  *rules.Registry
	Evaluator *calculator.Evaluator
	Metrics   *metrics.Collector

	closers []io.Closer
}

// New wires the calculator. The ruleset itself is loaded lazily on first evaluation
// unless Preload is called.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	source, err := a.openSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	cache, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Registry = rules.NewRegistry(source, cache)
	a.Metrics = metrics.NewCollector(nil)
	a.Evaluator = calculator.NewRegistryEvaluator(a.Registry,
		calculator.WithObserver(a.Metrics),
		calculator.WithSlowThreshold(cfg.SlowThreshold),
	)

	logger.Info("Calculator configured",
		"ruleset_source", source.Describe(),
		"cache", cfg.Cache.Backend)
	return a, nil
}

// Preload loads and compiles the ruleset so configuration errors surface at startup
func (a *App) Preload(ctx context.Context) (*rules.Ruleset, error) {
	engine, err := a.Registry.Engine(ctx)
	if err != nil {
		return nil, err
	}
	rs := engine.Ruleset()
	logger.Info("Ruleset loaded", "name", rs.Name, "version", rs.Version, "rules", len(rs.Rules))
	return rs, nil
}

func (a *App) openSource(ctx context.Context) (rules.Source, error) {
	rc := a.Config.Ruleset
	switch rc.Source {
	case config.SourceEmbedded:
		return rules.NewEmbeddedSource(), nil
	case config.SourceFile:
		return rules.NewFileSource(rc.Path), nil
	case config.SourceSQL:
		src, err := rules.OpenSQLSource(ctx, rc.Driver, rc.DSN, rc.Name, rc.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to open ruleset database: %w", err)
		}
		a.closers = append(a.closers, src)
		return src, nil
	default:
		return nil, fmt.Errorf("unknown ruleset source %q", rc.Source)
	}
}

func (a *App) openCache(ctx context.Context) (rules.OutcomeCache, error) {
	cc := a.Config.Cache
	cacheConfig := rules.CacheConfig{TTL: cc.TTL, MaxEntries: cc.MaxEntries}

	switch cc.Backend {
	case config.CacheNone:
		return nil, nil
	case config.CacheMemory:
		return rules.NewInMemoryOutcomeCache(cacheConfig), nil
	case config.CacheRedis:
		cache := rules.NewRedisOutcomeCache(cc.Addr, cc.Password, cc.DB, cacheConfig)
		if err := cache.Ping(ctx); err != nil {
			cache.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cc.Addr, err)
		}
		a.closers = append(a.closers, cache)
		return cache, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cc.Backend)
	}
}

// Close releases database and cache connections
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
