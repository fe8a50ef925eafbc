// Package config loads the calculator configuration from YAML, a .env file and
// CALC_* environment variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/liamcoop/excedencia/internal/logger"
)

// Ruleset source kinds
const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourceSQL      = "sql"
)

// Outcome cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the complete calculator configuration
type Config struct {
	Ruleset RulesetConfig `yaml:"ruleset"`
	Cache   CacheConfig   `yaml:"cache"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`

	// SlowThreshold logs evaluations slower than this. Zero disables it.
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// RulesetConfig selects where the decision ruleset is loaded from
type RulesetConfig struct {
	Source  string `yaml:"source"`
	Path    string `yaml:"path"`
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// CacheConfig selects the outcome cache backend
type CacheConfig struct {
	Backend    string        `yaml:"backend"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	SampleRate int    `yaml:"sample_rate"`
	Output     string `yaml:"output"`
}

// Default returns the configuration used when nothing is set: the embedded
// ruleset with an in-memory cache
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field
func ApplyDefaults(cfg *Config) {
	if cfg.Ruleset.Source == "" {
		cfg.Ruleset.Source = SourceEmbedded
	}
	if cfg.Ruleset.Name == "" {
		cfg.Ruleset.Name = "ayuda-excedencia"
	}
	if cfg.Ruleset.Source == SourceSQL && cfg.Ruleset.Driver == "" {
		cfg.Ruleset.Driver = "postgres"
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheMemory
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 10 * time.Minute
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 10000
	}
	if cfg.Cache.Backend == CacheRedis && cfg.Cache.Addr == "" {
		cfg.Cache.Addr = "localhost:6379"
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "INFO"
	}
	if cfg.Log.SampleRate == 0 {
		cfg.Log.SampleRate = 100
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = logger.OutputStderr
	}
	if cfg.SlowThreshold == 0 {
		cfg.SlowThreshold = 500 * time.Millisecond
	}
}

// Load reads the YAML file at path when one is given, applies defaults and CALC_*
// overrides, and validates the result. A .env file in the working directory is
// loaded first when present; variables already set in the environment win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies CALC_SECTION_FIELD variables. Unparseable values are ignored.
func applyEnvOverrides(cfg *Config) {
	setString := func(name string, dst *string) {
		if val := os.Getenv(name); val != "" {
			*dst = val
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if val := os.Getenv(name); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			}
		}
	}
	setInt := func(name string, dst *int) {
		if val := os.Getenv(name); val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				*dst = i
			}
		}
	}

	setString("CALC_RULESET_SOURCE", &cfg.Ruleset.Source)
	setString("CALC_RULESET_PATH", &cfg.Ruleset.Path)
	setString("CALC_RULESET_DRIVER", &cfg.Ruleset.Driver)
	setString("CALC_RULESET_DSN", &cfg.Ruleset.DSN)
	setString("CALC_RULESET_NAME", &cfg.Ruleset.Name)
	setString("CALC_RULESET_VERSION", &cfg.Ruleset.Version)

	setString("CALC_CACHE_BACKEND", &cfg.Cache.Backend)
	setDuration("CALC_CACHE_TTL", &cfg.Cache.TTL)
	setInt("CALC_CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries)
	setString("CALC_CACHE_ADDR", &cfg.Cache.Addr)
	setString("CALC_CACHE_PASSWORD", &cfg.Cache.Password)
	setInt("CALC_CACHE_DB", &cfg.Cache.DB)

	setString("CALC_HTTP_PORT", &cfg.HTTP.Port)
	setDuration("CALC_HTTP_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)

	setString("CALC_LOG_LEVEL", &cfg.Log.Level)
	setInt("CALC_LOG_SAMPLE_RATE", &cfg.Log.SampleRate)
	setString("CALC_LOG_OUTPUT", &cfg.Log.Output)
	setDuration("CALC_SLOW_THRESHOLD", &cfg.SlowThreshold)

	// DATABASE_URL is honored for compatibility with the migrate tool
	if cfg.Ruleset.DSN == "" {
		setString("DATABASE_URL", &cfg.Ruleset.DSN)
	}
}

// FieldError is a validation failure of one configuration field
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every invalid field
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// LoggerOptions maps the log section onto the logger's options
func (c LogConfig) LoggerOptions() logger.Options {
	return logger.Options{Level: c.Level, SampleRate: c.SampleRate, Output: c.Output}
}

// Validate checks the configuration and reports all invalid fields together
func Validate(cfg *Config) error {
	var errs []FieldError

	switch cfg.Ruleset.Source {
	case SourceEmbedded:
	case SourceFile:
		if cfg.Ruleset.Path == "" {
			errs = append(errs, FieldError{Field: "ruleset.path", Message: "required when source is file"})
		}
	case SourceSQL:
		if cfg.Ruleset.DSN == "" {
			errs = append(errs, FieldError{Field: "ruleset.dsn", Message: "required when source is sql"})
		}
		if cfg.Ruleset.Driver != "postgres" && cfg.Ruleset.Driver != "sqlite" {
			errs = append(errs, FieldError{Field: "ruleset.driver", Message: fmt.Sprintf("unsupported driver %q (use postgres or sqlite)", cfg.Ruleset.Driver)})
		}
	default:
		errs = append(errs, FieldError{Field: "ruleset.source", Message: fmt.Sprintf("unknown source %q (use embedded, file or sql)", cfg.Ruleset.Source)})
	}

	switch cfg.Cache.Backend {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		errs = append(errs, FieldError{Field: "cache.backend", Message: fmt.Sprintf("unknown backend %q (use none, memory or redis)", cfg.Cache.Backend)})
	}
	if cfg.Cache.TTL < 0 {
		errs = append(errs, FieldError{Field: "cache.ttl", Message: "must not be negative"})
	}
	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, FieldError{Field: "cache.max_entries", Message: "must not be negative"})
	}

	if port, err := strconv.Atoi(cfg.HTTP.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, FieldError{Field: "http.port", Message: fmt.Sprintf("invalid port %q", cfg.HTTP.Port)})
	}

	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, FieldError{Field: "log.level", Message: err.Error()})
	}
	if cfg.Log.SampleRate < 0 {
		errs = append(errs, FieldError{Field: "log.sample_rate", Message: "must not be negative"})
	}
	switch strings.ToLower(cfg.Log.Output) {
	case logger.OutputStderr, logger.OutputStdout:
	default:
		errs = append(errs, FieldError{Field: "log.output", Message: fmt.Sprintf("unknown output %q (use stderr or stdout)", cfg.Log.Output)})
	}

	if cfg.SlowThreshold < 0 {
		errs = append(errs, FieldError{Field: "slow_threshold", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
