// Package logger is the calculator's structured logger: a process-wide slog JSON
// handler (or an OpenTelemetry bridge when OTEL_ENABLED=true) with sampled warnings
// and errors and always-on counters.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

// Output destinations accepted by Options.Output
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
)

var (
	Logger       *slog.Logger
	programLevel = new(slog.LevelVar)

	// 1 in sampleRate warnings and errors reach the handler
	sampleRate atomic.Int32

	// non-nil when logs go through OpenTelemetry
	otelShutdown func(context.Context) error
)

// Options configures the JSON handler. Zero values keep the current setting.
type Options struct {
	Level      string
	SampleRate int
	Output     string
}

func init() {
	programLevel.Set(LevelInfo)
	sampleRate.Store(100)

	opts := Options{Level: os.Getenv("LOG_LEVEL"), Output: os.Getenv("LOG_OUTPUT")}
	if rate, err := strconv.Atoi(os.Getenv("ERROR_SAMPLE_RATE")); err == nil {
		opts.SampleRate = rate
	}
	if err := Configure(opts); err != nil {
		SetOutput(os.Stderr)
	}

	if strings.EqualFold(os.Getenv("OTEL_ENABLED"), "true") {
		serviceName := os.Getenv("OTEL_SERVICE_NAME")
		if serviceName == "" {
			serviceName = "bon-calculadora"
		}
		if err := enableOTEL(context.Background(), serviceName); err != nil {
			fmt.Fprintf(os.Stderr, "OpenTelemetry logging unavailable, keeping JSON output: %v\n", err)
		}
	}
}

// Configure applies opts. Logs default to stderr because the MCP stdio transport
// owns stdout. The output is left alone once OpenTelemetry is enabled.
func Configure(opts Options) error {
	if opts.Level != "" {
		level, err := ParseLevel(opts.Level)
		if err != nil {
			return err
		}
		programLevel.Set(level)
	}
	if opts.SampleRate > 0 {
		sampleRate.Store(int32(opts.SampleRate))
	}

	var w io.Writer
	switch strings.ToLower(opts.Output) {
	case "", OutputStderr:
		w = os.Stderr
	case OutputStdout:
		w = os.Stdout
	default:
		return fmt.Errorf("unknown log output %q (use stderr or stdout)", opts.Output)
	}
	SetOutput(w)
	return nil
}

// SetOutput sends JSON logs to w
func SetOutput(w io.Writer) {
	if otelShutdown != nil {
		return
	}
	Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: programLevel}))
	slog.SetDefault(Logger)
}

func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts a level name to slog.Level
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(name) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", name)
	}
}

// Shutdown flushes the OpenTelemetry exporter, if any
func Shutdown(ctx context.Context) error {
	if otelShutdown != nil {
		return otelShutdown(ctx)
	}
	return nil
}

func sampled() bool {
	rate := sampleRate.Load()
	return rate <= 1 || rand.Intn(int(rate)) == 0
}

func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn counts every call and logs a sample of them
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if sampled() {
		Logger.Warn(msg, args...)
	}
}

// Error counts every call and logs a sample of them
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if sampled() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs unsampled, flushes OpenTelemetry and exits with status 1
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	_ = Shutdown(context.Background())
	os.Exit(1)
}
