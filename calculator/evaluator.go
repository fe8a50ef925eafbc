package calculator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/excedencia/internal/logger"
	"github.com/liamcoop/excedencia/rules"
)

// Outcome labels used for logging and metrics
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation"
	OutcomeEngine     = "engine"
	OutcomeEncoding   = "encoding"
	OutcomeInternal   = "internal"
	OutcomeDecode     = "decode"
)

// Decider runs one rules-engine evaluation over the generic request facts
type Decider interface {
	Decide(ctx context.Context, facts map[string]any) (map[string]any, error)
}

// DeciderFunc adapts a function to the Decider interface
type DeciderFunc func(ctx context.Context, facts map[string]any) (map[string]any, error)

func (f DeciderFunc) Decide(ctx context.Context, facts map[string]any) (map[string]any, error) {
	return f(ctx, facts)
}

// RegistryDecider obtains the engine from a registry and evaluates against it.
// Engine construction happens on first use.
type RegistryDecider struct {
	Registry *rules.Registry
}

func (d RegistryDecider) Decide(ctx context.Context, facts map[string]any) (map[string]any, error) {
	engine, err := d.Registry.Engine(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ruleset: %w", err)
	}
	result, err := engine.Evaluate(ctx, facts)
	if err != nil {
		return nil, err
	}
	return result.Result, nil
}

// Observer receives evaluation telemetry
type Observer interface {
	ObserveEvaluation(outcome string, duration time.Duration)
	ObserveSalvage(strategy string)
}

type nopObserver struct{}

func (nopObserver) ObserveEvaluation(string, time.Duration) {}
func (nopObserver) ObserveSalvage(string)                   {}

// Evaluator is the evaluation orchestrator. It is safe for concurrent use.
type Evaluator struct {
	decider       Decider
	observer      Observer
	slowThreshold time.Duration
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithObserver reports evaluation outcomes and salvage hits to o
func WithObserver(o Observer) Option {
	return func(e *Evaluator) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithSlowThreshold logs evaluations slower than d. Zero disables it.
func WithSlowThreshold(d time.Duration) Option {
	return func(e *Evaluator) {
		e.slowThreshold = d
	}
}

// NewEvaluator creates an Evaluator backed by decider
func NewEvaluator(decider Decider, opts ...Option) *Evaluator {
	e := &Evaluator{
		decider:  decider,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRegistryEvaluator creates an Evaluator over the ruleset held by registry
func NewRegistryEvaluator(registry *rules.Registry, opts ...Option) *Evaluator {
	return NewEvaluator(RegistryDecider{Registry: registry}, opts...)
}

type decision struct {
	result map[string]any
	err    error
}

// EvaluateArgs decodes loosely typed caller arguments and evaluates them
func (e *Evaluator) EvaluateArgs(ctx context.Context, args map[string]any) (*Response, error) {
	in, err := DecodeParams(args)
	if err != nil {
		e.observer.ObserveEvaluation(OutcomeDecode, 0)
		logger.Debug("Rejected evaluation arguments", "error", err)
		return nil, err
	}
	return e.Evaluate(ctx, in)
}

// Evaluate runs one evaluation of in. Failures are one of *ValidationError,
// *EngineError, *EncodingError or *InternalError.
func (e *Evaluator) Evaluate(ctx context.Context, in ScenarioInput) (*Response, error) {
	id := uuid.NewString()
	start := time.Now()

	resp, err := e.evaluate(ctx, in)

	elapsed := time.Since(start)
	outcome := Kind(err)
	e.observer.ObserveEvaluation(outcome, elapsed)

	if e.slowThreshold > 0 && elapsed > e.slowThreshold {
		logger.WarnSlowEvaluation()
		logger.Warn("Slow evaluation", "evaluation_id", id, "duration_ms", elapsed.Milliseconds())
	}

	switch outcome {
	case OutcomeSuccess:
		resp.EvaluationID = id
		logger.Debug("Evaluation completed",
			"evaluation_id", id,
			"supuesto", resp.Output.CaseLabel,
			"importe_mensual", resp.Output.MonthlyAmount,
			"duration_ms", elapsed.Milliseconds())
		return resp, nil
	case OutcomeValidation:
		logger.CountValidationFailure()
		logger.Info("Evaluation rejected by ruleset", "evaluation_id", id, "error", err)
	default:
		logger.Error("Evaluation failed", "evaluation_id", id, "outcome", outcome, "error", err)
	}
	return nil, &evaluationFailure{id: id, err: err}
}

func (e *Evaluator) evaluate(ctx context.Context, in ScenarioInput) (*Response, error) {
	facts, err := NewRequest(in).Facts()
	if err != nil {
		return nil, err
	}

	d, err := e.decide(ctx, facts)
	if err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, e.classify(d.err)
	}
	return Reshape(d.result)
}

// decide runs the engine in its own goroutine and joins on it. A panic inside the
// engine or an abandoned join is an *InternalError.
func (e *Evaluator) decide(ctx context.Context, facts map[string]any) (decision, error) {
	done := make(chan decision, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Evaluation goroutine panicked", "panic", r, "stack", string(debug.Stack()))
				done <- decision{err: &InternalError{Err: fmt.Errorf("evaluation panicked: %v", r)}}
			}
		}()
		result, err := e.decider.Decide(ctx, facts)
		done <- decision{result: result, err: err}
	}()

	select {
	case d := <-done:
		var internalErr *InternalError
		if errors.As(d.err, &internalErr) {
			return decision{}, internalErr
		}
		return d, nil
	case <-ctx.Done():
		return decision{}, &InternalError{Err: ctx.Err()}
	}
}

// classify turns an engine error into a ValidationError when salvage recovers
// issues, or an EngineError otherwise
func (e *Evaluator) classify(err error) error {
	issues, strategy := Extract(err)
	if len(issues) == 0 {
		return &EngineError{Err: err}
	}
	e.observer.ObserveSalvage(strategy)
	if strategy != "typed" {
		logger.Debug("Recovered validation issues from engine diagnostics", "strategy", strategy, "issues", len(issues))
	}
	return &ValidationError{Issues: issues}
}

// evaluationFailure tags a failure with its evaluation ID without changing its text
type evaluationFailure struct {
	id  string
	err error
}

func (f *evaluationFailure) Error() string { return f.err.Error() }

func (f *evaluationFailure) Unwrap() error { return f.err }

// EvaluationID returns the evaluation ID attached to a failure returned by Evaluate
func EvaluationID(err error) string {
	var f *evaluationFailure
	if errors.As(err, &f) {
		return f.id
	}
	return ""
}
