package calculator

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationIssue is a single field-level rejection reported by the rules engine
type ValidationIssue struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

// ValidationError means the ruleset rejected a correctly shaped scenario.
// It is the expected outcome of bad business input and always carries every issue.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("Errores de validación:\n")
	for _, issue := range e.Issues {
		fmt.Fprintf(&b, "  - %s: %s\n", issue.Path, issue.Message)
	}
	return b.String()
}

// EngineError is a rules engine failure unrelated to input validation
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("Error del motor de decisión: %v", e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// EncodingError means a value could not cross the request or response boundary.
// It indicates a contract mismatch with the ruleset and is never expected.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("Error de serialización: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// InternalError means the isolated evaluation unit itself failed
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("Error interno: %v", e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Kind names the failure class of err for logs and metrics
func Kind(err error) string {
	var (
		decodeErr     *DecodeError
		validationErr *ValidationError
		engineErr     *EngineError
		encodingErr   *EncodingError
		internalErr   *InternalError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &validationErr):
		return "validation"
	case errors.As(err, &internalErr):
		return "internal"
	case errors.As(err, &encodingErr):
		return "encoding"
	case errors.As(err, &engineErr):
		return "engine"
	case errors.As(err, &decodeErr):
		return "decode"
	default:
		return "unknown"
	}
}

// Report renders a failure as the human-readable text returned to callers.
// Validation failures list one line per issue.
func Report(err error) string {
	var (
		decodeErr     *DecodeError
		validationErr *ValidationError
		encodingErr   *EncodingError
		internalErr   *InternalError
	)
	switch {
	case errors.As(err, &validationErr):
		var b strings.Builder
		b.WriteString("Errores de validación:\n")
		for _, issue := range validationErr.Issues {
			fmt.Fprintf(&b, "  - Campo '%s': %s\n", issue.Path, issue.Message)
		}
		return b.String()
	case errors.As(err, &internalErr):
		return internalErr.Error()
	case errors.As(err, &encodingErr):
		return fmt.Sprintf("Error al evaluar: %v", encodingErr)
	case errors.As(err, &decodeErr):
		return fmt.Sprintf("Parámetros no válidos: %v", decodeErr)
	default:
		return fmt.Sprintf("Error al evaluar: %v", err)
	}
}
