package logger

import "sync/atomic"

// Counters exposed on the health endpoint. They move on every call, sampled or not.
var (
	TotalErrors        atomic.Int64
	TotalWarnings      atomic.Int64
	Total5xxErrors     atomic.Int64
	Total4xxErrors     atomic.Int64
	Total400Errors     atomic.Int64
	Total422Errors     atomic.Int64
	SlowEvaluations    atomic.Int64
	ValidationFailures atomic.Int64
)

// ErrorHttp5xx records a server error response
func ErrorHttp5xx() {
	Total5xxErrors.Add(1)
	TotalErrors.Add(1)
}

// WarnHttp4xx records a client error response
func WarnHttp4xx(status int) {
	Total4xxErrors.Add(1)
	TotalWarnings.Add(1)

	switch status {
	case 400:
		Total400Errors.Add(1)
	case 422:
		Total422Errors.Add(1)
	}
}

func WarnSlowEvaluation() {
	SlowEvaluations.Add(1)
	TotalWarnings.Add(1)
}

// CountValidationFailure records a request rejected by the ruleset schema.
// Those are ordinary user errors, so no warning is counted.
func CountValidationFailure() {
	ValidationFailures.Add(1)
}

// Counters returns a snapshot keyed by the names used in health responses
func Counters() map[string]int64 {
	return map[string]int64{
		"errors":             TotalErrors.Load(),
		"warnings":           TotalWarnings.Load(),
		"http5xx":            Total5xxErrors.Load(),
		"http4xx":            Total4xxErrors.Load(),
		"http400":            Total400Errors.Load(),
		"http422":            Total422Errors.Load(),
		"slowEvaluations":    SlowEvaluations.Load(),
		"validationFailures": ValidationFailures.Load(),
	}
}
