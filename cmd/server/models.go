package main

import "github.com/liamcoop/excedencia/calculator"

// API request and response models

// EvaluateRequest is the flat, loosely typed evaluation body. Booleans and numbers
// may also arrive as strings.
type EvaluateRequest map[string]any

// ValidationErrorResponse is returned with 422 when the ruleset rejects the scenario
type ValidationErrorResponse struct {
	Error        string                       `json:"error"`
	Issues       []calculator.ValidationIssue `json:"issues"`
	Report       string                       `json:"report"`
	EvaluationID string                       `json:"evaluationId,omitempty"`
}

// ErrorResponse is the body of every other failure
type ErrorResponse struct {
	Error        string `json:"error"`
	Details      string `json:"details,omitempty"`
	EvaluationID string `json:"evaluationId,omitempty"`
}

// HealthResponse reports whether the ruleset is loaded
type HealthResponse struct {
	Status         string           `json:"status"`
	Ruleset        string           `json:"ruleset,omitempty"`
	RulesetVersion string           `json:"rulesetVersion,omitempty"`
	Source         string           `json:"source"`
	Error          string           `json:"error,omitempty"`
	Counters       map[string]int64 `json:"counters"`
}

// RulesetResponse summarizes the loaded ruleset
type RulesetResponse struct {
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	HitPolicy    string        `json:"hitPolicy"`
	Rules        []RuleSummary `json:"rules"`
	OutputFields []string      `json:"outputFields"`
}

type RuleSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	When string `json:"when"`
}
