package rules

import (
	"encoding/json"
	"fmt"
)

// HitPolicyFirst selects the first row whose condition holds
const HitPolicyFirst = "first"

// Ruleset is a versioned decision table document. It is loaded once and never mutated.
type Ruleset struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	HitPolicy   string            `json:"hitPolicy"`
	InputSchema json.RawMessage   `json:"inputSchema"`
	Rules       []*Rule           `json:"rules"`
	Default     map[string]any    `json:"default"`
	Computed    map[string]string `json:"computed,omitempty"`
	// OutputFields lists the keys every row output (and the default) must carry
	OutputFields []string `json:"outputFields,omitempty"`
}

// Rule represents a single row of the decision table
type Rule struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Expression string         `json:"when"`
	Output     map[string]any `json:"output"`
}

// EvaluationResult contains the outcome of evaluating a request against a ruleset
type EvaluationResult struct {
	RuleID   string
	RuleName string
	Matched  bool
	// Result is the raw engine payload: the request echoed back, the row output
	// under "output" and every computed field.
	Result map[string]any
	Trace  any // CEL evaluation state of the matching row (optional)
}

// ParseRuleset decodes and validates a ruleset document
func ParseRuleset(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset: %w", err)
	}
	if rs.HitPolicy == "" {
		rs.HitPolicy = HitPolicyFirst
	}
	if err := ValidateRuleset(&rs); err != nil {
		return nil, err
	}
	return &rs, nil
}
