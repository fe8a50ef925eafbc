package rules

import (
	"encoding/json"
	"fmt"
)

// RequestNodeID identifies the schema validation step in a NodeError
const RequestNodeID = "request"

// NodeError reports a failure inside one node of the evaluation: the request
// validation step or a single decision table row.
type NodeError struct {
	NodeID string
	Source error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Source)
}

func (e *NodeError) Unwrap() error {
	return e.Source
}

// FieldError is a single schema violation
type FieldError struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

// ValidationFailure is returned (wrapped in a NodeError) when a request does not
// satisfy the ruleset's input schema. Its text form is the JSON envelope
// {"source":{"errors":[...]},"type":"Validation"}.
type ValidationFailure struct {
	Errors []FieldError
}

type validationEnvelope struct {
	Source struct {
		Errors []FieldError `json:"errors"`
	} `json:"source"`
	Type string `json:"type"`
}

func (v *ValidationFailure) Error() string {
	var env validationEnvelope
	env.Source.Errors = v.Errors
	env.Type = "Validation"
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Sprintf("validation failed with %d errors", len(v.Errors))
	}
	return string(data)
}
