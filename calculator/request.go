package calculator

import (
	"encoding/json"
	"fmt"
)

// Request is the nested envelope the ruleset expects: {"input": {...}}
type Request struct {
	Input ScenarioInput `json:"input"`
}

// NewRequest wraps a decoded scenario in the engine envelope
func NewRequest(in ScenarioInput) Request {
	return Request{Input: in}
}

// Facts serializes the request to the engine's generic JSON value
func (r Request) Facts() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, &EncodingError{Err: fmt.Errorf("encode request: %w", err)}
	}
	var facts map[string]any
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, &EncodingError{Err: fmt.Errorf("decode request: %w", err)}
	}
	return facts, nil
}
