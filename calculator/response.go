package calculator

import (
	"encoding/json"
	"fmt"
)

// Outcome is the caller-facing evaluation result. It is built once per evaluation
// and never mutated.
type Outcome struct {
	Description             string   `json:"descripcion"`
	MonthlyAmount           int32    `json:"importe_mensual"`
	AdditionalRequirements  string   `json:"requisitos_adicionales"`
	CaseLabel               string   `json:"supuesto"`
	HasPotentialEntitlement bool     `json:"tiene_derecho_potencial"`
	Errors                  []string `json:"errores"`
	Warnings                []string `json:"advertencias"`
}

// Response is the success payload returned to callers
type Response struct {
	Output            Outcome        `json:"output"`
	Input             *ScenarioInput `json:"input,omitempty"`
	RelationshipValid *bool          `json:"parentesco_valido,omitempty"`

	// EvaluationID correlates the response with log lines
	EvaluationID string `json:"-"`
}

// engineOutput is the ruleset's own output contract. Pointer fields are mandatory;
// bookkeeping keys the ruleset adds are ignored.
type engineOutput struct {
	Description             *string  `json:"descripcion"`
	MonthlyAmount           *int32   `json:"importe_mensual"`
	AdditionalRequirements  string   `json:"requisitos_adicionales"`
	CaseLabel               *string  `json:"supuesto"`
	HasPotentialEntitlement *bool    `json:"tiene_derecho_potencial"`
	Errors                  []string `json:"errores"`
	Warnings                []string `json:"advertencias"`
}

type engineResult struct {
	Output            *engineOutput  `json:"output"`
	Input             *ScenarioInput `json:"input"`
	RelationshipValid *bool          `json:"parentesco_valido"`
}

// Reshape converts the engine's raw result into the caller-facing Response,
// keeping only the outcome fields. Malformed engine output is an *EncodingError.
func Reshape(raw map[string]any) (*Response, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, &EncodingError{Err: fmt.Errorf("encode engine result: %w", err)}
	}

	var result engineResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &EncodingError{Err: fmt.Errorf("decode engine result: %w", err)}
	}
	if result.Output == nil {
		return nil, &EncodingError{Err: fmt.Errorf("engine result has no output")}
	}

	out := result.Output
	switch {
	case out.Description == nil:
		return nil, &EncodingError{Err: fmt.Errorf("missing field %q", "descripcion")}
	case out.MonthlyAmount == nil:
		return nil, &EncodingError{Err: fmt.Errorf("missing field %q", "importe_mensual")}
	case out.CaseLabel == nil:
		return nil, &EncodingError{Err: fmt.Errorf("missing field %q", "supuesto")}
	case out.HasPotentialEntitlement == nil:
		return nil, &EncodingError{Err: fmt.Errorf("missing field %q", "tiene_derecho_potencial")}
	}

	resp := &Response{
		Output: Outcome{
			Description:             *out.Description,
			MonthlyAmount:           *out.MonthlyAmount,
			AdditionalRequirements:  out.AdditionalRequirements,
			CaseLabel:               *out.CaseLabel,
			HasPotentialEntitlement: *out.HasPotentialEntitlement,
			Errors:                  nonNil(out.Errors),
			Warnings:                nonNil(out.Warnings),
		},
		Input:             result.Input,
		RelationshipValid: result.RelationshipValid,
	}
	return resp, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
