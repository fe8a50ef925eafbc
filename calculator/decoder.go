package calculator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Wire keys of the caller-facing parameters
const (
	FieldRelationship       = "parentesco"
	FieldTrigger            = "situacion"
	FieldSingleParentFamily = "familia_monoparental"
	FieldChildCount         = "numero_hijos"
)

// DecodeError reports a caller value that could not be coerced to the shape a
// parameter requires. It is returned before the rules engine is involved.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ScenarioInput is the strict form of a caller's scenario
type ScenarioInput struct {
	Relationship       string   `json:"parentesco"`
	Trigger            string   `json:"situacion"`
	SingleParentFamily bool     `json:"familia_monoparental"`
	ChildCount         *float64 `json:"numero_hijos,omitempty"`
}

// DecodeBool accepts a native boolean or the strings "true"/"false" in any case.
// A missing value is an error: boolean parameters are mandatory.
func DecodeBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return false, &DecodeError{Reason: fmt.Sprintf("invalid boolean string: %s", v)}
	case nil:
		return false, &DecodeError{Reason: "expected bool or string, got null"}
	default:
		return false, &DecodeError{Reason: fmt.Sprintf("expected bool or string, got %T", raw)}
	}
}

// DecodeNumber accepts a native number, a numeric string, or null.
// Null and absence yield nil: numeric parameters are optional. NaN and infinities
// are rejected in either form.
func DecodeNumber(raw any) (*float64, error) {
	var f float64
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("invalid number: %s", v)}
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &DecodeError{Reason: fmt.Sprintf("invalid number string: %s", v)}
		}
		f = parsed
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("expected number, string, or null, got %T", raw)}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &DecodeError{Reason: fmt.Sprintf("non-finite number: %v", raw)}
	}
	return &f, nil
}

// decodeString requires a present string value
func decodeString(raw any, present bool) (string, error) {
	if !present {
		return "", &DecodeError{Reason: "missing field"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &DecodeError{Reason: fmt.Sprintf("expected string, got %T", raw)}
	}
	return s, nil
}

// withField names the parameter on a decode error
func withField(field string, err error) error {
	if de, ok := err.(*DecodeError); ok {
		return &DecodeError{Field: field, Reason: de.Reason}
	}
	return err
}

// DecodeParams coerces the flat, loosely typed caller arguments into a ScenarioInput.
// Unknown keys are ignored.
func DecodeParams(args map[string]any) (ScenarioInput, error) {
	var in ScenarioInput
	var err error

	raw, ok := args[FieldRelationship]
	if in.Relationship, err = decodeString(raw, ok); err != nil {
		return ScenarioInput{}, withField(FieldRelationship, err)
	}

	raw, ok = args[FieldTrigger]
	if in.Trigger, err = decodeString(raw, ok); err != nil {
		return ScenarioInput{}, withField(FieldTrigger, err)
	}

	raw, ok = args[FieldSingleParentFamily]
	if !ok {
		return ScenarioInput{}, &DecodeError{Field: FieldSingleParentFamily, Reason: "missing field"}
	}
	if in.SingleParentFamily, err = DecodeBool(raw); err != nil {
		return ScenarioInput{}, withField(FieldSingleParentFamily, err)
	}

	if in.ChildCount, err = DecodeNumber(args[FieldChildCount]); err != nil {
		return ScenarioInput{}, withField(FieldChildCount, err)
	}

	return in, nil
}

// UnmarshalJSON decodes a scenario tolerantly, accepting stringified booleans and numbers
func (in *ScenarioInput) UnmarshalJSON(data []byte) error {
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return &DecodeError{Reason: fmt.Sprintf("expected a JSON object: %v", err)}
	}
	decoded, err := DecodeParams(args)
	if err != nil {
		return err
	}
	*in = decoded
	return nil
}
