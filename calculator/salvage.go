package calculator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/liamcoop/excedencia/rules"
)

// UnknownPath is reported when a heuristically recovered issue names no field
const UnknownPath = "/input/unknown"

// enumViolationPhrase is how the engine words enum-membership violations
const enumViolationPhrase = "is not one of"

// Strategy recovers validation issues from an engine failure. Every strategy is
// total and side-effect free; ok is false when it recovered nothing.
type Strategy struct {
	Name    string
	Extract func(err error) (issues []ValidationIssue, ok bool)
}

// Strategies is the salvage cascade, tried in order. Each stage is more permissive
// than the previous one.
var Strategies = []Strategy{
	{Name: "typed", Extract: ExtractTyped},
	{Name: "marker", Extract: ExtractMarkers},
	{Name: "heuristic", Extract: ExtractHeuristic},
}

// Extract runs the cascade and returns the first recovered issues together with the
// name of the strategy that found them. No issues means err is not a validation failure.
func Extract(err error) ([]ValidationIssue, string) {
	if err == nil {
		return nil, ""
	}
	for _, s := range Strategies {
		if issues, ok := s.Extract(err); ok {
			return issues, s.Name
		}
	}
	return nil, ""
}

// ExtractTyped reads the issues straight from a wrapped *rules.ValidationFailure
func ExtractTyped(err error) ([]ValidationIssue, bool) {
	var vf *rules.ValidationFailure
	if !errors.As(err, &vf) || len(vf.Errors) == 0 {
		return nil, false
	}
	issues := make([]ValidationIssue, 0, len(vf.Errors))
	for _, fe := range vf.Errors {
		issues = append(issues, ValidationIssue{Message: fe.Message, Path: fe.Path})
	}
	return issues, true
}

// ExtractMarkers scans the diagnostic text of err for an embedded validation
// envelope and decodes it
func ExtractMarkers(err error) ([]ValidationIssue, bool) {
	for _, text := range DiagnosticTexts(err) {
		if issues, ok := ScanMarkers(text); ok {
			return issues, true
		}
	}
	return nil, false
}

// ExtractHeuristic pulls a single enum violation out of the diagnostic text of err
// when no envelope decodes
func ExtractHeuristic(err error) ([]ValidationIssue, bool) {
	for _, text := range DiagnosticTexts(err) {
		if issues, ok := ScanHeuristic(text); ok {
			return issues, true
		}
	}
	return nil, false
}

// DiagnosticTexts renders err and, for node failures, the node's own source error
func DiagnosticTexts(err error) []string {
	texts := []string{fmt.Sprintf("%+v", err)}
	var nodeErr *rules.NodeError
	if errors.As(err, &nodeErr) && nodeErr.Source != nil {
		texts = append(texts, fmt.Sprintf("%+v", nodeErr.Source))
	}
	return texts
}

// marker pairs an opening and closing substring with the decoder for the span between them
type marker struct {
	open   string
	close  string
	decode func(candidate string) ([]ValidationIssue, bool)
}

var markers = []marker{
	{open: `{"source":{"errors":`, close: `"type":"Validation"}`, decode: decodeEnvelope},
	{open: `{"errors":`, close: `"type":"Validation"}`, decode: decodeErrorsObject},
	{open: `"errors":[`, close: `]`, decode: decodeErrorsMember},
}

// ScanMarkers looks for each marker in priority order. For the first opening marker
// found, the candidate runs to the first closing marker after it.
func ScanMarkers(text string) ([]ValidationIssue, bool) {
	for _, m := range markers {
		start := strings.Index(text, m.open)
		if start < 0 {
			continue
		}
		from := start + len(m.open)
		rel := strings.Index(text[from:], m.close)
		if rel < 0 {
			continue
		}
		candidate := text[start : from+rel+len(m.close)]
		if issues, ok := m.decode(candidate); ok {
			return issues, true
		}
	}
	return nil, false
}

// decodeEnvelope decodes {"source":{"errors":[...]},"type":"Validation"}
func decodeEnvelope(candidate string) ([]ValidationIssue, bool) {
	var env struct {
		Source *struct {
			Errors []ValidationIssue `json:"errors"`
		} `json:"source"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(candidate), &env); err != nil || env.Source == nil {
		return nil, false
	}
	return checkIssues(env.Source.Errors)
}

// decodeErrorsObject decodes {"errors":[...],"type":"Validation"}
func decodeErrorsObject(candidate string) ([]ValidationIssue, bool) {
	var obj struct {
		Errors []ValidationIssue `json:"errors"`
	}
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, false
	}
	return checkIssues(obj.Errors)
}

// decodeErrorsMember decodes a bare "errors":[...] member by wrapping it in an object
func decodeErrorsMember(candidate string) ([]ValidationIssue, bool) {
	return decodeErrorsObject("{" + candidate + "}")
}

// checkIssues accepts a non-empty list where every issue carries a message
func checkIssues(issues []ValidationIssue) ([]ValidationIssue, bool) {
	if len(issues) == 0 {
		return nil, false
	}
	for _, issue := range issues {
		if issue.Message == "" {
			return nil, false
		}
	}
	return issues, true
}

// ScanHeuristic handles enum violations whose envelope did not decode. The text is
// split on commas and every "message" and "path" fragment found by prefix
// overwrites the previous one, so the last of each wins. Only texts carrying the
// enum violation phrase qualify.
func ScanHeuristic(text string) ([]ValidationIssue, bool) {
	if !strings.Contains(text, enumViolationPhrase) {
		return nil, false
	}

	var message, path string
	for _, fragment := range strings.Split(text, ",") {
		if v, ok := quotedAfter(fragment, `"message":"`); ok {
			message = v
		}
		if v, ok := quotedAfter(fragment, `"path":"`); ok {
			path = v
		}
	}

	if message == "" {
		return nil, false
	}
	if path == "" {
		path = UnknownPath
	}
	return []ValidationIssue{{Message: message, Path: path}}, true
}

// quotedAfter returns the text following prefix up to the next unescaped quote,
// with escaped quotes unescaped. A fragment whose closing quote was cut off by the
// comma split yields nothing.
func quotedAfter(fragment, prefix string) (string, bool) {
	idx := strings.Index(fragment, prefix)
	if idx < 0 {
		return "", false
	}
	rest := fragment[idx+len(prefix):]

	end := -1
	for i := 0; i < len(rest); i++ {
		if rest[i] == '\\' {
			i++
			continue
		}
		if rest[i] == '"' {
			end = i
			break
		}
	}

	if end < 0 {
		return "", false
	}

	value := strings.ReplaceAll(rest[:end], `\"`, `"`)
	return value, value != ""
}
