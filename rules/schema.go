package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// inputSchema is the compiled request schema of a ruleset
type inputSchema struct {
	compiled *jsonschema.Schema
	doc      any // raw schema document, used to phrase enum violations
}

// compileInputSchema compiles the ruleset's input schema as draft 2020-12
func compileInputSchema(rulesetName string, raw json.RawMessage) (*inputSchema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	schemaURL := fmt.Sprintf("https://excedencia.schemas.local/%s/input.schema.json", rulesetName)
	if err := c.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("input schema load failed: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("input schema compile failed: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("input schema decode failed: %w", err)
	}

	return &inputSchema{compiled: compiled, doc: doc}, nil
}

// validate checks a JSON-shaped request and returns one FieldError per violated
// leaf keyword, sorted by path. A nil slice means the request is valid.
func (s *inputSchema) validate(request map[string]any) []FieldError {
	err := s.compiled.Validate(request)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []FieldError{{Message: err.Error(), Path: ""}}
	}

	var out []FieldError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, FieldError{
				Message: s.message(e, request),
				Path:    e.InstanceLocation,
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// message phrases enum violations as `<value> is not one of [<allowed>]` and keeps
// the validator's wording for every other keyword
func (s *inputSchema) message(e *jsonschema.ValidationError, request map[string]any) string {
	_, keywordPtr, found := strings.Cut(e.AbsoluteKeywordLocation, "#")
	if !found || !strings.HasSuffix(keywordPtr, "/enum") {
		return e.Message
	}

	allowed, ok := lookupPointer(s.doc, keywordPtr)
	if !ok {
		return e.Message
	}
	value, ok := lookupPointer(request, e.InstanceLocation)
	if !ok {
		return e.Message
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return e.Message
	}
	allowedJSON, err := json.Marshal(allowed)
	if err != nil {
		return e.Message
	}
	return fmt.Sprintf("%s is not one of %s", valueJSON, allowedJSON)
}

// lookupPointer resolves an RFC 6901 JSON pointer against a decoded JSON document
func lookupPointer(doc any, pointer string) (any, bool) {
	if pointer == "" {
		return doc, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}

	current := doc
	for _, token := range strings.Split(pointer[1:], "/") {
		token = strings.ReplaceAll(token, "~1", "/")
		token = strings.ReplaceAll(token, "~0", "~")

		switch node := current.(type) {
		case map[string]any:
			next, exists := node[token]
			if !exists {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(token)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
