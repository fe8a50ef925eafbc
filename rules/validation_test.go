package rules

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

// validRuleset returns a minimal well-formed ruleset for mutation by tests
func validRuleset() *Ruleset {
	return &Ruleset{
		Name:         "test",
		Version:      "1",
		HitPolicy:    HitPolicyFirst,
		InputSchema:  json.RawMessage(`{"type":"object"}`),
		OutputFields: []string{"amount"},
		Rules: []*Rule{
			{ID: "big", Name: "Big", Expression: `input.n > 10`, Output: map[string]any{"amount": 2}},
			{ID: "small", Name: "Small", Expression: `input.n > 0`, Output: map[string]any{"amount": 1}},
		},
		Default:  map[string]any{"amount": 0},
		Computed: map[string]string{"positive": `input.n > 0`},
	}
}

// TestValidateRuleset_Valid verifies a well-formed ruleset passes
func TestValidateRuleset_Valid(t *testing.T) {
	if err := ValidateRuleset(validRuleset()); err != nil {
		t.Fatalf("Expected valid ruleset to pass, got: %v", err)
	}
}

// TestValidateRuleset_Bundled verifies the bundled ruleset passes
func TestValidateRuleset_Bundled(t *testing.T) {
	if _, err := ParseRuleset(BundledRuleset()); err != nil {
		t.Fatalf("Bundled ruleset is invalid: %v", err)
	}
}

func TestValidateRuleset_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(rs *Ruleset)
		wantErr string
	}{
		{"empty name", func(rs *Ruleset) { rs.Name = " " }, "name cannot be empty"},
		{"empty version", func(rs *Ruleset) { rs.Version = "" }, "empty version"},
		{"unknown hit policy", func(rs *Ruleset) { rs.HitPolicy = "collect" }, "unsupported hit policy"},
		{"no schema", func(rs *Ruleset) { rs.InputSchema = nil }, "no input schema"},
		{"no rules", func(rs *Ruleset) { rs.Rules = nil }, "at least one rule"},
		{"nil rule", func(rs *Ruleset) { rs.Rules[1] = nil }, "rule #1 is empty"},
		{"bad rule id", func(rs *Ruleset) { rs.Rules[0].ID = "9lives" }, "invalid rule id"},
		{"reserved rule id", func(rs *Ruleset) { rs.Rules[0].ID = "in" }, "reserved keyword"},
		{"duplicate rule id", func(rs *Ruleset) { rs.Rules[1].ID = "big" }, "duplicate rule id"},
		{"empty condition", func(rs *Ruleset) { rs.Rules[0].Expression = "  " }, "empty condition"},
		{"missing output field", func(rs *Ruleset) { rs.Rules[1].Output = map[string]any{"other": 1} }, `missing field "amount"`},
		{"missing default", func(rs *Ruleset) { rs.Default = nil }, "default output"},
		{"computed overwrites output", func(rs *Ruleset) { rs.Computed["output"] = "true" }, "would overwrite"},
		{"computed bad name", func(rs *Ruleset) { rs.Computed["has-dash"] = "true" }, "invalid computed field name"},
		{"computed empty", func(rs *Ruleset) { rs.Computed["flag"] = "" }, "empty expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := validRuleset()
			tt.mutate(rs)

			err := ValidateRuleset(rs)
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

// TestValidateRuleset_TooManyRules verifies the 500 rule limit
func TestValidateRuleset_TooManyRules(t *testing.T) {
	rs := validRuleset()
	rs.Rules = nil
	for i := 0; i < maxRules+1; i++ {
		rs.Rules = append(rs.Rules, &Rule{
			ID:         fmt.Sprintf("r%d", i),
			Expression: "true",
			Output:     map[string]any{"amount": 0},
		})
	}

	err := ValidateRuleset(rs)
	if err == nil {
		t.Fatal("Expected error for 501 rules, got nil")
	}
	if !strings.Contains(err.Error(), "maximum allowed is 500") {
		t.Errorf("Expected error about the rule limit, got: %v", err)
	}
}

// TestValidateIdentifier_ValidFormats verifies valid identifier formats
func TestValidateIdentifier_ValidFormats(t *testing.T) {
	validIdentifiers := []string{
		"supuesto_a",
		"parentesco_valido",
		"_private",
		"Rule123",
		"_",
		"a",
		"SCREAMING_SNAKE_CASE",
	}

	for _, id := range validIdentifiers {
		if err := validateIdentifier(id); err != nil {
			t.Errorf("Expected valid identifier %q to pass validation, got error: %v", id, err)
		}
	}
}

// TestValidateIdentifier_InvalidFormats verifies invalid identifier formats are rejected
func TestValidateIdentifier_InvalidFormats(t *testing.T) {
	invalidIdentifiers := []string{
		"",
		"123rule",   // starts with digit
		"rule-name", // contains hyphen
		"rule.name", // contains dot
		"rule name", // contains space
		"rule@x",    // contains @
		"ñandú",     // non-ASCII
		strings.Repeat("a", maxIdentifierLn+1),
	}

	for _, id := range invalidIdentifiers {
		if err := validateIdentifier(id); err == nil {
			t.Errorf("Expected invalid identifier %q to fail validation", id)
		}
	}
}

// TestIsReservedKeyword verifies CEL keywords are reserved
func TestIsReservedKeyword(t *testing.T) {
	for _, kw := range []string{"true", "false", "null", "in", "as", "import", "package"} {
		if !isReservedKeyword(kw) {
			t.Errorf("Expected %q to be reserved", kw)
		}
	}
	for _, name := range []string{"input", "output", "supuesto_a"} {
		if isReservedKeyword(name) {
			t.Errorf("Expected %q not to be reserved", name)
		}
	}
}
