package rules

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxRules        = 500
	maxIdentifierLn = 100
)

var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateRuleset validates a ruleset document before it is compiled.
// Returns an error if validation fails, nil if the ruleset is well formed.
func ValidateRuleset(rs *Ruleset) error {
	if rs == nil {
		return fmt.Errorf("ruleset cannot be nil")
	}
	if strings.TrimSpace(rs.Name) == "" {
		return fmt.Errorf("ruleset name cannot be empty")
	}
	if strings.TrimSpace(rs.Version) == "" {
		return fmt.Errorf("ruleset %q has an empty version", rs.Name)
	}
	if rs.HitPolicy != HitPolicyFirst {
		return fmt.Errorf("ruleset %q has unsupported hit policy %q (must be %q)", rs.Name, rs.HitPolicy, HitPolicyFirst)
	}
	if len(rs.InputSchema) == 0 {
		return fmt.Errorf("ruleset %q has no input schema", rs.Name)
	}

	if len(rs.Rules) == 0 {
		return fmt.Errorf("ruleset %q must contain at least one rule", rs.Name)
	}
	if len(rs.Rules) > maxRules {
		return fmt.Errorf("ruleset %q contains %d rules, maximum allowed is %d", rs.Name, len(rs.Rules), maxRules)
	}

	seen := make(map[string]bool, len(rs.Rules))
	for i, rule := range rs.Rules {
		if rule == nil {
			return fmt.Errorf("rule #%d is empty", i)
		}
		if err := validateIdentifier(rule.ID); err != nil {
			return fmt.Errorf("invalid rule id %q: %w", rule.ID, err)
		}
		if seen[rule.ID] {
			return fmt.Errorf("duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = true

		if strings.TrimSpace(rule.Expression) == "" {
			return fmt.Errorf("rule %q has an empty condition", rule.ID)
		}
		if err := checkOutput(rule.Output, rs.OutputFields); err != nil {
			return fmt.Errorf("rule %q: %w", rule.ID, err)
		}
	}

	if err := checkOutput(rs.Default, rs.OutputFields); err != nil {
		return fmt.Errorf("default output: %w", err)
	}

	for name, expr := range rs.Computed {
		if err := validateIdentifier(name); err != nil {
			return fmt.Errorf("invalid computed field name %q: %w", name, err)
		}
		if name == "input" || name == "output" {
			return fmt.Errorf("computed field %q would overwrite the %s payload", name, name)
		}
		if strings.TrimSpace(expr) == "" {
			return fmt.Errorf("computed field %q has an empty expression", name)
		}
	}

	return nil
}

func checkOutput(output map[string]any, required []string) error {
	if output == nil {
		return fmt.Errorf("output cannot be empty")
	}
	for _, field := range required {
		if _, ok := output[field]; !ok {
			return fmt.Errorf("output is missing field %q", field)
		}
	}
	return nil
}

// validateIdentifier validates a rule id or computed field name.
// Must match ^[a-zA-Z_][a-zA-Z0-9_]*$, be 1-100 characters and not be a reserved keyword.
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierLn {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(name), maxIdentifierLn)
	}

	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$ (start with letter or underscore, followed by letters, digits, or underscores)")
	}

	if isReservedKeyword(name) {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}

	return nil
}

// isReservedKeyword checks if a name is a CEL reserved keyword
func isReservedKeyword(name string) bool {
	reservedKeywords := map[string]bool{
		"true":  true,
		"false": true,
		"null":  true,

		"if":       true,
		"else":     true,
		"for":      true,
		"while":    true,
		"break":    true,
		"continue": true,
		"return":   true,

		"var":      true,
		"let":      true,
		"const":    true,
		"function": true,

		"in":        true,
		"as":        true,
		"import":    true,
		"package":   true,
		"namespace": true,
		"loop":      true,
		"void":      true,
	}

	return reservedKeywords[name]
}
