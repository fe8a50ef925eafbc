package rules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Bookkeeping keys the engine adds to every row output
const (
	OutputRuleKey    = "_regla"
	OutputRulesetKey = "_normativa"
)

// Engine manages the CEL environment, the compiled input schema and the compiled
// decision table of one ruleset. It is safe for concurrent evaluations.
type Engine struct {
	env      *cel.Env
	ruleset  *Ruleset
	schema   *inputSchema
	cache    OutcomeCache           // optional cache of successful results
	programs map[string]cel.Program // ruleID -> compiled condition
	computed map[string]cel.Program // field -> compiled expression
	mu       sync.RWMutex
}

// NewEngine creates a rules engine bound to a ruleset, compiling its input schema,
// every row condition and every computed field up front
func NewEngine(rs *Ruleset) (*Engine, error) {
	return NewEngineWithCache(rs, nil)
}

// NewEngineWithCache creates a rules engine that stores successful results in cache
func NewEngineWithCache(rs *Ruleset, cache OutcomeCache) (*Engine, error) {
	if err := ValidateRuleset(rs); err != nil {
		return nil, fmt.Errorf("invalid ruleset: %w", err)
	}

	// Both the request payload and the row output are plain JSON objects
	env, err := cel.NewEnv(
		cel.Variable("input", cel.DynType),
		cel.Variable("output", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	schema, err := compileInputSchema(rs.Name, rs.InputSchema)
	if err != nil {
		return nil, err
	}

	en := &Engine{
		env:      env,
		ruleset:  rs,
		schema:   schema,
		cache:    cache,
		programs: make(map[string]cel.Program),
		computed: make(map[string]cel.Program),
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

// Ruleset returns the ruleset the engine is bound to
func (en *Engine) Ruleset() *Ruleset {
	return en.ruleset
}

// compile turns an expression into a CEL program with state tracking and a cost limit
func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	// Cost limit of 1,000,000 prevents resource exhaustion from complex expressions
	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// CompileRule compiles a single row condition to a CEL program
func (en *Engine) CompileRule(ruleID, expression string) error {
	prog, err := en.compile(expression)
	if err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[ruleID] = prog
	en.mu.Unlock()

	return nil
}

// CompileAllRules compiles every row condition and computed field of the ruleset
func (en *Engine) CompileAllRules() error {
	for _, rule := range en.ruleset.Rules {
		if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	for name, expression := range en.ruleset.Computed {
		prog, err := en.compile(expression)
		if err != nil {
			return fmt.Errorf("failed to compile computed field %s: %w", name, err)
		}
		en.mu.Lock()
		en.computed[name] = prog
		en.mu.Unlock()
	}

	return nil
}

// Evaluate runs a request through the decision table.
//
// A request that violates the input schema fails with a *NodeError whose Source is a
// *ValidationFailure. A row whose condition cannot be evaluated fails with a
// *NodeError naming that row. Rows are tried in order and the first match wins; when
// nothing matches the ruleset default output is used.
func (en *Engine) Evaluate(ctx context.Context, request map[string]any) (*EvaluationResult, error) {
	normalized, err := normalizeObject(request)
	if err != nil {
		return nil, fmt.Errorf("request is not a JSON object: %w", err)
	}

	key, err := en.cacheKey(normalized)
	if err == nil && en.cache != nil {
		if payload, ok := en.cache.Get(ctx, key); ok {
			var cached EvaluationResult
			if err := json.Unmarshal(payload, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	if issues := en.schema.validate(normalized); len(issues) > 0 {
		return nil, &NodeError{NodeID: RequestNodeID, Source: &ValidationFailure{Errors: issues}}
	}

	input := normalized["input"]
	vars := map[string]any{"input": input, "output": map[string]any{}}

	result := &EvaluationResult{}
	output := en.ruleset.Default
	for _, rule := range en.ruleset.Rules {
		en.mu.RLock()
		prog, exists := en.programs[rule.ID]
		en.mu.RUnlock()

		if !exists {
			return nil, &NodeError{NodeID: rule.ID, Source: fmt.Errorf("rule %s is not compiled", rule.ID)}
		}

		out, details, err := prog.ContextEval(ctx, vars)
		if err != nil {
			return nil, &NodeError{NodeID: rule.ID, Source: err}
		}

		// Non-boolean results never match
		if matched, ok := out.Value().(bool); ok && matched {
			result.RuleID = rule.ID
			result.RuleName = rule.Name
			result.Matched = true
			if details != nil {
				result.Trace = details.State()
			}
			output = rule.Output
			break
		}
	}

	outputCopy, err := normalizeObject(output)
	if err != nil {
		return nil, &NodeError{NodeID: result.RuleID, Source: fmt.Errorf("output is not a JSON object: %w", err)}
	}
	outputCopy[OutputRuleKey] = result.RuleID
	outputCopy[OutputRulesetKey] = en.ruleset.Name + "@" + en.ruleset.Version

	payload := make(map[string]any, len(normalized)+len(en.computed)+1)
	for k, v := range normalized {
		payload[k] = v
	}
	payload["output"] = outputCopy

	vars["output"] = outputCopy
	for name, prog := range en.computed {
		out, _, err := prog.ContextEval(ctx, vars)
		if err != nil {
			return nil, &NodeError{NodeID: name, Source: err}
		}
		payload[name] = out.Value()
	}

	// Round-trip the payload so callers get plain JSON values
	result.Result, err = normalizeObject(payload)
	if err != nil {
		return nil, &NodeError{NodeID: result.RuleID, Source: fmt.Errorf("result is not JSON-encodable: %w", err)}
	}

	if key != "" && en.cache != nil {
		if data, err := json.Marshal(cachedResult(result)); err == nil {
			en.cache.Set(ctx, key, data)
		}
	}

	return result, nil
}

// cachedResult drops the trace, which holds CEL values that do not encode to JSON
func cachedResult(r *EvaluationResult) EvaluationResult {
	return EvaluationResult{
		RuleID:   r.RuleID,
		RuleName: r.RuleName,
		Matched:  r.Matched,
		Result:   r.Result,
	}
}

// cacheKey hashes the ruleset identity and the canonical request encoding.
// encoding/json sorts map keys, so equal requests hash equally.
func (en *Engine) cacheKey(request map[string]any) (string, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(en.ruleset.Name+"@"+en.ruleset.Version+"\n"), data...))
	return hex.EncodeToString(sum[:]), nil
}

// normalizeObject deep-copies v through its JSON encoding
func normalizeObject(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
