package rules

import (
	"context"
	_ "embed"
	"fmt"
	"os"
)

// BundledRulesetName is the name of the ruleset compiled into the binary
const BundledRulesetName = "ayuda-excedencia"

//go:embed rulesets/ayuda-excedencia-2025.json
var bundledRuleset []byte

// Source loads a ruleset document. Implementations return a freshly parsed
// ruleset on every call; callers that need a single shared copy go through a Registry.
type Source interface {
	// Load reads and validates the ruleset
	Load(ctx context.Context) (*Ruleset, error)

	// Describe names the source for logs
	Describe() string
}

// EmbeddedSource serves the ruleset bundled with the binary
type EmbeddedSource struct{}

// NewEmbeddedSource creates a source for the bundled ruleset
func NewEmbeddedSource() *EmbeddedSource {
	return &EmbeddedSource{}
}

// Load parses the bundled ruleset
func (s *EmbeddedSource) Load(_ context.Context) (*Ruleset, error) {
	rs, err := ParseRuleset(bundledRuleset)
	if err != nil {
		return nil, fmt.Errorf("bundled ruleset: %w", err)
	}
	return rs, nil
}

// Describe names the source
func (s *EmbeddedSource) Describe() string {
	return "embedded:" + BundledRulesetName
}

// BundledRuleset returns the raw bundled ruleset document
func BundledRuleset() []byte {
	out := make([]byte, len(bundledRuleset))
	copy(out, bundledRuleset)
	return out
}

// FileSource reads a ruleset document from disk
type FileSource struct {
	path string
}

// NewFileSource creates a source reading the ruleset at path
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and parses the file
func (s *FileSource) Load(_ context.Context) (*Ruleset, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset %q: %w", s.path, err)
	}
	rs, err := ParseRuleset(data)
	if err != nil {
		return nil, fmt.Errorf("ruleset %q: %w", s.path, err)
	}
	return rs, nil
}

// Describe names the source
func (s *FileSource) Describe() string {
	return "file:" + s.path
}
