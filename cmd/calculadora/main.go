// Calculadora evaluates entitlement to the Navarra 2025 leave-of-absence
// (excedencia) subsidy.
//
// Usage:
//
//	# Serve the evaluation tool over MCP stdio
//	calculadora mcp
//
//	# Evaluate one scenario
//	calculadora evaluate --parentesco madre --situacion parto --monoparental true --hijos 1
//
//	# Publish a ruleset version to the configured database
//	calculadora ruleset publish ruleset.json --config calculadora.yaml
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
