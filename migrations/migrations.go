// Package migrations bundles the SQL migrations for the rulesets table
package migrations

import "embed"

// FS holds the up and down migrations in golang-migrate file naming
//
//go:embed *.sql
var FS embed.FS
