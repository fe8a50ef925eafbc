package rules

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLSource loads ruleset documents from the rulesets table, backed by
// PostgreSQL or SQLite
type SQLSource struct {
	db      *sql.DB
	driver  string
	name    string
	version string // empty selects the active version
}

// NewSQLSource creates a source for the named ruleset. An empty version selects the
// row currently flagged active.
func NewSQLSource(db *sql.DB, driver, name, version string) (*SQLSource, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported ruleset database driver %q", driver)
	}
	return &SQLSource{db: db, driver: driver, name: name, version: version}, nil
}

// OpenSQLSource opens the database and checks connectivity
func OpenSQLSource(ctx context.Context, driver, dsn, name, version string) (*SQLSource, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewSQLSource(db, driver, name, version)
}

// rebind rewrites $n placeholders for drivers that only take ?
func (s *SQLSource) rebind(query string) string {
	if s.driver != DriverSQLite {
		return query
	}
	for i := 9; i >= 1; i-- {
		query = strings.ReplaceAll(query, fmt.Sprintf("$%d", i), "?")
	}
	return query
}

// Load reads the selected ruleset document
func (s *SQLSource) Load(ctx context.Context) (*Ruleset, error) {
	var document string
	var err error
	if s.version == "" {
		err = s.db.QueryRowContext(ctx, s.rebind(`
			SELECT document
			FROM rulesets
			WHERE name = $1 AND active = TRUE
			ORDER BY created_at DESC
			LIMIT 1
		`), s.name).Scan(&document)
	} else {
		err = s.db.QueryRowContext(ctx, s.rebind(`
			SELECT document
			FROM rulesets
			WHERE name = $1 AND version = $2
		`), s.name, s.version).Scan(&document)
	}

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ruleset %s not found", s.Describe())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ruleset: %w", err)
	}

	rs, err := ParseRuleset([]byte(document))
	if err != nil {
		return nil, fmt.Errorf("ruleset %s: %w", s.Describe(), err)
	}
	if rs.Name != s.name {
		return nil, fmt.Errorf("ruleset %s: stored document is named %q", s.Describe(), rs.Name)
	}
	return rs, nil
}

// Publish validates a ruleset document and stores it as the active version of its
// name. Previously active versions stay in the table, deactivated.
func (s *SQLSource) Publish(ctx context.Context, document []byte) (*Ruleset, error) {
	rs, err := ParseRuleset(document)
	if err != nil {
		return nil, err
	}
	// Compile once so a broken expression never becomes active
	if _, err := NewEngine(rs); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, s.rebind(`
		SELECT EXISTS(SELECT 1 FROM rulesets WHERE name = $1 AND version = $2)
	`), rs.Name, rs.Version).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check ruleset existence: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("ruleset %s@%s already exists", rs.Name, rs.Version)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE rulesets SET active = FALSE WHERE name = $1
	`), rs.Name); err != nil {
		return nil, fmt.Errorf("failed to deactivate previous rulesets: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO rulesets (name, version, document, active)
		VALUES ($1, $2, $3, TRUE)
	`), rs.Name, rs.Version, string(document)); err != nil {
		return nil, fmt.Errorf("failed to insert ruleset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit ruleset: %w", err)
	}
	return rs, nil
}

// Versions lists the stored versions of the ruleset, newest first
func (s *SQLSource) Versions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT version
		FROM rulesets
		WHERE name = $1
		ORDER BY created_at DESC, version DESC
	`), s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list ruleset versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan ruleset version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ruleset versions: %w", err)
	}
	return versions, nil
}

// Describe names the source
func (s *SQLSource) Describe() string {
	version := s.version
	if version == "" {
		version = "active"
	}
	return fmt.Sprintf("%s:%s@%s", s.driver, s.name, version)
}

// Close closes the underlying database
func (s *SQLSource) Close() error {
	return s.db.Close()
}
