// Schema migrations for the trace archive database. Migration files are
// embedded into the binary and tracked in a schema_migrations table so
// startup can apply them idempotently.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed migrations/*.up.sql
var migrationFS embed.FS

// MigrateUp applies every pending *.up.sql migration in filename order.
// Migrations already recorded in schema_migrations are skipped, so calling
// this on every startup is safe. Each migration runs in its own transaction.
func MigrateUp(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("migrate: read applied versions: %w", err)
	}

	names, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("migrate: glob embedded files: %w", err)
	}
	// Numeric prefixes (001_, 002_, ...) make lexicographic order correct.
	sort.Strings(names)

	for _, path := range names {
		name := path[len("migrations/"):]
		version := parseVersion(name)
		if version == 0 {
			return fmt.Errorf("migrate: %s has no numeric version prefix", name)
		}
		if applied[version] {
			continue
		}

		body, readErr := migrationFS.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("migrate: read %s: %w", name, readErr)
		}
		if applyErr := applyMigration(db, version, name, string(body)); applyErr != nil {
			return fmt.Errorf("migrate: apply %s: %w", name, applyErr)
		}
	}

	return nil
}

// MigrationVersion reports the highest applied migration version, or 0 when
// the database is fresh.
func MigrationVersion(db *sql.DB) (int, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return 0, fmt.Errorf("migrate: ensure migrations table: %w", err)
	}

	var version int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("migrate: query version: %w", err)
	}
	return version, nil
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER NOT NULL PRIMARY KEY,
			name        TEXT    NOT NULL,
			applied_at  TEXT    NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

// appliedVersions loads the set of already-applied migration versions.
func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// parseVersion extracts the numeric prefix from "001_trace_archive.up.sql".
// Returns 0 when the filename has no such prefix.
func parseVersion(name string) int {
	var version int
	if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
		return 0
	}
	return version
}

// applyMigration executes one migration's SQL and records it, atomically.
func applyMigration(db *sql.DB, version int, name, body string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(body); err != nil {
		return fmt.Errorf("exec SQL: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		version, name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}
