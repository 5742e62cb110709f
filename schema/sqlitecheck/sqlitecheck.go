// Package sqlitecheck is a cross-cutting integration-test helper: it
// executes schema-generator output against a real, embedded SQLite engine
// rather than a test double, confirming the synthesized DDL is valid
// SQLite rather than merely well-formed per this module's own renderer.
package sqlitecheck

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver selects which embedded engine Open uses.
const (
	// DriverCgo is github.com/mattn/go-sqlite3, the teacher's own sqlite3
	// adapter driver.
	DriverCgo = "sqlite3"
	// DriverPureGo is modernc.org/sqlite, a build-tag-free fallback for
	// environments where cgo is undesirable, registered under the
	// "sqlite" driver name alongside go-sqlite3's "sqlite3".
	DriverPureGo = "sqlite"
)

// Open opens a fresh in-memory database under driver ("" defaults to
// DriverCgo).
func Open(driver string) (*sql.DB, error) {
	if driver == "" {
		driver = DriverCgo
	}
	db, err := sql.Open(driver, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("sqlitecheck: opening %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitecheck: pinging %s: %w", driver, err)
	}
	return db, nil
}

// Execute runs every statement in ddls against db in order, stopping at the
// first one that fails.
func Execute(db *sql.DB, ddls []string) error {
	for i, stmt := range ddls {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlitecheck: statement %d (%s): %w", i, stmt, err)
		}
	}
	return nil
}
