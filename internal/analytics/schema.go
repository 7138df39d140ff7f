// Package analytics mirrors the ledger into a DuckDB database for ad-hoc
// SQL over accuracy trends. The JSON ledger stays the source of truth; the
// mirror is rebuildable at any time and ingestion is idempotent.
package analytics

import (
	"database/sql"
	_ "embed"
	"errors"

	_ "github.com/duckdb/duckdb-go/v2"
)

// schemaDDL holds the DuckDB schema definition.
//
//go:embed schema.sql
var schemaDDL string

// SchemaDDL returns the schema DDL used for initializing mirror databases.
func SchemaDDL() string {
	return schemaDDL
}

// Open opens (or creates) a mirror database at path. Use ":memory:" for an
// ephemeral database.
func Open(path string) (*sql.DB, error) {
	return sql.Open("duckdb", path)
}

// EnsureSchema applies the schema DDL to the provided database connection.
func EnsureSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("analytics: db is nil")
	}
	_, err := db.Exec(schemaDDL)
	return err
}
