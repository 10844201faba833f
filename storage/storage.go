// Package storage provides the namespace-aware relational backend
// used by every other package: load, refcheck, pattern, svccal,
// validate and export all talk to a Backend, never to database/sql
// directly.
package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode"
)

// Row is one bulk-insert row, in the column order passed to
// BeginBulk.
type Row []interface{}

// Backend is the namespace-aware relational contract every pipeline
// stage programs against. It generalizes the teacher's
// storage.FeedWriter/FeedReader pair (which hard-coded one Go method
// per GTFS table) into a schema-driven interface so a single
// implementation can serve every table the registry knows about,
// GTFS-Flex included.
//
// Two implementations exist: SQLite and Postgres. Both name tables
// "<namespace>_<table>" rather than using a native schema, so the
// same DDL templates and the same interface work against SQLite
// (which has no schema namespacing) without a backend-specific code
// path. This mirrors the teacher's own Postgres backend, which also
// declines to use real per-feed Postgres schemas and instead tags
// every row with a `hash` column (storage/postgres.go) — here the
// tag moves from a row column to the table name itself, so queries
// never need an extra WHERE clause to stay within one namespace.
type Backend interface {
	// Begin starts a transaction. Exec and BulkCopy calls made after
	// Begin and before Commit/Rollback run inside it.
	Begin() error
	Commit() error
	Rollback() error

	// Exec runs one DDL or DML statement with positional args.
	Exec(stmt string, args ...interface{}) error

	// BeginBulk prepares table for a batch of bulk inserts over the
	// given columns. Table is the namespaced table name, as returned
	// by TableName.
	BeginBulk(table string, columns []string) error

	// BulkCopy writes rows to the table named in the matching
	// BeginBulk call.
	BulkCopy(rows []Row) error

	// EndBulk flushes and closes the bulk insert started by
	// BeginBulk.
	EndBulk() error

	// Placeholder renders the i'th (1-based) positional parameter
	// marker for this backend's driver: "?" for SQLite, "$i" for
	// Postgres. Every caller that builds parameterized SQL dynamically
	// (load, gtfsdb) goes through this instead of hard-coding one
	// driver's syntax.
	Placeholder(i int) string

	// Query runs a read-only query against the backend.
	Query(query string, args ...interface{}) (*sql.Rows, error)

	// QueryRow runs a read-only query expected to return at most one
	// row.
	QueryRow(query string, args ...interface{}) *sql.Row

	// CreateTable issues the DDL for a namespaced table derived from
	// a schema.Table descriptor (see ddl.go).
	CreateTable(namespace string, ddl TableDDL) error

	// DropNamespace removes every table belonging to namespace. Used
	// by Service.Delete.
	DropNamespace(namespace string, tables []string) error

	Close() error
}

// TableName returns the namespaced name for a logical table, e.g.
// TableName("a1b2c3", "stops") -> "a1b2c3_stops".
func TableName(namespace, table string) string {
	return fmt.Sprintf("%s_%s", namespace, table)
}

// EnsureValidNamespace rejects a namespace that could break out of
// the "<namespace>_<table>" identifiers every query in refcheck,
// pattern, svccal, validate and export builds with fmt.Sprintf rather
// than a parameterized placeholder. load.NewNamespace only ever
// produces lowercase letters, so this only matters for
// namespaces supplied by a caller (the CLI, an importer).
func EnsureValidNamespace(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("namespace must not be empty")
	}
	if strings.ContainsAny(namespace, "';") || strings.IndexFunc(namespace, unicode.IsSpace) >= 0 {
		return fmt.Errorf("namespace %q contains a disallowed character", namespace)
	}
	return nil
}
