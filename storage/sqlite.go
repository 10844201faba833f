package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig picks where the single SQLite database file lives. All
// namespaces share one file, distinguished by their table-name
// prefix, unlike the teacher's one-file-per-feed layout
// (storage/sqlite.go historically opened a `*sql.DB` per feed hash) —
// that approach doesn't generalize once tables are named
// "<namespace>_<table>" rather than being the whole database.
type SQLiteConfig struct {
	OnDisk    bool
	Directory string
	Filename  string
}

// SQLite is a Backend backed by a single mattn/go-sqlite3 database.
type SQLite struct {
	db *sql.DB
	tx *sql.Tx

	bulkTable   string
	bulkColumns []string
	bulkStmt    *sql.Stmt
}

func NewSQLite(cfg SQLiteConfig) (*SQLite, error) {
	dsn := ":memory:"
	if cfg.OnDisk {
		name := cfg.Filename
		if name == "" {
			name = "gtfs.db"
		}
		dsn = filepath.Join(cfg.Directory, name)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite3: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging sqlite3: %w", err)
	}
	// GTFS archives routinely have concurrent validator reads while
	// the loader still holds the write transaction open; WAL mode
	// keeps those from blocking each other.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Begin() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *SQLite) Commit() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

func (s *SQLite) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}

func (s *SQLite) execer() interface {
	Exec(string, ...interface{}) (sql.Result, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *SQLite) Placeholder(i int) string {
	return "?"
}

func (s *SQLite) Exec(stmt string, args ...interface{}) error {
	_, err := s.execer().Exec(stmt, args...)
	return err
}

func (s *SQLite) BeginBulk(table string, columns []string) error {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "?"
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
	)

	var err error
	if s.tx != nil {
		s.bulkStmt, err = s.tx.Prepare(q)
	} else {
		s.bulkStmt, err = s.db.Prepare(q)
	}
	if err != nil {
		return fmt.Errorf("preparing bulk insert for %s: %w", table, err)
	}
	s.bulkTable = table
	s.bulkColumns = columns
	return nil
}

func (s *SQLite) BulkCopy(rows []Row) error {
	if s.bulkStmt == nil {
		return fmt.Errorf("BulkCopy called without BeginBulk")
	}
	for _, row := range rows {
		if _, err := s.bulkStmt.Exec(row...); err != nil {
			return fmt.Errorf("inserting into %s: %w", s.bulkTable, err)
		}
	}
	return nil
}

func (s *SQLite) EndBulk() error {
	if s.bulkStmt == nil {
		return nil
	}
	err := s.bulkStmt.Close()
	s.bulkStmt = nil
	s.bulkTable = ""
	s.bulkColumns = nil
	return err
}

func (s *SQLite) Query(query string, args ...interface{}) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.Query(query, args...)
	}
	return s.db.Query(query, args...)
}

func (s *SQLite) QueryRow(query string, args ...interface{}) *sql.Row {
	if s.tx != nil {
		return s.tx.QueryRow(query, args...)
	}
	return s.db.QueryRow(query, args...)
}

func (s *SQLite) CreateTable(namespace string, ddl TableDDL) error {
	return s.Exec(CreateTableSQL(ddl))
}

func (s *SQLite) DropNamespace(namespace string, tables []string) error {
	for _, t := range tables {
		if err := s.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", TableName(namespace, t))); err != nil {
			return err
		}
	}
	_, err := s.db.Exec("DELETE FROM feeds WHERE namespace = ?", namespace)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// RemoveFile deletes the on-disk database file, mirroring the
// teacher's practice of treating feed storage as disposable test
// fixtures (testutil.BuildStorage).
func RemoveFile(cfg SQLiteConfig) error {
	if !cfg.OnDisk {
		return nil
	}
	name := cfg.Filename
	if name == "" {
		name = "gtfs.db"
	}
	return os.Remove(filepath.Join(cfg.Directory, name))
}
