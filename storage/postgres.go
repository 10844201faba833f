package storage

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Postgres is a Backend backed by lib/pq, using pq.CopyIn for bulk
// loads the way the teacher's PSQLFeedWriter batches trips and
// stop_times (storage/postgres.go, PSQLTripBatchSize/
// PSQLStopTimeBatchSize) — generalized here to every table, since the
// schema-driven loader no longer special-cases stop_times.
type Postgres struct {
	db *sql.DB
	tx *sql.Tx

	bulkTable   string
	bulkColumns []string
	bulkStmt    *sql.Stmt
}

func NewPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Begin() error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	p.tx = tx
	return nil
}

func (p *Postgres) Commit() error {
	if p.tx == nil {
		return nil
	}
	err := p.tx.Commit()
	p.tx = nil
	return err
}

func (p *Postgres) Rollback() error {
	if p.tx == nil {
		return nil
	}
	err := p.tx.Rollback()
	p.tx = nil
	return err
}

func (p *Postgres) Placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}

func (p *Postgres) Exec(stmt string, args ...interface{}) error {
	if p.tx != nil {
		_, err := p.tx.Exec(stmt, args...)
		return err
	}
	_, err := p.db.Exec(stmt, args...)
	return err
}

func (p *Postgres) BeginBulk(table string, columns []string) error {
	stmt := pq.CopyIn(table, columns...)
	var err error
	if p.tx != nil {
		p.bulkStmt, err = p.tx.Prepare(stmt)
	} else {
		p.bulkStmt, err = p.db.Prepare(stmt)
	}
	if err != nil {
		return fmt.Errorf("preparing COPY for %s: %w", table, err)
	}
	p.bulkTable = table
	p.bulkColumns = columns
	return nil
}

func (p *Postgres) BulkCopy(rows []Row) error {
	if p.bulkStmt == nil {
		return fmt.Errorf("BulkCopy called without BeginBulk")
	}
	for _, row := range rows {
		if _, err := p.bulkStmt.Exec(row...); err != nil {
			return fmt.Errorf("COPY into %s: %w", p.bulkTable, err)
		}
	}
	return nil
}

func (p *Postgres) EndBulk() error {
	if p.bulkStmt == nil {
		return nil
	}
	if _, err := p.bulkStmt.Exec(); err != nil {
		return fmt.Errorf("flushing COPY into %s: %w", p.bulkTable, err)
	}
	err := p.bulkStmt.Close()
	p.bulkStmt = nil
	p.bulkTable = ""
	p.bulkColumns = nil
	return err
}

func (p *Postgres) Query(query string, args ...interface{}) (*sql.Rows, error) {
	if p.tx != nil {
		return p.tx.Query(query, args...)
	}
	return p.db.Query(query, args...)
}

func (p *Postgres) QueryRow(query string, args ...interface{}) *sql.Row {
	if p.tx != nil {
		return p.tx.QueryRow(query, args...)
	}
	return p.db.QueryRow(query, args...)
}

func (p *Postgres) CreateTable(namespace string, ddl TableDDL) error {
	return p.Exec(CreateTableSQL(ddl))
}

func (p *Postgres) DropNamespace(namespace string, tables []string) error {
	for _, t := range tables {
		if err := p.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", TableName(namespace, t))); err != nil {
			return err
		}
	}
	_, err := p.db.Exec("DELETE FROM feeds WHERE namespace = $1", namespace)
	return err
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
