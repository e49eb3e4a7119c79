package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tbdash/domain/dataset"
	"tbdash/internal/errors"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the aggregate table the dashboard reads from
type MigrationRunner struct {
	version  string
	table    string
	measures []string
}

// NewRunner creates a runner for table with one DOUBLE PRECISION column
// per measure
func NewRunner(table string, measures []string) *MigrationRunner {
	return &MigrationRunner{
		version:  "1.0.0",
		table:    table,
		measures: append([]string(nil), measures...),
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, r.CreateTableSQL()); err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to create %s table", r.table), err)
	}

	for _, stmt := range r.AddColumnSQL() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to add measure columns to %s", r.table), err)
		}
	}

	if _, err := db.ExecContext(ctx, r.CreateIndexSQL()); err != nil {
		return errors.DatabaseError(fmt.Sprintf("failed to index %s", r.table), err)
	}

	return nil
}

// CreateTableSQL is the DDL for the aggregate table
func (r *MigrationRunner) CreateTableSQL() string {
	cols := []string{
		pq.QuoteIdentifier(dataset.ColumnCountry) + " TEXT NOT NULL",
		pq.QuoteIdentifier(dataset.ColumnISO3) + " TEXT NOT NULL",
		pq.QuoteIdentifier(dataset.ColumnYear) + " INTEGER NOT NULL",
	}
	for _, m := range r.measures {
		cols = append(cols, pq.QuoteIdentifier(m)+" DOUBLE PRECISION")
	}
	cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s, %s)",
		pq.QuoteIdentifier(dataset.ColumnISO3), pq.QuoteIdentifier(dataset.ColumnYear)))

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		pq.QuoteIdentifier(r.table), strings.Join(cols, ",\n\t"))
}

// AddColumnSQL adds measures introduced after the table was first created
func (r *MigrationRunner) AddColumnSQL() []string {
	stmts := make([]string, 0, len(r.measures))
	for _, m := range r.measures {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s DOUBLE PRECISION",
			pq.QuoteIdentifier(r.table), pq.QuoteIdentifier(m)))
	}
	return stmts
}

// CreateIndexSQL indexes the year column used by the valid-year filter
func (r *MigrationRunner) CreateIndexSQL() string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		pq.QuoteIdentifier("idx_"+r.table+"_year"), pq.QuoteIdentifier(r.table), pq.QuoteIdentifier(dataset.ColumnYear))
}
