package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"tbdash/domain/dataset"
	"tbdash/internal"
	"tbdash/internal/errors"
)

// DatasetRepository reads and writes the aggregated WHO table in PostgreSQL
type DatasetRepository struct {
	db       *sqlx.DB
	table    string
	measures []string
	logger   *internal.Logger
}

// NewDatasetRepository creates a repository over table. measures are the
// numeric columns to select; they usually come from the feature catalog.
func NewDatasetRepository(db *sqlx.DB, table string, measures []string) *DatasetRepository {
	return &DatasetRepository{
		db:       db,
		table:    table,
		measures: append([]string(nil), measures...),
		logger:   internal.DefaultLogger.With("DatasetRepository"),
	}
}

// Describe names the source for logs and error messages
func (r *DatasetRepository) Describe() string {
	return "postgres:" + r.table
}

// Load reads the whole table ordered by country and year
func (r *DatasetRepository) Load(ctx context.Context) (*dataset.Table, error) {
	rows, err := r.db.QueryxContext(ctx, r.SelectQuery())
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to query %s", r.table), err)
	}
	defer rows.Close()

	builder, err := dataset.NewBuilder(r.measures)
	if err != nil {
		return nil, errors.Wrap(errors.DatasetInvalid(err.Error()), "build table")
	}

	var (
		country, iso3 sql.NullString
		year          int
	)
	nulls := make([]sql.NullFloat64, len(r.measures))
	dest := make([]interface{}, 0, 3+len(r.measures))
	dest = append(dest, &country, &iso3, &year)
	for i := range nulls {
		dest = append(dest, &nulls[i])
	}
	values := make([]float64, len(r.measures))

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.DatabaseError(fmt.Sprintf("failed to scan %s row", r.table), err)
		}
		for i, n := range nulls {
			if n.Valid {
				values[i] = n.Float64
			} else {
				values[i] = dataset.Missing()
			}
		}
		if err := builder.Add(country.String, iso3.String, year, values); err != nil {
			return nil, errors.Wrap(errors.DatasetInvalid(err.Error()), "build table")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to read %s", r.table), err)
	}

	table := builder.Build(r.Describe())
	r.logger.Info("loaded %d rows, %d years from %s", table.Len(), len(table.Years()), r.Describe())
	return table, nil
}

// Import upserts every row of table in one transaction and returns the
// number of rows written. Only the repository's measures are stored.
func (r *DatasetRepository) Import(ctx context.Context, table *dataset.Table) (int, error) {
	for _, m := range r.measures {
		if !table.HasMeasure(m) {
			return 0, errors.DatasetInvalid(fmt.Sprintf("%s has no column %s", table.Source(), m))
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.DatabaseError("failed to begin import", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, r.UpsertQuery())
	if err != nil {
		return 0, errors.DatabaseError("failed to prepare import", err)
	}
	defer stmt.Close()

	args := make([]interface{}, 3+len(r.measures))
	for i := 0; i < table.Len(); i++ {
		args[0], args[1], args[2] = table.Country(i), table.ISO3(i), table.Year(i)
		for j, m := range r.measures {
			if v, ok := table.Value(m, i); ok {
				args[3+j] = v
			} else {
				args[3+j] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, errors.DatabaseError(fmt.Sprintf("failed to import %s/%d", table.ISO3(i), table.Year(i)), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.DatabaseError("failed to commit import", err)
	}
	r.logger.Info("imported %d rows into %s", table.Len(), r.table)
	return table.Len(), nil
}

// SelectQuery is the statement used by Load
func (r *DatasetRepository) SelectQuery() string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY %s, %s",
		strings.Join(r.columns(), ", "),
		pq.QuoteIdentifier(r.table),
		pq.QuoteIdentifier(dataset.ColumnCountry),
		pq.QuoteIdentifier(dataset.ColumnYear))
}

// UpsertQuery is the statement used by Import
func (r *DatasetRepository) UpsertQuery() string {
	cols := r.columns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := make([]string, 0, len(cols)-2)
	for _, c := range cols {
		if c == pq.QuoteIdentifier(dataset.ColumnISO3) || c == pq.QuoteIdentifier(dataset.ColumnYear) {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s, %s) DO UPDATE SET %s",
		pq.QuoteIdentifier(r.table),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		pq.QuoteIdentifier(dataset.ColumnISO3),
		pq.QuoteIdentifier(dataset.ColumnYear),
		strings.Join(updates, ", "))
}

func (r *DatasetRepository) columns() []string {
	cols := make([]string, 0, 3+len(r.measures))
	for _, k := range dataset.KeyColumns {
		cols = append(cols, pq.QuoteIdentifier(k))
	}
	for _, m := range r.measures {
		cols = append(cols, pq.QuoteIdentifier(m))
	}
	return cols
}
