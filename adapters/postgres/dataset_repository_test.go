package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbdash/domain/dataset"
	"tbdash/internal/errors"
	"tbdash/internal/migration"
)

func TestSelectQuery(t *testing.T) {
	repo := NewDatasetRepository(nil, "who_tb_data_agg", []string{"c_newinc", "new_ep"})

	assert.Equal(t,
		`SELECT "country", "iso3", "year", "c_newinc", "new_ep" FROM "who_tb_data_agg" ORDER BY "country", "year"`,
		repo.SelectQuery())
	assert.Equal(t, "postgres:who_tb_data_agg", repo.Describe())
}

func TestUpsertQuery(t *testing.T) {
	repo := NewDatasetRepository(nil, "who_tb_data_agg", []string{"c_newinc"})

	assert.Equal(t,
		`INSERT INTO "who_tb_data_agg" ("country", "iso3", "year", "c_newinc") VALUES ($1, $2, $3, $4) `+
			`ON CONFLICT ("iso3", "year") DO UPDATE SET "country" = EXCLUDED."country", "c_newinc" = EXCLUDED."c_newinc"`,
		repo.UpsertQuery())
}

func TestImport_RejectsMissingMeasure(t *testing.T) {
	b, err := dataset.NewBuilder([]string{"c_newinc"})
	require.NoError(t, err)
	table := b.Build("who.csv")

	repo := NewDatasetRepository(nil, "who_tb_data_agg", []string{"c_newinc", "ret_rel"})
	_, err = repo.Import(context.Background(), table)

	require.Error(t, err)
	assert.Equal(t, errors.CodeDatasetInvalid, errors.GetCode(err))
}

// TestRoundTrip needs a scratch database: TEST_DATABASE_URL=postgres://...
func TestRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	measures := []string{"c_newinc", "new_ep"}
	tableName := "tbdash_roundtrip_test"
	_, _ = db.ExecContext(ctx, `DROP TABLE IF EXISTS `+tableName)
	defer db.ExecContext(ctx, `DROP TABLE IF EXISTS `+tableName)
	require.NoError(t, migration.NewRunner(tableName, measures).Run(ctx, db))

	b, err := dataset.NewBuilder(measures)
	require.NoError(t, err)
	require.NoError(t, b.Add("Afghanistan", "AFG", 2010, []float64{120, dataset.Missing()}))
	require.NoError(t, b.Add("Afghanistan", "AFG", 2011, []float64{dataset.Missing(), 3}))
	source := b.Build("memory")

	repo := NewDatasetRepository(db, tableName, measures)
	n, err := repo.Import(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
	v, ok := loaded.Value("c_newinc", 0)
	assert.True(t, ok)
	assert.Equal(t, 120.0, v)
	_, ok = loaded.Value("c_newinc", 1)
	assert.False(t, ok)
}

// TestImport_FailedRowRollsBack needs TEST_DATABASE_URL like TestRoundTrip.
func TestImport_FailedRowRollsBack(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	measures := []string{"c_newinc"}
	tableName := "tbdash_rollback_test"
	_, _ = db.ExecContext(ctx, `DROP TABLE IF EXISTS `+tableName)
	defer db.ExecContext(ctx, `DROP TABLE IF EXISTS `+tableName)
	require.NoError(t, migration.NewRunner(tableName, measures).Run(ctx, db))

	b, err := dataset.NewBuilder(measures)
	require.NoError(t, err)
	require.NoError(t, b.Add("Afghanistan", "AFG", 2010, []float64{120}))
	// overflows the INTEGER year column
	require.NoError(t, b.Add("Afghanistan", "AFG", 1<<40, []float64{130}))

	repo := NewDatasetRepository(db, tableName, measures)
	n, err := repo.Import(ctx, b.Build("memory"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseError, errors.GetCode(err))
	assert.Equal(t, 0, n)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
}
