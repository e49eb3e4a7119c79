package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbdash/domain/feature"
	"tbdash/internal/errors"
)

func writeDataset(t *testing.T) string {
	t.Helper()
	ids := feature.DefaultCatalog().IDs()
	var b strings.Builder
	b.WriteString("country,iso3,year," + strings.Join(ids, ",") + "\n")
	for _, row := range []string{"Afghanistan,AFG,2010", "Afghanistan,AFG,2011", "Albania,ALB,2010"} {
		cells := make([]string, len(ids))
		for i := range cells {
			cells[i] = "NA"
		}
		cells[0] = "10"
		b.WriteString(row + "," + strings.Join(cells, ",") + "\n")
	}
	path := filepath.Join(t.TempDir(), "who.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TBDASH_DATABASE_URL", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := run(t, "validate", "--data-file", writeDataset(t))
	require.NoError(t, err)

	assert.Contains(t, out, "rows:     3")
	assert.Contains(t, out, "years:    2010-2011 (2)")
	assert.Contains(t, out, "features: 17")
}

func TestFeatures(t *testing.T) {
	out, err := run(t, "features", "--data-file", writeDataset(t))
	require.NoError(t, err)

	assert.Contains(t, out, "c_newinc")
	assert.Contains(t, out, "New Cases Reported")
	assert.Contains(t, out, "2010-2011")
}

func TestRender(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "fig.json")
	_, err := run(t, "render", "c_newinc", "--data-file", writeDataset(t), "--out", dest)
	require.NoError(t, err)

	fig, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(fig), "Global TB Map for New Cases Reported")
}

func TestRender_UnknownFeature(t *testing.T) {
	_, err := run(t, "render", "bogus", "--data-file", writeDataset(t))
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnknownFeature, errors.GetCode(err))
}

func TestImport_RequiresDatabase(t *testing.T) {
	_, err := run(t, "import", writeDataset(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-url")
}

func TestGenerateThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "who.xlsx")
	out, err := run(t, "generate", path, "--start-year", "2010", "--end-year", "2012", "--empty-years", "2011")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 36 rows")

	out, err = run(t, "validate", "--data-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "rows:     36")

	_, err = run(t, "generate", filepath.Join(t.TempDir(), "who.json"))
	assert.Error(t, err)
}
