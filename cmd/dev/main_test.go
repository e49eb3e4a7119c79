package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbdash/domain/feature"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestSmoke(t *testing.T) {
	out := execute(t, "smoke", "--seed", "3")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, feature.DefaultCatalog().Len())
	assert.True(t, strings.HasPrefix(lines[0], "c_newinc"))
}

func TestDeterminism(t *testing.T) {
	out := execute(t, "determinism")
	assert.Contains(t, out, "17 features rendered identically")
}

func TestSyntheticContainer(t *testing.T) {
	c, err := syntheticContainer(42)
	require.NoError(t, err)

	years := c.Table.Years()
	assert.Len(t, years, 11)
	assert.NotNil(t, c.Maps)
}
