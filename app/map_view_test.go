package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbdash/domain/dataset"
	"tbdash/domain/feature"
	"tbdash/domain/mapview"
	"tbdash/internal/errors"
	"tbdash/internal/profiling"
)

type row struct {
	country string
	iso3    string
	year    int
	values  []float64
}

func tableOf(t *testing.T, measures []string, rows ...row) *dataset.Table {
	t.Helper()
	b, err := dataset.NewBuilder(measures)
	require.NoError(t, err)
	for _, r := range rows {
		require.NoError(t, b.Add(r.country, r.iso3, r.year, r.values))
	}
	return b.Build("test")
}

func catalogOf(t *testing.T, features ...feature.Feature) *feature.Catalog {
	t.Helper()
	c, err := feature.NewCatalog(features...)
	require.NoError(t, err)
	return c
}

var nan = dataset.Missing()

func TestBuildMapView_AfghanistanScenario(t *testing.T) {
	table := tableOf(t, []string{"c_newinc"},
		row{"Afghanistan", "AFG", 2010, []float64{120}},
		row{"Afghanistan", "AFG", 2011, []float64{nan}},
	)

	view, err := BuildMapView(table, feature.DefaultCatalog(), "c_newinc")
	require.NoError(t, err)

	require.False(t, view.NoData)
	req := view.Request
	require.NotNil(t, req)
	assert.Equal(t, 1, req.Table.Len())
	assert.Equal(t, 2010, req.Table.Year(0))
	assert.Equal(t, mapview.Range{Min: 0, Max: 120}, req.ColorRange)
	assert.Contains(t, req.Title, "New Cases Reported")
	assert.Equal(t, "Global TB Map for New Cases Reported", req.Title)
	assert.Equal(t, "New Cases Reported", req.ColorbarTitle)
	assert.Equal(t, "iso3", req.LocationField)
	assert.Equal(t, "c_newinc", req.ColorField)
	assert.Equal(t, "country", req.HoverField)
	assert.Equal(t, "year", req.AnimationField)
}

func TestBuildMapView_ValidYearsKeepOtherFeatureRows(t *testing.T) {
	table := tableOf(t, []string{"c_newinc", "new_ep"},
		row{"Angola", "AGO", 2010, []float64{10, 1}},
		row{"Benin", "BEN", 2010, []float64{nan, 2}},
		row{"Angola", "AGO", 2011, []float64{nan, 3}},
		row{"Benin", "BEN", 2011, []float64{nan, 4}},
		row{"Angola", "AGO", 2012, []float64{30, nan}},
	)
	catalog := catalogOf(t, feature.Feature{ID: "c_newinc", Label: "New Cases Reported"})

	view, err := BuildMapView(table, catalog, "c_newinc")
	require.NoError(t, err)
	require.NotNil(t, view.Request)

	filtered := view.Request.Table
	assert.Equal(t, []int{2010, 2012}, filtered.Years())
	assert.Equal(t, 3, filtered.Len())

	// Benin 2010 stays although its own value is missing.
	assert.Equal(t, "BEN", filtered.ISO3(1))
	_, present := filtered.Value("c_newinc", 1)
	assert.False(t, present)
	assert.Equal(t, 5, table.Len(), "source table must be untouched")
}

func TestBuildMapView_RangeIsP99OfFilteredValues(t *testing.T) {
	var rows []row
	for i := 1; i <= 200; i++ {
		rows = append(rows, row{"Country", "CTY", 2000 + i%5, []float64{float64(i)}})
	}
	rows = append(rows, row{"Country", "CTY", 1999, []float64{nan}})
	table := tableOf(t, []string{"c_newinc"}, rows...)
	catalog := catalogOf(t, feature.Feature{ID: "c_newinc", Label: "New Cases Reported"})

	view, err := BuildMapView(table, catalog, "c_newinc")
	require.NoError(t, err)

	values, err := view.Request.Table.NonMissing("c_newinc")
	require.NoError(t, err)
	want, err := profiling.Percentile(values, 0.99)
	require.NoError(t, err)

	assert.Equal(t, 0.0, view.Request.ColorRange.Min)
	assert.Equal(t, want, view.Request.ColorRange.Max)
	assert.InDelta(t, 198.01, view.Request.ColorRange.Max, 1e-9)
	assert.NotContains(t, view.Request.Table.Years(), 1999)
}

func TestBuildMapView_SingleValueBoundary(t *testing.T) {
	table := tableOf(t, []string{"ret_rel"},
		row{"Chad", "TCD", 2014, []float64{nan}},
		row{"Chad", "TCD", 2015, []float64{42}},
		row{"Mali", "MLI", 2015, []float64{nan}},
	)
	catalog := catalogOf(t, feature.Feature{ID: "ret_rel", Label: "Relapse Cases"})

	view, err := BuildMapView(table, catalog, "ret_rel")
	require.NoError(t, err)

	assert.Equal(t, mapview.Range{Min: 0, Max: 42}, view.Request.ColorRange)
	assert.Equal(t, 2, view.Request.Table.Len())
}

func TestBuildMapView_AllMissingIsNoData(t *testing.T) {
	table := tableOf(t, []string{"c_newinc", "c_new_un"},
		row{"Afghanistan", "AFG", 2010, []float64{120, nan}},
		row{"Afghanistan", "AFG", 2011, []float64{130, nan}},
	)
	catalog := catalogOf(t,
		feature.Feature{ID: "c_newinc", Label: "New Cases Reported"},
		feature.Feature{ID: "c_new_un", Label: "New Cases Unknown Sex"},
	)

	view, err := BuildMapView(table, catalog, "c_new_un")
	require.NoError(t, err)

	assert.True(t, view.NoData)
	assert.Nil(t, view.Request)
	assert.Equal(t, "c_new_un", view.Feature)
	assert.Equal(t, mapview.NoDataMessage, view.Message)
}

func TestBuildMapView_EmptyTableIsNoData(t *testing.T) {
	table := tableOf(t, []string{"c_newinc"})
	catalog := catalogOf(t, feature.Feature{ID: "c_newinc", Label: "New Cases Reported"})

	view, err := BuildMapView(table, catalog, "c_newinc")
	require.NoError(t, err)
	assert.True(t, view.NoData)
}

func TestBuildMapView_UnknownFeatureRejected(t *testing.T) {
	table := tableOf(t, []string{"c_newinc", "e_inc_num"},
		row{"Afghanistan", "AFG", 2010, []float64{120, 5}},
	)
	catalog := catalogOf(t, feature.Feature{ID: "c_newinc", Label: "New Cases Reported"})

	_, err := BuildMapView(table, catalog, "e_inc_num")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUnknownFeature, errors.GetCode(err))
}

func TestBuildMapView_CatalogColumnMissingFromTable(t *testing.T) {
	table := tableOf(t, []string{"c_newinc"})
	catalog := catalogOf(t, feature.Feature{ID: "new_ep", Label: "New Extrapulmonary Cases"})

	_, err := BuildMapView(table, catalog, "new_ep")
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestBuildMapView_Idempotent(t *testing.T) {
	table := tableOf(t, []string{"c_newinc"},
		row{"Afghanistan", "AFG", 2010, []float64{120}},
		row{"Albania", "ALB", 2010, []float64{15}},
		row{"Afghanistan", "AFG", 2011, []float64{nan}},
		row{"Albania", "ALB", 2012, []float64{17}},
	)
	catalog := catalogOf(t, feature.Feature{ID: "c_newinc", Label: "New Cases Reported"})

	first, err := BuildMapView(table, catalog, "c_newinc")
	require.NoError(t, err)
	second, err := BuildMapView(table, catalog, "c_newinc")
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	assert.Equal(t, first.Request.Table.Columns(), second.Request.Table.Columns())
	assert.Equal(t, first.Request.Table.Years(), second.Request.Table.Years())
}

func TestBuildMapView_EveryDefaultFeature(t *testing.T) {
	catalog := feature.DefaultCatalog()
	ids := catalog.IDs()

	// Feature i has values only for i%3 != 2; the rest are entirely missing.
	values2010 := make([]float64, len(ids))
	values2011 := make([]float64, len(ids))
	for i := range ids {
		values2010[i], values2011[i] = nan, nan
		switch i % 3 {
		case 0:
			values2010[i] = float64(10 * (i + 1))
		case 1:
			values2010[i] = float64(i + 1)
			values2011[i] = float64(2 * (i + 1))
		}
	}
	table := tableOf(t, ids,
		row{"Afghanistan", "AFG", 2010, values2010},
		row{"Afghanistan", "AFG", 2011, values2011},
	)
	require.NoError(t, catalog.Validate(table))

	for i, id := range ids {
		view, err := BuildMapView(table, catalog, id)
		require.NoError(t, err, id)

		present, _ := table.NonMissing(id)
		if len(present) == 0 {
			assert.True(t, view.NoData, id)
			continue
		}
		require.False(t, view.NoData, id)
		filteredValues, _ := view.Request.Table.NonMissing(id)
		want, _ := profiling.Percentile(filteredValues, 0.99)
		assert.Equal(t, 0.0, view.Request.ColorRange.Min, id)
		assert.Equal(t, want, view.Request.ColorRange.Max, id)
		if i%3 == 0 {
			assert.Equal(t, []int{2010}, view.Request.Table.Years(), id)
		}
	}
}
