package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbdash/adapters/plotly"
	"tbdash/app"
	"tbdash/domain/dataset"
	"tbdash/domain/feature"
	"tbdash/internal/errors"
)

func newMapService(t *testing.T) *app.MapService {
	t.Helper()
	b, err := dataset.NewBuilder([]string{"c_newinc"})
	require.NoError(t, err)
	require.NoError(t, b.Add("Angola", "AGO", 2012, []float64{40}))
	catalog, err := feature.NewCatalog(feature.Feature{ID: "c_newinc", Label: "New Cases Reported"})
	require.NoError(t, err)
	maps, err := app.NewMapService(b.Build("test"), catalog, plotly.NewRenderer(plotly.DefaultOptions()), nil)
	require.NoError(t, err)
	return maps
}

func TestNewDashboardService_DefaultFeature(t *testing.T) {
	maps := newMapService(t)

	dash, err := NewDashboardService(maps, "", nil)
	require.NoError(t, err)
	assert.Equal(t, feature.DefaultFeatureID, dash.DefaultFeature())

	_, err = NewDashboardService(maps, "ret_rel", nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestDashboardService_Page(t *testing.T) {
	dash, err := NewDashboardService(newMapService(t), "c_newinc", nil)
	require.NoError(t, err)

	page := dash.Page()
	assert.Equal(t, PageTitle, page.Title)
	assert.Equal(t, PageHeading, page.Heading)
	assert.Equal(t, FeatureLabel, page.FeatureLabel)
	require.Len(t, page.Options, 1)
	assert.True(t, page.Options[0].Selected)
	assert.Equal(t, []int{2012}, page.Years)
}

func TestDashboardService_Figure(t *testing.T) {
	dash, err := NewDashboardService(newMapService(t), "c_newinc", nil)
	require.NoError(t, err)

	fig, err := dash.Figure(context.Background(), " c_newinc ")
	require.NoError(t, err)
	assert.NotEmpty(t, fig)

	_, err = dash.Figure(context.Background(), "  ")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(errors.UnknownFeature("x")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(errors.InvalidInput("x")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(errors.NotFound("x")))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(context.Canceled))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.InternalError("x")))
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown([]byte("## Glossary\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"))
	assert.Contains(t, string(out), `<h2 id="glossary">Glossary</h2>`)
	assert.Contains(t, string(out), "<table>")
	assert.Empty(t, RenderMarkdown(nil))
}
