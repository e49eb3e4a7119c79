package ui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbdash/adapters/plotly"
	"tbdash/app"
	"tbdash/domain/dataset"
	"tbdash/domain/feature"
	"tbdash/domain/mapview"
	"tbdash/ui/services"
)

func newTestDashboard(t *testing.T) *services.DashboardService {
	t.Helper()
	b, err := dataset.NewBuilder([]string{"c_newinc", "new_ep"})
	require.NoError(t, err)
	require.NoError(t, b.Add("Afghanistan", "AFG", 2010, []float64{100, dataset.Missing()}))
	require.NoError(t, b.Add("Afghanistan", "AFG", 2011, []float64{120, dataset.Missing()}))
	require.NoError(t, b.Add("Albania", "ALB", 2010, []float64{5, dataset.Missing()}))
	table := b.Build("test")

	catalog, err := feature.NewCatalog(
		feature.Feature{ID: "c_newinc", Label: "New Cases Reported"},
		feature.Feature{ID: "new_ep", Label: "New Extrapulmonary Cases"},
	)
	require.NoError(t, err)

	maps, err := app.NewMapService(table, catalog, plotly.NewRenderer(plotly.DefaultOptions()), nil)
	require.NoError(t, err)
	dash, err := services.NewDashboardService(maps, "c_newinc", AboutMarkdown())
	require.NoError(t, err)
	return dash
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(newTestDashboard(t), ServerOptions{GinMode: gin.TestMode, MetricsEnabled: true})
	require.NoError(t, err)
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestServer_Index(t *testing.T) {
	w := get(t, newTestServer(t).Handler(), "/")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<title>TB Dashboard</title>")
	assert.Contains(t, body, "Global Tuberculosis Dashboard")
	assert.Contains(t, body, "Select TB Feature:")
	assert.Contains(t, body, `<option value="c_newinc" selected>New Cases Reported</option>`)
	assert.Contains(t, body, `<option value="new_ep">New Extrapulmonary Cases</option>`)
	assert.Contains(t, body, `id="world-map"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_Figure(t *testing.T) {
	w := get(t, newTestServer(t).Handler(), "/api/figure?feature=c_newinc")

	require.Equal(t, http.StatusOK, w.Code)
	var fig plotly.Figure
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fig))
	assert.Equal(t, "Global TB Map for New Cases Reported", fig.Layout.Title.Text)
	require.Len(t, fig.Frames, 2)
	assert.Equal(t, "2010", fig.Frames[0].Name)
	assert.Equal(t, "2011", fig.Frames[1].Name)
}

func TestServer_FigureNoData(t *testing.T) {
	w := get(t, newTestServer(t).Handler(), "/api/figure?feature=new_ep")

	require.Equal(t, http.StatusOK, w.Code)
	var fig plotly.Figure
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fig))
	assert.Empty(t, fig.Data)
	assert.Empty(t, fig.Frames)
	assert.Nil(t, fig.Layout.Geo)
	assert.Equal(t, mapview.NoDataMessage, fig.Layout.Title.Text)
}

func TestServer_FigureBadRequests(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name   string
		target string
		code   string
	}{
		{"unknown feature", "/api/figure?feature=bogus", "UNKNOWN_FEATURE"},
		{"missing feature", "/api/figure", "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, h, tt.target)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestServer_Features(t *testing.T) {
	w := get(t, newTestServer(t).Handler(), "/api/features")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Default  string                 `json:"default"`
		Features []services.FeatureInfo `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "c_newinc", body.Default)
	require.Len(t, body.Features, 2)
	assert.Equal(t, "c_newinc", body.Features[0].ID)
	assert.Equal(t, 3, body.Features[0].Summary.Present)
	assert.Equal(t, []int{2010, 2011}, body.Features[0].Summary.Years)
	assert.False(t, body.Features[1].Summary.HasValues)
}

func TestServer_AboutHealthStatic(t *testing.T) {
	h := newTestServer(t).Handler()

	w := get(t, h, "/about")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<h3 id="glossary">Glossary</h3>`)

	w = get(t, h, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = get(t, h, "/static/js/dashboard.js")
	assert.Equal(t, http.StatusOK, w.Code)
	w = get(t, h, "/static/css/dashboard.css")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	h := newTestServer(t).Handler()
	get(t, h, "/api/figure?feature=c_newinc")

	w := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `tbdash_figure_requests_total{feature="c_newinc"}`))
}

func TestServer_MetricsDisabled(t *testing.T) {
	s, err := NewServer(newTestDashboard(t), ServerOptions{GinMode: gin.TestMode})
	require.NoError(t, err)

	w := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_ScriptReplacesFrames(t *testing.T) {
	w := get(t, newTestServer(t).Handler(), "/static/js/dashboard.js")
	require.Equal(t, http.StatusOK, w.Code)

	script := w.Body.String()
	assert.Contains(t, script, "frames: figure.frames || []", "frames travel with the figure so old years are dropped")
	assert.NotContains(t, script, "addFrames", "appending frames keeps those of the previous feature")
}
