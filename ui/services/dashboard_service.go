package services

import (
	"context"
	stderrors "errors"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"tbdash/app"
	"tbdash/domain/feature"
	"tbdash/internal"
	"tbdash/internal/errors"
	"tbdash/internal/profiling"
)

// Page strings shown by the dashboard shell.
const (
	PageTitle    = "TB Dashboard"
	PageHeading  = "Global Tuberculosis Dashboard"
	FeatureLabel = "Select TB Feature:"
)

// PageData feeds the index template
type PageData struct {
	Title          string
	Heading        string
	FeatureLabel   string
	Options        []feature.Option
	DefaultFeature string
	Rows           int
	Years          []int
	Source         string
}

// FeatureInfo is a catalog entry with its distribution summary
type FeatureInfo struct {
	ID      string            `json:"id"`
	Label   string            `json:"label"`
	Summary profiling.Summary `json:"summary"`
}

// DashboardService holds the view logic shared by the gin and chi servers
type DashboardService struct {
	maps           *app.MapService
	profiler       *profiling.FeatureProfiler
	defaultFeature string
	about          template.HTML
	logger         *internal.Logger

	featuresOnce sync.Once
	features     []FeatureInfo
	featuresErr  error
}

// NewDashboardService validates defaultFeature against the catalog and
// renders the about page once.
func NewDashboardService(maps *app.MapService, defaultFeature string, aboutMarkdown []byte) (*DashboardService, error) {
	if maps == nil {
		return nil, errors.InternalError("dashboard needs a map service")
	}
	if defaultFeature == "" {
		defaultFeature = feature.DefaultFeatureID
	}
	if !maps.Catalog().Contains(defaultFeature) {
		return nil, errors.ConfigInvalid("default feature " + defaultFeature + " is not in the catalog")
	}
	return &DashboardService{
		maps:           maps,
		profiler:       profiling.NewFeatureProfiler(maps.Table()),
		defaultFeature: defaultFeature,
		about:          RenderMarkdown(aboutMarkdown),
		logger:         internal.DefaultLogger.With("Dashboard"),
	}, nil
}

// DefaultFeature is the initially selected feature
func (s *DashboardService) DefaultFeature() string { return s.defaultFeature }

// Page returns the index template data with the default feature selected
func (s *DashboardService) Page() PageData {
	table := s.maps.Table()
	return PageData{
		Title:          PageTitle,
		Heading:        PageHeading,
		FeatureLabel:   FeatureLabel,
		Options:        s.maps.Catalog().Options(s.defaultFeature),
		DefaultFeature: s.defaultFeature,
		Rows:           table.Len(),
		Years:          table.Years(),
		Source:         table.Source(),
	}
}

// Figure returns the encoded figure for a selection. A blank selection is
// INVALID_INPUT; an unknown one is UNKNOWN_FEATURE.
func (s *DashboardService) Figure(ctx context.Context, featureID string) ([]byte, error) {
	featureID = strings.TrimSpace(featureID)
	if featureID == "" {
		return nil, errors.InvalidInput("feature is required")
	}
	return s.maps.Figure(ctx, featureID)
}

// Features lists the catalog with per-feature summaries. The table never
// changes, so the summaries are computed once.
func (s *DashboardService) Features() ([]FeatureInfo, error) {
	s.featuresOnce.Do(func() {
		catalog := s.maps.Catalog()
		summaries, err := s.profiler.SummarizeAll(catalog.IDs())
		if err != nil {
			s.featuresErr = errors.Wrap(err, "summarize features")
			return
		}
		infos := make([]FeatureInfo, 0, len(summaries))
		for i, f := range catalog.Features() {
			infos = append(infos, FeatureInfo{ID: f.ID, Label: f.Label, Summary: summaries[i]})
		}
		s.features = infos
		s.logger.Debug("summarized %d features", len(infos))
	})
	return s.features, s.featuresErr
}

// About returns the rendered about page
func (s *DashboardService) About() template.HTML { return s.about }

// Health reports readiness details for /healthz
func (s *DashboardService) Health() map[string]interface{} {
	table := s.maps.Table()
	return map[string]interface{}{
		"status":   "ok",
		"source":   table.Source(),
		"rows":     table.Len(),
		"features": s.maps.Catalog().Len(),
		"cached":   s.maps.Cached(),
	}
}

// HTTPStatus maps an error to the status the servers respond with
func HTTPStatus(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeUnknownFeature, errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ErrorBody is the JSON error payload
func ErrorBody(err error) map[string]string {
	return map[string]string{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	}
}

// RenderMarkdown converts markdown to HTML for the about page
func RenderMarkdown(md []byte) template.HTML {
	if len(md) == 0 {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return template.HTML(markdown.ToHTML(md, p, renderer))
}
