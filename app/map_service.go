package app

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"tbdash/domain/dataset"
	"tbdash/domain/feature"
	"tbdash/domain/mapview"
	"tbdash/internal"
	"tbdash/internal/errors"
	"tbdash/ports"
)

// MapService answers feature selections with encoded map figures. The
// table is read only, so results are cached per feature for the life of
// the process and concurrent requests for the same feature share one
// computation.
type MapService struct {
	table    *dataset.Table
	catalog  *feature.Catalog
	renderer ports.FigureRenderer
	logger   *internal.Logger

	figures *xsync.MapOf[string, []byte]
	group   singleflight.Group

	renderDuration *metrics.Histogram
	noDataTotal    *metrics.Counter
	errorsTotal    *metrics.Counter
}

// NewMapService wires the pipeline. The catalog is validated against the
// table here so a misconfigured catalog stops startup.
func NewMapService(table *dataset.Table, catalog *feature.Catalog, renderer ports.FigureRenderer, logger *internal.Logger) (*MapService, error) {
	if table == nil {
		return nil, errors.InternalError("map service needs a dataset table")
	}
	if catalog == nil {
		return nil, errors.ConfigInvalid("map service needs a feature catalog")
	}
	if renderer == nil {
		return nil, errors.InternalError("map service needs a figure renderer")
	}
	if err := catalog.Validate(table); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &MapService{
		table:          table,
		catalog:        catalog,
		renderer:       renderer,
		logger:         logger.With("MapService"),
		figures:        xsync.NewMapOf[string, []byte](),
		renderDuration: metrics.GetOrCreateHistogram("tbdash_figure_render_duration_seconds"),
		noDataTotal:    metrics.GetOrCreateCounter("tbdash_figure_nodata_total"),
		errorsTotal:    metrics.GetOrCreateCounter("tbdash_figure_errors_total"),
	}, nil
}

// Catalog returns the selectable features
func (s *MapService) Catalog() *feature.Catalog { return s.catalog }

// Table returns the shared dataset handle
func (s *MapService) Table() *dataset.Table { return s.table }

// View runs the selection pipeline without rendering
func (s *MapService) View(featureID string) (mapview.View, error) {
	return BuildMapView(s.table, s.catalog, featureID)
}

// Figure returns the encoded figure for featureID. Unknown features fail
// with UNKNOWN_FEATURE before any work is done. The returned bytes are
// shared and must not be modified.
func (s *MapService) Figure(ctx context.Context, featureID string) ([]byte, error) {
	if !s.catalog.Contains(featureID) {
		s.errorsTotal.Inc()
		return nil, errors.UnknownFeature(featureID)
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`tbdash_figure_requests_total{feature=%q}`, featureID)).Inc()

	if fig, ok := s.figures.Load(featureID); ok {
		s.logger.Trace("cache hit for %s", featureID)
		return fig, nil
	}

	ch := s.group.DoChan(featureID, func() (interface{}, error) {
		return s.compute(featureID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			s.errorsTotal.Inc()
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("shared in-flight computation for %s", featureID)
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *MapService) compute(featureID string) ([]byte, error) {
	start := time.Now()
	view, err := BuildMapView(s.table, s.catalog, featureID)
	if err != nil {
		return nil, errors.Wrapf(err, "build view for %s", featureID)
	}
	if view.NoData {
		s.noDataTotal.Inc()
		s.logger.Info("feature %s has no data in any year", featureID)
	}
	fig, err := s.renderer.Render(view)
	if err != nil {
		return nil, errors.Wrapf(err, "render figure for %s", featureID)
	}
	s.renderDuration.UpdateDuration(start)
	s.figures.Store(featureID, fig)
	s.logger.Debug("rendered %s (%d bytes) in %s", featureID, len(fig), time.Since(start))
	return fig, nil
}

// Warm renders every catalog feature ahead of the first request.
func (s *MapService) Warm(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, id := range s.catalog.IDs() {
		g.Go(func() error {
			_, err := s.Figure(ctx, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "warm figure cache")
	}
	s.logger.Info("warmed %d figures", s.catalog.Len())
	return nil
}

// Cached reports how many figures are held in memory
func (s *MapService) Cached() int {
	return s.figures.Size()
}
