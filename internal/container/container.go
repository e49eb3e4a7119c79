package container

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"tbdash/adapters/excel"
	"tbdash/adapters/plotly"
	"tbdash/adapters/postgres"
	"tbdash/app"
	"tbdash/domain/dataset"
	"tbdash/domain/feature"
	"tbdash/internal"
	"tbdash/internal/config"
	"tbdash/internal/errors"
	"tbdash/internal/migration"
	"tbdash/ports"
	"tbdash/ui/services"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	Catalog  *feature.Catalog
	Source   ports.DatasetSource
	Table    *dataset.Table
	Renderer *plotly.Renderer
	Maps     *app.MapService

	logger *internal.Logger
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return &Container{
		Config:   cfg,
		Catalog:  feature.DefaultCatalog(),
		Renderer: plotly.NewRenderer(RendererOptions(cfg)),
		logger:   internal.DefaultLogger.With("Container"),
	}, nil
}

// RendererOptions applies the map settings of cfg on top of the defaults
func RendererOptions(cfg *config.Config) plotly.Options {
	opts := plotly.DefaultOptions()
	if cfg.Map.ColorScale != "" {
		opts.ColorScale = cfg.Map.ColorScale
	}
	if cfg.Map.Projection != "" {
		opts.Projection = cfg.Map.Projection
	}
	if cfg.Map.Width > 0 {
		opts.Width = cfg.Map.Width
	}
	if cfg.Map.Height > 0 {
		opts.Height = cfg.Map.Height
	}
	return opts
}

// Init connects the dataset source, loads the table and wires the map
// service. Any failure here is a startup defect.
func (c *Container) Init(ctx context.Context) error {
	if c.Config.UsesDatabase() {
		if err := c.InitDatabase(ctx); err != nil {
			return err
		}
	}

	c.Source = c.DatasetSource()
	c.logger.Info("loading dataset from %s", c.Source.Describe())
	table, err := c.Source.Load(ctx)
	if err != nil {
		return errors.Wrapf(err, "load dataset from %s", c.Source.Describe())
	}
	return c.InitWithTable(table)
}

// InitWithTable wires the map service over an already loaded table
func (c *Container) InitWithTable(table *dataset.Table) error {
	maps, err := app.NewMapService(table, c.Catalog, c.Renderer, internal.DefaultLogger)
	if err != nil {
		return errors.Wrap(err, "initialize map service")
	}
	c.Table = table
	c.Maps = maps

	c.logger.Info("dataset ready: %d rows, %d years, %d features", table.Len(), len(table.Years()), c.Catalog.Len())
	return nil
}

// InitDatabase opens the PostgreSQL connection and makes sure the
// aggregate table exists
func (c *Container) InitDatabase(ctx context.Context) error {
	if c.DB != nil {
		return nil
	}
	if c.Config.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return errors.DatabaseError("failed to connect to database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errors.DatabaseError("failed to ping database", err)
	}

	migrator := migration.NewRunner(c.Config.Database.Table, c.Catalog.IDs())
	if err := migrator.Run(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database migration failed")
	}

	c.DB = db
	return nil
}

// DatasetSource picks PostgreSQL when a database is configured and the
// data file otherwise
func (c *Container) DatasetSource() ports.DatasetSource {
	if c.DB != nil {
		return c.Repository()
	}
	return c.FileReader(c.Config.Data.File)
}

// Repository is the PostgreSQL dataset repository for the configured table
func (c *Container) Repository() *postgres.DatasetRepository {
	return postgres.NewDatasetRepository(c.DB, c.Config.Database.Table, c.Catalog.IDs())
}

// FileReader reads path as CSV or XLSX, requiring every catalog column
func (c *Container) FileReader(path string) *excel.DataReader {
	cfg := excel.DefaultReaderConfig()
	cfg.FilePath = path
	cfg.Sheet = c.Config.Data.Sheet
	cfg.Required = c.Catalog.IDs()
	return excel.NewDataReader(cfg)
}

// Dashboard builds the view service shared by the HTTP servers
func (c *Container) Dashboard(aboutMarkdown []byte) (*services.DashboardService, error) {
	if c.Maps == nil {
		return nil, errors.InternalError("container is not initialized")
	}
	return services.NewDashboardService(c.Maps, c.Config.Data.DefaultFeature, aboutMarkdown)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
