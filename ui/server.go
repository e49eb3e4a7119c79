package ui

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"tbdash/internal"
	"tbdash/ui/middleware"
	"tbdash/ui/services"
)

// ServerOptions configures the gin dashboard server
type ServerOptions struct {
	GinMode        string
	MetricsEnabled bool
}

// Server represents the web server for the TB dashboard
type Server struct {
	router    *gin.Engine
	dashboard *services.DashboardService
	socket    *FigureSocket
	templates *template.Template
	options   ServerOptions
	logger    *internal.Logger
}

// NewServer creates a new web server instance with routes installed
func NewServer(dashboard *services.DashboardService, opts ServerOptions) (*Server, error) {
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:    gin.New(),
		dashboard: dashboard,
		socket:    NewFigureSocket(dashboard),
		templates: templates,
		options:   opts,
		logger:    internal.DefaultLogger.With("Server"),
	}

	if err := s.setupMiddleware(); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() error {
	s.router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	static, err := staticFS()
	if err != nil {
		s.logger.Error("static assets unavailable: %v", err)
		return err
	}
	s.router.StaticFS("/static", static)
	return nil
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/about", s.handleAbout)
	s.router.GET("/healthz", s.handleHealth)

	api := s.router.Group("/api")
	api.GET("/figure", s.handleFigure)
	api.GET("/features", s.handleFeatures)

	s.router.GET("/ws/figure", gin.WrapH(s.socket))

	if s.options.MetricsEnabled {
		s.router.GET("/metrics", gin.WrapF(writeMetrics))
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server
func (s *Server) Start(addr string) error {
	s.logger.Info("starting TB dashboard on http://%s", addr)
	return s.router.Run(addr)
}
