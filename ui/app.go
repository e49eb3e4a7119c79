package ui

import (
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tbdash/internal"
	"tbdash/ui/middleware"
	"tbdash/ui/services"
)

// App is the lightweight chi rendition of the dashboard used by cmd/ui
type App struct {
	router    *chi.Mux
	dashboard *services.DashboardService
	templates *template.Template
	config    Config
	logger    *internal.Logger
}

// Config holds UI application configuration
type Config struct {
	Port           string
	MetricsEnabled bool
}

// NewApp creates a new UI application
func NewApp(dashboard *services.DashboardService, config Config) (*App, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	app := &App{
		router:    chi.NewRouter(),
		dashboard: dashboard,
		templates: templates,
		config:    config,
		logger:    internal.DefaultLogger.With("App"),
	}

	if err := app.setupMiddleware(); err != nil {
		return nil, err
	}
	app.setupRoutes()

	return app, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() error {
	a.router.Use(middleware.RequestIDHandler)
	a.router.Use(chimiddleware.Logger)
	a.router.Use(chimiddleware.Recoverer)

	static, err := staticFS()
	if err != nil {
		return err
	}
	a.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(static)))
	return nil
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/about", a.handleAbout)
	a.router.Get("/healthz", a.handleHealth)

	// The websocket must not pass through the compressor.
	a.router.Handle("/ws/figure", NewFigureSocket(a.dashboard))

	a.router.Group(func(r chi.Router) {
		r.Use(chimiddleware.Compress(5))
		r.Get("/api/figure", a.handleFigure)
		r.Get("/api/features", a.handleFeatures)
	})

	if a.config.MetricsEnabled {
		a.router.Get("/metrics", writeMetrics)
	}
}

// Handler exposes the router, mainly for tests
func (a *App) Handler() http.Handler {
	return a.router
}

// Start starts the HTTP server
func (a *App) Start() error {
	port := ":" + a.config.Port
	a.logger.Info("starting TB dashboard UI server on %s", port)
	return http.ListenAndServe(port, a.router)
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, "index.html", a.dashboard.Page())
}

func (a *App) handleAbout(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, "about.html", aboutPage{PageData: a.dashboard.Page(), Body: a.dashboard.About()})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.dashboard.Health())
}

func (a *App) handleFigure(w http.ResponseWriter, r *http.Request) {
	featureID := r.URL.Query().Get("feature")
	fig, err := a.dashboard.Figure(r.Context(), featureID)
	if err != nil {
		status := services.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			a.logger.Error("figure %q failed: %v", featureID, err)
		}
		writeJSON(w, status, services.ErrorBody(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(fig)
}

func (a *App) handleFeatures(w http.ResponseWriter, r *http.Request) {
	infos, err := a.dashboard.Features()
	if err != nil {
		writeJSON(w, services.HTTPStatus(err), services.ErrorBody(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"default":  a.dashboard.DefaultFeature(),
		"features": infos,
	})
}

// Template helpers
func (a *App) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	if err := renderHTML(a.templates, w, name, data); err != nil {
		a.logger.Error("template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
