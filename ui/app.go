package ui

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gomotif/ports"
)

//go:embed templates/* static/*
var embeddedFiles embed.FS

// App is the operator console: a read-only view over runs, sweeps and the
// artifact ledger.
type App struct {
	router    *chi.Mux
	config    Config
	runs      ports.RunRepository
	sweeps    ports.SweepRepository
	reader    ports.LedgerReaderPort
	templates *template.Template
}

// Config holds console configuration
type Config struct {
	Port string
}

// NewApp creates a new console application over the given repositories
func NewApp(config Config, runs ports.RunRepository, sweeps ports.SweepRepository, reader ports.LedgerReaderPort) (*App, error) {
	funcMap := template.FuncMap{
		"pct": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
		"f3":  func(v float64) string { return fmt.Sprintf("%.3f", v) },
		"f4":  func(v float64) string { return fmt.Sprintf("%.4f", v) },
		"statusClass": func(status string) string {
			switch status {
			case "completed":
				return "ok"
			case "failed":
				return "bad"
			case "running":
				return "live"
			default:
				return "idle"
			}
		},
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html", "templates/fragments/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	app := &App{
		router:    chi.NewRouter(),
		config:    config,
		runs:      runs,
		sweeps:    sweeps,
		reader:    reader,
		templates: templates,
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))

	// Serve static files
	staticFS := http.FileServer(http.FS(embeddedFiles))
	a.router.Handle("/static/*", http.StripPrefix("/", staticFS))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/runs/{id}", a.handleRunDetail)
	a.router.Get("/sweeps/{id}", a.handleSweepDetail)
	a.router.Get("/artifacts/{id}", a.handleArtifactDetail)

	// HTMX fragment endpoints for live refresh
	a.router.Get("/fragments/runs", a.handleRunsFragment)
	a.router.Get("/fragments/sweeps", a.handleSweepsFragment)
}

// Start starts the HTTP server
func (a *App) Start() error {
	addr := ":" + a.config.Port
	log.Printf("Starting console on %s", addr)
	return http.ListenAndServe(addr, a.router)
}

// Template helpers
func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	w.Header().Set("Content-Type", "text/html")
	if err := a.templates.ExecuteTemplate(w, templateName, data); err != nil {
		log.Printf("Template error: %v", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

// HTMX helpers
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
