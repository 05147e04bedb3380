package api

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/garnizeh/probetas/internal/auth"
	"github.com/garnizeh/probetas/internal/config"
	"github.com/garnizeh/probetas/internal/db"
	"github.com/garnizeh/probetas/internal/inventory"
	"github.com/garnizeh/probetas/internal/repository/sqlite"
	"github.com/garnizeh/probetas/internal/validation"
	"github.com/garnizeh/probetas/pkg/repository"
	"github.com/gorilla/mux"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, db *db.DB) (*mux.Router, error) {
	validator, err := validation.New()
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	r := mux.NewRouter()
	metrics := NewMetrics()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(metrics.Middleware)

	// Repository and services
	repo := sqlite.New(db, logger)
	svc := inventory.NewService(repository.Repository{Batch: repo, Specimen: repo}, repo, logger)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenDuration)
	debug := cfg.IsDevelopment()

	// Create handlers
	systemHandler := &SystemHandler{DB: db}
	authHandler := NewAuthHandler(repo, tokens, validator, repo, debug)
	batchesHandler := NewBatchesHandler(svc, validator, debug)
	specimensHandler := NewSpecimensHandler(svc, validator, debug)
	activitiesHandler := NewActivitiesHandler(repo, debug)
	dashboardHandler := NewDashboardHandler(repo, repo, svc, debug)

	// Preflight requests are answered by CORSMiddleware for any path.
	r.MatcherFunc(isPreflight).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/api/health", systemHandler.HealthHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")

	// Protected routes. Registered flat on the root router so a wrong method
	// on any path ends in MethodNotAllowedHandler.
	requireToken := JWTAuthMiddleware(tokens)
	protected := func(tpl string, h http.HandlerFunc, method string) {
		r.Handle(tpl, requireToken(h)).Methods(method)
	}

	protected("/api/auth/me", authHandler.Me, "GET")
	protected("/api/auth/logout", authHandler.Logout, "POST")

	protected("/api/batches", batchesHandler.List, "GET")
	protected("/api/batches", batchesHandler.Create, "POST")
	protected("/api/batches/{id}", batchesHandler.Get, "GET")
	protected("/api/batches/{id}", batchesHandler.Replace, "PUT")
	protected("/api/batches/{id}", batchesHandler.Delete, "DELETE")

	protected("/api/specimens", specimensHandler.List, "GET")
	protected("/api/specimens", specimensHandler.Create, "POST")
	protected("/api/specimens/export", specimensHandler.Export, "GET")
	protected("/api/specimens/{id}", specimensHandler.Get, "GET")
	protected("/api/specimens/{id}", specimensHandler.Update, "PUT")
	protected("/api/specimens/{id}", specimensHandler.Delete, "DELETE")

	protected("/api/activities", activitiesHandler.ListActivities, "GET")

	protected("/api/dashboard/stats", dashboardHandler.Stats, "GET")
	protected("/api/dashboard/activity", dashboardHandler.Activity, "GET")
	protected("/api/dashboard/charts", dashboardHandler.Charts, "GET")
	protected("/api/dashboard/reports", dashboardHandler.Reports, "GET")

	// Front end
	if cfg.StaticDir != "" {
		r.MatcherFunc(isStaticRequest).Handler(staticHandler(cfg.StaticDir))
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r, nil
}

// isPreflight matches CORS preflight requests. It is a MatcherFunc rather than
// a method matcher so other methods never record a method mismatch.
func isPreflight(r *http.Request, _ *mux.RouteMatch) bool {
	return r.Method == http.MethodOptions
}

// isStaticRequest matches front-end reads: GET or HEAD outside /api.
func isStaticRequest(r *http.Request, _ *mux.RouteMatch) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	p := r.URL.Path
	return p != "/api" && !strings.HasPrefix(p, "/api/")
}

// staticHandler serves files from dir. Missing files get the JSON 404.
func staticHandler(dir string) http.Handler {
	root := http.Dir(dir)
	files := http.FileServer(root)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, err := root.Open(path.Clean("/" + r.URL.Path))
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found", "route not found")
			return
		}
		f.Close()
		files.ServeHTTP(w, r)
	})
}
