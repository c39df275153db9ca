package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/bundlehost/internal/bundle"
	"github.com/mattjoyce/bundlehost/internal/dispatch"
	"github.com/mattjoyce/bundlehost/internal/events"
)

// Dispatcher defines the job operations the API exposes
type Dispatcher interface {
	ExecuteSingle(ctx context.Context, instanceID, eventName string) error
	RunRecurring(ctx context.Context, bundleID, jobName string, params map[string]string) (dispatch.Summary, error)
	BulkUpgrade(ctx context.Context, bundleID string) (dispatch.UpgradeSummary, error)
}

// BundleRegistry defines the interface for bundle lookups
type BundleRegistry interface {
	Get(id string) (bundle.Handle, bool)
	All() []bundle.Handle
	RecurringJob(bundleID, jobName string) (bundle.RecurringJob, bool)
}

// SourceLister reports which notification sources are currently active.
type SourceLister interface {
	ActiveSources() []string
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is the single bearer token protecting the /v1 surface.
	APIKey string
}

// Server represents the HTTP API server
type Server struct {
	config     Config
	dispatcher Dispatcher
	registry   BundleRegistry
	sources    SourceLister
	hub        *events.Hub
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
	hooks      map[string]http.Handler
}

// New creates a new API server instance. The hub feeds GET /v1/events;
// sources may be nil when no fan-out registry is running.
func New(config Config, dispatcher Dispatcher, registry BundleRegistry, sources SourceLister, hub *events.Hub, logger *slog.Logger) *Server {
	return &Server{
		config:     config,
		dispatcher: dispatcher,
		registry:   registry,
		sources:    sources,
		hub:        hub,
		logger:     logger,
		startedAt:  time.Now(),
		hooks:      make(map[string]http.Handler),
	}
}

// MountHook exposes a webhook handler at /hooks/{id}. Hooks authenticate
// with their own HMAC signatures, not the API key. Must be called before
// Start.
func (s *Server) MountHook(id string, h http.Handler) {
	s.hooks[id] = h
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // Batch jobs run inline in the handler
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Webhook sources carry their own HMAC auth.
	for id, h := range s.hooks {
		r.Handle("/hooks/"+id, h)
	}

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/v1/instances/{instanceID}/events/{event}", s.handleInstanceEvent)
		r.Post("/v1/bundles/{bundle}/jobs/{job}", s.handleRunJob)
		r.Post("/v1/bundles/{bundle}/upgrade", s.handleUpgrade)
		r.Get("/v1/bundles", s.handleListBundles)
		r.Get("/v1/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
