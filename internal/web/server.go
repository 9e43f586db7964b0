// Package web provides the HTTP server and handlers for the clash triage UI.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/clashtriage/internal/config"
	"github.com/JonMunkholm/clashtriage/internal/core"
	appmw "github.com/JonMunkholm/clashtriage/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// Server is the HTTP server for the clash triage application.
type Server struct {
	session *core.Session
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(session *core.Session, cfg *config.Config) *Server {
	s := &Server{
		session: session,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := newIPLimiter(s.cfg.Rate.RequestsPerMinute, s.cfg.Rate.Burst)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
//
// Everything except the SSE progress stream runs under the request timeout.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Get("/healthz", s.handleHealth)

	// Pages and HTML fragments
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

		r.Get("/", s.handleDashboard)
		r.Get("/partials/clashes", s.handleClashTablePartial)
		r.Get("/partials/stats", s.handleStatsPartial)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/status", s.handleStatus)

			// Dataset
			r.Post("/import", s.handleImport)
			r.Post("/preview", s.handlePreview)
			r.Get("/clashes", s.handleListClashes)
			r.Delete("/clashes", s.handleClearClashes)
			r.Post("/clashes/retry-failed", s.handleRetryFailed)
			r.Get("/stats", s.handleStats)

			// Triage runs
			r.Post("/triage", s.handleStartTriage)
			r.Get("/triage/{runID}/result", s.handleTriageResult)
			r.Post("/triage/{runID}/cancel", s.handleCancelTriage)

			// Export
			r.Get("/export", s.handleExport)
		})

		// Long-lived stream, no request timeout
		r.Get("/triage/{runID}/progress", s.handleTriageProgress)
	})
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps SSE streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// Content Security Policy - scripts from self only, inline
			// styles for the severity palette
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
			}

			// Control referrer information
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
