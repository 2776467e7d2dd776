// Package server provides the public HTTP server for the HTMX frontend and
// the JSON API
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"

	"github.com/alchemorsel/pantrylens/internal/infrastructure/config"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/monitoring"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	logger   *zap.Logger
	frontend *handlers.FrontendHandlers
	api      *handlers.APIHandlers
	metrics  *monitoring.MetricsCollector
	server   *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(
	cfg *config.Config,
	frontend *handlers.FrontendHandlers,
	api *handlers.APIHandlers,
	metrics *monitoring.MetricsCollector,
	logger *zap.Logger,
) *Server {
	s := &Server{
		config:   cfg,
		logger:   logger.Named("http-server"),
		frontend: frontend,
		api:      api,
		metrics:  metrics,
	}

	s.server = &http.Server{
		Addr:           cfg.ServerAddr(),
		Handler:        otelhttp.NewHandler(s.setupRouter(), "pantrylens"),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return s
}

// Handler returns the instrumented root handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRouter configures the HTTP router with middleware and routes
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.metrics.HTTPMiddleware)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Security())
	if s.config.Server.EnableCORS {
		r.Use(middleware.CORS(s.config.Server.AllowedOrigins))
	}
	if s.config.Server.EnableCompression {
		r.Use(chimiddleware.Compress(5, "text/html", "application/json"))
	}

	limiter := s.rateLimiter()

	// Browser routes carry the session cookie
	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(middleware.SessionConfig{
			CookieName: s.config.Session.CookieName,
			Secure:     s.config.Session.CookieSecure,
			TTL:        s.config.Session.TTL,
		}))
		s.frontend.Routes(r, limiter(s.frontend.RateLimited))
	})

	// The JSON API is stateless
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limiter(s.api.RateLimited))
		s.api.Routes(r)
	})

	return r
}

// rateLimiter shares one per-client budget between the browser and API
// routes that reach the AI backend.
func (s *Server) rateLimiter() func(reject func(http.ResponseWriter, *http.Request, string)) func(http.Handler) http.Handler {
	if !s.config.RateLimit.Enabled {
		return func(func(http.ResponseWriter, *http.Request, string)) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler { return next }
		}
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerMin: s.config.RateLimit.RequestsPerMin,
		BurstSize:      s.config.RateLimit.BurstSize,
	})
	return func(reject func(http.ResponseWriter, *http.Request, string)) func(http.Handler) http.Handler {
		return limiter.Middleware(func(w http.ResponseWriter, r *http.Request, route string) {
			s.metrics.RateLimited(route)
			reject(w, r, route)
		})
	}
}

// Start binds the listener and serves in the background. Bind failures are
// returned.
func (s *Server) Start() error {
	// Enable HTTP/2
	if err := http2.ConfigureServer(s.server, nil); err != nil {
		s.logger.Error("Failed to configure HTTP/2", zap.Error(err))
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("Starting HTTP server",
		zap.String("address", ln.Addr().String()),
		zap.String("environment", s.config.App.Environment),
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
