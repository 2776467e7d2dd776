// Package ops serves metrics and health checks on a separate port
package ops

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alchemorsel/pantrylens/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/monitoring"
	"github.com/alchemorsel/pantrylens/pkg/healthcheck"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server is the gin based operations server
type Server struct {
	engine *gin.Engine
	server *http.Server
	logger *zap.Logger
}

// NewServer creates the ops server. healthPath is the base of the health
// routes.
func NewServer(addr, healthPath string, metrics *monitoring.MetricsCollector, health *healthcheck.Registry, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	logger = logger.Named("ops-server")

	engine := gin.New()
	engine.Use(
		middleware.GinRequestID(),
		middleware.GinLogger(logger, "/metrics", healthPath, healthPath+"/live", healthPath+"/ready"),
		middleware.GinRecovery(logger),
	)

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	engine.GET(healthPath, health.Handler())
	engine.GET(healthPath+"/live", health.LivenessHandler())
	engine.GET(healthPath+"/ready", health.ReadinessHandler())

	return &Server{
		engine: engine,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the gin engine
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("Starting ops server", zap.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Ops server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the ops server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down ops server")
	return s.server.Shutdown(ctx)
}
