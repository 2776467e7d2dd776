// Package container provides dependency injection using Uber FX
// This implements the Dependency Inversion Principle from SOLID
package container

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/alchemorsel/pantrylens/internal/application/actions"
	kitchenapp "github.com/alchemorsel/pantrylens/internal/application/kitchen"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/ai/gemini"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/config"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/http/handlers"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/http/ops"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/http/server"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/monitoring"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/persistence/redis"
	"github.com/alchemorsel/pantrylens/internal/infrastructure/session"
	"github.com/alchemorsel/pantrylens/internal/ports/inbound"
	"github.com/alchemorsel/pantrylens/internal/ports/outbound"
	"github.com/alchemorsel/pantrylens/pkg/healthcheck"
	"github.com/alchemorsel/pantrylens/pkg/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// cacheSweepInterval is how often the in-memory backend drops expired
// sessions
const cacheSweepInterval = time.Minute

// ConfigPath is the config file to load; empty searches the default
// locations
type ConfigPath string

// Module provides all dependency injection modules
var Module = fx.Options(
	// Infrastructure modules
	ConfigModule,
	LoggerModule,
	MonitoringModule,
	SessionModule,
	AIModule,

	// Service modules
	ApplicationModule,

	// HTTP modules
	HTTPModule,

	// Lifecycle hooks
	LifecycleModule,
)

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*config.Config, error) {
		return config.Load(string(path))
	},
)

// LoggerModule provides logging
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, zap.AtomicLevel, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	},
)

// MonitoringModule provides metrics, tracing and health checks
var MonitoringModule = fx.Provide(
	monitoring.NewMetricsCollector,
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		tp, err := monitoring.NewTracingProvider(context.Background(), monitoring.TracingConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
			Insecure:       cfg.Monitoring.OTLPInsecure,
			SamplingRate:   cfg.Monitoring.SamplingRate,
			Enabled:        cfg.Monitoring.EnableTracing,
		}, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: tp.Shutdown})
		return tp, nil
	},
	func(cfg *config.Config, log *zap.Logger) *healthcheck.Registry {
		return healthcheck.New(cfg.App.Version, log.Named("healthcheck"))
	},
)

// SessionModule provides the session backend and store
var SessionModule = fx.Provide(
	newCacheRepository,
	fx.Annotate(
		func(cache outbound.CacheRepository, cfg *config.Config, log *zap.Logger) *session.Store {
			return session.NewStore(cache, cfg.Session.TTL, log)
		},
		fx.As(new(outbound.SessionRepository)),
	),
)

// newCacheRepository selects the session backend. Redis is required for
// sessions to survive restarts.
func newCacheRepository(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (outbound.CacheRepository, error) {
	if cfg.Session.Backend == "redis" {
		client, err := redis.NewClient(context.Background(), cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
		return redis.NewCacheRepository(client, "pantrylens:", log), nil
	}

	log.Info("Using in-memory session store")
	cache := memory.NewCacheRepository(cacheSweepInterval)
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return cache.Close() }})
	return cache, nil
}

// AIModule provides the Gemini client. Without an API key no client is
// created and every AI action reports the missing credential.
var AIModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (outbound.RecipeAI, error) {
		if !cfg.HasAICredential() {
			log.Warn("Google AI API key is not configured; AI features are disabled")
			return nil, nil
		}
		client, err := gemini.NewClient(context.Background(), gemini.Config{
			APIKey:      cfg.AI.GoogleAPIKey,
			VisionModel: cfg.AI.VisionModel,
			TextModel:   cfg.AI.TextModel,
			ImageModel:  cfg.AI.ImageModel,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, nil
	},
)

// ApplicationModule provides application services
var ApplicationModule = fx.Provide(
	fx.Annotate(
		func(client outbound.RecipeAI, cfg *config.Config, metrics *monitoring.MetricsCollector, tracer *monitoring.TracingProvider, log *zap.Logger) *actions.Service {
			return actions.NewService(client, cfg.HasAICredential(), metrics, tracer, log)
		},
		fx.As(new(inbound.RecipeActions)),
	),
	func(acts inbound.RecipeActions, sessions outbound.SessionRepository, metrics *monitoring.MetricsCollector, cfg *config.Config, log *zap.Logger) *kitchenapp.Service {
		return kitchenapp.NewService(acts, sessions, metrics, kitchenapp.Config{
			MaxPhotoBytes:    cfg.Upload.MaxPhotoBytes,
			ImageConcurrency: cfg.AI.ImageConcurrency,
		}, log)
	},
	func(s *kitchenapp.Service) inbound.KitchenService { return s },
)

// HTTPModule provides HTTP servers and handlers
var HTTPModule = fx.Provide(
	handlers.ParseTemplates,
	func(templates *template.Template, kitchen inbound.KitchenService, cfg *config.Config, log *zap.Logger) *handlers.FrontendHandlers {
		return handlers.NewFrontendHandlers(templates, kitchen, cfg.Upload.MaxPhotoBytes, log)
	},
	handlers.NewAPIHandlers,
	server.NewServer,
	func(cfg *config.Config, metrics *monitoring.MetricsCollector, health *healthcheck.Registry, log *zap.Logger) *ops.Server {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Monitoring.MetricsPort)
		return ops.NewServer(addr, cfg.Monitoring.HealthCheckPath, metrics, health, log)
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterHealthChecks,
	RegisterLifecycleHooks,
)

// RegisterHealthChecks registers the session backend and AI credential
// checks
func RegisterHealthChecks(health *healthcheck.Registry, cache outbound.CacheRepository, cfg *config.Config) {
	if pinger, ok := cache.(healthcheck.Pinger); ok {
		health.Register("session_store", healthcheck.PingCheck(pinger))
	} else {
		health.Register("session_store", healthcheck.CheckFunc(func(context.Context) (healthcheck.Status, string) {
			return healthcheck.StatusHealthy, "in-memory"
		}))
	}

	hasKey := cfg.HasAICredential()
	health.Register("ai_credential", healthcheck.CheckFunc(func(context.Context) (healthcheck.Status, string) {
		if !hasKey {
			return healthcheck.StatusDegraded, "GOOGLE_API_KEY is not set"
		}
		return healthcheck.StatusHealthy, ""
	}))
}

// RegisterLifecycleHooks registers application lifecycle hooks
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	log *zap.Logger,
	level zap.AtomicLevel,
	kitchen *kitchenapp.Service,
	srv *server.Server,
	opsSrv *ops.Server,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting PantryLens",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("session_backend", cfg.Session.Backend),
				zap.Bool("ai_configured", cfg.HasAICredential()),
			)

			watching := cfg.Watch(func(next *config.Config) {
				lvl := logger.ParseLevel(next.App.LogLevel)
				if lvl != level.Level() {
					level.SetLevel(lvl)
					log.Info("Log level changed", zap.String("level", lvl.String()))
				}
			}, func(err error) {
				log.Warn("Ignoring invalid configuration change", zap.Error(err))
			})
			log.Debug("Config watch", zap.Bool("enabled", watching))

			if cfg.Monitoring.EnableMetrics {
				if err := opsSrv.Start(); err != nil {
					return err
				}
			}
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down PantryLens")

			if err := srv.Shutdown(ctx); err != nil {
				log.Error("Failed to shutdown HTTP server", zap.Error(err))
			}

			if err := kitchen.Shutdown(ctx); err != nil {
				log.Error("Background work did not finish", zap.Error(err))
			}

			if cfg.Monitoring.EnableMetrics {
				if err := opsSrv.Shutdown(ctx); err != nil {
					log.Error("Failed to shutdown ops server", zap.Error(err))
				}
			}

			// Flush logs
			_ = log.Sync()

			return nil
		},
	})
}
