package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/north-cloud/sitemap/infrastructure/gin"
	infralogger "github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	inframetrics "github.com/jonesrussell/north-cloud/sitemap/infrastructure/metrics"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/profiling"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/sse"
	"github.com/jonesrussell/north-cloud/sitemap/internal/api"
	"github.com/jonesrussell/north-cloud/sitemap/internal/scheduler"
)

// Server timeouts. Writes allow for a runToCompletion request.
const (
	httpReadTimeout  = 30 * time.Second
	httpWriteTimeout = 10 * time.Minute
	httpIdleTimeout  = 120 * time.Second
)

// SetupHTTPServer creates the HTTP server with health checks, metrics and API routes.
func SetupHTTPServer(app *App) *infragin.Server {
	cfg := app.Config
	router := api.NewRouter(app.Generator, app.Settings, cfg.Auth.JWTSecret, app.Logger).
		WithEventStream(sse.Handler(app.Events, sse.TypePrefix(RunEventPrefix), app.Logger))

	httpMetrics := inframetrics.NewHTTP(app.Registry, cfg.Service.Name)

	builder := infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(app.Logger).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithTimeouts(httpReadTimeout, httpWriteTimeout, httpIdleTimeout).
		WithDatabaseHealthCheck(withTimeout(app.Stores.Deltas.Ping)).
		WithHealthCheck("generation", generationHealth(app))

	if app.Stores.Redis != nil {
		builder = builder.WithRedisHealthCheck(withTimeout(app.Stores.PingRedis))
	}
	if app.Stores.Search != nil {
		builder = builder.WithElasticsearchHealthCheck(withTimeout(app.Stores.PingSearch))
	}

	return builder.
		WithRoutes(func(engine *gin.Engine) {
			engine.Use(httpMetrics.Middleware())
			engine.GET("/metrics", gin.WrapH(app.Telemetry.Handler()))
			router.SetupRoutes(engine)
			if cfg.Service.Profiling {
				profiling.Register(infragin.ProtectedGroup(engine, "/api/v1", cfg.Auth.JWTSecret))
			}
		}).
		Build()
}

// Serve runs the HTTP server and, when enabled, the scheduler until ctx ends.
func Serve(ctx context.Context, app *App) error {
	cfg := app.Config
	log := app.Logger

	log.Info("Starting Sitemap Service",
		infralogger.String("version", cfg.Service.Version),
		infralogger.Int("port", cfg.Service.Port),
		infralogger.String("state_backend", cfg.Storage.State),
		infralogger.String("content_backend", cfg.Storage.Content),
	)

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(app.Generator, app.Settings, cfg.Scheduler.StepInterval, log)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	server := SetupHTTPServer(app)
	server.OnShutdown(app.Events.Stop)
	if err := server.Run(ctx); err != nil {
		log.Error("Server error", infralogger.Error(err))
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("Sitemap Service stopped")
	return nil
}

// generationHealth reports whether a run is in flight. A state store failure degrades
// the service; published sitemaps are still served.
func generationHealth(app *App) infragin.HealthChecker {
	return func() infragin.CheckResult {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		defer cancel()

		inFlight, err := app.Generator.InFlight(ctx)
		switch {
		case err != nil:
			return infragin.CheckResult{Status: infragin.HealthStatusDegraded, Message: "run state unavailable: " + err.Error()}
		case inFlight:
			return infragin.CheckResult{Status: infragin.HealthStatusHealthy, Message: "generation in progress"}
		default:
			return infragin.CheckResult{Status: infragin.HealthStatusHealthy, Message: "idle"}
		}
	}
}
