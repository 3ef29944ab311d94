package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	infralogger "github.com/jonesrussell/north-cloud/sitemap/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/sitemap/infrastructure/sse"
	"github.com/jonesrussell/north-cloud/sitemap/internal/config"
	"github.com/jonesrussell/north-cloud/sitemap/internal/generator"
	"github.com/jonesrussell/north-cloud/sitemap/internal/metrics"
	"github.com/jonesrussell/north-cloud/sitemap/internal/producer"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// App is the assembled sitemap service.
type App struct {
	Config    *config.Config
	Logger    infralogger.Logger
	Stores    *Stores
	Settings  *settings.Manager
	Generator *generator.Generator
	Telemetry *metrics.Provider
	// Registry holds every Prometheus collector exposed at /metrics.
	Registry *prometheus.Registry
	// Events carries run events to event stream clients.
	Events *sse.Broker
}

// Option configures NewApp.
type Option func(*appOptions)

type appOptions struct {
	links producer.LinkSource
}

// WithLinkSource adds links supplied by code to every generation run.
func WithLinkSource(source producer.LinkSource) Option {
	return func(o *appOptions) {
		o.links = source
	}
}

// NewApp opens the stores, assembles the generator and starts the event broker.
func NewApp(ctx context.Context, cfg *config.Config, log infralogger.Logger, opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}

	stores, storesErr := SetupStores(ctx, cfg, log)
	if storesErr != nil {
		return nil, storesErr
	}

	registry, registryErr := producer.NewRegistry(
		producer.NewRecordProducer(stores.Content),
		producer.NewMenuProducer(stores.Menus, stores.Content),
		producer.NewCustomProducer(),
		producer.NewArbitraryProducer(o.links),
	)
	if registryErr != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("register producers: %w", registryErr)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	telemetry := metrics.NewProvider(reg)

	manager := settings.NewManager(stores.Settings, &cfg.Generation.Settings)

	coordinator := generator.NewCoordinator(registry, stores.Deltas, log,
		generator.WithTelemetry(telemetry),
	)

	events := sse.NewBroker(cfg.Events, log)
	events.Start(ctx)

	gen := generator.New(generator.Config{
		Coordinator: coordinator,
		States:      stores.States,
		Deltas:      stores.Deltas,
		Settings:    manager,
		Locker:      stores.Locker,
		Telemetry:   telemetry,
		Observer:    runEvents{broker: events, log: log},
		Logger:      log,
	})

	return &App{
		Config:    cfg,
		Logger:    log,
		Stores:    stores,
		Settings:  manager,
		Generator: gen,
		Telemetry: telemetry,
		Registry:  reg,
		Events:    events,
	}, nil
}

// Close stops the event broker and releases the app's connections.
func (a *App) Close() error {
	a.Events.Stop()
	return a.Stores.Close()
}
