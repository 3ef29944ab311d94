package generator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
	"github.com/jonesrussell/north-cloud/sitemap/internal/settings"
)

// StateStore persists the progress state of the in-flight run. Load returns nil
// without error when no run is in flight.
type StateStore interface {
	Load(ctx context.Context) (*domain.ProgressState, error)
	Save(ctx context.Context, state *domain.ProgressState) error
	Delete(ctx context.Context) error
}

// DeltaStore persists sitemap documents. Deltas are written unpublished and become
// visible when Publish swaps them in for a context.
type DeltaStore interface {
	// Insert upserts a delta by (context, run, index).
	Insert(ctx context.Context, delta *domain.Delta) error
	// DeletePending removes unpublished deltas of a context.
	DeletePending(ctx context.Context, sitemapContext string) error
	// Publish replaces the published deltas of a context with those of runID.
	Publish(ctx context.Context, sitemapContext, runID string) error
	// ListPublished returns the published deltas of a context ordered by index,
	// without payloads.
	ListPublished(ctx context.Context, sitemapContext string) ([]domain.Delta, error)
	// GetPublished returns domain.ErrNotFound when the delta does not exist.
	GetPublished(ctx context.Context, sitemapContext string, deltaIndex int) (*domain.Delta, error)
}

// SettingsSource loads the current settings.
type SettingsSource interface {
	Load(ctx context.Context) (*settings.Settings, error)
}

// Locker serializes invocations across processes. TryLock reports false when the
// lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(), ok bool, err error)
}

// RunEvent names a run lifecycle transition reported to an Observer.
type RunEvent string

// Run lifecycle events.
const (
	RunStarted    RunEvent = "started"
	RunProgressed RunEvent = "progress"
	RunFinished   RunEvent = "finished"
	RunFailed     RunEvent = "failed"
	RunCancelled  RunEvent = "cancelled"
)

// Observer is told about run lifecycle events. Observe is called while the run lock
// is held and must not block.
type Observer interface {
	Observe(event RunEvent, progress *Progress, err error)
}

type nopObserver struct{}

func (nopObserver) Observe(RunEvent, *Progress, error) {}

// Telemetry receives generation metrics and starts trace spans.
type Telemetry interface {
	RecordCandidate(producer, outcome string)
	RecordVariants(sitemapContext string, n int)
	RecordFlush(sitemapContext string, err error)
	RecordInvocation(mode domain.Mode, duration time.Duration)
	RecordRunCompleted(mode domain.Mode, at time.Time)
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

type nopTelemetry struct {
	tracer trace.Tracer
}

// NopTelemetry discards metrics and creates non-recording spans.
func NopTelemetry() Telemetry {
	return nopTelemetry{tracer: noop.NewTracerProvider().Tracer("sitemap")}
}

func (nopTelemetry) RecordCandidate(string, string)              {}
func (nopTelemetry) RecordVariants(string, int)                  {}
func (nopTelemetry) RecordFlush(string, error)                   {}
func (nopTelemetry) RecordInvocation(domain.Mode, time.Duration) {}
func (nopTelemetry) RecordRunCompleted(domain.Mode, time.Time)   {}

//nolint:spancheck // Caller is responsible for ending the span
func (n nopTelemetry) StartSpan(
	ctx context.Context, name string, attrs ...attribute.KeyValue,
) (context.Context, trace.Span) {
	return n.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
