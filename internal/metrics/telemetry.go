// Package metrics provides Prometheus metrics and OpenTelemetry tracing for sitemap generation.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/north-cloud/sitemap/internal/domain"
)

const serviceName = "sitemap"

// Metrics holds all sitemap Prometheus metrics
type Metrics struct {
	CandidatesTotal    *prometheus.CounterVec
	VariantsTotal      *prometheus.CounterVec
	DeltasFlushed      *prometheus.CounterVec
	FlushFailures      prometheus.Counter
	InvocationDuration *prometheus.HistogramVec
	RunsCompleted      *prometheus.CounterVec
	LastRunCompleted   prometheus.Gauge
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	gatherer prometheus.Gatherer
}

// NewProvider registers metrics with reg. A nil reg uses the default registry.
func NewProvider(reg prometheus.Registerer) *Provider {
	gatherer := prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  initMetrics(promauto.With(reg)),
		gatherer: gatherer,
	}
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func initMetrics(factory promauto.Factory) *Metrics {
	return &Metrics{
		CandidatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitemap_candidates_total",
			Help: "Candidates processed by producer and outcome",
		}, []string{"producer", "outcome"}),
		VariantsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitemap_variants_total",
			Help: "Language variants buffered per context",
		}, []string{"context"}),
		DeltasFlushed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitemap_deltas_flushed_total",
			Help: "Sitemap documents written per context",
		}, []string{"context"}),
		FlushFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sitemap_flush_failures_total",
			Help: "Failed delta writes",
		}),
		InvocationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitemap_invocation_duration_seconds",
			Help:    "Duration of one generation invocation",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
		}, []string{"mode"}),
		RunsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitemap_runs_completed_total",
			Help: "Generation runs that reached completion",
		}, []string{"mode"}),
		LastRunCompleted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sitemap_last_run_completed_timestamp_seconds",
			Help: "Unix time of the last completed generation run",
		}),
	}
}

// RecordCandidate counts one processed candidate.
func (p *Provider) RecordCandidate(producer, outcome string) {
	p.Metrics.CandidatesTotal.WithLabelValues(producer, outcome).Inc()
}

// RecordVariants counts variants added to a context buffer.
func (p *Provider) RecordVariants(sitemapContext string, n int) {
	p.Metrics.VariantsTotal.WithLabelValues(sitemapContext).Add(float64(n))
}

// RecordFlush records a delta write.
func (p *Provider) RecordFlush(sitemapContext string, err error) {
	if err != nil {
		p.Metrics.FlushFailures.Inc()
		return
	}
	p.Metrics.DeltasFlushed.WithLabelValues(sitemapContext).Inc()
}

// RecordInvocation records the duration of one invocation.
func (p *Provider) RecordInvocation(mode domain.Mode, duration time.Duration) {
	p.Metrics.InvocationDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())
}

// RecordRunCompleted records a completed run.
func (p *Provider) RecordRunCompleted(mode domain.Mode, at time.Time) {
	p.Metrics.RunsCompleted.WithLabelValues(string(mode)).Inc()
	p.Metrics.LastRunCompleted.Set(float64(at.Unix()))
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}
