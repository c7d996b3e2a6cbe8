// Package telemetry exports Prometheus metrics and OpenTelemetry spans for
// the LearningSong service. A nil *Provider is valid and records nothing.
package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "learningsong"

// Metrics holds all service metrics.
type Metrics struct {
	// Lyrics pipeline
	StageDuration   *prometheus.HistogramVec
	StageFailures   *prometheus.CounterVec
	SearchFallbacks prometheus.Counter

	// Caches and quota
	CacheLookups   *prometheus.CounterVec
	QuotaRejected  prometheus.Counter
	GenerationsRun *prometheus.CounterVec

	// Generation client
	UpstreamRequests *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	UnknownStatuses  *prometheus.CounterVec

	// Background workers
	TaskSyncs      *prometheus.CounterVec
	TasksExpired   prometheus.Counter
	PendingBacklog prometheus.Gauge

	// HTTP
	HTTPRequests *prometheus.HistogramVec
}

// Provider bundles the registry, metrics and tracer.
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	registry *prometheus.Registry
}

// NewProvider registers metrics on a fresh registry together with the Go
// runtime and process collectors.
func NewProvider() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  initMetrics(promauto.With(reg)),
		registry: reg,
	}
}

// Handler serves the registry for the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

func initMetrics(f promauto.Factory) *Metrics {
	return &Metrics{
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learningsong_pipeline_stage_duration_seconds",
			Help:    "Duration of lyrics pipeline stages",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learningsong_pipeline_stage_failures_total",
			Help: "Lyrics pipeline runs that ended at a stage",
		}, []string{"stage"}),
		SearchFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "learningsong_search_fallbacks_total",
			Help: "Search grounding attempts that fell back to the original content",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learningsong_cache_lookups_total",
			Help: "Cache lookups by cache kind and result",
		}, []string{"cache", "result"}),
		QuotaRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "learningsong_quota_rejected_total",
			Help: "Requests rejected by the daily quota",
		}),
		GenerationsRun: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learningsong_generations_total",
			Help: "Lyrics and song generations by kind and outcome",
		}, []string{"kind", "outcome"}),
		UpstreamRequests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learningsong_musicgen_request_duration_seconds",
			Help:    "Music generation API request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learningsong_musicgen_request_errors_total",
			Help: "Failed music generation API requests",
		}, []string{"operation"}),
		UnknownStatuses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learningsong_musicgen_unknown_status_total",
			Help: "Upstream task statuses with no internal mapping",
		}, []string{"status"}),
		TaskSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "learningsong_task_syncs_total",
			Help: "Task status synchronizations by outcome",
		}, []string{"outcome"}),
		TasksExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "learningsong_tasks_expired_total",
			Help: "Tasks removed after their TTL",
		}),
		PendingBacklog: f.NewGauge(prometheus.GaugeOpts{
			Name: "learningsong_pending_tasks",
			Help: "Non-terminal tasks seen by the last poll",
		}),
		HTTPRequests: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learningsong_http_request_duration_seconds",
			Help:    "HTTP request duration by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// ObserveStage records a pipeline stage.
func (p *Provider) ObserveStage(stage string, d time.Duration, err error) {
	if p == nil {
		return
	}
	p.Metrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		p.Metrics.StageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveSearchFallback counts a grounding fallback.
func (p *Provider) ObserveSearchFallback() {
	if p == nil {
		return
	}
	p.Metrics.SearchFallbacks.Inc()
}

// ObserveCache records a cache lookup.
func (p *Provider) ObserveCache(kind string, hit bool) {
	if p == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	p.Metrics.CacheLookups.WithLabelValues(kind, result).Inc()
}

// ObserveQuotaRejected counts a quota rejection.
func (p *Provider) ObserveQuotaRejected() {
	if p == nil {
		return
	}
	p.Metrics.QuotaRejected.Inc()
}

// ObserveGeneration counts a finished generation request.
func (p *Provider) ObserveGeneration(kind, outcome string) {
	if p == nil {
		return
	}
	p.Metrics.GenerationsRun.WithLabelValues(kind, outcome).Inc()
}

// ObserveRequest records a music generation API call.
func (p *Provider) ObserveRequest(op string, d time.Duration, err error) {
	if p == nil {
		return
	}
	p.Metrics.UpstreamRequests.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		p.Metrics.UpstreamErrors.WithLabelValues(op).Inc()
	}
}

// ObserveUnknownStatus counts an unmapped upstream status.
func (p *Provider) ObserveUnknownStatus(status string) {
	if p == nil {
		return
	}
	if status == "" {
		status = "empty"
	}
	p.Metrics.UnknownStatuses.WithLabelValues(status).Inc()
}

// ObserveSync records one task synchronization.
func (p *Provider) ObserveSync(outcome string) {
	if p == nil {
		return
	}
	p.Metrics.TaskSyncs.WithLabelValues(outcome).Inc()
}

// ObservePending sets the backlog gauge.
func (p *Provider) ObservePending(n int) {
	if p == nil {
		return
	}
	p.Metrics.PendingBacklog.Set(float64(n))
}

// ObserveExpired counts tasks removed by cleanup.
func (p *Provider) ObserveExpired(n int) {
	if p == nil {
		return
	}
	p.Metrics.TasksExpired.Add(float64(n))
}

// StartSpan starts a span. The caller ends it.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if p == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// GinMiddleware records request durations by route template.
func (p *Provider) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if p == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		p.Metrics.HTTPRequests.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
