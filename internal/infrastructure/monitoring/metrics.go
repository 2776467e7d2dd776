package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Outcome labels of AI requests and fan-out items
const (
	OutcomeSuccess      = "success"
	OutcomeConfigError  = "configuration_error"
	OutcomeInvalidInput = "invalid_input"
	OutcomeServiceError = "service_error"
	OutcomeResolved     = "resolved"
	OutcomeFailed       = "failed"
)

// MetricsCollector handles Prometheus metrics collection. Every collector is
// registered on its own registry so several collectors can coexist in one
// process.
type MetricsCollector struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimitedTotal    *prometheus.CounterVec

	// AI metrics
	aiRequestsTotal   *prometheus.CounterVec
	aiRequestDuration *prometheus.HistogramVec

	// Fan-out metrics
	imageItemsTotal     *prometheus.CounterVec
	imageFanoutDuration prometheus.Histogram
	imageFanoutsActive  prometheus.Gauge
	backgroundJobs      prometheus.Gauge
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(logger *zap.Logger) *MetricsCollector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &MetricsCollector{
		logger:   logger,
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		rateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"route"},
		),
		aiRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_requests_total",
				Help: "AI task invocations by outcome",
			},
			[]string{"task", "outcome"},
		),
		aiRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_request_duration_seconds",
				Help:    "AI task duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"task"},
		),
		imageItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingredient_image_items_total",
				Help: "Ingredient images resolved by a fan-out, by outcome",
			},
			[]string{"outcome"},
		),
		imageFanoutDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingredient_image_fanout_duration_seconds",
				Help:    "Time until every ingredient image of a recipe resolved",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
			},
		),
		imageFanoutsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingredient_image_fanouts_active",
				Help: "Ingredient image fan-outs in flight",
			},
		),
		backgroundJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kitchen_background_jobs",
				Help: "Recipe generations and image fan-outs running detached from a request",
			},
		),
	}
}

// HTTPMiddleware records request counts and latencies per chi route pattern
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// AIRequest records one AI task invocation
func (m *MetricsCollector) AIRequest(task, outcome string, duration time.Duration) {
	m.aiRequestsTotal.WithLabelValues(task, outcome).Inc()
	if outcome == OutcomeSuccess || outcome == OutcomeServiceError {
		m.aiRequestDuration.WithLabelValues(task).Observe(duration.Seconds())
	}
}

// ImageFanoutStarted marks the start of an ingredient image fan-out
func (m *MetricsCollector) ImageFanoutStarted() {
	m.imageFanoutsActive.Inc()
}

// ImageFanoutFinished records the outcome of an ingredient image fan-out
func (m *MetricsCollector) ImageFanoutFinished(resolved, failed int, duration time.Duration) {
	m.imageFanoutsActive.Dec()
	m.imageItemsTotal.WithLabelValues(OutcomeResolved).Add(float64(resolved))
	m.imageItemsTotal.WithLabelValues(OutcomeFailed).Add(float64(failed))
	m.imageFanoutDuration.Observe(duration.Seconds())
}

// BackgroundJobStarted and BackgroundJobFinished track detached work
func (m *MetricsCollector) BackgroundJobStarted()  { m.backgroundJobs.Inc() }
func (m *MetricsCollector) BackgroundJobFinished() { m.backgroundJobs.Dec() }

// RateLimited counts a rejected request
func (m *MetricsCollector) RateLimited(route string) {
	m.rateLimitedTotal.WithLabelValues(route).Inc()
}

// Registry exposes the underlying registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
