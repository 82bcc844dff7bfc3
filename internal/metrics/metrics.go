// Package metrics exposes Prometheus metrics for option fetches, cleared
// fields and the HTTP endpoints.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-matricula/pkg/dependent"
	"github.com/goliatone/go-matricula/pkg/form"
	"github.com/goliatone/go-matricula/pkg/options"
)

// Config configures the metric set.
type Config struct {
	// Namespace prefixes every metric (default: "matricula").
	Namespace string
	// Buckets are the fetch duration histogram buckets.
	Buckets []float64
	// Registry receives the collectors. Default: a fresh registry.
	Registry *prometheus.Registry
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "matricula",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}
}

// Metrics implements options.Observer and dependent.Reporter.
type Metrics struct {
	registry      *prometheus.Registry
	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	fieldClears   *prometheus.CounterVec
	staleDropped  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

var (
	_ options.Observer   = (*Metrics)(nil)
	_ dependent.Reporter = (*Metrics)(nil)
)

// New registers the collectors.
func New(opts ...Option) *Metrics {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = defaultConfig().Buckets
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		registry: cfg.Registry,
		fetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "fetch_total",
			Help:      "Dependent option fetches by edge and outcome",
		}, []string{"edge", "status"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Dependent option fetch duration in seconds",
			Buckets:   cfg.Buckets,
		}, []string{"edge"}),
		fieldClears: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "field_clears_total",
			Help:      "Dependent field values cleared by the synchronizer",
		}, []string{"field"}),
		staleDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "stale_responses_total",
			Help:      "Fetch responses dropped because a newer request superseded them",
		}, []string{"edge"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by route and status code",
		}, []string{"method", "route", "code"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the Prometheus exposition.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveFetch(edge, status string, elapsed time.Duration) {
	m.fetchTotal.WithLabelValues(edge, status).Inc()
	m.fetchDuration.WithLabelValues(edge).Observe(elapsed.Seconds())
}

// FetchFailed is counted by ObserveFetch already.
func (m *Metrics) FetchFailed(string, options.Request, error) {}

// FieldCleared counts by base name so formset rows share a series.
func (m *Metrics) FieldCleared(field string, _ form.Cause) {
	m.fieldClears.WithLabelValues(form.BaseName(field)).Inc()
}

func (m *Metrics) StaleDropped(edge string) {
	m.staleDropped.WithLabelValues(edge).Inc()
}

// Middleware counts requests by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
