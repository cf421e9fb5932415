// Package metrics holds the Prometheus collectors of the data service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the data service. Each
// collector owns its registry so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	Regenerations         prometheus.Counter
	RegenerationDuration  prometheus.Histogram
	RegeneratedBullets    prometheus.Gauge
	InvalidatedBulletsTot prometheus.Counter
}

// NewCollector creates a collector with every metric registered under
// namespace
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Regenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_regenerations_total",
			Help:      "Total number of completed summary regenerations",
		}),
		RegenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summary_regeneration_duration_seconds",
			Help:      "Summary regeneration duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RegeneratedBullets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "regenerated_bullet_points",
			Help:      "Bullet points created by the latest regeneration",
		}),
		InvalidatedBulletsTot: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidated_bullet_points_total",
			Help:      "Total number of bullet points marked invalid",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Regenerations,
		c.RegenerationDuration,
		c.RegeneratedBullets,
		c.InvalidatedBulletsTot,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

// RegisterGauge exposes a value computed at scrape time, such as the number
// of connected event stream clients
func (c *Collector) RegisterGauge(namespace, name, help string, fn func() float64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RegenerationCompleted records one finished regeneration
func (c *Collector) RegenerationCompleted(created int, took time.Duration) {
	c.Regenerations.Inc()
	c.RegenerationDuration.Observe(took.Seconds())
	c.RegeneratedBullets.Set(float64(created))
}

// BulletPointsInvalidated records n bullet points marked invalid
func (c *Collector) BulletPointsInvalidated(n int) {
	c.InvalidatedBulletsTot.Add(float64(n))
}

// Middleware records request count and latency per chi route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
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
		c.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
