// Package observability collects Prometheus metrics for the HTTP surface
// and the authorization engine.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inspectra-app/inspectra/internal/ability"
)

// Metrics holds the registry and the application's metric families.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authDenials     *prometheus.CounterVec
	depConflicts    *prometheus.CounterVec
	reconcileRetry  prometheus.Counter
}

// NewMetrics initializes the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspectra_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inspectra_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspectra_authorization_denials_total",
		Help: "Requests rejected by the ability engine, by resource kind and action.",
	}, []string{"kind", "action"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inspectra_dependency_conflicts_total",
		Help: "Deletes refused because dependents still reference the resource.",
	}, []string{"kind"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inspectra_blob_cleanup_retries_total",
		Help: "Blob deletions that failed during reconcile and were queued for retry.",
	})
	registry.MustRegister(requests, duration, denials, conflicts, retries)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		authDenials:     denials,
		depConflicts:    conflicts,
		reconcileRetry:  retries,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request counts and latencies per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// AuthorizationDenied implements the lifecycle observer.
func (m *Metrics) AuthorizationDenied(kind ability.ResourceKind, action ability.Action) {
	if m == nil {
		return
	}
	m.authDenials.WithLabelValues(string(kind), string(action)).Inc()
}

// DependencyConflict implements the lifecycle observer.
func (m *Metrics) DependencyConflict(kind ability.ResourceKind) {
	if m == nil {
		return
	}
	m.depConflicts.WithLabelValues(string(kind)).Inc()
}

// BlobCleanupRetry counts a reconcile blob delete failure queued for retry.
func (m *Metrics) BlobCleanupRetry() {
	if m == nil {
		return
	}
	m.reconcileRetry.Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
