package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the storefront.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cartUpdates     *prometheus.CounterVec
	visitorsCreated prometheus.Counter
	uploads         *prometheus.CounterVec
	calculations    *prometheus.CounterVec
}

// New creates and registers all collectors on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		cartUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_cart_updates_total",
				Help: "Cart deltas by item kind and outcome",
			},
			[]string{"item", "outcome"},
		),
		visitorsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_visitors_created_total",
				Help: "Visitor records created",
			},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_uploads_total",
				Help: "File uploads by result",
			},
			[]string{"result"},
		),
		calculations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_calculations_total",
				Help: "Calculator requests by operator and result",
			},
			[]string{"op", "result"},
		),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.cartUpdates,
		m.visitorsCreated,
		m.uploads,
		m.calculations,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) CartUpdated(item, outcome string) {
	if m == nil {
		return
	}
	m.cartUpdates.WithLabelValues(item, outcome).Inc()
}

func (m *Metrics) VisitorCreated() {
	if m == nil {
		return
	}
	m.visitorsCreated.Inc()
}

func (m *Metrics) Uploaded(result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
}

func (m *Metrics) Calculated(op, result string) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(op, result).Inc()
}
