package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Checkout outcomes.
const (
	CheckoutCreated           = "created"
	CheckoutUpdated           = "updated"
	CheckoutRejected          = "rejected"
	CheckoutPersistenceFailed = "persistence_failed"
)

// Reconciliation outcomes.
const (
	ReconcileReceived         = "received"
	ReconcileMismatch         = "mismatch"
	ReconcileFailed           = "failed"
	ReconcileDuplicate        = "duplicate"
	ReconcileInvalidSignature = "invalid_signature"
	ReconcileError            = "error"
)

type Metrics struct {
	Checkouts       *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "checkouts_total",
		Help:      "Total number of checkout attempts by outcome.",
	}, []string{"outcome"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "reconciliations_total",
		Help:      "Total number of payment webhook reconciliations by outcome.",
	}, []string{"outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "notifications_total",
		Help:      "Total number of order completion notifications by delivery result.",
	}, []string{"delivered"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(checkouts, reconciliations, notifications, requests, latency)

	return &Metrics{
		Checkouts:       checkouts,
		Reconciliations: reconciliations,
		Notifications:   notifications,
		Requests:        requests,
		LatencyMS:       latency,
	}
}

func (m *Metrics) Checkout(outcome string) {
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Reconciled(outcome string) {
	m.Reconciliations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Notified(delivered bool) {
	label := "false"
	if delivered {
		label = "true"
	}
	m.Notifications.WithLabelValues(label).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
