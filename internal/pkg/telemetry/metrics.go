package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "storefront"

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer, service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route", "method"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// Checkout outcomes.
const (
	OutcomeCreated           = "created"
	OutcomeInvalid           = "invalid"
	OutcomeNotFound          = "not_found"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeFailed            = "failed"
)

// CheckoutMetrics counts order creation attempts. A nil *CheckoutMetrics is
// valid and records nothing.
type CheckoutMetrics struct {
	Attempts    *prometheus.CounterVec
	UnitsSold   prometheus.Counter
	EventsRelay *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Order creation attempts by outcome.",
	}, []string{"outcome"})
	units := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "checkout",
		Name:      "units_sold_total",
		Help:      "Stock units decremented by committed orders.",
	})
	relay := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox events handled by the relay, by result.",
	}, []string{"result"})

	reg.MustRegister(attempts, units, relay)
	return &CheckoutMetrics{Attempts: attempts, UnitsSold: units, EventsRelay: relay}
}

func (m *CheckoutMetrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(outcome).Inc()
}

func (m *CheckoutMetrics) AddUnitsSold(n int) {
	if m == nil {
		return
	}
	m.UnitsSold.Add(float64(n))
}

func (m *CheckoutMetrics) ObserveRelay(result string) {
	if m == nil {
		return
	}
	m.EventsRelay.WithLabelValues(result).Inc()
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
