// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_checkouts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	paymentRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_payment_requests_total",
			Help: "Payment creation requests by gateway and outcome",
		},
		[]string{"gateway", "outcome"},
	)

	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookstore_payment_callbacks_total",
			Help: "Gateway callbacks by gateway and outcome",
		},
		[]string{"gateway", "outcome"},
	)

	gatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookstore_gateway_request_duration_seconds",
			Help:    "Outbound gateway call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(checkoutsTotal)
	prometheus.MustRegister(paymentRequestsTotal)
	prometheus.MustRegister(callbacksTotal)
	prometheus.MustRegister(gatewayLatency)
}

func RecordCheckout(outcome string) {
	checkoutsTotal.WithLabelValues(outcome).Inc()
}

func RecordPaymentRequest(gateway, outcome string) {
	paymentRequestsTotal.WithLabelValues(gateway, outcome).Inc()
}

func RecordCallback(gateway, outcome string) {
	callbacksTotal.WithLabelValues(gateway, outcome).Inc()
}

func ObserveGatewayLatency(gateway string, seconds float64) {
	gatewayLatency.WithLabelValues(gateway).Observe(seconds)
}
