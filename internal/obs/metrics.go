package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP and payment-flow metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	paymentsInitiatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "Payment attempts submitted to the gateway.",
		},
		[]string{"type", "purpose"},
	)

	paymentsReconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reconciled_total",
			Help: "Pending payments resolved to a terminal status.",
		},
		[]string{"status"},
	)

	reconcileSweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_sweeps_total",
		Help: "Reconciliation sweeps executed.",
	})
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		paymentsInitiatedTotal, paymentsReconciledTotal, reconcileSweepsTotal,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePaymentInitiated counts a gateway submission.
func ObservePaymentInitiated(txType, purpose string) {
	paymentsInitiatedTotal.WithLabelValues(txType, purpose).Inc()
}

// ObservePaymentReconciled counts a terminal resolution.
func ObservePaymentReconciled(status string) {
	paymentsReconciledTotal.WithLabelValues(status).Inc()
}

// ObserveReconcileSweep counts one sweep of the pending ledger.
func ObserveReconcileSweep() {
	reconcileSweepsTotal.Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter records the response code for labelling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
