package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cardOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "card_operations_total",
			Help: "Card lifecycle operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	expiryNotices = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "card_expiry_notices_total",
			Help: "Card expiration notices by result.",
		},
		[]string{"result"},
	)

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
)

// Init registers the collectors in the default registry. Call once from main.
func Init() {
	prometheus.MustRegister(cardOperations, expiryNotices, httpInFlight, httpRequestsTotal, httpRequestDuration)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCardOperation counts one lifecycle operation
func ObserveCardOperation(operation, outcome string) {
	cardOperations.WithLabelValues(operation, outcome).Inc()
}

// ObserveExpiryNotice counts one expiration notice attempt
func ObserveExpiryNotice(result string) {
	expiryNotices.WithLabelValues(result).Inc()
}

// Instrument is a mux middleware recording latency and status per route template
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
