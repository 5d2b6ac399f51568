package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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

	loginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_attempts_total",
			Help: "Login attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	lockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_lockouts_total",
		Help: "Login attempts rejected by the IP lockout rule.",
	})

	suspiciousTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_suspicious_activity_total",
		Help: "Suspicious activity events recorded by the anomaly detector.",
	})

	streamSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "security_stream_subscribers",
		Help: "Connected security event stream observers.",
	})
)

// Init registers all service metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginAttemptsTotal, lockoutsTotal, suspiciousTotal, streamSubscribers,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin records a login attempt outcome ("success", "invalid_credentials",
// "rate_limited", "upstream_failure", "error").
func ObserveLogin(provider, outcome string) {
	loginAttemptsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveLockout counts a request rejected by the lockout rule.
func ObserveLockout() { lockoutsTotal.Inc() }

// ObserveSuspicious counts a recorded suspicious activity event.
func ObserveSuspicious() { suspiciousTotal.Inc() }

// StreamSubscriberGauge tracks connect/disconnect of stream observers.
func StreamSubscriberGauge(delta float64) { streamSubscribers.Add(delta) }

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
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

// Flush forwards flushes so SSE keeps working through the instrumented chain.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
