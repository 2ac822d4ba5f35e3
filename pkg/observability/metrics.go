package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Webhook metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Tutoring metrics
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_messages_total",
			Help: "Total number of processed learner messages by resolved intent",
		},
		[]string{"intent"},
	)

	messageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutor_message_duration_seconds",
			Help:    "Message processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"intent"},
	)

	// Oracle metrics
	oracleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_oracle_requests_total",
			Help: "Total number of grading-oracle calls",
		},
		[]string{"provider", "status"},
	)

	oracleRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutor_oracle_request_duration_seconds",
			Help:    "Grading-oracle call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Broadcast metrics
	broadcastMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_broadcast_messages_total",
			Help: "Total number of conversation starters pushed, by slot",
		},
		[]string{"slot"},
	)

	// Store metrics
	storeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutor_store_errors_total",
			Help: "Total number of session-store failures by operation",
		},
		[]string{"op"},
	)

	initOnce sync.Once
)

// InitMetrics registers the Prometheus metrics.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			messagesTotal,
			messageDuration,
			oracleRequestsTotal,
			oracleRequestDuration,
			broadcastMessagesTotal,
			storeErrorsTotal,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records webhook request metrics.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMessage records one processed learner message.
func RecordMessage(intent string, duration time.Duration) {
	messagesTotal.WithLabelValues(intent).Inc()
	messageDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

// RecordOracleRequest records one grading-oracle call.
func RecordOracleRequest(provider, status string, duration time.Duration) {
	oracleRequestsTotal.WithLabelValues(provider, status).Inc()
	oracleRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordBroadcast records pushed conversation starters for a slot.
func RecordBroadcast(slot string, count int) {
	broadcastMessagesTotal.WithLabelValues(slot).Add(float64(count))
}

// RecordStoreError records a session-store failure.
func RecordStoreError(op string) {
	storeErrorsTotal.WithLabelValues(op).Inc()
}
