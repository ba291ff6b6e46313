package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics (collector side)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)

	// Outbound delivery metrics
	DeliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_delivery_attempts_total",
			Help: "Total number of delivery attempts against the collector",
		},
		[]string{"method", "result"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telemetry_delivery_duration_seconds",
			Help:    "Duration of a single delivery attempt in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Queue metrics
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_queue_depth",
			Help: "Number of undelivered requests in the offline queue",
		},
	)

	QueueEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_queue_enqueued_total",
			Help: "Total number of requests appended to the offline queue",
		},
		[]string{"reason"},
	)

	DrainPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_drain_passes_total",
			Help: "Total number of queue drain passes",
		},
		[]string{"trigger", "result"},
	)

	// Storage metrics
	StorageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_storage_operations_total",
			Help: "Total number of durable store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	StorageOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telemetry_storage_operation_duration_seconds",
			Help:    "Duration of durable store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// Collector side
	DatabaseOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"service", "operation", "status"},
	)

	// Service health metrics
	ServiceHealth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "service_health",
			Help: "Health status of the service (1 = healthy, 0 = unhealthy)",
		},
		[]string{"service"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_active_sessions",
			Help: "Number of sessions currently open",
		},
	)
)

var registerOnce sync.Once

// InitMetrics registers all metrics with Prometheus. Safe to call more than once.
func InitMetrics(serviceName string) {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			DeliveryAttempts,
			DeliveryDuration,
			QueueDepth,
			QueueEnqueued,
			DrainPasses,
			StorageOperations,
			StorageOperationDuration,
			DatabaseOperations,
			ServiceHealth,
			ActiveSessions,
		)
	})

	// Set initial health status
	ServiceHealth.WithLabelValues(serviceName).Set(1)
}

// HTTPMiddleware creates a middleware for HTTP metrics collection
func HTTPMiddleware(serviceName string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a wrapper to capture status code
		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(
			serviceName,
			r.Method,
			r.URL.Path,
			http.StatusText(wrapper.statusCode),
		).Inc()

		HTTPRequestDuration.WithLabelValues(
			serviceName,
			r.Method,
			r.URL.Path,
		).Observe(duration)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordDeliveryAttempt records one transport attempt and its latency.
func RecordDeliveryAttempt(method, result string, duration time.Duration) {
	DeliveryAttempts.WithLabelValues(method, result).Inc()
	DeliveryDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetQueueDepth sets the current offline queue depth
func SetQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}

// RecordEnqueued records a request being appended to the offline queue
func RecordEnqueued(reason string) {
	QueueEnqueued.WithLabelValues(reason).Inc()
}

// RecordDrainPass records the outcome of a drain pass
func RecordDrainPass(trigger, result string) {
	DrainPasses.WithLabelValues(trigger, result).Inc()
}

// RecordStorageOperation records a durable store operation
func RecordStorageOperation(backend, operation, status string, duration time.Duration) {
	StorageOperations.WithLabelValues(backend, operation, status).Inc()
	StorageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(serviceName, operation, status string) {
	DatabaseOperations.WithLabelValues(serviceName, operation, status).Inc()
}

// SetServiceHealth sets the service health status
func SetServiceHealth(serviceName string, healthy bool) {
	if healthy {
		ServiceHealth.WithLabelValues(serviceName).Set(1)
	} else {
		ServiceHealth.WithLabelValues(serviceName).Set(0)
	}
}

// SessionStarted and SessionEnded track the open session gauge
func SessionStarted() { ActiveSessions.Inc() }

func SessionEnded() { ActiveSessions.Dec() }
