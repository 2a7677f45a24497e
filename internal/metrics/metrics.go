package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
		},
		[]string{"method", "endpoint"},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"method", "endpoint"},
	)

	// Storage metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	storageOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"backend", "operation", "status"},
	)

	storageOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend", "operation"},
	)

	// Business metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_auth_attempts_total",
			Help: "Total number of admin password checks",
		},
		[]string{"status"}, // success, failure
	)

	otpIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admin_otp_issued_total",
			Help: "Total number of admin login codes issued",
		},
	)

	otpVerifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_otp_verified_total",
			Help: "Total number of admin login code checks",
		},
		[]string{"status"}, // one of the OTPStatus values
	)

	messagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_received_total",
			Help: "Total number of contact and recruitment submissions",
		},
		[]string{"kind"}, // contact, recruitment
	)

	appointmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointments_requested_total",
			Help: "Total number of appointment requests",
		},
	)

	newsletterEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsletter_events_total",
			Help: "Total number of newsletter subscription events",
		},
		[]string{"event"}, // subscribe, confirm, unsubscribe
	)

	siteVisitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "site_visits_total",
			Help: "Total number of recorded site visits since process start",
		},
	)
)

// PrometheusMiddleware creates a middleware that records Prometheus metrics
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Skip metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		// Wrap response writer to capture status code and size
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		endpoint := routeLabel(r.URL.Path)

		// Record request size
		if r.ContentLength > 0 {
			httpRequestSize.WithLabelValues(r.Method, endpoint).Observe(float64(r.ContentLength))
		}

		// Handle request
		next.ServeHTTP(wrapped, r)

		// Record metrics
		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, endpoint, statusCode).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint, statusCode).Observe(duration)
		httpResponseSize.WithLabelValues(r.Method, endpoint).Observe(float64(wrapped.size))
	})
}

// routeLabel replaces the id segment of admin item routes so each route
// produces a single label value
func routeLabel(path string) string {
	for _, prefix := range []string{"/api/admin/messages/", "/api/admin/appointments/", "/api/admin/subscribers/"} {
		if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
			return prefix + "{id}"
		}
	}
	return path
}

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// RecordAuthAttempt records an admin password check
func RecordAuthAttempt(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	authAttemptsTotal.WithLabelValues(status).Inc()
}

// RecordOTPIssued records a login code being issued
func RecordOTPIssued() {
	otpIssuedTotal.Inc()
}

// Login code check outcomes
const (
	OTPStatusSuccess     = "success"
	OTPStatusIncorrect   = "incorrect"
	OTPStatusExpired     = "expired"
	OTPStatusNoChallenge = "no_challenge"
)

// RecordOTPVerified records the outcome of a login code check
func RecordOTPVerified(status string) {
	otpVerifiedTotal.WithLabelValues(status).Inc()
}

// RecordMessage records a contact or recruitment submission
func RecordMessage(recruitment bool) {
	kind := "contact"
	if recruitment {
		kind = "recruitment"
	}
	messagesReceivedTotal.WithLabelValues(kind).Inc()
}

// RecordAppointment records an appointment request
func RecordAppointment() {
	appointmentsTotal.Inc()
}

// RecordNewsletterEvent records a subscribe, confirm or unsubscribe
func RecordNewsletterEvent(event string) {
	newsletterEventsTotal.WithLabelValues(event).Inc()
}

// RecordVisit records a site visit
func RecordVisit() {
	siteVisitsTotal.Inc()
}

// RecordStorageOp records one storage operation
func RecordStorageOp(backend, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	storageOpsTotal.WithLabelValues(backend, operation, status).Inc()
	storageOpDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// UpdateDBConnections updates database connection metrics
func UpdateDBConnections(active, idle int) {
	dbConnectionsActive.Set(float64(active))
	dbConnectionsIdle.Set(float64(idle))
}
