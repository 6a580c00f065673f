package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kost_login_total",
			Help: "Total number of login attempts",
		},
	)

	// Registration counters
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kost_register_total",
			Help: "Total number of owner registrations",
		},
	)

	// Entity operation counter
	EntityOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kost_entity_operations_total",
			Help: "Total number of entity operations",
		},
		[]string{"entity", "operation"}, // entity: property, room, tenant, payment...
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kost_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kost_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"},
	)

	// Business-rule rejection counter
	RuleViolationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kost_rule_violations_total",
			Help: "Total number of rejected business-rule violations",
		},
		[]string{"rule"}, // rule: subscription_limit, duplicate_tenant_email, room_type_referenced...
	)

	// Billing job run counter
	BillingRunCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kost_billing_runs_total",
			Help: "Total number of billing reminder job runs",
		},
	)

	// Billing reminder outcome counter
	BillingReminderCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kost_billing_reminders_total",
			Help: "Total number of billing reminder outcomes per tenant",
		},
		[]string{"outcome"}, // outcome: created, skipped, error
	)

	// Outbound email counter
	EmailCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kost_emails_total",
			Help: "Total number of outbound emails by result",
		},
		[]string{"status"}, // status: sent, failed
	)

	// Image upload counter
	UploadCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kost_uploads_total",
			Help: "Total number of image upload operations",
		},
		[]string{"operation", "status"},
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kost_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kost_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)

	// Billing job duration
	BillingRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kost_billing_run_duration_seconds",
			Help:    "Duration of billing reminder job runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Gauge metrics
var (
	// Active tokens
	ActiveTokensGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kost_active_tokens",
			Help: "Number of currently active authentication tokens",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kost_info",
			Help: "Information about the kost service",
		},
		[]string{"version"},
	)

	// Connected realtime clients
	RealtimeClientsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kost_realtime_clients",
			Help: "Number of currently connected realtime subscribers",
		},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(EntityOperationCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(RuleViolationCounter)
	prometheus.MustRegister(BillingRunCounter)
	prometheus.MustRegister(BillingReminderCounter)
	prometheus.MustRegister(EmailCounter)
	prometheus.MustRegister(UploadCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(BillingRunDuration)

	// Register gauges
	prometheus.MustRegister(ActiveTokensGauge)
	prometheus.MustRegister(InfoGauge)
	prometheus.MustRegister(RealtimeClientsGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// IncreaseActiveTokens increments the active tokens gauge
func IncreaseActiveTokens() {
	ActiveTokensGauge.Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordEntityOperation records a CRUD operation on a domain entity
func RecordEntityOperation(entity, operation string) {
	EntityOperationCounter.With(prometheus.Labels{"entity": entity, "operation": operation}).Inc()
}

// RecordRuleViolation records a rejected business-rule violation
func RecordRuleViolation(rule string) {
	RuleViolationCounter.With(prometheus.Labels{"rule": rule}).Inc()
}

// RecordReminderOutcome records one tenant outcome of a billing job run
func RecordReminderOutcome(outcome string) {
	BillingReminderCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordEmail records an outbound email attempt
func RecordEmail(status string) {
	EmailCounter.With(prometheus.Labels{"status": status}).Inc()
}

// RecordUpload records an image upload or delete attempt
func RecordUpload(operation, status string) {
	UploadCounter.With(prometheus.Labels{"operation": operation, "status": status}).Inc()
}
