package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locker_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "locker_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	bookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locker_bookings_total",
			Help: "Bookings by outcome",
		},
		[]string{"mode", "outcome"},
	)

	paymentsConfirmedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locker_payments_confirmed_total",
			Help: "Payment confirmations by result",
		},
		[]string{"result"},
	)

	sessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "locker_sessions_created_total",
			Help: "Sessions materialized from confirmed bookings",
		},
	)

	extensionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locker_extensions_total",
			Help: "Applied extensions by source",
		},
		[]string{"source"},
	)

	sweepAffectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locker_sweep_affected_total",
			Help: "Rows changed by lifecycle sweeps",
		},
		[]string{"task"},
	)

	sweepErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locker_sweep_errors_total",
			Help: "Failed lifecycle sweep tasks",
		},
		[]string{"task"},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "locker_sweep_duration_seconds",
			Help:    "Duration of a full lifecycle sweep",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordBooking counts a booking attempt. outcome is created or conflict.
func RecordBooking(mode, outcome string) {
	bookingsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordPaymentConfirmation counts confirm results: confirmed, already_confirmed or failed.
func RecordPaymentConfirmation(result string) {
	paymentsConfirmedTotal.WithLabelValues(result).Inc()
}

func RecordSessionsCreated(n int) {
	sessionsCreatedTotal.Add(float64(n))
}

// RecordExtension counts an applied extension. source is booking, session or payment.
func RecordExtension(source string) {
	extensionsTotal.WithLabelValues(source).Inc()
}

func RecordSweep(task string, affected int64, err error) {
	if err != nil {
		sweepErrorsTotal.WithLabelValues(task).Inc()
		return
	}
	sweepAffectedTotal.WithLabelValues(task).Add(float64(affected))
}

func ObserveSweepDuration(d time.Duration) {
	sweepDuration.Observe(d.Seconds())
}
