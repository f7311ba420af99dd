package observability

import (
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	renewalsTotal       *prometheus.CounterVec
	scanRunsTotal       *prometheus.CounterVec
	scanNotifications   *prometheus.CounterVec
	scanItemErrorsTotal prometheus.Counter
	scanDuration        prometheus.Histogram
	chatMessagesTotal   *prometheus.CounterVec
	bestEffortFailures  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors. Safe to call repeatedly.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachhub_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coachhub_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		renewalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachhub_subscription_renewals_total",
			Help: "Subscription renewals by plan and prior state.",
		}, []string{"plan", "from"})

		scanRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachhub_expiration_scan_runs_total",
			Help: "Expiration scan runs by outcome.",
		}, []string{"outcome"})

		scanNotifications = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachhub_expiration_scan_notifications_total",
			Help: "Notifications sent by the expiration scan.",
		}, []string{"kind"})

		scanItemErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coachhub_expiration_scan_item_errors_total",
			Help: "Subscriptions that failed to process during a scan.",
		})

		scanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coachhub_expiration_scan_duration_seconds",
			Help:    "Wall time of an expiration scan.",
			Buckets: prometheus.DefBuckets,
		})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachhub_chat_messages_total",
			Help: "Chat messages stored, by sender role.",
		}, []string{"sender_role"})

		bestEffortFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coachhub_best_effort_failures_total",
			Help: "Failures of side effects that do not fail the request.",
		}, []string{"effect"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds,
			renewalsTotal, scanRunsTotal, scanNotifications, scanItemErrorsTotal, scanDuration,
			chatMessagesTotal, bestEffortFailures,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// Renewals exposes the renewal counter.
func Renewals() *prometheus.CounterVec {
	RegisterMetrics()
	return renewalsTotal
}

// ScanRuns exposes the scan run counter.
func ScanRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return scanRunsTotal
}

// ScanNotifications exposes the per-kind scan notification counter.
func ScanNotifications() *prometheus.CounterVec {
	RegisterMetrics()
	return scanNotifications
}

// ScanItemErrors exposes the per-item scan error counter.
func ScanItemErrors() prometheus.Counter {
	RegisterMetrics()
	return scanItemErrorsTotal
}

// ScanDuration exposes the scan duration histogram.
func ScanDuration() prometheus.Histogram {
	RegisterMetrics()
	return scanDuration
}

// ChatMessages exposes the chat message counter.
func ChatMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

// BestEffortFailures exposes the swallowed side-effect failure counter.
func BestEffortFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return bestEffortFailures
}

// MetricsHandler exposes the Prometheus scrape endpoint via gin.
func MetricsHandler() gin.HandlerFunc {
	RegisterMetrics()
	return gin.WrapH(promhttp.Handler())
}
