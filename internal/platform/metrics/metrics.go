package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicai_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medicai_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Ingestion metrics
	ObservationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicai_observations_ingested_total",
			Help: "Observations persisted, by canonical code",
		},
		[]string{"code"},
	)

	BatchesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicai_batches_rejected_total",
			Help: "Observation batches rejected by validation, by transport",
		},
		[]string{"transport"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medicai_batch_duration_seconds",
			Help:    "Time to persist and evaluate one observation batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Alert metrics
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicai_alerts_raised_total",
			Help: "Alerts created, by rule and severity",
		},
		[]string{"rule", "severity"},
	)

	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicai_alerts_suppressed_total",
			Help: "Candidate alerts dropped because an active alert already exists for the rule",
		},
		[]string{"rule"},
	)

	AlertTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicai_alert_transitions_total",
			Help: "Alert lifecycle transitions",
		},
		[]string{"from", "to", "forced"},
	)

	AlertMilestoneSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medicai_alert_milestone_seconds",
			Help:    "Seconds from the previous lifecycle milestone, by milestone",
			Buckets: []float64{30, 60, 300, 900, 1800, 3600, 4 * 3600, 12 * 3600, 24 * 3600},
		},
		[]string{"milestone"},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicai_event_publish_failures_total",
			Help: "Alert events that could not be published, by event type",
		},
		[]string{"type"},
	)

	WatchdogSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicai_watchdog_sweeps_total",
			Help: "Scheduled missing-data sweeps, by outcome",
		},
		[]string{"outcome"},
	)
)

// Handler exposes the default registry for echo.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
