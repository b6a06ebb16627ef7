package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway operation metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "temporalgw_requests_total",
			Help: "Total number of gateway operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "temporalgw_request_duration_seconds",
			Help:    "Gateway operation duration in seconds, engine round trips included",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 65},
		},
		[]string{"operation"},
	)

	// Restart metrics
	RestartTerminationsTolerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "temporalgw_restart_terminations_tolerated_total",
			Help: "Restarts whose terminate step found the run already closed",
		},
	)

	// History metrics
	HistoryEventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "temporalgw_history_events_processed_total",
			Help: "History events passed through timeline reconstruction",
		},
	)

	HistoryAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "temporalgw_history_anomalies_total",
			Help: "History events that broke ordering or correlation invariants",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "temporalgw_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "code"},
	)

	HTTPRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "temporalgw_http_rate_limited_total",
			Help: "HTTP requests rejected by the rate limiter",
		},
	)
)
