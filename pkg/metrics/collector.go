// Package metrics exposes Prometheus collectors for the backend.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	campaignsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_campaigns_total",
			Help: "Total number of notification campaigns labeled by targeting type and final status",
		},
		[]string{"type", "status"},
	)
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_total",
			Help: "Per-recipient delivery attempts labeled by channel and outcome",
		},
		[]string{"channel", "status"},
	)
	dispatchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_dispatch_duration_seconds",
			Help:    "Duration of full campaign fan-out in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)
	wsConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Current number of live WebSocket connections",
		},
	)
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests labeled by method, route, and status code",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordCampaign counts a completed campaign.
func RecordCampaign(targetType, status string) {
	if targetType == "" {
		targetType = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	campaignsTotal.WithLabelValues(targetType, status).Inc()
}

// RecordDelivery counts a single per-recipient delivery attempt.
func RecordDelivery(channel, status string) {
	deliveriesTotal.WithLabelValues(channel, status).Inc()
}

// ObserveDispatch records how long a full fan-out took.
func ObserveDispatch(d time.Duration) {
	dispatchDurationSeconds.Observe(d.Seconds())
}

// WSConnected increments the live connection gauge.
func WSConnected() { wsConnections.Inc() }

// WSDisconnected decrements the live connection gauge.
func WSDisconnected() { wsConnections.Dec() }

// RecordCommand increments bot command counters.
func RecordCommand(command, status string) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordHTTPRequest counts an HTTP request and observes its duration.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}

	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
