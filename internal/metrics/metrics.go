// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/geointegrity/internal/detection"
)

var (
	// Detection
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geointegrity_evaluations_total",
			Help: "Total number of scored evaluations by policy mode",
		},
		[]string{"mode"},
	)

	ResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geointegrity_results_total",
			Help: "Total number of emitted results by contributing indicator",
		},
		[]string{"indicator"}, // "none" for a zero-score result
	)

	FraudScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geointegrity_fraud_score",
			Help:    "Distribution of emitted fraud scores",
			Buckets: []float64{0, 10, 25, 35, 50, 75, 100},
		},
	)

	MonitoringSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geointegrity_monitoring_sessions",
			Help: "Number of devices currently monitoring",
		},
	)

	DevicesAttached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geointegrity_devices_attached",
			Help: "Number of devices with an attached detection engine",
		},
	)

	FixesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geointegrity_fixes_received_total",
			Help: "Total number of location fixes reported by devices",
		},
	)

	// Delivery
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geointegrity_websocket_connections",
			Help: "Number of open result stream connections",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geointegrity_events_published_total",
			Help: "Total number of result events published to the bus",
		},
		[]string{"status"}, // "success", "error", "circuit_open"
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geointegrity_webhook_deliveries_total",
			Help: "Total number of webhook alert deliveries",
		},
		[]string{"status"}, // "success", "error", "rate_limited", "circuit_open"
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geointegrity_store_operations_total",
			Help: "Total number of result archive operations",
		},
		[]string{"operation", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geointegrity_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geointegrity_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geointegrity_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordResult records an emitted detection result. Evaluations are counted
// by mode only for monitoring results, which carry a policy.
func RecordResult(r *detection.DetectionResult) {
	if r == nil {
		return
	}
	FraudScore.Observe(float64(r.FraudScore))
	if len(r.Details) == 0 {
		ResultsTotal.WithLabelValues("none").Inc()
		return
	}
	for indicator := range r.Details {
		ResultsTotal.WithLabelValues(string(indicator)).Inc()
	}
}

// RecordEvaluation counts one scored evaluation under mode.
func RecordEvaluation(mode detection.Mode) {
	EvaluationsTotal.WithLabelValues(string(mode)).Inc()
}

// RecordFix counts one reported fix.
func RecordFix() {
	FixesReceived.Inc()
}

// SetMonitoringSessions sets the monitoring gauge.
func SetMonitoringSessions(n int) {
	MonitoringSessions.Set(float64(n))
}

// SetDevicesAttached sets the attached device gauge.
func SetDevicesAttached(n int) {
	DevicesAttached.Set(float64(n))
}

// TrackWebSocketConnection adjusts the open connection gauge.
func TrackWebSocketConnection(open bool) {
	if open {
		WebSocketConnections.Inc()
	} else {
		WebSocketConnections.Dec()
	}
}

// RecordEventPublish records a bus publish outcome.
func RecordEventPublish(status string) {
	EventsPublished.WithLabelValues(status).Inc()
}

// RecordWebhookDelivery records a webhook outcome.
func RecordWebhookDelivery(status string) {
	WebhookDeliveries.WithLabelValues(status).Inc()
}

// RecordStoreOperation records an archive operation outcome.
func RecordStoreOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StoreOperations.WithLabelValues(operation, status).Inc()
}

// SetCircuitBreakerState records a breaker transition. state follows
// gobreaker's ordering: 0 closed, 1 half-open, 2 open.
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordAPIRequest records a finished API request.
func RecordAPIRequest(method, path string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
