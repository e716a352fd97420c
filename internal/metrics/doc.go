// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

/*
Package metrics defines the Prometheus instrumentation for Geointegrity.

All collectors register with the default registry through promauto and are
exposed by the API at /metrics. Metric names carry the geointegrity_ prefix.

Detection:
  - geointegrity_evaluations_total{mode}: scored evaluations by policy mode
  - geointegrity_results_total{indicator}: emitted results per contributing indicator
  - geointegrity_fraud_score: histogram of emitted fraud scores
  - geointegrity_monitoring_sessions: devices currently monitoring
  - geointegrity_devices_attached: devices with an engine
  - geointegrity_fixes_received_total: fixes reported by devices

Delivery:
  - geointegrity_websocket_connections
  - geointegrity_events_published_total{status}
  - geointegrity_webhook_deliveries_total{status}
  - geointegrity_store_operations_total{operation,status}
  - geointegrity_circuit_breaker_state{name}: 0 closed, 1 half-open, 2 open

API:
  - geointegrity_api_requests_total{method,path,status}
  - geointegrity_api_request_duration_seconds{method,path}
*/
package metrics
