// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package device

import "github.com/tomtom215/geointegrity/internal/detection"

// ResultSink receives every result a device's engine emits. Sinks run on the
// emitting goroutine outside the engine lock and must not block.
type ResultSink interface {
	HandleResult(deviceID string, result *detection.DetectionResult)
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(deviceID string, result *detection.DetectionResult)

// HandleResult implements ResultSink.
func (f SinkFunc) HandleResult(deviceID string, result *detection.DetectionResult) {
	f(deviceID, result)
}

// PolicyStore persists the last policy each device monitored with.
type PolicyStore interface {
	SavePolicy(deviceID string, options map[string]any) error
	LoadPolicy(deviceID string) (map[string]any, error)
}
