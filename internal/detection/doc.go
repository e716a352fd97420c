// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

// Package detection implements the location-integrity scoring engine that
// assigns a fraud score to a stream of device location fixes.
//
// Detection Architecture:
//
//	FixSource -> Engine -> LocationHistory -> EvaluationScheduler -> Rules -> DetectionResult -> Observer
//	   ^           |
//	   |           v
//	   +---- Begin/EndFixDelivery, QueryBestKnownFix
//
// A FixSource is the platform collaborator that acquires fixes and reports
// subsystem failures. The Engine owns a single monitoring session at a time:
// it buffers the newest fixes, throttles evaluation to the policy interval and
// emits one DetectionResult per evaluation to the session observer.
//
// Supported Indicators:
//   - MOCK_PROVIDER: the newest fix was reported by a mock location provider (50)
//   - GEO_IMPOSSIBILITY: the two newest fixes imply travel faster than the
//     policy speed threshold (35 to 50, scaled by the speed ratio)
//   - POLICY_MODE: flat trust discount of the requested mode, one-shot only
//   - NO_PERMISSION, LOCATION_ERROR: collaborator failures (100)
//
// The engine never starts goroutines and never blocks. Every state mutation is
// serialized by one mutex, and observers are invoked after that mutex has been
// released so an observer may call back into the engine.
package detection
