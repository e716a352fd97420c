// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package detection

import (
	"errors"
	"time"
)

// Indicator identifies a fraud indicator in a score breakdown.
type Indicator string

const (
	// IndicatorMockProvider flags fixes produced by a mock location provider.
	IndicatorMockProvider Indicator = "MOCK_PROVIDER"

	// IndicatorGeoImpossibility flags physically implausible travel speed.
	IndicatorGeoImpossibility Indicator = "GEO_IMPOSSIBILITY"

	// IndicatorPolicyMode is the trust discount of the monitoring mode.
	IndicatorPolicyMode Indicator = "POLICY_MODE"

	// IndicatorNoPermission reports that location permission was denied.
	IndicatorNoPermission Indicator = "NO_PERMISSION"

	// IndicatorLocationError reports a location subsystem failure.
	IndicatorLocationError Indicator = "LOCATION_ERROR"
)

// Indicator point values.
const (
	MockProviderScore         = 50
	GeoImpossibilityMinScore  = 35
	GeoImpossibilityMaxScore  = 50
	FailureScore              = 100
	PolicyModeAggressiveScore = 10
	PolicyModeLowPowerScore   = 3
	PolicyModeDefaultScore    = 5
)

// DefaultPlatform is the platform tag used when an engine is not given one.
const DefaultPlatform = "server"

// ErrPermissionDenied is wrapped by FixSource implementations when fix
// delivery cannot begin because location permission is not granted.
var ErrPermissionDenied = errors.New("location permission denied")

// LocationFix is a single location reading. Optional quality attributes are
// nil when the platform did not report them.
type LocationFix struct {
	Latitude    float64
	Longitude   float64
	Accuracy    *float64 // meters
	Altitude    *float64 // meters
	Speed       *float64 // meters per second
	Timestamp   time.Time
	IsSimulated bool
}

// FailureKind classifies a failure reported by the fix subsystem.
type FailureKind int

const (
	// FailurePermissionDenied means the platform refused location access.
	FailurePermissionDenied FailureKind = iota + 1

	// FailureSubsystemError means the location subsystem failed.
	FailureSubsystemError
)

// String returns the wire name of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailurePermissionDenied:
		return "permission-denied"
	case FailureSubsystemError:
		return "subsystem-error"
	default:
		return "unknown"
	}
}

// Indicator returns the breakdown key a failure of this kind is reported under.
func (k FailureKind) Indicator() Indicator {
	if k == FailurePermissionDenied {
		return IndicatorNoPermission
	}
	return IndicatorLocationError
}

// ParseFailureKind converts a wire name into a FailureKind.
func ParseFailureKind(s string) (FailureKind, bool) {
	switch s {
	case "permission-denied":
		return FailurePermissionDenied, true
	case "subsystem-error":
		return FailureSubsystemError, true
	default:
		return 0, false
	}
}

// FixSource is the platform collaborator that acquires location fixes.
//
// The engine calls these methods while holding its lock, so implementations
// must not call back into the engine synchronously from them. Fixes and
// failures are delivered later via Engine.OnFixReceived and
// Engine.OnFixSubsystemFailure.
type FixSource interface {
	// BeginFixDelivery asks the platform to start delivering fixes at roughly
	// the given interval. Errors wrapping ErrPermissionDenied are reported as
	// NO_PERMISSION, any other error as LOCATION_ERROR.
	BeginFixDelivery(interval time.Duration) error

	// EndFixDelivery asks the platform to stop delivering fixes.
	EndFixDelivery()

	// QueryBestKnownFix returns the most recent fix known to any provider.
	QueryBestKnownFix() (LocationFix, bool)
}

// Observer receives the results of one monitoring session.
type Observer func(result *DetectionResult)

// State is the monitoring state of an engine.
type State int

const (
	// StateIdle is the initial state; fixes are ignored.
	StateIdle State = iota

	// StateMonitoring means a session is live and fixes are scored.
	StateMonitoring
)

// String returns a human-readable state name.
func (s State) String() string {
	if s == StateMonitoring {
		return "monitoring"
	}
	return "idle"
}
