// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package detection

import "math"

// Rule computes one fraud indicator from the session history.
// Rules are pure: they must not retain or modify the history.
type Rule interface {
	// Type returns the indicator this rule contributes.
	Type() Indicator

	// Evaluate returns the rule's points and whether it fired.
	Evaluate(policy Policy, history *LocationHistory) (int, bool)
}

// MockProviderRule fires when the newest fix came from a mock provider.
type MockProviderRule struct{}

// Type returns the rule indicator.
func (MockProviderRule) Type() Indicator {
	return IndicatorMockProvider
}

// Evaluate checks the simulated flag of the newest fix.
func (MockProviderRule) Evaluate(_ Policy, history *LocationHistory) (int, bool) {
	latest, ok := history.Latest()
	if !ok || !latest.IsSimulated {
		return 0, false
	}
	return MockProviderScore, true
}

// GeoImpossibilityRule fires when the two newest fixes imply a ground speed
// above the policy speed threshold.
type GeoImpossibilityRule struct{}

// Type returns the rule indicator.
func (GeoImpossibilityRule) Type() Indicator {
	return IndicatorGeoImpossibility
}

// Evaluate measures the speed between the previous and the newest fix.
func (GeoImpossibilityRule) Evaluate(policy Policy, history *LocationHistory) (int, bool) {
	latest, ok := history.Latest()
	if !ok {
		return 0, false
	}
	previous, ok := history.Previous()
	if !ok {
		return 0, false
	}

	speed := impliedSpeed(previous, latest)
	if speed <= policy.SpeedThreshold {
		return 0, false
	}
	return geoImpossibilityPoints(speed, policy.SpeedThreshold), true
}

// geoImpossibilityPoints scales the excess speed ratio into the 35..50 band.
func geoImpossibilityPoints(speed, threshold float64) int {
	raw := math.Round(speed / threshold * 10)
	if raw > GeoImpossibilityMaxScore {
		return GeoImpossibilityMaxScore
	}
	if raw < GeoImpossibilityMinScore {
		return GeoImpossibilityMinScore
	}
	return int(raw)
}

// MonitoringRules returns the rules scored on every monitoring evaluation.
func MonitoringRules() []Rule {
	return []Rule{
		MockProviderRule{},
		GeoImpossibilityRule{},
	}
}

// Score evaluates every rule and collects the ones that fired.
func Score(rules []Rule, policy Policy, history *LocationHistory) ScoreBreakdown {
	breakdown := ScoreBreakdown{}
	for _, rule := range rules {
		if points, fired := rule.Evaluate(policy, history); fired {
			breakdown[rule.Type()] += points
		}
	}
	return breakdown
}

// PolicyModeScore returns the flat trust discount of a monitoring mode.
// It is only applied to one-shot detections.
func PolicyModeScore(mode Mode) int {
	switch mode {
	case ModeAggressive:
		return PolicyModeAggressiveScore
	case ModeLowPower:
		return PolicyModeLowPowerScore
	default:
		return PolicyModeDefaultScore
	}
}

// FailureBreakdown returns the breakdown reported for a collaborator failure.
// It replaces normal scoring for that result.
func FailureBreakdown(kind FailureKind) ScoreBreakdown {
	return ScoreBreakdown{kind.Indicator(): FailureScore}
}
