// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package detection

import (
	"math"
	"time"
)

// Mode describes how aggressively a session monitors the device.
type Mode string

const (
	ModeBalanced   Mode = "balanced"
	ModeAggressive Mode = "aggressive"
	ModeLowPower   Mode = "lowPower"
	ModeCustom     Mode = "custom"
)

// ParseMode converts a string into a known Mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeBalanced, ModeAggressive, ModeLowPower, ModeCustom:
		return Mode(s), true
	default:
		return "", false
	}
}

// Policy defaults and limits.
const (
	DefaultMode               = ModeBalanced
	DefaultEvaluationInterval = 3 * time.Second
	MinEvaluationInterval     = 500 * time.Millisecond
	DefaultSensorWarmup       = 500 * time.Millisecond
	DefaultAutoStopOnIdle     = true
	DefaultSpeedThreshold     = 100.0 // meters per second
)

// Recognized policy option keys.
const (
	OptionMode                     = "mode"
	OptionEvaluationIntervalMillis = "evaluationIntervalMillis"
	OptionSensorWarmupMillis       = "sensorWarmupMillis"
	OptionAutoStopOnIdle           = "autoStopOnIdle"
	OptionSpeedThreshold           = "speedThreshold"
)

// Policy is the validated configuration of one monitoring session.
// Policies returned by this package always satisfy
// EvaluationInterval >= MinEvaluationInterval and SensorWarmup >= 0.
type Policy struct {
	Mode               Mode
	EvaluationInterval time.Duration
	SensorWarmup       time.Duration
	AutoStopOnIdle     bool
	SpeedThreshold     float64 // meters per second
}

// BalancedPolicy returns the default preset.
func BalancedPolicy() Policy {
	return Policy{
		Mode:               DefaultMode,
		EvaluationInterval: DefaultEvaluationInterval,
		SensorWarmup:       DefaultSensorWarmup,
		AutoStopOnIdle:     DefaultAutoStopOnIdle,
		SpeedThreshold:     DefaultSpeedThreshold,
	}
}

// AggressivePolicy returns the high-cadence preset that never auto-stops.
func AggressivePolicy() Policy {
	return Policy{
		Mode:               ModeAggressive,
		EvaluationInterval: time.Second,
		SensorWarmup:       300 * time.Millisecond,
		AutoStopOnIdle:     false,
		SpeedThreshold:     120.0,
	}
}

// PolicyFromOptions builds a Policy from a loosely-typed option bag such as a
// decoded JSON object. It never fails: a missing or malformed option falls
// back to its balanced default without affecting the other options.
func PolicyFromOptions(options map[string]any) Policy {
	p := BalancedPolicy()
	if options == nil {
		return p
	}

	if s, ok := options[OptionMode].(string); ok {
		if mode, ok := ParseMode(s); ok {
			p.Mode = mode
		}
	}
	if ms, ok := millisOption(options[OptionEvaluationIntervalMillis]); ok {
		p.EvaluationInterval = ms
	}
	if ms, ok := millisOption(options[OptionSensorWarmupMillis]); ok {
		p.SensorWarmup = ms
	}
	if b, ok := options[OptionAutoStopOnIdle].(bool); ok {
		p.AutoStopOnIdle = b
	}
	if f, ok := numberValue(options[OptionSpeedThreshold]); ok {
		p.SpeedThreshold = f
	}

	return p.Normalize()
}

// Normalize clamps the interval and warmup to their floors and restores
// defaults for an unknown mode or an unusable speed threshold.
func (p Policy) Normalize() Policy {
	if _, ok := ParseMode(string(p.Mode)); !ok {
		p.Mode = DefaultMode
	}
	if p.EvaluationInterval < MinEvaluationInterval {
		p.EvaluationInterval = MinEvaluationInterval
	}
	if p.SensorWarmup < 0 {
		p.SensorWarmup = 0
	}
	if !(p.SpeedThreshold > 0) || math.IsInf(p.SpeedThreshold, 0) {
		p.SpeedThreshold = DefaultSpeedThreshold
	}
	return p
}

// Options renders the policy back into the option bag accepted by
// PolicyFromOptions.
func (p Policy) Options() map[string]any {
	return map[string]any{
		OptionMode:                     string(p.Mode),
		OptionEvaluationIntervalMillis: p.EvaluationInterval.Milliseconds(),
		OptionSensorWarmupMillis:       p.SensorWarmup.Milliseconds(),
		OptionAutoStopOnIdle:           p.AutoStopOnIdle,
		OptionSpeedThreshold:           p.SpeedThreshold,
	}
}

// maxMillis is the largest millisecond count representable as a time.Duration.
const maxMillis = math.MaxInt64 / int64(time.Millisecond)

// millisOption reads an integer millisecond option.
func millisOption(v any) (time.Duration, bool) {
	f, ok := numberValue(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > float64(maxMillis) {
		return 0, false
	}
	return time.Duration(int64(f)) * time.Millisecond, true
}

// numberValue coerces the numeric kinds produced by JSON, YAML and Go callers
// into a finite float64.
func numberValue(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case interface{ Float64() (float64, error) }:
		// json.Number from encoding/json or goccy/go-json
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
