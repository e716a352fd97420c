// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package detection

import (
	stdjson "encoding/json"
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestPolicyFromOptions_Defaults(t *testing.T) {
	for _, options := range []map[string]any{nil, {}} {
		p := PolicyFromOptions(options)
		if p != BalancedPolicy() {
			t.Errorf("PolicyFromOptions(%v) = %+v, want balanced preset", options, p)
		}
	}

	p := BalancedPolicy()
	if p.Mode != ModeBalanced {
		t.Errorf("expected mode balanced, got %s", p.Mode)
	}
	if p.EvaluationInterval != 3*time.Second {
		t.Errorf("expected interval 3s, got %v", p.EvaluationInterval)
	}
	if p.SensorWarmup != 500*time.Millisecond {
		t.Errorf("expected warmup 500ms, got %v", p.SensorWarmup)
	}
	if !p.AutoStopOnIdle {
		t.Error("expected auto-stop on idle by default")
	}
	if p.SpeedThreshold != 100 {
		t.Errorf("expected threshold 100, got %v", p.SpeedThreshold)
	}
}

func TestAggressivePolicy(t *testing.T) {
	p := AggressivePolicy()
	want := Policy{
		Mode:               ModeAggressive,
		EvaluationInterval: time.Second,
		SensorWarmup:       300 * time.Millisecond,
		AutoStopOnIdle:     false,
		SpeedThreshold:     120,
	}
	if p != want {
		t.Errorf("AggressivePolicy() = %+v, want %+v", p, want)
	}
}

func TestPolicyFromOptions_Fields(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		want    Policy
	}{
		{
			name: "fully specified",
			options: map[string]any{
				"mode":                     "lowPower",
				"evaluationIntervalMillis": 10000,
				"sensorWarmupMillis":       int64(0),
				"autoStopOnIdle":           false,
				"speedThreshold":           55.5,
			},
			want: Policy{ModeLowPower, 10 * time.Second, 0, false, 55.5},
		},
		{
			name:    "partial keeps other defaults",
			options: map[string]any{"mode": "aggressive"},
			want:    Policy{ModeAggressive, 3 * time.Second, 500 * time.Millisecond, true, 100},
		},
		{
			name:    "interval clamped to floor",
			options: map[string]any{"evaluationIntervalMillis": 100},
			want:    Policy{ModeBalanced, 500 * time.Millisecond, 500 * time.Millisecond, true, 100},
		},
		{
			name:    "negative interval clamped to floor",
			options: map[string]any{"evaluationIntervalMillis": -5000},
			want:    Policy{ModeBalanced, 500 * time.Millisecond, 500 * time.Millisecond, true, 100},
		},
		{
			name:    "negative warmup clamped to zero",
			options: map[string]any{"sensorWarmupMillis": -1},
			want:    Policy{ModeBalanced, 3 * time.Second, 0, true, 100},
		},
		{
			name:    "float milliseconds from JSON",
			options: map[string]any{"evaluationIntervalMillis": float64(1500)},
			want:    Policy{ModeBalanced, 1500 * time.Millisecond, 500 * time.Millisecond, true, 100},
		},
		{
			name:    "json number",
			options: map[string]any{"evaluationIntervalMillis": stdjson.Number("2000"), "speedThreshold": stdjson.Number("80")},
			want:    Policy{ModeBalanced, 2 * time.Second, 500 * time.Millisecond, true, 80},
		},
		{
			name:    "custom mode",
			options: map[string]any{"mode": "custom"},
			want:    Policy{ModeCustom, 3 * time.Second, 500 * time.Millisecond, true, 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PolicyFromOptions(tt.options)
			if got != tt.want {
				t.Errorf("PolicyFromOptions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPolicyFromOptions_MalformedFallsBackPerField(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
	}{
		{"unknown mode", map[string]any{"mode": "turbo"}},
		{"mode wrong type", map[string]any{"mode": 7}},
		{"interval as string", map[string]any{"evaluationIntervalMillis": "1000"}},
		{"interval fractional", map[string]any{"evaluationIntervalMillis": 1000.5}},
		{"interval NaN", map[string]any{"evaluationIntervalMillis": math.NaN()}},
		{"interval infinite", map[string]any{"evaluationIntervalMillis": math.Inf(1)}},
		{"interval overflow", map[string]any{"evaluationIntervalMillis": 1e300}},
		{"warmup as bool", map[string]any{"sensorWarmupMillis": true}},
		{"auto stop as string", map[string]any{"autoStopOnIdle": "false"}},
		{"threshold zero", map[string]any{"speedThreshold": 0}},
		{"threshold negative", map[string]any{"speedThreshold": -10.0}},
		{"threshold as string", map[string]any{"speedThreshold": "fast"}},
		{"invalid json number", map[string]any{"speedThreshold": stdjson.Number("abc")}},
		{"nested object", map[string]any{"evaluationIntervalMillis": map[string]any{"ms": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PolicyFromOptions(tt.options)
			if got != BalancedPolicy() {
				t.Errorf("expected balanced defaults, got %+v", got)
			}
		})
	}
}

func TestPolicyFromOptions_InvariantsHold(t *testing.T) {
	values := []any{nil, "x", -1, 0, 1, 499, 500, -1e9, 1e9, 3.5, math.NaN(), true, []int{1}}
	for _, iv := range values {
		for _, wv := range values {
			p := PolicyFromOptions(map[string]any{
				"evaluationIntervalMillis": iv,
				"sensorWarmupMillis":       wv,
				"speedThreshold":           iv,
			})
			if p.EvaluationInterval < MinEvaluationInterval {
				t.Errorf("interval %v below floor for input %v", p.EvaluationInterval, iv)
			}
			if p.SensorWarmup < 0 {
				t.Errorf("warmup %v negative for input %v", p.SensorWarmup, wv)
			}
			if !(p.SpeedThreshold > 0) {
				t.Errorf("threshold %v not positive for input %v", p.SpeedThreshold, iv)
			}
		}
	}
}

func TestPolicy_Normalize(t *testing.T) {
	p := Policy{}.Normalize()
	if p.Mode != ModeBalanced {
		t.Errorf("expected empty mode to normalize to balanced, got %q", p.Mode)
	}
	if p.EvaluationInterval != MinEvaluationInterval {
		t.Errorf("expected zero interval to clamp to %v, got %v", MinEvaluationInterval, p.EvaluationInterval)
	}
	if p.SpeedThreshold != DefaultSpeedThreshold {
		t.Errorf("expected zero threshold to default, got %v", p.SpeedThreshold)
	}
}

func TestPolicy_OptionsRoundTrip(t *testing.T) {
	for _, p := range []Policy{BalancedPolicy(), AggressivePolicy(), {ModeLowPower, 7 * time.Second, 0, true, 42}} {
		if got := PolicyFromOptions(p.Options()); got != p {
			t.Errorf("round trip of %+v produced %+v", p, got)
		}
	}

	data, err := json.Marshal(AggressivePolicy().Options())
	if err != nil {
		t.Fatalf("marshal options: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal options: %v", err)
	}
	if got := PolicyFromOptions(decoded); got != AggressivePolicy() {
		t.Errorf("JSON round trip produced %+v", got)
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"balanced", "aggressive", "lowPower", "custom"} {
		if _, ok := ParseMode(s); !ok {
			t.Errorf("expected %q to parse", s)
		}
	}
	for _, s := range []string{"", "Balanced", "lowpower", "eco"} {
		if _, ok := ParseMode(s); ok {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}
