// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package detection

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func floatPtr(f float64) *float64 { return &f }

func decodeWire(t *testing.T, r *DetectionResult) map[string]any {
	t.Helper()
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return out
}

func TestNewDetectionResult_ScoreIsBreakdownTotal(t *testing.T) {
	details := ScoreBreakdown{IndicatorMockProvider: 50, IndicatorGeoImpossibility: 42}
	r := NewDetectionResult(time.UnixMilli(1000), details, "server", nil)
	if r.FraudScore != 92 {
		t.Errorf("expected fraud score 92, got %d", r.FraudScore)
	}

	details[IndicatorPolicyMode] = 5
	if _, ok := r.Details[IndicatorPolicyMode]; ok {
		t.Error("result details must not alias the caller's breakdown")
	}
}

func TestDetectionResult_WireShape(t *testing.T) {
	fix := LocationFix{
		Latitude:  52.52,
		Longitude: 13.405,
		Accuracy:  floatPtr(4.5),
		Speed:     floatPtr(0),
		Timestamp: time.UnixMilli(1_700_000_000_123),
	}
	r := NewDetectionResult(fix.Timestamp, ScoreBreakdown{IndicatorGeoImpossibility: 35}, "android", &fix)

	out := decodeWire(t, r)

	if ts, _ := out["timestamp"].(float64); int64(ts) != 1_700_000_000_123 {
		t.Errorf("expected epoch milliseconds, got %v", out["timestamp"])
	}
	if out["fraudScore"] != float64(35) {
		t.Errorf("expected fraudScore 35, got %v", out["fraudScore"])
	}
	if out["platform"] != "android" {
		t.Errorf("expected platform android, got %v", out["platform"])
	}
	details, ok := out["details"].(map[string]any)
	if !ok || details["GEO_IMPOSSIBILITY"] != float64(35) {
		t.Errorf("unexpected details %v", out["details"])
	}

	loc, ok := out["location"].(map[string]any)
	if !ok {
		t.Fatalf("expected location object, got %v", out["location"])
	}
	if loc["latitude"] != 52.52 || loc["longitude"] != 13.405 {
		t.Errorf("unexpected coordinates %v", loc)
	}
	if loc["accuracyMeters"] != 4.5 {
		t.Errorf("expected accuracyMeters 4.5, got %v", loc["accuracyMeters"])
	}
	if v, present := loc["speedMetersPerSecond"]; !present || v != float64(0) {
		t.Errorf("expected a reported zero speed to be kept, got %v (present=%v)", v, present)
	}
	if _, present := loc["altitudeMeters"]; present {
		t.Error("absent altitude must be omitted, not sent as null")
	}
}

func TestDetectionResult_WireOmitsLocation(t *testing.T) {
	r := NewDetectionResult(time.UnixMilli(5), ScoreBreakdown{IndicatorPolicyMode: 10}, "ios", nil)
	out := decodeWire(t, r)

	if _, present := out["location"]; present {
		t.Error("expected location to be omitted")
	}
	for _, key := range []string{"timestamp", "fraudScore", "details", "platform"} {
		if _, present := out[key]; !present {
			t.Errorf("expected key %q in wire shape", key)
		}
	}
}

func TestDetectionResult_EmptyDetailsEncodeAsObject(t *testing.T) {
	r := NewDetectionResult(time.UnixMilli(5), ScoreBreakdown{}, "server", nil)
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	if _, ok := out["details"].(map[string]any); !ok {
		t.Errorf("expected details object, got %s", data)
	}
}

func TestDetectionResult_ToMap(t *testing.T) {
	fix := LocationFix{Latitude: 1, Longitude: 2, Altitude: floatPtr(30), Timestamp: time.UnixMilli(99)}
	r := NewDetectionResult(fix.Timestamp, ScoreBreakdown{IndicatorMockProvider: 50}, "server", &fix)

	m := r.ToMap()
	if m["timestamp"] != int64(99) {
		t.Errorf("expected timestamp 99, got %v", m["timestamp"])
	}
	if m["fraudScore"] != 50 {
		t.Errorf("expected fraudScore 50, got %v", m["fraudScore"])
	}
	loc := m["location"].(map[string]any)
	if loc["altitudeMeters"] != 30.0 {
		t.Errorf("expected altitude 30, got %v", loc["altitudeMeters"])
	}
	if _, present := loc["accuracyMeters"]; present {
		t.Error("absent accuracy must be omitted")
	}
}

func TestParseResult_RoundTrip(t *testing.T) {
	fix := LocationFix{
		Latitude:  -33.8688,
		Longitude: 151.2093,
		Accuracy:  floatPtr(12),
		Altitude:  floatPtr(58),
		Speed:     floatPtr(3.2),
		Timestamp: time.UnixMilli(1_700_000_123_456),
	}
	original := NewDetectionResult(fix.Timestamp, ScoreBreakdown{IndicatorMockProvider: 50, IndicatorGeoImpossibility: 50}, "android", &fix)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := ParseResult(data, "server")
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}

	if !parsed.Timestamp.Equal(original.Timestamp) {
		t.Errorf("timestamp mismatch: %v vs %v", parsed.Timestamp, original.Timestamp)
	}
	if parsed.FraudScore != 100 || parsed.Platform != "android" {
		t.Errorf("unexpected parsed result %+v", parsed)
	}
	if parsed.Details[IndicatorMockProvider] != 50 || parsed.Details[IndicatorGeoImpossibility] != 50 {
		t.Errorf("unexpected details %v", parsed.Details)
	}
	if parsed.Location == nil || *parsed.Location.SpeedMetersPerSecond != 3.2 || *parsed.Location.AltitudeMeters != 58 {
		t.Errorf("unexpected location %+v", parsed.Location)
	}
}

func TestResultFromMap(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		wantErr  error
		check    func(t *testing.T, r *DetectionResult)
		platform string
	}{
		{
			name:    "missing timestamp",
			raw:     map[string]any{"fraudScore": 5},
			wantErr: ErrMissingTimestamp,
		},
		{
			name:    "non numeric score",
			raw:     map[string]any{"timestamp": 1, "fraudScore": "high"},
			wantErr: ErrMissingFraudScore,
		},
		{
			name:     "platform defaults",
			raw:      map[string]any{"timestamp": 1, "fraudScore": 0},
			platform: "ios",
			check: func(t *testing.T, r *DetectionResult) {
				if r.Platform != "ios" {
					t.Errorf("expected default platform ios, got %q", r.Platform)
				}
				if r.Location != nil {
					t.Error("expected no location")
				}
			},
		},
		{
			name: "non numeric details skipped",
			raw: map[string]any{
				"timestamp": 1, "fraudScore": 50,
				"details": map[string]any{"MOCK_PROVIDER": 50, "BOGUS": "x"},
			},
			check: func(t *testing.T, r *DetectionResult) {
				if len(r.Details) != 1 || r.Details[IndicatorMockProvider] != 50 {
					t.Errorf("unexpected details %v", r.Details)
				}
			},
		},
		{
			name: "location without longitude dropped",
			raw: map[string]any{
				"timestamp": 1, "fraudScore": 0,
				"location": map[string]any{"latitude": 1.0},
			},
			check: func(t *testing.T, r *DetectionResult) {
				if r.Location != nil {
					t.Errorf("expected location to be dropped, got %+v", r.Location)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ResultFromMap(tt.raw, tt.platform)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, r)
		})
	}
}

func TestParseResult_InvalidJSON(t *testing.T) {
	if _, err := ParseResult([]byte("{not json"), "server"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
