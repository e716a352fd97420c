// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package detection

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
)

// ScoreBreakdown maps each fired indicator to its points.
type ScoreBreakdown map[Indicator]int

// Total returns the sum of all indicator points.
func (b ScoreBreakdown) Total() int {
	total := 0
	for _, points := range b {
		total += points
	}
	return total
}

// clone returns an independent copy so results never share a map.
func (b ScoreBreakdown) clone() ScoreBreakdown {
	out := make(ScoreBreakdown, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// DetectionLocation is the location payload attached to a result.
type DetectionLocation struct {
	Latitude             float64
	Longitude            float64
	AccuracyMeters       *float64
	AltitudeMeters       *float64
	SpeedMetersPerSecond *float64
}

// DetectionResult is the immutable outcome of one evaluation.
// Results are never modified after construction and may be shared freely.
type DetectionResult struct {
	Timestamp  time.Time
	FraudScore int
	Details    ScoreBreakdown
	Platform   string
	Location   *DetectionLocation
}

// NewDetectionResult builds a result whose score is the breakdown total.
// The location payload is taken from fix when it is non-nil.
func NewDetectionResult(timestamp time.Time, details ScoreBreakdown, platform string, fix *LocationFix) *DetectionResult {
	details = details.clone()
	result := &DetectionResult{
		Timestamp:  timestamp,
		FraudScore: details.Total(),
		Details:    details,
		Platform:   platform,
	}
	if fix != nil {
		result.Location = &DetectionLocation{
			Latitude:             fix.Latitude,
			Longitude:            fix.Longitude,
			AccuracyMeters:       copyFloat(fix.Accuracy),
			AltitudeMeters:       copyFloat(fix.Altitude),
			SpeedMetersPerSecond: copyFloat(fix.Speed),
		}
	}
	return result
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// wireLocation is the JSON shape of DetectionLocation.
type wireLocation struct {
	Latitude             float64  `json:"latitude"`
	Longitude            float64  `json:"longitude"`
	AccuracyMeters       *float64 `json:"accuracyMeters,omitempty"`
	AltitudeMeters       *float64 `json:"altitudeMeters,omitempty"`
	SpeedMetersPerSecond *float64 `json:"speedMetersPerSecond,omitempty"`
}

// wireResult is the JSON shape of DetectionResult. Timestamps are epoch
// milliseconds and absent optional fields are omitted.
type wireResult struct {
	Timestamp  int64          `json:"timestamp"`
	FraudScore int            `json:"fraudScore"`
	Details    map[string]int `json:"details"`
	Platform   string         `json:"platform"`
	Location   *wireLocation  `json:"location,omitempty"`
}

func (r *DetectionResult) wire() wireResult {
	details := make(map[string]int, len(r.Details))
	for k, v := range r.Details {
		details[string(k)] = v
	}
	w := wireResult{
		Timestamp:  r.Timestamp.UnixMilli(),
		FraudScore: r.FraudScore,
		Details:    details,
		Platform:   r.Platform,
	}
	if loc := r.Location; loc != nil {
		w.Location = &wireLocation{
			Latitude:             loc.Latitude,
			Longitude:            loc.Longitude,
			AccuracyMeters:       loc.AccuracyMeters,
			AltitudeMeters:       loc.AltitudeMeters,
			SpeedMetersPerSecond: loc.SpeedMetersPerSecond,
		}
	}
	return w
}

// MarshalJSON encodes the result in its wire shape.
func (r DetectionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

// ToMap renders the result as a generic map in its wire shape.
func (r *DetectionResult) ToMap() map[string]any {
	details := make(map[string]any, len(r.Details))
	for k, v := range r.Details {
		details[string(k)] = v
	}
	payload := map[string]any{
		"timestamp":  r.Timestamp.UnixMilli(),
		"fraudScore": r.FraudScore,
		"details":    details,
		"platform":   r.Platform,
	}
	if loc := r.Location; loc != nil {
		location := map[string]any{
			"latitude":  loc.Latitude,
			"longitude": loc.Longitude,
		}
		if loc.AccuracyMeters != nil {
			location["accuracyMeters"] = *loc.AccuracyMeters
		}
		if loc.AltitudeMeters != nil {
			location["altitudeMeters"] = *loc.AltitudeMeters
		}
		if loc.SpeedMetersPerSecond != nil {
			location["speedMetersPerSecond"] = *loc.SpeedMetersPerSecond
		}
		payload["location"] = location
	}
	return payload
}

// Result decoding errors.
var (
	ErrMissingTimestamp  = errors.New("result timestamp is missing or not numeric")
	ErrMissingFraudScore = errors.New("result fraudScore is missing or not numeric")
)

// ParseResult decodes a wire-shaped JSON result. A missing platform tag
// defaults to defaultPlatform.
func ParseResult(data []byte, defaultPlatform string) (*DetectionResult, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return ResultFromMap(raw, defaultPlatform)
}

// ResultFromMap decodes a wire-shaped result map. The timestamp and score are
// required. Detail entries with non-numeric values are skipped, and a location
// without both coordinates is dropped.
func ResultFromMap(raw map[string]any, defaultPlatform string) (*DetectionResult, error) {
	ts, ok := numberValue(raw["timestamp"])
	if !ok {
		return nil, ErrMissingTimestamp
	}
	score, ok := numberValue(raw["fraudScore"])
	if !ok {
		return nil, ErrMissingFraudScore
	}

	details := ScoreBreakdown{}
	if entries, ok := raw["details"].(map[string]any); ok {
		for k, v := range entries {
			if points, ok := numberValue(v); ok {
				details[Indicator(k)] = int(points)
			}
		}
	}

	platform := defaultPlatform
	if p, ok := raw["platform"].(string); ok {
		platform = p
	}

	result := &DetectionResult{
		Timestamp:  time.UnixMilli(int64(math.Trunc(ts))),
		FraudScore: int(score),
		Details:    details,
		Platform:   platform,
	}
	if loc, ok := raw["location"].(map[string]any); ok {
		result.Location = locationFromMap(loc)
	}
	return result, nil
}

func locationFromMap(raw map[string]any) *DetectionLocation {
	lat, ok := numberValue(raw["latitude"])
	if !ok {
		return nil
	}
	lon, ok := numberValue(raw["longitude"])
	if !ok {
		return nil
	}
	return &DetectionLocation{
		Latitude:             lat,
		Longitude:            lon,
		AccuracyMeters:       optionalNumber(raw["accuracyMeters"]),
		AltitudeMeters:       optionalNumber(raw["altitudeMeters"]),
		SpeedMetersPerSecond: optionalNumber(raw["speedMetersPerSecond"]),
	}
}

func optionalNumber(v any) *float64 {
	f, ok := numberValue(v)
	if !ok {
		return nil
	}
	return &f
}
