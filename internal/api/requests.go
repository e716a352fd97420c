// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geointegrity/internal/detection"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 64 << 10

// errEmptyBody is returned by decodeBody for a request without a body.
var errEmptyBody = errors.New("empty request body")

// FixRequest is the body of POST /fixes.
type FixRequest struct {
	Latitude             *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude            *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	AccuracyMeters       *float64 `json:"accuracyMeters" validate:"omitempty,gte=0"`
	AltitudeMeters       *float64 `json:"altitudeMeters"`
	SpeedMetersPerSecond *float64 `json:"speedMetersPerSecond" validate:"omitempty,gte=0"`
	Timestamp            *int64   `json:"timestamp" validate:"omitempty,gte=0"`
	IsSimulated          bool     `json:"isSimulated"`
}

// Fix converts the request into a LocationFix. A missing timestamp means now.
func (f *FixRequest) Fix(now time.Time) detection.LocationFix {
	ts := now
	if f.Timestamp != nil {
		ts = time.UnixMilli(*f.Timestamp)
	}
	return detection.LocationFix{
		Latitude:    *f.Latitude,
		Longitude:   *f.Longitude,
		Accuracy:    f.AccuracyMeters,
		Altitude:    f.AltitudeMeters,
		Speed:       f.SpeedMetersPerSecond,
		Timestamp:   ts,
		IsSimulated: f.IsSimulated,
	}
}

// FailureRequest is the body of POST /failures.
type FailureRequest struct {
	Kind string `json:"kind" validate:"required,failurekind"`
}

// PermissionRequest is the body of PUT /permission.
type PermissionRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

// decodeBody decodes a JSON body into v. It returns errEmptyBody when the
// request has no body at all.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// decodeOptions decodes an optional policy options object. A missing body
// or a JSON null yields nil options.
func decodeOptions(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var options map[string]any
	err := decodeBody(w, r, &options)
	if errors.Is(err, errEmptyBody) {
		return nil, nil
	}
	return options, err
}

// getIntParam reads an integer query parameter, falling back to
// defaultValue when it is missing or malformed.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
