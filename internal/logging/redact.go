// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package logging

import (
	"math"
	"strings"
)

// coordinatePrecision keeps two decimal places, about 1.1 km at the equator.
const coordinatePrecision = 100

// CoarseCoordinate rounds a latitude or longitude for log output so that
// precise device positions never reach log storage.
func CoarseCoordinate(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*coordinatePrecision) / coordinatePrecision
}

// SanitizeToken masks a bearer token or Authorization header value, keeping
// the first four characters of the token.
func SanitizeToken(token string) string {
	token = strings.TrimSpace(token)
	if scheme, rest, ok := strings.Cut(token, " "); ok && strings.EqualFold(scheme, "bearer") {
		token = strings.TrimSpace(rest)
	}
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "[REDACTED]"
	}
	return token[:4] + "...[REDACTED]"
}
