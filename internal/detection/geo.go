// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package detection

import (
	"math"
	"time"
)

const earthRadiusMeters = 6371.0 * 1000

// minElapsed floors the time between fixes used for speed calculation.
const minElapsed = time.Second

// haversineDistance calculates the great-circle distance between two points
// on Earth using the Haversine formula. Returns distance in meters.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	dLat := lat2Rad - lat1Rad
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// impliedSpeed returns the ground speed in meters per second needed to travel
// from one fix to the next. Elapsed time is floored at one second, which also
// covers fixes that arrive out of order.
func impliedSpeed(from, to LocationFix) float64 {
	distance := haversineDistance(from.Latitude, from.Longitude, to.Latitude, to.Longitude)

	elapsed := to.Timestamp.Sub(from.Timestamp)
	if elapsed < minElapsed {
		elapsed = minElapsed
	}

	return distance / elapsed.Seconds()
}
