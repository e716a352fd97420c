// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package detection

// MaxHistorySize is the number of fixes retained by a LocationHistory.
const MaxHistorySize = 6

// LocationHistory is a bounded buffer of the most recent fixes in arrival
// order. It does not sort; fixes are trusted to arrive time-ordered.
// LocationHistory is not safe for concurrent use; the Engine serializes access.
type LocationHistory struct {
	fixes []LocationFix
}

// NewLocationHistory creates an empty history.
func NewLocationHistory() *LocationHistory {
	return &LocationHistory{fixes: make([]LocationFix, 0, MaxHistorySize+1)}
}

// Push appends a fix and evicts the oldest fixes beyond MaxHistorySize.
func (h *LocationHistory) Push(fix LocationFix) {
	h.fixes = append(h.fixes, fix)
	for len(h.fixes) > MaxHistorySize {
		copy(h.fixes, h.fixes[1:])
		h.fixes = h.fixes[:len(h.fixes)-1]
	}
}

// Latest returns the most recent fix.
func (h *LocationHistory) Latest() (LocationFix, bool) {
	if len(h.fixes) == 0 {
		return LocationFix{}, false
	}
	return h.fixes[len(h.fixes)-1], true
}

// Previous returns the second most recent fix.
func (h *LocationHistory) Previous() (LocationFix, bool) {
	if len(h.fixes) < 2 {
		return LocationFix{}, false
	}
	return h.fixes[len(h.fixes)-2], true
}

// Len returns the number of buffered fixes.
func (h *LocationHistory) Len() int {
	return len(h.fixes)
}

// Clear empties the history.
func (h *LocationHistory) Clear() {
	h.fixes = h.fixes[:0]
}

// Fixes returns a copy of the buffered fixes, oldest first.
func (h *LocationHistory) Fixes() []LocationFix {
	out := make([]LocationFix, len(h.fixes))
	copy(out, h.fixes)
	return out
}
