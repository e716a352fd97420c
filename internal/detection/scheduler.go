// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package detection

import "time"

// EvaluationScheduler throttles scoring to at most one evaluation per
// interval. Fixes that arrive in between are only buffered in history.
// It is not safe for concurrent use.
type EvaluationScheduler struct {
	interval  time.Duration
	last      time.Time
	evaluated bool
}

// NewEvaluationScheduler creates a scheduler that has never evaluated.
func NewEvaluationScheduler(interval time.Duration) *EvaluationScheduler {
	return &EvaluationScheduler{interval: interval}
}

// Reset forgets the last evaluation and applies a new interval.
func (s *EvaluationScheduler) Reset(interval time.Duration) {
	s.interval = interval
	s.last = time.Time{}
	s.evaluated = false
}

// ShouldEvaluate reports whether an evaluation is due at now. When it is,
// now is recorded as the last evaluation time before returning.
func (s *EvaluationScheduler) ShouldEvaluate(now time.Time) bool {
	if s.evaluated && now.Sub(s.last) < s.interval {
		return false
	}
	s.last = now
	s.evaluated = true
	return true
}

// LastEvaluation returns the time of the last evaluation, if any.
func (s *EvaluationScheduler) LastEvaluation() (time.Time, bool) {
	return s.last, s.evaluated
}
