// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/geointegrity/internal/detection"
)

// RemoteSource is a detection.FixSource for a device that pushes its fixes
// over the network. It never calls into the engine; the registry forwards
// reported fixes when delivery is active.
type RemoteSource struct {
	deviceID string

	mu         sync.Mutex
	active     bool
	interval   time.Duration
	permission bool
	best       *detection.LocationFix
}

// NewRemoteSource creates a source with location permission granted.
func NewRemoteSource(deviceID string) *RemoteSource {
	return &RemoteSource{deviceID: deviceID, permission: true}
}

// BeginFixDelivery implements detection.FixSource.
func (s *RemoteSource) BeginFixDelivery(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.permission {
		return fmt.Errorf("device %s: %w", s.deviceID, detection.ErrPermissionDenied)
	}
	s.active = true
	s.interval = interval
	return nil
}

// EndFixDelivery implements detection.FixSource.
func (s *RemoteSource) EndFixDelivery() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// QueryBestKnownFix implements detection.FixSource. It returns the reported
// fix with the newest timestamp.
func (s *RemoteSource) QueryBestKnownFix() (detection.LocationFix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.best == nil {
		return detection.LocationFix{}, false
	}
	return *s.best, true
}

// Report records fix and returns whether delivery is active, in which case
// the caller must forward the fix to the engine.
func (s *RemoteSource) Report(fix detection.LocationFix) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.best == nil || !fix.Timestamp.Before(s.best.Timestamp) {
		f := fix
		s.best = &f
	}
	return s.active
}

// SetPermission records whether the device grants location access.
func (s *RemoteSource) SetPermission(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permission = granted
}

// Permission reports the recorded permission state.
func (s *RemoteSource) Permission() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// Delivering reports whether fix delivery is active and at what interval.
func (s *RemoteSource) Delivering() (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.interval
}
