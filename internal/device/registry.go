// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

// Package device hosts one detection engine per remote device and fans the
// results out to the configured sinks.
package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/geointegrity/internal/detection"
	"github.com/tomtom215/geointegrity/internal/logging"
	"github.com/tomtom215/geointegrity/internal/metrics"
	"github.com/tomtom215/geointegrity/internal/validation"
)

var (
	// ErrDeviceExists is returned by Attach for an attached device.
	ErrDeviceExists = errors.New("device already attached")

	// ErrDeviceNotFound means no engine is attached for the device.
	ErrDeviceNotFound = errors.New("detector is not initialized")

	// ErrTooManyDevices is returned by Attach when the registry is full.
	ErrTooManyDevices = errors.New("device limit reached")

	// ErrInvalidDeviceID is returned by Attach for a malformed ID.
	ErrInvalidDeviceID = errors.New("invalid device id")
)

// Device is one attached device.
type Device struct {
	ID         string
	Engine     *detection.Engine
	Source     *RemoteSource
	AttachedAt time.Time
}

// Status is a point-in-time view of a device.
type Status struct {
	ID         string                `json:"deviceId"`
	Monitoring bool                  `json:"monitoring"`
	Permission bool                  `json:"permission"`
	Policy     map[string]any        `json:"policy,omitempty"`
	HistoryLen int                   `json:"historyLength"`
	AttachedAt time.Time             `json:"attachedAt"`
	Stats      detection.EngineStats `json:"stats"`
}

// Config configures a Registry.
type Config struct {
	// Platform is the tag stamped on every result. Default: detection.DefaultPlatform
	Platform string

	// MaxDevices bounds attached devices. 0 means unlimited.
	MaxDevices int

	// DefaultOptions are the policy options requests are layered on.
	DefaultOptions map[string]any

	// Policies optionally persists the last policy per device.
	Policies PolicyStore

	// EngineOptions are applied to every engine after the platform.
	EngineOptions []detection.EngineOption
}

// Registry owns the engines of all attached devices.
type Registry struct {
	cfg   Config
	now   func() time.Time
	mu    sync.RWMutex
	devs  map[string]*Device
	sinks []ResultSink
}

// NewRegistry creates an empty registry delivering results to sinks.
func NewRegistry(cfg Config, sinks ...ResultSink) *Registry {
	if cfg.Platform == "" {
		cfg.Platform = detection.DefaultPlatform
	}
	return &Registry{
		cfg:   cfg,
		now:   time.Now,
		devs:  make(map[string]*Device),
		sinks: sinks,
	}
}

// Platform returns the platform tag of all engines.
func (r *Registry) Platform() string {
	return r.cfg.Platform
}

// Attach creates an idle engine for id.
func (r *Registry) Attach(id string) (*Device, error) {
	if !validation.ValidDeviceID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDeviceID, id)
	}

	r.mu.Lock()
	if _, ok := r.devs[id]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDeviceExists, id)
	}
	if r.cfg.MaxDevices > 0 && len(r.devs) >= r.cfg.MaxDevices {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrTooManyDevices, r.cfg.MaxDevices)
	}

	source := NewRemoteSource(id)
	opts := make([]detection.EngineOption, 0, len(r.cfg.EngineOptions)+2)
	opts = append(opts,
		detection.WithPlatform(r.cfg.Platform),
		detection.WithLogger(logging.With().Str("component", "detection").Str("device_id", id).Logger()),
	)
	opts = append(opts, r.cfg.EngineOptions...)

	dev := &Device{
		ID:         id,
		Engine:     detection.NewEngine(source, opts...),
		Source:     source,
		AttachedAt: r.now(),
	}
	r.devs[id] = dev
	count := len(r.devs)
	r.mu.Unlock()

	metrics.SetDevicesAttached(count)
	logging.Info().Str("device_id", id).Msg("device attached")
	return dev, nil
}

// Detach stops monitoring and removes the device.
func (r *Registry) Detach(id string) error {
	r.mu.Lock()
	dev, ok := r.devs[id]
	if ok {
		delete(r.devs, id)
	}
	count := len(r.devs)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	dev.Engine.StopMonitoring()
	metrics.SetDevicesAttached(count)
	r.refreshSessions()
	logging.Info().Str("device_id", id).Msg("device detached")
	return nil
}

// Get returns the attached device.
func (r *Registry) Get(id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return dev, nil
}

// List returns the attached devices ordered by ID.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	out := make([]*Device, 0, len(r.devs))
	for _, dev := range r.devs {
		out = append(out, dev)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of attached devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devs)
}

// Start begins monitoring with options layered over the defaults. Empty
// options resume the device's last saved policy when one exists. A start the
// device cannot honor is reported through the sinks, not as an error.
func (r *Registry) Start(id string, options map[string]any) (detection.Policy, error) {
	dev, err := r.Get(id)
	if err != nil {
		return detection.Policy{}, err
	}

	if len(options) == 0 && r.cfg.Policies != nil {
		if saved, lerr := r.cfg.Policies.LoadPolicy(id); lerr == nil {
			options = saved
		}
	}
	policy := r.policyFor(options)

	dev.Engine.StartMonitoring(policy, r.observer(id, policy.Mode))

	// A refused start leaves the previously saved policy in place.
	if r.cfg.Policies != nil && dev.Engine.State() == detection.StateMonitoring {
		if serr := r.cfg.Policies.SavePolicy(id, policy.Options()); serr != nil {
			logging.Warn().Err(serr).Str("device_id", id).Msg("failed to save policy")
		}
	}
	r.refreshSessions()
	return policy, nil
}

// Stop ends monitoring for the device.
func (r *Registry) Stop(id string) error {
	dev, err := r.Get(id)
	if err != nil {
		return err
	}
	dev.Engine.StopMonitoring()
	r.refreshSessions()
	return nil
}

// DetectOnce scores the device's best known fix. Nil options use the
// balanced preset. The result is returned to the caller only.
func (r *Registry) DetectOnce(id string, options map[string]any) (*detection.DetectionResult, error) {
	dev, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	var policy *detection.Policy
	if options != nil {
		p := r.policyFor(options)
		policy = &p
	}
	result := dev.Engine.DetectOnce(policy)
	metrics.RecordResult(result)
	return result, nil
}

// ReportFix records a fix from the device and forwards it to the engine
// while delivery is active. It returns whether the fix was forwarded.
func (r *Registry) ReportFix(id string, fix detection.LocationFix) (bool, error) {
	dev, err := r.Get(id)
	if err != nil {
		return false, err
	}

	metrics.RecordFix()
	if !dev.Source.Report(fix) {
		return false, nil
	}
	dev.Engine.OnFixReceived(fix)
	return true, nil
}

// ReportFailure forwards a fix subsystem failure to the engine.
func (r *Registry) ReportFailure(id string, kind detection.FailureKind) error {
	dev, err := r.Get(id)
	if err != nil {
		return err
	}
	dev.Engine.OnFixSubsystemFailure(kind)
	return nil
}

// SetPermission records the device's location permission. It applies to the
// next Start.
func (r *Registry) SetPermission(id string, granted bool) error {
	dev, err := r.Get(id)
	if err != nil {
		return err
	}
	dev.Source.SetPermission(granted)
	return nil
}

// Monitoring reports whether the device has a live session.
func (r *Registry) Monitoring(id string) (bool, error) {
	dev, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return dev.Engine.State() == detection.StateMonitoring, nil
}

// Status returns a snapshot of the device.
func (r *Registry) Status(id string) (Status, error) {
	dev, err := r.Get(id)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		ID:         dev.ID,
		Permission: dev.Source.Permission(),
		HistoryLen: dev.Engine.HistoryLen(),
		AttachedAt: dev.AttachedAt,
		Stats:      dev.Engine.Stats(),
	}
	if policy, live := dev.Engine.Policy(); live {
		st.Monitoring = true
		st.Policy = policy.Options()
	}
	return st, nil
}

// Close stops every session and removes all devices.
func (r *Registry) Close() {
	r.mu.Lock()
	devs := r.devs
	r.devs = make(map[string]*Device)
	r.mu.Unlock()

	for _, dev := range devs {
		dev.Engine.StopMonitoring()
	}
	metrics.SetDevicesAttached(0)
	metrics.SetMonitoringSessions(0)
}

func (r *Registry) policyFor(options map[string]any) detection.Policy {
	merged := make(map[string]any, len(r.cfg.DefaultOptions)+len(options))
	for k, v := range r.cfg.DefaultOptions {
		merged[k] = v
	}
	for k, v := range options {
		merged[k] = v
	}
	return detection.PolicyFromOptions(merged)
}

func (r *Registry) observer(id string, mode detection.Mode) detection.Observer {
	return func(result *detection.DetectionResult) {
		r.dispatch(id, mode, result)
	}
}

// dispatch fans a session result out to the sinks.
func (r *Registry) dispatch(id string, mode detection.Mode, result *detection.DetectionResult) {
	if result.Location != nil {
		metrics.RecordEvaluation(mode)
	}
	metrics.RecordResult(result)

	event := logging.Debug().
		Str("device_id", id).
		Int("fraud_score", result.FraudScore)
	if loc := result.Location; loc != nil {
		event = event.
			Float64("latitude", logging.CoarseCoordinate(loc.Latitude)).
			Float64("longitude", logging.CoarseCoordinate(loc.Longitude))
	}
	event.Msg("detection result")

	r.mu.RLock()
	sinks := make([]ResultSink, len(r.sinks))
	copy(sinks, r.sinks)
	r.mu.RUnlock()

	for _, sink := range sinks {
		sink.HandleResult(id, result)
	}

	// Results can end a session through auto-stop.
	r.refreshSessions()
}

func (r *Registry) refreshSessions() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	live := 0
	for _, dev := range r.devs {
		if dev.Engine.State() == detection.StateMonitoring {
			live++
		}
	}
	metrics.SetMonitoringSessions(live)
}
