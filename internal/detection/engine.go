// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package detection

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/geointegrity/internal/logging"
)

// Engine is the monitoring state machine. It owns one session at a time and
// is driven entirely by calls from the application and the FixSource.
type Engine struct {
	source   FixSource
	platform string
	rules    []Rule
	now      func() time.Time
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	policy    Policy
	history   *LocationHistory
	scheduler *EvaluationScheduler
	observer  Observer
	stats     EngineStats
}

// EngineStats tracks engine activity since creation.
type EngineStats struct {
	SessionsStarted int64     `json:"sessionsStarted"`
	FixesReceived   int64     `json:"fixesReceived"`
	Evaluations     int64     `json:"evaluations"`
	Failures        int64     `json:"failures"`
	AutoStops       int64     `json:"autoStops"`
	LastEvaluatedAt time.Time `json:"lastEvaluatedAt"`
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPlatform sets the platform tag stamped on every result.
func WithPlatform(platform string) EngineOption {
	return func(e *Engine) {
		if platform != "" {
			e.platform = platform
		}
	}
}

// WithClock replaces time.Now as the evaluation clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRules replaces the monitoring rule set.
func WithRules(rules ...Rule) EngineOption {
	return func(e *Engine) {
		e.rules = rules
	}
}

// WithLogger sets the engine logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an idle engine bound to a fix source.
func NewEngine(source FixSource, opts ...EngineOption) *Engine {
	e := &Engine{
		source:    source,
		platform:  DefaultPlatform,
		rules:     MonitoringRules(),
		now:       time.Now,
		logger:    logging.WithComponent("detection"),
		state:     StateIdle,
		policy:    BalancedPolicy(),
		history:   NewLocationHistory(),
		scheduler: NewEvaluationScheduler(DefaultEvaluationInterval),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Platform returns the platform tag of this engine.
func (e *Engine) Platform() string {
	return e.platform
}

// StartMonitoring begins a new session, replacing any live session without
// emitting anything for it. If the source cannot begin fix delivery the
// engine emits a single NO_PERMISSION or LOCATION_ERROR result to observer
// and stays idle.
func (e *Engine) StartMonitoring(policy Policy, observer Observer) {
	if failure := e.start(policy.Normalize(), observer); failure != nil && observer != nil {
		observer(failure)
	}
}

func (e *Engine) start(policy Policy, observer Observer) *DetectionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateMonitoring {
		e.teardownLocked("replaced")
	}

	e.history.Clear()
	e.scheduler.Reset(policy.EvaluationInterval)
	e.policy = policy

	if err := e.source.BeginFixDelivery(policy.EvaluationInterval); err != nil {
		kind := FailureSubsystemError
		if errors.Is(err, ErrPermissionDenied) {
			kind = FailurePermissionDenied
		}
		e.stats.Failures++
		e.logger.Warn().Err(err).Str("failure", kind.String()).Msg("fix delivery could not begin")
		return NewDetectionResult(e.now(), FailureBreakdown(kind), e.platform, nil)
	}

	e.observer = observer
	e.state = StateMonitoring
	e.stats.SessionsStarted++

	e.logger.Debug().
		Str("mode", string(policy.Mode)).
		Dur("interval", policy.EvaluationInterval).
		Bool("auto_stop", policy.AutoStopOnIdle).
		Float64("speed_threshold", policy.SpeedThreshold).
		Msg("monitoring started")
	return nil
}

// StopMonitoring ends the live session. It is a no-op while idle. The
// observer is released before StopMonitoring returns.
func (e *Engine) StopMonitoring() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateMonitoring {
		return
	}
	e.teardownLocked("stopped")
}

// teardownLocked returns the engine to idle. Must be called with mu held.
func (e *Engine) teardownLocked(reason string) {
	e.state = StateIdle
	e.observer = nil
	e.history.Clear()
	e.scheduler.Reset(e.policy.EvaluationInterval)
	e.source.EndFixDelivery()

	e.logger.Debug().Str("reason", reason).Msg("monitoring stopped")
}

// OnFixReceived handles a fix from the source. Fixes outside a session are
// ignored. When an evaluation is due the session observer receives exactly
// one result; a clean result ends the session if the policy auto-stops.
func (e *Engine) OnFixReceived(fix LocationFix) {
	if observer, result := e.handleFix(fix); observer != nil {
		observer(result)
	}
}

func (e *Engine) handleFix(fix LocationFix) (Observer, *DetectionResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateMonitoring {
		return nil, nil
	}

	e.stats.FixesReceived++
	e.history.Push(fix)

	now := e.now()
	if !e.scheduler.ShouldEvaluate(now) {
		return nil, nil
	}

	e.stats.Evaluations++
	e.stats.LastEvaluatedAt = now

	latest, _ := e.history.Latest()
	result := NewDetectionResult(latest.Timestamp, Score(e.rules, e.policy, e.history), e.platform, &latest)
	observer := e.observer

	if result.FraudScore == 0 && e.policy.AutoStopOnIdle {
		e.stats.AutoStops++
		e.teardownLocked("auto-stop")
	}

	return observer, result
}

// OnFixSubsystemFailure reports a source failure during a session as a
// terminal-style result. The session state is left unchanged.
func (e *Engine) OnFixSubsystemFailure(kind FailureKind) {
	if observer, result := e.handleFailure(kind); observer != nil {
		observer(result)
	}
}

func (e *Engine) handleFailure(kind FailureKind) (Observer, *DetectionResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateMonitoring {
		return nil, nil
	}

	e.stats.Failures++
	e.logger.Warn().Str("failure", kind.String()).Msg("fix subsystem failure")
	return e.observer, NewDetectionResult(e.now(), FailureBreakdown(kind), e.platform, nil)
}

// DetectOnce scores the best known fix without touching the live session.
// A nil policy means the balanced preset. Only the policy-mode indicator is
// scored, since a single fix carries no movement history.
func (e *Engine) DetectOnce(policy *Policy) *DetectionResult {
	p := BalancedPolicy()
	if policy != nil {
		p = policy.Normalize()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	details := ScoreBreakdown{IndicatorPolicyMode: PolicyModeScore(p.Mode)}
	if fix, ok := e.source.QueryBestKnownFix(); ok {
		return NewDetectionResult(fix.Timestamp, details, e.platform, &fix)
	}
	return NewDetectionResult(e.now(), details, e.platform, nil)
}

// State returns the current monitoring state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Policy returns the policy of the live session.
func (e *Engine) Policy() (Policy, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policy, e.state == StateMonitoring
}

// HistoryLen returns the number of fixes buffered by the live session.
func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Len()
}

// Stats returns a snapshot of engine activity.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}
