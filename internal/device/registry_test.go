// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package device

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/geointegrity/internal/detection"
	"github.com/tomtom215/geointegrity/internal/logging"
)

type recordingSink struct {
	mu      sync.Mutex
	devices []string
	results []*detection.DetectionResult
}

func (s *recordingSink) HandleResult(deviceID string, r *detection.DetectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append(s.devices, deviceID)
	s.results = append(s.results, r)
}

func (s *recordingSink) all() []*detection.DetectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*detection.DetectionResult(nil), s.results...)
}

type memoryPolicies struct {
	mu       sync.Mutex
	policies map[string]map[string]any
}

func (m *memoryPolicies) SavePolicy(deviceID string, options map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.policies == nil {
		m.policies = make(map[string]map[string]any)
	}
	m.policies[deviceID] = options
	return nil
}

func (m *memoryPolicies) LoadPolicy(deviceID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	options, ok := m.policies[deviceID]
	if !ok {
		return nil, errors.New("not found")
	}
	return options, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(t *testing.T, cfg Config) (*Registry, *recordingSink, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	sink := &recordingSink{}
	cfg.EngineOptions = append(cfg.EngineOptions, detection.WithClock(clock.Now))
	if cfg.Platform == "" {
		cfg.Platform = "test"
	}
	r := NewRegistry(cfg, sink)
	t.Cleanup(r.Close)
	return r, sink, clock
}

func fixAt(ts time.Time, lat, lon float64) detection.LocationFix {
	return detection.LocationFix{Latitude: lat, Longitude: lon, Timestamp: ts}
}

func TestAttachDetach(t *testing.T) {
	r, _, _ := newTestRegistry(t, Config{})

	dev, err := r.Attach("phone-1")
	require.NoError(t, err)
	assert.Equal(t, "phone-1", dev.ID)
	assert.Equal(t, "test", dev.Engine.Platform())

	_, err = r.Attach("phone-1")
	assert.ErrorIs(t, err, ErrDeviceExists)

	_, err = r.Attach("bad id!")
	assert.ErrorIs(t, err, ErrInvalidDeviceID)

	_, err = r.Attach("phone-0")
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "phone-0", list[0].ID)
	assert.Equal(t, "phone-1", list[1].ID)
	assert.Equal(t, 2, r.Count())

	require.NoError(t, r.Detach("phone-1"))
	assert.ErrorIs(t, r.Detach("phone-1"), ErrDeviceNotFound)

	_, err = r.Get("phone-1")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestAttachMaxDevices(t *testing.T) {
	r, _, _ := newTestRegistry(t, Config{MaxDevices: 1})

	_, err := r.Attach("a")
	require.NoError(t, err)
	_, err = r.Attach("b")
	assert.ErrorIs(t, err, ErrTooManyDevices)
}

func TestUnknownDevice(t *testing.T) {
	r, _, _ := newTestRegistry(t, Config{})

	_, err := r.Start("ghost", nil)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.ErrorIs(t, r.Stop("ghost"), ErrDeviceNotFound)
	_, err = r.DetectOnce("ghost", nil)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	_, err = r.ReportFix("ghost", detection.LocationFix{})
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.ErrorIs(t, r.ReportFailure("ghost", detection.FailureSubsystemError), ErrDeviceNotFound)
	assert.ErrorIs(t, r.SetPermission("ghost", true), ErrDeviceNotFound)
	_, err = r.Monitoring("ghost")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	_, err = r.Status("ghost")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestMonitoringMockProvider(t *testing.T) {
	r, sink, clock := newTestRegistry(t, Config{})
	_, err := r.Attach("phone")
	require.NoError(t, err)

	policy, err := r.Start("phone", map[string]any{detection.OptionMode: "balanced"})
	require.NoError(t, err)
	assert.Equal(t, detection.ModeBalanced, policy.Mode)

	monitoring, err := r.Monitoring("phone")
	require.NoError(t, err)
	assert.True(t, monitoring)

	fix := fixAt(clock.Now(), 52.52, 13.40)
	fix.IsSimulated = true
	forwarded, err := r.ReportFix("phone", fix)
	require.NoError(t, err)
	assert.True(t, forwarded)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, 50, results[0].FraudScore)
	assert.Equal(t, detection.ScoreBreakdown{detection.IndicatorMockProvider: 50}, results[0].Details)
	assert.Equal(t, "test", results[0].Platform)
	require.NotNil(t, results[0].Location)
	assert.InDelta(t, 52.52, results[0].Location.Latitude, 1e-9)
}

func TestMonitoringGeoImpossibility(t *testing.T) {
	r, sink, clock := newTestRegistry(t, Config{})
	_, err := r.Attach("phone")
	require.NoError(t, err)

	_, err = r.Start("phone", map[string]any{
		detection.OptionMode:                     "aggressive",
		detection.OptionEvaluationIntervalMillis: 1000,
		detection.OptionAutoStopOnIdle:           false,
	})
	require.NoError(t, err)

	t0 := clock.Now()
	_, err = r.ReportFix("phone", fixAt(t0, 0, 0))
	require.NoError(t, err)

	// One degree of longitude at the equator in one second.
	clock.Advance(time.Second)
	_, err = r.ReportFix("phone", fixAt(t0.Add(time.Second), 0, 1))
	require.NoError(t, err)

	results := sink.all()
	require.Len(t, results, 2)
	assert.Zero(t, results[0].FraudScore)
	assert.Equal(t, detection.GeoImpossibilityMaxScore, results[1].Details[detection.IndicatorGeoImpossibility])
	assert.Equal(t, 50, results[1].FraudScore)
}

func TestStartWithoutPermission(t *testing.T) {
	r, sink, _ := newTestRegistry(t, Config{})
	_, err := r.Attach("phone")
	require.NoError(t, err)
	require.NoError(t, r.SetPermission("phone", false))

	_, err = r.Start("phone", nil)
	require.NoError(t, err)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, 100, results[0].FraudScore)
	assert.Equal(t, 100, results[0].Details[detection.IndicatorNoPermission])
	assert.Nil(t, results[0].Location)

	monitoring, err := r.Monitoring("phone")
	require.NoError(t, err)
	assert.False(t, monitoring)
}

func TestReportFailure(t *testing.T) {
	r, sink, _ := newTestRegistry(t, Config{})
	_, err := r.Attach("phone")
	require.NoError(t, err)

	// Ignored while idle.
	require.NoError(t, r.ReportFailure("phone", detection.FailureSubsystemError))
	assert.Empty(t, sink.all())

	_, err = r.Start("phone", nil)
	require.NoError(t, err)
	require.NoError(t, r.ReportFailure("phone", detection.FailureSubsystemError))

	results := sink.all()
	require.Len(t, results, 1)
	assert.Equal(t, 100, results[0].Details[detection.IndicatorLocationError])

	monitoring, _ := r.Monitoring("phone")
	assert.True(t, monitoring, "failures leave the session running")
}

func TestIdleFixUpdatesBestKnown(t *testing.T) {
	r, sink, clock := newTestRegistry(t, Config{})
	_, err := r.Attach("phone")
	require.NoError(t, err)

	forwarded, err := r.ReportFix("phone", fixAt(clock.Now(), 48.85, 2.35))
	require.NoError(t, err)
	assert.False(t, forwarded)
	assert.Empty(t, sink.all())

	result, err := r.DetectOnce("phone", map[string]any{detection.OptionMode: "lowPower"})
	require.NoError(t, err)
	assert.Equal(t, detection.PolicyModeLowPowerScore, result.FraudScore)
	require.NotNil(t, result.Location)
	assert.InDelta(t, 48.85, result.Location.Latitude, 1e-9)
	assert.Equal(t, clock.Now().UnixMilli(), result.Timestamp.UnixMilli())
	assert.Empty(t, sink.all(), "detect-once does not reach the sinks")
}

func TestDetectOnceWithoutFix(t *testing.T) {
	r, _, clock := newTestRegistry(t, Config{})
	_, err := r.Attach("phone")
	require.NoError(t, err)

	result, err := r.DetectOnce("phone", nil)
	require.NoError(t, err)
	assert.Equal(t, detection.PolicyModeDefaultScore, result.FraudScore)
	assert.Nil(t, result.Location)
	assert.Equal(t, clock.Now(), result.Timestamp)
}

func TestAutoStopClearsSession(t *testing.T) {
	r, sink, clock := newTestRegistry(t, Config{})
	dev, err := r.Attach("phone")
	require.NoError(t, err)

	_, err = r.Start("phone", map[string]any{detection.OptionAutoStopOnIdle: true})
	require.NoError(t, err)

	forwarded, err := r.ReportFix("phone", fixAt(clock.Now(), 1, 1))
	require.NoError(t, err)
	assert.True(t, forwarded)

	results := sink.all()
	require.Len(t, results, 1)
	assert.Zero(t, results[0].FraudScore)

	monitoring, _ := r.Monitoring("phone")
	assert.False(t, monitoring)
	active, _ := dev.Source.Delivering()
	assert.False(t, active)

	clock.Advance(10 * time.Second)
	forwarded, err = r.ReportFix("phone", fixAt(clock.Now(), 1, 1))
	require.NoError(t, err)
	assert.False(t, forwarded)
	assert.Len(t, sink.all(), 1)
}

func TestStartResumesSavedPolicy(t *testing.T) {
	policies := &memoryPolicies{}
	r, _, _ := newTestRegistry(t, Config{Policies: policies})
	_, err := r.Attach("phone")
	require.NoError(t, err)

	_, err = r.Start("phone", map[string]any{detection.OptionMode: "aggressive"})
	require.NoError(t, err)
	require.NoError(t, r.Stop("phone"))

	policy, err := r.Start("phone", nil)
	require.NoError(t, err)
	assert.Equal(t, detection.ModeAggressive, policy.Mode)
}

func TestDefaultOptionsLayering(t *testing.T) {
	r, _, _ := newTestRegistry(t, Config{DefaultOptions: map[string]any{
		detection.OptionMode:           "lowPower",
		detection.OptionSpeedThreshold: 50.0,
	}})
	_, err := r.Attach("phone")
	require.NoError(t, err)

	policy, err := r.Start("phone", map[string]any{detection.OptionSpeedThreshold: 80.0})
	require.NoError(t, err)
	assert.Equal(t, detection.ModeLowPower, policy.Mode)
	assert.InDelta(t, 80.0, policy.SpeedThreshold, 1e-9)
}

func TestStatus(t *testing.T) {
	r, _, clock := newTestRegistry(t, Config{})
	_, err := r.Attach("phone")
	require.NoError(t, err)

	st, err := r.Status("phone")
	require.NoError(t, err)
	assert.False(t, st.Monitoring)
	assert.Nil(t, st.Policy)
	assert.True(t, st.Permission)

	_, err = r.Start("phone", map[string]any{detection.OptionAutoStopOnIdle: false})
	require.NoError(t, err)
	_, err = r.ReportFix("phone", fixAt(clock.Now(), 1, 1))
	require.NoError(t, err)

	st, err = r.Status("phone")
	require.NoError(t, err)
	assert.True(t, st.Monitoring)
	assert.Equal(t, "balanced", st.Policy[detection.OptionMode])
	assert.Equal(t, 1, st.HistoryLen)
	assert.Equal(t, int64(1), st.Stats.Evaluations)
}

func TestStatusJSONFieldNames(t *testing.T) {
	r, _, clock := newTestRegistry(t, Config{})
	_, err := r.Attach("phone")
	require.NoError(t, err)
	_, err = r.Start("phone", map[string]any{detection.OptionAutoStopOnIdle: false})
	require.NoError(t, err)
	_, err = r.ReportFix("phone", fixAt(clock.Now(), 1, 1))
	require.NoError(t, err)

	st, err := r.Status("phone")
	require.NoError(t, err)
	raw, err := json.Marshal(st)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"deviceId", "monitoring", "permission", "policy", "historyLength", "attachedAt", "stats"} {
		assert.Contains(t, decoded, key)
	}

	stats, ok := decoded["stats"].(map[string]any)
	require.True(t, ok, "stats should be an object: %s", raw)
	for _, key := range []string{"sessionsStarted", "fixesReceived", "evaluations", "failures", "autoStops", "lastEvaluatedAt"} {
		assert.Contains(t, stats, key)
	}
	assert.NotContains(t, stats, "SessionsStarted")
	assert.EqualValues(t, 1, stats["sessionsStarted"])
	assert.EqualValues(t, 1, stats["fixesReceived"])
}

func TestSinkFunc(t *testing.T) {
	var got string
	var sink ResultSink = SinkFunc(func(deviceID string, _ *detection.DetectionResult) {
		got = deviceID
	})
	sink.HandleResult("phone", nil)
	assert.Equal(t, "phone", got)
}

func TestStartRefusedDoesNotSavePolicy(t *testing.T) {
	policies := &memoryPolicies{}
	r, _, _ := newTestRegistry(t, Config{Policies: policies})
	_, err := r.Attach("phone")
	require.NoError(t, err)
	require.NoError(t, r.SetPermission("phone", false))

	_, err = r.Start("phone", map[string]any{detection.OptionMode: "aggressive"})
	require.NoError(t, err)

	monitoring, _ := r.Monitoring("phone")
	assert.False(t, monitoring)
	_, err = policies.LoadPolicy("phone")
	assert.Error(t, err, "a refused start must not be resumable")
}

func TestStartRefusedKeepsPreviousPolicy(t *testing.T) {
	policies := &memoryPolicies{}
	r, _, _ := newTestRegistry(t, Config{Policies: policies})
	_, err := r.Attach("phone")
	require.NoError(t, err)

	_, err = r.Start("phone", map[string]any{detection.OptionMode: "aggressive"})
	require.NoError(t, err)
	require.NoError(t, r.Stop("phone"))

	require.NoError(t, r.SetPermission("phone", false))
	_, err = r.Start("phone", map[string]any{detection.OptionMode: "lowPower"})
	require.NoError(t, err)

	require.NoError(t, r.SetPermission("phone", true))
	policy, err := r.Start("phone", nil)
	require.NoError(t, err)
	assert.Equal(t, detection.ModeAggressive, policy.Mode)
}

func TestDispatchLogsCoarseLocation(t *testing.T) {
	var buf bytes.Buffer
	previous := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	logging.SetLevelString("debug")
	t.Cleanup(func() {
		logging.SetLogger(previous)
		logging.SetLevelString("info")
	})

	r, sink, clock := newTestRegistry(t, Config{})
	_, err := r.Attach("phone")
	require.NoError(t, err)
	_, err = r.Start("phone", map[string]any{detection.OptionAutoStopOnIdle: false})
	require.NoError(t, err)

	_, err = r.ReportFix("phone", fixAt(clock.Now(), 48.856613, 2.352222))
	require.NoError(t, err)
	require.Len(t, sink.all(), 1)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, `"message":"detection result"`) {
			line = l
		}
	}
	require.NotEmpty(t, line, "no detection result log line in %s", buf.String())
	assert.Contains(t, line, `"latitude":48.86`)
	assert.Contains(t, line, `"longitude":2.35`)
	assert.NotContains(t, buf.String(), "48.8566")
	assert.NotContains(t, buf.String(), "2.3522")
}
