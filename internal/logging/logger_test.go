// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// captureGlobal points the global logger at a buffer for the duration of t.
func captureGlobal(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: level, Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })
	return &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if i := strings.LastIndexByte(line, '\n'); i >= 0 {
		line = line[i+1:]
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", line, err)
	}
	return entry
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamps on by default")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInit_FiltersBelowLevel(t *testing.T) {
	buf := captureGlobal(t, "warn")

	Info().Msg("hidden")
	Warn().Str("device_id", "d1").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info entry should be filtered at warn level: %s", out)
	}
	entry := decodeLine(t, buf)
	if entry["message"] != "shown" || entry["device_id"] != "d1" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestWithComponent(t *testing.T) {
	buf := captureGlobal(t, "debug")

	logger := WithComponent("detection")
	logger.Debug().Msg("state change")

	if entry := decodeLine(t, buf); entry["component"] != "detection" {
		t.Errorf("expected component field, got %v", entry)
	}
}

func TestErr(t *testing.T) {
	buf := captureGlobal(t, "info")

	Err(errors.New("disk full")).Msg("archive write failed")

	entry := decodeLine(t, buf)
	if entry["error"] != "disk full" || entry["level"] != "error" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "console", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Msg("human readable")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("console output should not be JSON: %s", buf.String())
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { Init(DefaultConfig()) })

	logger := slog.New(NewSlogHandlerWithLogger(NewTestLogger(&buf)))
	logger.WithGroup("supervisor").Info("service restarted",
		slog.String("service", "http"),
		slog.Int("attempt", 2),
		slog.Group("backoff", slog.Bool("active", true)),
	)

	entry := decodeLine(t, &buf)
	if entry["message"] != "service restarted" || entry["level"] != "info" {
		t.Errorf("unexpected entry %v", entry)
	}
	if entry["supervisor.service"] != "http" {
		t.Errorf("expected grouped key, got %v", entry)
	}
	if entry["supervisor.attempt"] != float64(2) {
		t.Errorf("expected attempt 2, got %v", entry["supervisor.attempt"])
	}
	if entry["supervisor.backoff.active"] != true {
		t.Errorf("expected nested group key, got %v", entry)
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() { Init(DefaultConfig()) })

	h := NewSlogHandlerWithLogger(zerolog.New(&bytes.Buffer{}).Level(zerolog.WarnLevel))
	if h.Enabled(t.Context(), slog.LevelInfo) {
		t.Error("info should be disabled on a warn logger")
	}
	if !h.Enabled(t.Context(), slog.LevelError) {
		t.Error("error should be enabled on a warn logger")
	}
}

func TestWatermillLogger(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { Init(DefaultConfig()) })

	adapter := NewWatermillLoggerWithLogger(NewTestLogger(&buf)).
		With(watermill.LogFields{"topic": "geointegrity.results.d1"})
	adapter.Error("publish failed", errors.New("nats down"), watermill.LogFields{"attempt": 3})

	entry := decodeLine(t, &buf)
	if entry["topic"] != "geointegrity.results.d1" {
		t.Errorf("expected inherited field, got %v", entry)
	}
	if entry["error"] != "nats down" || entry["attempt"] != float64(3) {
		t.Errorf("unexpected entry %v", entry)
	}

	buf.Reset()
	adapter.Trace("dropped below level", nil)
	if buf.Len() != 0 {
		t.Errorf("trace should be filtered at debug level: %s", buf.String())
	}
}

func TestCoarseCoordinate(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{52.520008, 52.52},
		{-33.86882, -33.87},
		{13.404954, 13.4},
		{0, 0},
	}
	for _, tt := range tests {
		if got := CoarseCoordinate(tt.in); got != tt.want {
			t.Errorf("CoarseCoordinate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
	if got := SanitizeToken("short"); got != "[REDACTED]" {
		t.Errorf("expected full redaction, got %q", got)
	}
	if got := SanitizeToken("Bearer eyJhbGciOiJIUzI1NiJ9.payload.sig"); got != "eyJh...[REDACTED]" {
		t.Errorf("unexpected sanitized token %q", got)
	}
	if got := SanitizeToken("bearer  eyJhbGciOiJIUzI1NiJ9.payload.sig"); got != "eyJh...[REDACTED]" {
		t.Errorf("lowercase scheme: got %q", got)
	}
}
