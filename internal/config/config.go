// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/geointegrity/internal/detection"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Detection DetectionConfig `koanf:"detection"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Events    EventsConfig    `koanf:"events"`
	Store     StoreConfig     `koanf:"store"`
	Webhook   WebhookConfig   `koanf:"webhook"`
	Auth      AuthConfig      `koanf:"auth"`
	Security  SecurityConfig  `koanf:"security"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DetectionConfig holds the platform tag and the policy applied when a
// start request carries no options.
type DetectionConfig struct {
	Platform             string  `koanf:"platform" validate:"required"`
	Mode                 string  `koanf:"mode" validate:"policymode"`
	EvaluationIntervalMs int64   `koanf:"evaluation_interval_ms" validate:"gte=0"`
	SensorWarmupMs       int64   `koanf:"sensor_warmup_ms" validate:"gte=0"`
	AutoStopOnIdle       bool    `koanf:"auto_stop_on_idle"`
	SpeedThreshold       float64 `koanf:"speed_threshold" validate:"gt=0"`
	MaxDevices           int     `koanf:"max_devices" validate:"gte=0"`
}

// DefaultPolicyOptions returns the configured default policy as an options map.
func (d DetectionConfig) DefaultPolicyOptions() map[string]any {
	return map[string]any{
		detection.OptionMode:                     d.Mode,
		detection.OptionEvaluationIntervalMillis: d.EvaluationIntervalMs,
		detection.OptionSensorWarmupMillis:       d.SensorWarmupMs,
		detection.OptionAutoStopOnIdle:           d.AutoStopOnIdle,
		detection.OptionSpeedThreshold:           d.SpeedThreshold,
	}
}

// DefaultPolicy returns the configured default policy, normalized.
func (d DetectionConfig) DefaultPolicy() detection.Policy {
	return detection.PolicyFromOptions(d.DefaultPolicyOptions())
}

// WebSocketConfig tunes result stream clients.
type WebSocketConfig struct {
	SendBuffer   int           `koanf:"send_buffer" validate:"min=1"`
	PingInterval time.Duration `koanf:"ping_interval" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
}

// EventsConfig configures result publishing.
type EventsConfig struct {
	Enabled        bool   `koanf:"enabled"`
	NATSURL        string `koanf:"nats_url" validate:"omitempty,url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	EmbeddedHost   string `koanf:"embedded_host"`
	EmbeddedPort   int    `koanf:"embedded_port" validate:"min=0,max=65535"`
	SubjectPrefix  string `koanf:"subject_prefix" validate:"required"`
}

// UsesNATS reports whether results go to a NATS server rather than the
// in-process pub/sub.
func (e EventsConfig) UsesNATS() bool {
	return e.Enabled && (e.NATSURL != "" || e.EmbeddedServer)
}

// StoreConfig configures the result archive.
type StoreConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"`
	Retention int    `koanf:"retention" validate:"gte=0"`
}

// WebhookConfig configures alert delivery. An empty URL disables it.
type WebhookConfig struct {
	URL           string            `koanf:"url" validate:"omitempty,url"`
	MinScore      int               `koanf:"min_score" validate:"gte=0"`
	RatePerSecond float64           `koanf:"rate_per_second" validate:"gte=0"`
	Burst         int               `koanf:"burst" validate:"gte=0"`
	Timeout       time.Duration     `koanf:"timeout" validate:"gt=0"`
	Headers       map[string]string `koanf:"headers"`
}

// Enabled reports whether a webhook target is configured.
func (w WebhookConfig) Enabled() bool {
	return w.URL != ""
}

// AuthConfig configures device bearer tokens. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret" validate:"omitempty,min=32"`
	Issuer    string `koanf:"issuer"`
}

// Enabled reports whether device routes require a token.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// SecurityConfig configures CORS and inbound rate limits.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	FixRateLimitReqs  int           `koanf:"fix_rate_limit_reqs" validate:"gte=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}
