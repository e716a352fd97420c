// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/geointegrity/internal/detection"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/geointegrity/config.yaml",
	"/etc/geointegrity/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultSubjectPrefix is the topic prefix results are published under.
const DefaultSubjectPrefix = "geointegrity.results"

func defaultConfig() *Config {
	balanced := detection.BalancedPolicy()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8742,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Detection: DetectionConfig{
			Platform:             detection.DefaultPlatform,
			Mode:                 string(balanced.Mode),
			EvaluationIntervalMs: balanced.EvaluationInterval.Milliseconds(),
			SensorWarmupMs:       balanced.SensorWarmup.Milliseconds(),
			AutoStopOnIdle:       balanced.AutoStopOnIdle,
			SpeedThreshold:       balanced.SpeedThreshold,
			MaxDevices:           10000,
		},
		WebSocket: WebSocketConfig{
			SendBuffer:   64,
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Events: EventsConfig{
			Enabled:        true,
			NATSURL:        "", // in-process gochannel
			EmbeddedServer: false,
			EmbeddedHost:   "127.0.0.1",
			EmbeddedPort:   4222,
			SubjectPrefix:  DefaultSubjectPrefix,
		},
		Store: StoreConfig{
			Enabled:   true,
			Path:      "", // in-memory
			Retention: 1000,
		},
		Webhook: WebhookConfig{
			URL:           "",
			MinScore:      50,
			RatePerSecond: 1,
			Burst:         5,
			Timeout:       10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: "",
			Issuer:    "",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			FixRateLimitReqs:  600,
			RateLimitDisabled: false,
		},
	}
}

// LoadWithKoanf loads defaults, then the config file, then environment
// variables, and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as a single string.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Server
	"http_host":          "server.host",
	"http_port":          "server.port",
	"http_read_timeout":  "server.read_timeout",
	"http_write_timeout": "server.write_timeout",
	"http_idle_timeout":  "server.idle_timeout",
	"shutdown_timeout":   "server.shutdown_timeout",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Detection
	"detection_platform":        "detection.platform",
	"detection_mode":            "detection.mode",
	"detection_interval_ms":     "detection.evaluation_interval_ms",
	"detection_warmup_ms":       "detection.sensor_warmup_ms",
	"detection_auto_stop":       "detection.auto_stop_on_idle",
	"detection_speed_threshold": "detection.speed_threshold",
	"max_devices":               "detection.max_devices",

	// WebSocket
	"ws_send_buffer":   "websocket.send_buffer",
	"ws_ping_interval": "websocket.ping_interval",
	"ws_write_timeout": "websocket.write_timeout",

	// Events
	"events_enabled":        "events.enabled",
	"nats_url":              "events.nats_url",
	"nats_embedded":         "events.embedded_server",
	"nats_embedded_host":    "events.embedded_host",
	"nats_embedded_port":    "events.embedded_port",
	"events_subject_prefix": "events.subject_prefix",

	// Store
	"store_enabled":   "store.enabled",
	"store_path":      "store.path",
	"store_retention": "store.retention",

	// Webhook
	"webhook_url":       "webhook.url",
	"webhook_min_score": "webhook.min_score",
	"webhook_rate":      "webhook.rate_per_second",
	"webhook_burst":     "webhook.burst",
	"webhook_timeout":   "webhook.timeout",

	// Auth
	"jwt_secret": "auth.jwt_secret",
	"jwt_issuer": "auth.issuer",

	// Security
	"cors_origins":            "security.cors_origins",
	"rate_limit_requests":     "security.rate_limit_reqs",
	"rate_limit_window":       "security.rate_limit_window",
	"fix_rate_limit_requests": "security.fix_rate_limit_reqs",
	"disable_rate_limit":      "security.rate_limit_disabled",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped names return "" so koanf skips them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
