// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

/*
Package config loads Geointegrity server configuration.

Configuration is layered with Koanf v2, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file, found via CONFIG_PATH or DefaultConfigPaths
 3. Environment variables listed in envMappings

Unmapped environment variables are ignored.

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT: bind address (default 0.0.0.0:8742)
  - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT, SHUTDOWN_TIMEOUT

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Detection:
  - DETECTION_PLATFORM: platform tag stamped on results (default "server")
  - DETECTION_MODE, DETECTION_INTERVAL_MS, DETECTION_WARMUP_MS
  - DETECTION_AUTO_STOP, DETECTION_SPEED_THRESHOLD
  - MAX_DEVICES: attached device limit, 0 for unlimited

Events:
  - EVENTS_ENABLED, NATS_URL (empty publishes in-process)
  - NATS_EMBEDDED, NATS_EMBEDDED_HOST, NATS_EMBEDDED_PORT
  - EVENTS_SUBJECT_PREFIX (default geointegrity.results)

Store:
  - STORE_ENABLED, STORE_PATH (empty keeps results in memory)
  - STORE_RETENTION: results kept per device

Webhook:
  - WEBHOOK_URL, WEBHOOK_MIN_SCORE, WEBHOOK_RATE, WEBHOOK_BURST, WEBHOOK_TIMEOUT

Auth and security:
  - JWT_SECRET (empty disables device auth), JWT_ISSUER
  - CORS_ORIGINS (comma-separated), RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW
  - FIX_RATE_LIMIT_REQUESTS, DISABLE_RATE_LIMIT

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("invalid configuration")
	}
	policy := cfg.Detection.DefaultPolicy()
*/
package config
