// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/geointegrity/internal/validation"
)

// Validate applies field rules and then cross-field checks.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("invalid configuration: %w", verr)
	}

	checks := []func() error{
		c.validateDetection,
		c.validateEvents,
		c.validateWebhook,
		c.validateSecurity,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDetection() error {
	if strings.TrimSpace(c.Detection.Platform) != c.Detection.Platform {
		return errors.New("DETECTION_PLATFORM must not have surrounding whitespace")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	if c.Events.EmbeddedServer && c.Events.EmbeddedPort == 0 {
		return errors.New("NATS_EMBEDDED_PORT is required when NATS_EMBEDDED=true")
	}
	if strings.ContainsAny(c.Events.SubjectPrefix, " *>") || strings.HasSuffix(c.Events.SubjectPrefix, ".") {
		return fmt.Errorf("EVENTS_SUBJECT_PREFIX %q is not a valid subject prefix", c.Events.SubjectPrefix)
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if !c.Webhook.Enabled() {
		return nil
	}
	if c.Webhook.RatePerSecond <= 0 {
		return errors.New("WEBHOOK_RATE must be positive when WEBHOOK_URL is set")
	}
	if c.Webhook.Burst < 1 {
		return errors.New("WEBHOOK_BURST must be at least 1 when WEBHOOK_URL is set")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs <= 0 || c.Security.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive unless DISABLE_RATE_LIMIT=true")
	}
	return nil
}
