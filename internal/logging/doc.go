// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

// Package logging provides centralized zerolog-based logging for Geointegrity.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("device_id", id).Msg("device attached")
//	logging.Err(err).Msg("archive write failed")
//	logging.Ctx(ctx).Debug().Msg("fix accepted")
//
// # Adapters
//
// Libraries that expect other logger interfaces are bridged onto the global
// zerolog logger:
//
//   - NewSlogLogger returns a *slog.Logger for sutureslog
//   - NewWatermillLogger returns a watermill.LoggerAdapter for the event bus
//
// # Location Privacy
//
// Device coordinates should be logged through CoarseCoordinate, which rounds
// them to roughly one kilometer. Bearer tokens go through SanitizeToken.
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
package logging
