// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

/*
Package api exposes the device registry over HTTP using the Chi router.

Routes:

	GET    /health                                  liveness with device count
	GET    /metrics                                 Prometheus exposition
	GET    /api/v1/devices                          list attached devices
	POST   /api/v1/devices/{deviceID}               attach an engine
	GET    /api/v1/devices/{deviceID}               device status
	DELETE /api/v1/devices/{deviceID}               detach the engine
	POST   /api/v1/devices/{deviceID}/monitoring    start monitoring (policy options body)
	DELETE /api/v1/devices/{deviceID}/monitoring    stop monitoring
	POST   /api/v1/devices/{deviceID}/detect-once   one-shot detection (optional policy body)
	POST   /api/v1/devices/{deviceID}/fixes         report a location fix
	POST   /api/v1/devices/{deviceID}/failures      report a fix subsystem failure
	PUT    /api/v1/devices/{deviceID}/permission    record location permission
	GET    /api/v1/devices/{deviceID}/results       archived results, newest first
	GET    /api/v1/devices/{deviceID}/events        WebSocket result stream

Every JSON response uses the APIResponse envelope. Detection results inside
it use their wire shape. When a JWT manager is configured, device routes
require a bearer token whose subject is the device ID.
*/
package api
