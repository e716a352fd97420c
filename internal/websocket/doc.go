// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

/*
Package websocket streams detection results to subscribed clients.

Each client subscribes to exactly one device when it connects. The hub
routes a device's results only to that device's subscribers:

	{"type":"detection_result","data":{"timestamp":...,"fraudScore":35,...}}

The hub runs as a suture service (Serve). Broadcasts never block the caller:
when the hub queue or a client's send buffer is full the message is dropped
with a warning, so a slow consumer cannot stall detection.

Clients may send {"type":"ping"} and receive {"type":"pong"}. The server
sends protocol pings every PingInterval and closes connections that stop
answering.
*/
package websocket
