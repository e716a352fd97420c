// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

/*
Package eventbus publishes detection results as Watermill messages.

Every emitted result becomes one message on the topic

	<prefix>.<deviceID>          e.g. geointegrity.results.pixel-7

with the result's wire JSON as payload and these metadata keys:

	device_id    the device the result belongs to
	platform     the result's platform tag
	fraud_score  the total score, decimal

Transports:

  - In-process (default): watermill's gochannel pub/sub, for single-node
    deployments and tests
  - NATS: watermill-nats core publishing to an external server
  - Embedded NATS: a nats-server started in-process, for deployments that
    want NATS subjects without running a broker

Publishing is asynchronous. HandleResult enqueues and returns; the Publisher
service drains the queue through a gobreaker circuit breaker so an
unreachable broker sheds load instead of piling up retries.
*/
package eventbus
