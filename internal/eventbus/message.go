// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package eventbus

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/geointegrity/internal/detection"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "geointegrity.results"

// Metadata keys set on every result message.
const (
	MetadataDeviceID   = "device_id"
	MetadataPlatform   = "platform"
	MetadataFraudScore = "fraud_score"
)

// ErrMissingDeviceID is returned when a message lacks the device_id metadata.
var ErrMissingDeviceID = errors.New("message has no device_id metadata")

// Topic returns the topic a device's results are published on.
func Topic(prefix, deviceID string) string {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "." + deviceID
}

// NewResultMessage encodes r as a message for deviceID.
func NewResultMessage(deviceID string, r *detection.DetectionResult) (*message.Message, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set(MetadataDeviceID, deviceID)
	msg.Metadata.Set(MetadataPlatform, r.Platform)
	msg.Metadata.Set(MetadataFraudScore, strconv.Itoa(r.FraudScore))
	return msg, nil
}

// DecodeResultMessage reverses NewResultMessage.
func DecodeResultMessage(msg *message.Message, defaultPlatform string) (string, *detection.DetectionResult, error) {
	deviceID := msg.Metadata.Get(MetadataDeviceID)
	if deviceID == "" {
		return "", nil, ErrMissingDeviceID
	}
	r, err := detection.ParseResult(msg.Payload, defaultPlatform)
	if err != nil {
		return "", nil, fmt.Errorf("decode message %s: %w", msg.UUID, err)
	}
	return deviceID, r, nil
}
