// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package websocket

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// NewUpgrader returns an upgrader that admits an origin when checkOrigin
// accepts it. A nil checkOrigin accepts every origin.
func NewUpgrader(checkOrigin func(r *http.Request) bool) websocket.Upgrader {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin:      checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// ServeDevice upgrades the request and subscribes the connection to
// deviceID. The upgrader has already written an HTTP error when this fails.
func (h *Hub) ServeDevice(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader, deviceID string, opts ClientOptions) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	client := NewClient(h, conn, deviceID, opts)
	if err := h.Register(r.Context(), client); err != nil {
		_ = conn.Close()
		return fmt.Errorf("register client: %w", err)
	}
	client.Start()
	return nil
}
