// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/geointegrity/internal/logging"
)

const maxMessageSize = 4 * 1024 // clients only send pings

// ClientOptions tunes a client's buffering and keepalive.
type ClientOptions struct {
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// DefaultClientOptions returns the options used when none are configured.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		SendBuffer:   64,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func (o ClientOptions) normalized() ClientOptions {
	d := DefaultClientOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	return o
}

var clientIDCounter atomic.Uint64

// Client bridges one websocket connection and the hub.
type Client struct {
	id       uint64
	deviceID string
	hub      *Hub
	conn     *websocket.Conn
	send     chan Message
	opts     ClientOptions
}

// NewClient creates a client subscribed to deviceID.
func NewClient(hub *Hub, conn *websocket.Conn, deviceID string, opts ClientOptions) *Client {
	opts = opts.normalized()
	return &Client{
		id:       clientIDCounter.Add(1),
		deviceID: deviceID,
		hub:      hub,
		conn:     conn,
		send:     make(chan Message, opts.SendBuffer),
		opts:     opts,
	}
}

// ID returns the client's monotonic identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// DeviceID returns the device the client is subscribed to.
func (c *Client) DeviceID() string {
	return c.deviceID
}

// Start runs the read and write pumps until the connection closes.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// pongWait allows one missed ping before the connection is considered dead.
func (c *Client) pongWait() time.Duration {
	return 2 * c.opts.PingInterval
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait())); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("device_id", c.deviceID).Msg("unexpected websocket close")
			}
			return
		}
		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("message_type", message.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug().Err(err).Str("device_id", c.deviceID).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
