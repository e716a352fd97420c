// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geointegrity/internal/detection"
	"github.com/tomtom215/geointegrity/internal/logging"
	"github.com/tomtom215/geointegrity/internal/metrics"
)

// Message types
const (
	MessageTypeDetectionResult = "detection_result"
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
)

// Message is the envelope for every frame sent to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ErrHubStopped is returned when registering with a hub that has shut down.
var ErrHubStopped = errors.New("websocket hub stopped")

type deviceMessage struct {
	deviceID string
	message  Message
}

// Hub tracks subscribed clients per device and fans out results.
type Hub struct {
	devices    map[string]map[*Client]struct{}
	broadcast  chan deviceMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a hub. Call Serve to start routing.
func NewHub() *Hub {
	return &Hub{
		devices:    make(map[string]map[*Client]struct{}),
		broadcast:  make(chan deviceMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Serve routes messages until ctx is canceled, then closes every client.
// Lifecycle events take priority over broadcasts so a client registered
// before a result is published receives it.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.register:
			h.add(c)
			continue
		case c := <-h.unregister:
			h.remove(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case m := <-h.broadcast:
			h.deliver(m)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (h *Hub) String() string {
	return "websocket-hub"
}

// Register subscribes c. It blocks until the hub accepts the client or ctx ends.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	subs, ok := h.devices[c.deviceID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.devices[c.deviceID] = subs
	}
	subs[c] = struct{}{}
	n := len(subs)
	h.mu.Unlock()

	metrics.TrackWebSocketConnection(true)
	logging.Debug().Str("device_id", c.deviceID).Int("subscribers", n).Msg("websocket client subscribed")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	subs := h.devices[c.deviceID]
	_, ok := subs[c]
	if ok {
		delete(subs, c)
		close(c.send)
		if len(subs) == 0 {
			delete(h.devices, c.deviceID)
		}
	}
	h.mu.Unlock()

	if ok {
		metrics.TrackWebSocketConnection(false)
		logging.Debug().Str("device_id", c.deviceID).Msg("websocket client unsubscribed")
	}
}

// deliver sends m to the device's subscribers in client ID order.
func (h *Hub) deliver(m deviceMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := h.devices[m.deviceID]
	if len(subs) == 0 {
		return
	}
	clients := make([]*Client, 0, len(subs))
	for c := range subs {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, c := range clients {
		select {
		case c.send <- m.message:
		default:
			logging.Warn().
				Str("device_id", m.deviceID).
				Uint64("client_id", c.id).
				Str("message_type", m.message.Type).
				Msg("client send buffer full, dropping message")
		}
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	closed := 0
	for deviceID, subs := range h.devices {
		for c := range subs {
			close(c.send)
			closed++
		}
		delete(h.devices, deviceID)
	}
	h.mu.Unlock()

	for i := 0; i < closed; i++ {
		metrics.TrackWebSocketConnection(false)
	}

	reason := "context_canceled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

// BroadcastResult queues r for the device's subscribers.
func (h *Hub) BroadcastResult(deviceID string, r *detection.DetectionResult) {
	if r == nil {
		return
	}
	h.BroadcastJSON(deviceID, MessageTypeDetectionResult, r)
}

// HandleResult makes the hub a result sink.
func (h *Hub) HandleResult(deviceID string, r *detection.DetectionResult) {
	h.BroadcastResult(deviceID, r)
}

// BroadcastJSON queues a message of messageType for the device's subscribers.
func (h *Hub) BroadcastJSON(deviceID, messageType string, data interface{}) {
	select {
	case h.broadcast <- deviceMessage{deviceID: deviceID, message: Message{Type: messageType, Data: data}}:
	default:
		logging.Warn().Str("device_id", deviceID).Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of subscribers across all devices.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.devices {
		n += len(subs)
	}
	return n
}

// SubscriberCount returns the number of subscribers for one device.
func (h *Hub) SubscriberCount(deviceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices[deviceID])
}

// MarshalMessage encodes msg as JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
