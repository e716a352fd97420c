// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

// Package notify delivers high-score detection results to a webhook.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/geointegrity/internal/detection"
	"github.com/tomtom215/geointegrity/internal/eventbus"
	"github.com/tomtom215/geointegrity/internal/logging"
	"github.com/tomtom215/geointegrity/internal/metrics"
)

const (
	// EventType is the event_type of every payload.
	EventType = "geointegrity_alert"

	// Source is the source of every payload.
	Source = "geointegrity"

	// DefaultMinScore is the lowest score that triggers an alert.
	DefaultMinScore = 50
)

// Config configures the webhook notifier.
type Config struct {
	URL           string
	Headers       map[string]string // custom headers, e.g. auth
	MinScore      int
	RatePerSecond float64 // 0 disables rate limiting
	Burst         int
	Timeout       time.Duration
	QueueSize     int
	Client        *http.Client // overrides Timeout when set
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	EventType string                     `json:"event_type"`
	DeviceID  string                     `json:"device_id"`
	Result    *detection.DetectionResult `json:"result"`
	Source    string                     `json:"source"`
	SentAt    time.Time                  `json:"sent_at"`
}

type alert struct {
	deviceID string
	result   *detection.DetectionResult
}

// Notifier posts alerts from a background worker. HandleResult never blocks.
type Notifier struct {
	url      string
	headers  map[string]string
	minScore int
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[struct{}]
	queue    chan alert
	now      func() time.Time
}

// New creates a notifier.
func New(cfg Config) *Notifier {
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Notifier{
		url:      cfg.URL,
		headers:  headers,
		minScore: cfg.MinScore,
		client:   client,
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  eventbus.NewCircuitBreaker(eventbus.DefaultCircuitBreakerConfig("webhook")),
		queue:    make(chan alert, cfg.QueueSize),
		now:      time.Now,
	}
}

// MinScore returns the alert threshold.
func (n *Notifier) MinScore() int {
	return n.minScore
}

// HandleResult queues r when its score reaches the threshold.
func (n *Notifier) HandleResult(deviceID string, r *detection.DetectionResult) {
	if r == nil || r.FraudScore < n.minScore {
		return
	}
	select {
	case n.queue <- alert{deviceID: deviceID, result: r}:
	default:
		metrics.RecordWebhookDelivery("dropped")
		logging.Warn().Str("device_id", deviceID).Int("fraud_score", r.FraudScore).Msg("webhook queue full, dropping alert")
	}
}

// Serve delivers queued alerts until ctx is canceled.
func (n *Notifier) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-n.queue:
			if err := n.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			if err := n.Send(ctx, a.deviceID, a.result); err != nil {
				logging.Warn().Err(err).Str("device_id", a.deviceID).Msg("webhook delivery failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (n *Notifier) String() string {
	return "webhook-notifier"
}

// Send posts one alert synchronously through the circuit breaker. It does
// not consult the rate limiter or the score threshold.
func (n *Notifier) Send(ctx context.Context, deviceID string, r *detection.DetectionResult) error {
	body, err := json.Marshal(Payload{
		EventType: EventType,
		DeviceID:  deviceID,
		Result:    r,
		Source:    Source,
		SentAt:    n.now().UTC(),
	})
	if err != nil {
		metrics.RecordWebhookDelivery("error")
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	_, err = n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, body)
	})
	switch {
	case err == nil:
		metrics.RecordWebhookDelivery("success")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordWebhookDelivery("circuit_open")
	default:
		metrics.RecordWebhookDelivery("error")
	}
	return err
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range n.headers {
		req.Header.Set(key, value)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
