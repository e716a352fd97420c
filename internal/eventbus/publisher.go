// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/geointegrity/internal/detection"
	"github.com/tomtom215/geointegrity/internal/logging"
	"github.com/tomtom215/geointegrity/internal/metrics"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Config configures a Publisher.
type Config struct {
	// TopicPrefix is prepended to the device ID. Default: DefaultTopicPrefix
	TopicPrefix string

	// QueueSize bounds results waiting to be published. Default: 1024
	QueueSize int

	// CircuitBreaker protects the transport. Name defaults to "eventbus".
	CircuitBreaker CircuitBreakerConfig
}

type pending struct {
	deviceID string
	result   *detection.DetectionResult
}

// Publisher sends detection results to a watermill transport.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	prefix    string
	queue     chan pending

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps an existing watermill publisher.
func NewPublisher(pub message.Publisher, cfg Config) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.CircuitBreaker.Name == "" {
		cfg.CircuitBreaker = DefaultCircuitBreakerConfig("eventbus")
	}
	return &Publisher{
		publisher: pub,
		breaker:   NewCircuitBreaker(cfg.CircuitBreaker),
		prefix:    cfg.TopicPrefix,
		queue:     make(chan pending, cfg.QueueSize),
	}
}

// NewChannelPubSub returns an in-process pub/sub. It implements both
// message.Publisher and message.Subscriber.
func NewChannelPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	if logger == nil {
		logger = logging.NewWatermillLogger("eventbus")
	}
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
}

// NewNATSPublisher connects a core NATS watermill publisher to url.
func NewNATSPublisher(url string, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if logger == nil {
		logger = logging.NewWatermillLogger("eventbus")
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("geointegrity"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}
	return pub, nil
}

// Topic returns the topic used for deviceID.
func (p *Publisher) Topic(deviceID string) string {
	return Topic(p.prefix, deviceID)
}

// HandleResult queues r for publishing and returns immediately. When the
// queue is full the result is dropped and counted.
func (p *Publisher) HandleResult(deviceID string, r *detection.DetectionResult) {
	if r == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- pending{deviceID: deviceID, result: r}:
	default:
		metrics.RecordEventPublish("dropped")
		logging.Warn().Str("device_id", deviceID).Msg("event queue full, dropping result")
	}
}

// Publish sends r synchronously through the circuit breaker.
func (p *Publisher) Publish(deviceID string, r *detection.DetectionResult) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	msg, err := NewResultMessage(deviceID, r)
	if err != nil {
		metrics.RecordEventPublish("error")
		return err
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(p.Topic(deviceID), msg)
	})
	switch {
	case err == nil:
		metrics.RecordEventPublish("success")
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordEventPublish("circuit_open")
	default:
		metrics.RecordEventPublish("error")
	}
	return fmt.Errorf("publish to %s: %w", p.Topic(deviceID), err)
}

// Serve drains the queue until ctx is canceled.
func (p *Publisher) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case item := <-p.queue:
			if err := p.Publish(item.deviceID, item.result); err != nil {
				logging.Warn().Err(err).Str("device_id", item.deviceID).Msg("result publish failed")
			}
		}
	}
}

// drain publishes whatever is already queued, without waiting for more.
func (p *Publisher) drain() {
	for {
		select {
		case item := <-p.queue:
			if err := p.Publish(item.deviceID, item.result); err != nil {
				logging.Debug().Err(err).Str("device_id", item.deviceID).Msg("publish during shutdown failed")
			}
		default:
			return
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (p *Publisher) String() string {
	return "event-publisher"
}

// Pending returns the number of queued results.
func (p *Publisher) Pending() int {
	return len(p.queue)
}

// Close closes the underlying transport. Queued results are discarded.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
