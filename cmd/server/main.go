// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

// Package main is the entry point for the Geointegrity server.
//
// The server attaches devices, runs one detection engine per device, and
// streams every location integrity result to the configured sinks.
//
// # Application Architecture
//
// Components are initialized in this order:
//
//  1. Configuration: defaults, config.yaml, then environment (Koanf v2)
//  2. Result archive (optional): BadgerDB, also holding last policies
//  3. Event bus (optional): watermill over gochannel or NATS
//  4. Webhook notifier (optional): alerts for high scores
//  5. Device registry and WebSocket hub
//  6. HTTP server: REST API under /api/v1
//
// Long-running services run under a suture supervisor tree.
//
// # Issuing Device Tokens
//
// With JWT_SECRET set, device routes require a bearer token whose
// subject is the device ID:
//
//	./geointegrity -issue-token phone-1 -token-ttl 720h
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the supervisor tree, stop every monitoring
// session, then close the event bus and the archive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/geointegrity/internal/api"
	"github.com/tomtom215/geointegrity/internal/auth"
	"github.com/tomtom215/geointegrity/internal/config"
	"github.com/tomtom215/geointegrity/internal/device"
	"github.com/tomtom215/geointegrity/internal/eventbus"
	"github.com/tomtom215/geointegrity/internal/logging"
	"github.com/tomtom215/geointegrity/internal/notify"
	"github.com/tomtom215/geointegrity/internal/store"
	"github.com/tomtom215/geointegrity/internal/supervisor"
	"github.com/tomtom215/geointegrity/internal/supervisor/services"
	ws "github.com/tomtom215/geointegrity/internal/websocket"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a bearer token for the given device ID and exit")
	tokenTTL := flag.Duration("token-ttl", auth.DefaultTokenTTL, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	var jwtManager *auth.JWTManager
	if cfg.Auth.Enabled() {
		jwtManager, err = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
	}

	if *issueToken != "" {
		if err := printToken(jwtManager, *issueToken, *tokenTTL); err != nil {
			logging.Fatal().Err(err).Msg("Failed to issue token")
		}
		return
	}

	if err := run(cfg, jwtManager); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func printToken(m *auth.JWTManager, deviceID string, ttl time.Duration) error {
	if m == nil {
		return errors.New("auth is disabled: set JWT_SECRET")
	}
	token, err := m.GenerateToken(deviceID, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

//nolint:gocyclo // sequential setup of optional components
func run(cfg *config.Config, jwtManager *auth.JWTManager) error {
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("platform", cfg.Detection.Platform).
		Str("mode", cfg.Detection.Mode).
		Msg("Starting Geointegrity")

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	hub := ws.NewHub()
	registryCfg := device.Config{
		Platform:       cfg.Detection.Platform,
		MaxDevices:     cfg.Detection.MaxDevices,
		DefaultOptions: cfg.Detection.DefaultPolicyOptions(),
	}
	sinks := []device.ResultSink{hub}

	routerOpts := api.Options{
		Hub:        hub,
		Auth:       jwtManager,
		Middleware: api.MiddlewareConfigFrom(cfg.Security),
		WebSocket: ws.ClientOptions{
			SendBuffer:   cfg.WebSocket.SendBuffer,
			PingInterval: cfg.WebSocket.PingInterval,
			WriteTimeout: cfg.WebSocket.WriteTimeout,
		},
	}

	if cfg.Store.Enabled {
		archive, err := store.Open(store.Config{
			Path:            cfg.Store.Path,
			Retention:       cfg.Store.Retention,
			DefaultPlatform: cfg.Detection.Platform,
		})
		if err != nil {
			return fmt.Errorf("open result archive: %w", err)
		}
		defer func() {
			if err := archive.Close(); err != nil {
				logging.Err(err).Msg("Failed to close result archive")
			}
		}()
		registryCfg.Policies = archive
		sinks = append(sinks, archive)
		routerOpts.Archive = archive
		logging.Info().Str("path", cfg.Store.Path).Int("retention", cfg.Store.Retention).Msg("Result archive enabled")
	}

	if cfg.Events.Enabled {
		publisher, embedded, err := newEventPublisher(cfg.Events)
		if err != nil {
			return err
		}
		defer closePublisher(publisher)
		if embedded != nil {
			tree.AddEventsService(embedded)
		}
		sinks = append(sinks, publisher)
		tree.AddEventsService(publisher)
	}

	if cfg.Webhook.Enabled() {
		notifier := notify.New(notify.Config{
			URL:           cfg.Webhook.URL,
			Headers:       cfg.Webhook.Headers,
			MinScore:      cfg.Webhook.MinScore,
			RatePerSecond: cfg.Webhook.RatePerSecond,
			Burst:         cfg.Webhook.Burst,
			Timeout:       cfg.Webhook.Timeout,
		})
		sinks = append(sinks, notifier)
		tree.AddEventsService(notifier)
		logging.Info().Int("min_score", notifier.MinScore()).Msg("Webhook alerts enabled")
	}

	// Deferred last: engines stop before any sink is closed.
	registry := device.NewRegistry(registryCfg, sinks...)
	defer registry.Close()
	routerOpts.Registry = registry

	router := api.NewRouter(routerOpts)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree.AddAPIService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if jwtManager == nil {
		logging.Warn().Msg("Auth disabled: device routes accept unauthenticated requests")
	}

	err := tree.Serve(ctx)
	logging.Info().Msg("Shutting down")

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor: %w", err)
	}
	return nil
}

// newEventPublisher picks the transport: an embedded NATS server, an
// external NATS URL, or the in-process channel. A returned embedded server
// is already accepting connections and stops when its Serve returns.
func newEventPublisher(cfg config.EventsConfig) (*eventbus.Publisher, *eventbus.EmbeddedServer, error) {
	logger := logging.NewWatermillLogger("eventbus")
	busCfg := eventbus.Config{TopicPrefix: cfg.SubjectPrefix}

	if !cfg.UsesNATS() {
		logging.Info().Msg("Events published to in-process channel")
		return eventbus.NewPublisher(eventbus.NewChannelPubSub(logger), busCfg), nil, nil
	}

	url := cfg.NATSURL
	var embedded *eventbus.EmbeddedServer
	if cfg.EmbeddedServer {
		var err error
		embedded, err = eventbus.NewEmbeddedServer(eventbus.ServerConfig{
			Host: cfg.EmbeddedHost,
			Port: cfg.EmbeddedPort,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		url = embedded.ClientURL()
	}

	natsPub, err := eventbus.NewNATSPublisher(url, logger)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return nil, nil, err
	}
	logging.Info().Str("url", url).Str("prefix", cfg.SubjectPrefix).Msg("Events published to NATS")
	return eventbus.NewPublisher(natsPub, busCfg), embedded, nil
}

func closePublisher(p *eventbus.Publisher) {
	if err := p.Close(); err != nil {
		logging.Err(err).Msg("Failed to close event publisher")
	}
}
