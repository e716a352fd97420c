// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/geointegrity/internal/auth"
	"github.com/tomtom215/geointegrity/internal/config"
	"github.com/tomtom215/geointegrity/internal/detection"
	"github.com/tomtom215/geointegrity/internal/device"
	"github.com/tomtom215/geointegrity/internal/websocket"
)

// Archive is the read side of the result archive.
type Archive interface {
	Recent(deviceID string, limit int) ([]*detection.DetectionResult, error)
}

// Options wires the router's collaborators. Archive, Hub and Auth are
// optional.
type Options struct {
	Registry   *device.Registry
	Archive    Archive
	Hub        *websocket.Hub
	Auth       *auth.JWTManager
	Middleware *MiddlewareConfig
	WebSocket  websocket.ClientOptions
}

// Router serves the HTTP API.
type Router struct {
	registry *device.Registry
	archive  Archive
	hub      *websocket.Hub
	auth     *auth.JWTManager
	mw       *Middleware
	upgrader gorillaws.Upgrader
	wsOpts   websocket.ClientOptions
	started  time.Time
}

// NewRouter creates a router.
func NewRouter(opts Options) *Router {
	mw := NewMiddleware(opts.Middleware)
	return &Router{
		registry: opts.Registry,
		archive:  opts.Archive,
		hub:      opts.Hub,
		auth:     opts.Auth,
		mw:       mw,
		upgrader: websocket.NewUpgrader(mw.CheckOrigin),
		wsOpts:   opts.WebSocket,
		started:  time.Now(),
	}
}

// MiddlewareConfigFrom maps the security settings onto the middleware.
func MiddlewareConfigFrom(sec config.SecurityConfig) *MiddlewareConfig {
	mc := DefaultMiddlewareConfig()
	mc.CORSAllowedOrigins = sec.CORSOrigins
	mc.RateLimitRequests = sec.RateLimitReqs
	mc.RateLimitWindow = sec.RateLimitWindow
	mc.FixRateLimitRequests = sec.FixRateLimitReqs
	mc.RateLimitDisabled = sec.RateLimitDisabled
	return mc
}

// Handler builds the route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.mw.CORS())
	r.Use(Metrics)

	r.Get("/health", rt.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.mw.RateLimit())

		r.With(RequireToken(rt.auth)).Get("/devices", rt.ListDevices)

		r.Route("/devices/{deviceID}", func(r chi.Router) {
			r.Use(DeviceID)
			r.Use(RequireDevice(rt.auth))

			r.Post("/", rt.AttachDevice)
			r.Get("/", rt.DeviceStatus)
			r.Delete("/", rt.DetachDevice)

			r.Post("/monitoring", rt.StartMonitoring)
			r.Delete("/monitoring", rt.StopMonitoring)
			r.Post("/detect-once", rt.DetectOnce)
			r.With(rt.mw.RateLimitFixes()).Post("/fixes", rt.ReportFix)
			r.Post("/failures", rt.ReportFailure)
			r.Put("/permission", rt.SetPermission)
			r.Get("/results", rt.Results)
			r.Get("/events", rt.Events)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return r
}
