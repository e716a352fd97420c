// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/geointegrity/internal/auth"
	"github.com/tomtom215/geointegrity/internal/logging"
	"github.com/tomtom215/geointegrity/internal/metrics"
	"github.com/tomtom215/geointegrity/internal/validation"
)

// MiddlewareConfig configures the middleware stack.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	RateLimitRequests    int
	RateLimitWindow      time.Duration
	FixRateLimitRequests int // per device and window
	RateLimitDisabled    bool
}

// DefaultMiddlewareConfig returns the defaults used when no config is given.
func DefaultMiddlewareConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		CORSAllowedOrigins:   []string{"*"},
		CORSAllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSMaxAge:           86400,
		RateLimitRequests:    100,
		RateLimitWindow:      time.Minute,
		FixRateLimitRequests: 600,
	}
}

// Middleware builds the Chi middleware used by the router.
type Middleware struct {
	config *MiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewMiddleware creates the middleware factory.
func NewMiddleware(config *MiddlewareConfig) *Middleware {
	if config == nil {
		config = DefaultMiddlewareConfig()
	}
	if len(config.CORSAllowedMethods) == 0 {
		config.CORSAllowedMethods = DefaultMiddlewareConfig().CORSAllowedMethods
	}
	if len(config.CORSAllowedHeaders) == 0 {
		config.CORSAllowedHeaders = DefaultMiddlewareConfig().CORSAllowedHeaders
	}
	if config.RateLimitWindow <= 0 {
		config.RateLimitWindow = time.Minute
	}

	return &Middleware{
		config: config,
		cors: cors.Handler(cors.Options{
			AllowedOrigins:   config.CORSAllowedOrigins,
			AllowedMethods:   config.CORSAllowedMethods,
			AllowedHeaders:   config.CORSAllowedHeaders,
			AllowCredentials: false,
			MaxAge:           config.CORSMaxAge,
		}),
	}
}

// CORS returns the go-chi/cors handler.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

func noop(next http.Handler) http.Handler { return next }

// RateLimit limits requests per client IP.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled || m.config.RateLimitRequests <= 0 {
		return noop
	}
	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimited),
	)
}

// RateLimitFixes limits fix ingestion per device, independent of client IP.
func (m *Middleware) RateLimitFixes() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled || m.config.FixRateLimitRequests <= 0 {
		return noop
	}
	return httprate.Limit(
		m.config.FixRateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return "device:" + chi.URLParam(r, "deviceID"), nil
		}),
		httprate.WithLimitHandler(rateLimited),
	)
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests", nil)
}

// CheckOrigin admits WebSocket origins. Devices are not browsers and usually
// send no Origin, which is always admitted.
func (m *Middleware) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range m.config.CORSAllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// RequestIDWithLogging wraps chi's RequestID and puts the request and a new
// correlation ID on the logging context.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		chiRequestID := chimiddleware.RequestID(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(chimiddleware.RequestIDHeader)
			if requestID == "" {
				requestID = logging.GenerateRequestID()
				r.Header.Set(chimiddleware.RequestIDHeader, requestID)
			}
			w.Header().Set(chimiddleware.RequestIDHeader, requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			ctx = logging.ContextWithCorrelationID(ctx, logging.GenerateCorrelationID())
			chiRequestID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Metrics records request counts and latency by route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, pattern, status, time.Since(start))
	})
}

// DeviceID validates the {deviceID} path parameter and puts it on the
// logging context.
func DeviceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "deviceID")
		if !validation.ValidDeviceID(id) {
			respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Invalid device ID", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(logging.ContextWithDeviceID(r.Context(), id)))
	})
}

// RequireDevice enforces a bearer token issued for the path's device. A nil
// manager disables the check.
func RequireDevice(jwt *auth.JWTManager) func(http.Handler) http.Handler {
	if jwt == nil {
		return noop
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := jwt.Authorize(r, chi.URLParam(r, "deviceID"))
			if err != nil {
				respondAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireToken enforces any valid bearer token. A nil manager disables the
// check.
func RequireToken(jwt *auth.JWTManager) func(http.Handler) http.Handler {
	if jwt == nil {
		return noop
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r)
			if err != nil {
				respondAuthError(w, r, err)
				return
			}
			claims, err := jwt.ValidateToken(token)
			if err != nil {
				respondAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}
