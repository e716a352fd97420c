// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/geointegrity/internal/auth"
	"github.com/tomtom215/geointegrity/internal/device"
	"github.com/tomtom215/geointegrity/internal/logging"
	"github.com/tomtom215/geointegrity/internal/validation"
)

// Error codes.
const (
	ErrCodeNoDetector      = "NO_DETECTOR"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeDeviceExists    = "DEVICE_EXISTS"
	ErrCodeDeviceLimit     = "DEVICE_LIMIT"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeArchiveDisabled = "ARCHIVE_DISABLED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError is a machine-readable error.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// sanitizeLogValue escapes control characters to prevent log injection.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON writes response with status.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *APIResponse) {
	response.Metadata.Timestamp = time.Now().UTC()
	response.Metadata.RequestID = logging.RequestIDFromContext(r.Context())

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func respondOK(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, r, status, &APIResponse{Status: "success", Data: data})
}

// respondError writes an error envelope. err is logged, never returned.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		event := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			event = logging.Ctx(r.Context()).Error()
		}
		event.Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}
	respondJSON(w, r, status, &APIResponse{
		Status: "error",
		Error:  &APIError{Code: code, Message: message},
	})
}

func respondValidation(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondJSON(w, r, http.StatusBadRequest, &APIResponse{
		Status: "error",
		Error:  &APIError{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details},
	})
}

// respondRegistryError maps registry errors onto HTTP errors.
func respondRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNoDetector, "Detector is not initialized", nil)
	case errors.Is(err, device.ErrDeviceExists):
		respondError(w, r, http.StatusConflict, ErrCodeDeviceExists, "Device is already attached", nil)
	case errors.Is(err, device.ErrTooManyDevices):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeDeviceLimit, "Device limit reached", err)
	case errors.Is(err, device.ErrInvalidDeviceID):
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Invalid device ID", nil)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Internal error", err)
	}
}

// respondAuthError maps token errors onto 401 and 403.
// The rejected credential is only ever logged masked.
func respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Warn().
		Str("token", logging.SanitizeToken(r.Header.Get("Authorization"))).
		Str("error", sanitizeLogValue(err.Error())).
		Msg("bearer token rejected")

	if errors.Is(err, auth.ErrDeviceMismatch) {
		respondError(w, r, http.StatusForbidden, ErrCodeForbidden, "Token is not valid for this device", nil)
		return
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="geointegrity"`)
	respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Valid bearer token required", nil)
}
