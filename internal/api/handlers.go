// Geointegrity - Location Integrity Scoring for GPS Spoofing Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geointegrity

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/geointegrity/internal/detection"
	"github.com/tomtom215/geointegrity/internal/device"
	"github.com/tomtom215/geointegrity/internal/logging"
	"github.com/tomtom215/geointegrity/internal/validation"
)

// Result listing bounds.
const (
	defaultResultsLimit = 50
	maxResultsLimit     = 1000
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string  `json:"status"`
	Devices          int     `json:"devices"`
	WebSocketClients int     `json:"websocket_clients"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// MonitoringResponse reports the session state after a start or stop.
type MonitoringResponse struct {
	DeviceID   string         `json:"deviceId"`
	Monitoring bool           `json:"monitoring"`
	Policy     map[string]any `json:"policy,omitempty"`
}

// Health reports liveness.
func (rt *Router) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Devices:       rt.registry.Count(),
		UptimeSeconds: time.Since(rt.started).Seconds(),
	}
	if rt.hub != nil {
		resp.WebSocketClients = rt.hub.ClientCount()
	}
	respondOK(w, r, http.StatusOK, resp)
}

// ListDevices returns the status of every attached device.
func (rt *Router) ListDevices(w http.ResponseWriter, r *http.Request) {
	devices := rt.registry.List()
	statuses := make([]device.Status, 0, len(devices))
	for _, dev := range devices {
		st, err := rt.registry.Status(dev.ID)
		if err != nil {
			// Detached between List and Status.
			continue
		}
		statuses = append(statuses, st)
	}
	respondOK(w, r, http.StatusOK, statuses)
}

// AttachDevice creates an engine for the device.
func (rt *Router) AttachDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceID")
	if _, err := rt.registry.Attach(id); err != nil {
		respondRegistryError(w, r, err)
		return
	}
	st, err := rt.registry.Status(id)
	if err != nil {
		respondRegistryError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusCreated, st)
}

// DeviceStatus returns the device's monitoring state and policy.
func (rt *Router) DeviceStatus(w http.ResponseWriter, r *http.Request) {
	st, err := rt.registry.Status(chi.URLParam(r, "deviceID"))
	if err != nil {
		respondRegistryError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, st)
}

// DetachDevice stops and removes the device.
func (rt *Router) DetachDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceID")
	if err := rt.registry.Detach(id); err != nil {
		respondRegistryError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, MonitoringResponse{DeviceID: id})
}

// StartMonitoring starts a session with the body's policy options. Start
// failures are delivered as results on the device's streams.
func (rt *Router) StartMonitoring(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceID")
	options, err := decodeOptions(w, r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Policy options must be a JSON object", err)
		return
	}

	policy, err := rt.registry.Start(id, options)
	if err != nil {
		respondRegistryError(w, r, err)
		return
	}
	monitoring, err := rt.registry.Monitoring(id)
	if err != nil {
		respondRegistryError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("mode", string(policy.Mode)).
		Bool("monitoring", monitoring).
		Msg("monitoring start requested")
	respondOK(w, r, http.StatusAccepted, MonitoringResponse{
		DeviceID:   id,
		Monitoring: monitoring,
		Policy:     policy.Options(),
	})
}

// StopMonitoring ends the session. Stopping an idle device succeeds.
func (rt *Router) StopMonitoring(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceID")
	if err := rt.registry.Stop(id); err != nil {
		respondRegistryError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, MonitoringResponse{DeviceID: id})
}

// DetectOnce scores the best known fix.
func (rt *Router) DetectOnce(w http.ResponseWriter, r *http.Request) {
	options, err := decodeOptions(w, r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Policy options must be a JSON object", err)
		return
	}
	result, err := rt.registry.DetectOnce(chi.URLParam(r, "deviceID"), options)
	if err != nil {
		respondRegistryError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, result)
}

// ReportFix ingests a location fix.
func (rt *Router) ReportFix(w http.ResponseWriter, r *http.Request) {
	var req FixRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Body must be a JSON location fix", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	forwarded, err := rt.registry.ReportFix(chi.URLParam(r, "deviceID"), req.Fix(time.Now()))
	if err != nil {
		respondRegistryError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusAccepted, map[string]bool{"forwarded": forwarded})
}

// ReportFailure ingests a fix subsystem failure.
func (rt *Router) ReportFailure(w http.ResponseWriter, r *http.Request) {
	var req FailureRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Body must be a JSON failure report", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	kind, _ := detection.ParseFailureKind(req.Kind)
	if err := rt.registry.ReportFailure(chi.URLParam(r, "deviceID"), kind); err != nil {
		respondRegistryError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusAccepted, map[string]string{"kind": kind.String()})
}

// SetPermission records the device's location permission.
func (rt *Router) SetPermission(w http.ResponseWriter, r *http.Request) {
	var req PermissionRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidation, "Body must be a JSON permission state", err)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidation(w, r, verr)
		return
	}

	if err := rt.registry.SetPermission(chi.URLParam(r, "deviceID"), *req.Granted); err != nil {
		respondRegistryError(w, r, err)
		return
	}
	respondOK(w, r, http.StatusOK, map[string]bool{"granted": *req.Granted})
}

// Results lists archived results, newest first.
func (rt *Router) Results(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceID")
	if _, err := rt.registry.Get(id); err != nil {
		respondRegistryError(w, r, err)
		return
	}
	if rt.archive == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeArchiveDisabled, "Result archive is disabled", nil)
		return
	}

	limit := getIntParam(r, "limit", defaultResultsLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxResultsLimit {
		limit = maxResultsLimit
	}

	results, err := rt.archive.Recent(id, limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternal, "Failed to read archived results", err)
		return
	}
	respondOK(w, r, http.StatusOK, results)
}

// Events upgrades to a WebSocket streaming the device's results.
func (rt *Router) Events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceID")
	if _, err := rt.registry.Get(id); err != nil {
		respondRegistryError(w, r, err)
		return
	}
	if rt.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeInternal, "Event stream is disabled", nil)
		return
	}
	if err := rt.hub.ServeDevice(w, r, &rt.upgrader, id, rt.wsOpts); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("event stream not opened")
	}
}
