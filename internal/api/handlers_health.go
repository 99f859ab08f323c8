// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status       string          `json:"status"`
	Version      string          `json:"version"`
	Uptime       float64         `json:"uptime_seconds"`
	Consumers    int             `json:"consumers"`
	Buffered     int             `json:"buffered"`
	Capacity     int             `json:"capacity"`
	Dependencies map[string]bool `json:"dependencies,omitempty"`
}

// Health reports hub state and optional dependencies. A failing dependency
// makes the status degraded but still answers 200; a closed hub answers 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.hub.Stats()

	status := HealthStatus{
		Status:    "healthy",
		Version:   h.cfg.Version,
		Uptime:    time.Since(h.startTime).Seconds(),
		Consumers: stats.Consumers,
		Buffered:  stats.Buffered,
		Capacity:  stats.Capacity,
	}

	if len(h.checks) > 0 {
		status.Dependencies = make(map[string]bool, len(h.checks))
		for _, c := range h.checks {
			ok := c.Healthy()
			status.Dependencies[c.Name()] = ok
			if !ok {
				status.Status = "degraded"
			}
		}
	}

	rw := NewResponseWriter(w, r)
	if stats.Closed {
		status.Status = "closed"
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "event hub is closed", status)
		return
	}
	rw.Success(status)
}

// HealthLive answers 200 while the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]any{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady answers 200 while the hub accepts attachments and submissions.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.hub.Stats().Closed {
		rw.ServiceUnavailable("event hub is closed")
		return
	}
	rw.Success(map[string]any{"ready": true})
}
