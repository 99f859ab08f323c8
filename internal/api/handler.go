// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatfeed/internal/hub"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/stream"
)

// HealthChecker reports the state of an optional dependency.
type HealthChecker interface {
	Name() string
	Healthy() bool
}

// HandlerConfig configures request handling.
type HandlerConfig struct {
	Stream         stream.Config
	MaxBodyBytes   int64
	AllowedOrigins []string
	Version        string
}

// Handler serves the hub over HTTP.
type Handler struct {
	hub       *hub.Hub
	cfg       HandlerConfig
	checks    []HealthChecker
	startTime time.Time
	upgrader  websocket.Upgrader
}

// NewHandler returns a handler for h.
func NewHandler(h *hub.Hub, cfg HandlerConfig, checks ...HealthChecker) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	handler := &Handler{
		hub:       h,
		cfg:       cfg,
		checks:    checks,
		startTime: time.Now(),
	}
	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin:      handler.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return handler
}

// checkWebSocketOrigin allows browser origins from the CORS list. Feed
// clients outside a browser send no Origin and are allowed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin) {
		return true
	}

	logging.Ctx(r.Context()).Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips control characters and caps length.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	out := make([]rune, 0, min(len(s), maxLen))
	for _, r := range s {
		if len(out) == maxLen {
			break
		}
		if r < 0x20 || r == 0x7f {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out)
}
