// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatfeed/internal/hub"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
	"github.com/tomtom215/threatfeed/internal/stream"
	"github.com/tomtom215/threatfeed/internal/validation"
)

// IngestResult is the data of a successful ingest.
type IngestResult struct {
	ID        string `json:"id"`
	Broadcast bool   `json:"broadcast"`
	Consumers int    `json:"consumers"`
}

// IngestEvent accepts one envelope and submits it to the hub.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
			return
		}
		rw.BadRequest("failed to read request body")
		return
	}

	var env models.EventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		rw.BadRequest("request body is not a valid event envelope")
		return
	}

	env.Normalize()
	if verr := validation.ValidateStruct(&env); verr != nil {
		metrics.RecordSubmission("invalid", string(env.Category), string(env.Severity), 0)
		rw.ValidationError(verr.Error(), verr.Errors())
		return
	}

	delivered, err := h.hub.Submit(env)
	switch {
	case err == nil:
	case errors.Is(err, hub.ErrInvalidEnvelope):
		rw.Error(http.StatusBadRequest, ErrCodeInvalidEnvelope, err.Error())
		return
	case errors.Is(err, hub.ErrDuplicateEnvelope):
		rw.Conflict(ErrCodeDuplicateEnvelope, err.Error())
		return
	case errors.Is(err, hub.ErrHubClosed):
		rw.ServiceUnavailable("event hub is shutting down")
		return
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("event_id", env.ID).Msg("submit failed")
		rw.InternalError("submit failed")
		return
	}

	logging.Ctx(r.Context()).Debug().
		Str("event_id", env.ID).
		Str("severity", string(env.Severity)).
		Int("consumers", delivered).
		Msg("event ingested")

	rw.Created(IngestResult{
		ID:        env.ID,
		Broadcast: delivered > 0,
		Consumers: delivered,
	})
}

// Snapshot returns the replay window, newest first.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	envs := h.hub.Snapshot()
	if envs == nil {
		envs = []models.EventEnvelope{}
	}
	count := len(envs)
	capacity := h.hub.Stats().Capacity

	NewResponseWriter(w, r).SuccessWithMeta(envs, &APIMeta{Count: &count, Capacity: &capacity})
}

// StreamSSE serves the push stream as Server-Sent Events until the client
// goes away or the hub closes.
func (h *Handler) StreamSSE(w http.ResponseWriter, r *http.Request) {
	log := logging.Ctx(r.Context())

	tr, err := stream.NewSSETransport(w, r, h.cfg.Stream.WriteTimeout)
	if err != nil {
		log.Error().Err(err).Msg("sse stream unavailable")
		WriteError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "streaming unsupported")
		return
	}

	h.serveEndpoint(r, tr)
}

// StreamWebSocket serves the push stream over a WebSocket connection.
func (h *Handler) StreamWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	tr := stream.NewWebSocketTransport(conn, h.cfg.Stream.WriteTimeout)
	defer tr.Close()

	h.serveEndpoint(r, tr)
}

func (h *Handler) serveEndpoint(r *http.Request, tr stream.Transport) {
	log := logging.Ctx(r.Context())
	log.Info().Str("transport", tr.Name()).Msg("push stream opened")

	err := stream.NewEndpoint(h.hub, tr, h.cfg.Stream).Serve(r.Context())

	ev := log.Info()
	if err != nil && !errors.Is(err, stream.ErrTransportClosed) {
		ev = log.Warn().Err(err)
	}
	ev.Str("transport", tr.Name()).Msg("push stream closed")
}
