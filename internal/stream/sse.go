// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package stream

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SSETransport writes frames to a text/event-stream HTTP response.
type SSETransport struct {
	w            http.ResponseWriter
	rc           *http.ResponseController
	done         <-chan struct{}
	writeTimeout time.Duration
}

// NewSSETransport sends the stream headers and flushes them. It fails with
// ErrStreamingUnsupported when w cannot flush.
func NewSSETransport(w http.ResponseWriter, r *http.Request, writeTimeout time.Duration) (*SSETransport, error) {
	t := &SSETransport{
		w:            w,
		rc:           http.NewResponseController(w),
		done:         r.Context().Done(),
		writeTimeout: writeTimeout,
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := t.rc.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamingUnsupported, err)
	}
	return t, nil
}

// WriteFrame writes and flushes one frame.
func (t *SSETransport) WriteFrame(frame []byte) error {
	if t.writeTimeout > 0 {
		err := t.rc.SetWriteDeadline(time.Now().Add(t.writeTimeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	if _, err := t.w.Write(frame); err != nil {
		return err
	}
	return t.rc.Flush()
}

// Closed is the request context's Done channel.
func (t *SSETransport) Closed() <-chan struct{} { return t.done }

// Name implements Transport.
func (t *SSETransport) Name() string { return "sse" }
