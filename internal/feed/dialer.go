// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatfeed/internal/wire"
)

// SessionHeader carries the feed session ID on dial and pull requests.
const SessionHeader = "X-Session-ID"

// Dialer opens a push stream.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// Stream is an open push stream.
type Stream interface {
	// Next blocks for the next frame. Any error ends the stream.
	Next() (wire.Frame, error)
	// Close releases the stream and unblocks a pending Next.
	Close() error
}

// NewStreamClient returns an http.Client suitable for long-lived SSE
// responses: no overall timeout, but a bound on waiting for headers.
func NewStreamClient(headerTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: transport}
}

// DefaultReadTimeout is the idle bound used when a dialer sets none.
const DefaultReadTimeout = 60 * time.Second

// SSEDialer opens the push stream over Server-Sent Events.
type SSEDialer struct {
	URL       string
	Client    *http.Client
	SessionID string

	// ReadTimeout bounds the wait for any frame, keepalives included. The
	// stream is torn down when it stays silent that long.
	ReadTimeout time.Duration
}

// Dial implements Dialer.
func (d *SSEDialer) Dial(ctx context.Context) (Stream, error) {
	client := d.Client
	if client == nil {
		client = NewStreamClient(10 * time.Second)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, d.URL, http.NoBody)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if d.SessionID != "" {
		req.Header.Set(SessionHeader, d.SessionID)
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dial stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: stream returned HTTP %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("%w: stream content type %q", ErrUnexpectedStatus, ct)
	}

	timeout := d.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	s := &sseStream{
		body:        resp.Body,
		dec:         wire.NewDecoder(resp.Body),
		cancel:      cancel,
		readTimeout: timeout,
	}
	s.idle = time.AfterFunc(timeout, func() {
		s.timedOut.Store(true)
		cancel()
	})
	return s, nil
}

type sseStream struct {
	body        io.ReadCloser
	dec         *wire.Decoder
	cancel      context.CancelFunc
	readTimeout time.Duration
	idle        *time.Timer // cancels the request after readTimeout of silence
	timedOut    atomic.Bool
	closeOnce   sync.Once
}

func (s *sseStream) Next() (wire.Frame, error) {
	f, err := s.dec.Next()
	if err != nil {
		if s.timedOut.Load() {
			return wire.Frame{}, fmt.Errorf("%w: no frame within %s", ErrTransportClosed, s.readTimeout)
		}
		return wire.Frame{}, fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	s.idle.Reset(s.readTimeout)
	return f, nil
}

func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.idle.Stop()
		s.cancel()
		err = s.body.Close()
	})
	return err
}

// WebSocketDialer opens the push stream over a WebSocket. Each text message
// is one frame.
type WebSocketDialer struct {
	URL       string
	Dialer    *websocket.Dialer
	SessionID string

	// ReadTimeout bounds the wait for any frame, keepalives included.
	ReadTimeout time.Duration
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context) (Stream, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}

	header := http.Header{}
	if d.SessionID != "" {
		header.Set(SessionHeader, d.SessionID)
	}

	conn, resp, err := dialer.DialContext(ctx, d.URL, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: websocket dial returned HTTP %d: %w", ErrUnexpectedStatus, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	timeout := d.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	return &wsStream{conn: conn, readTimeout: timeout}, nil
}

type wsStream struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	closeOnce   sync.Once
}

func (s *wsStream) Next() (wire.Frame, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		return wire.Frame{}, fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return wire.Frame{}, fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	return wire.ParseFrame(data)
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
