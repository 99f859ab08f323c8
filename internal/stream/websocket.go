// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatfeed/internal/logging"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// WebSocketTransport sends each frame as one text message. A background
// read pump processes control frames and detects the peer going away.
type WebSocketTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration

	mu       sync.Mutex
	lastPing time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport takes ownership of conn and starts its read pump.
func NewWebSocketTransport(conn *websocket.Conn, writeWait time.Duration) *WebSocketTransport {
	if writeWait <= 0 {
		writeWait = DefaultConfig().WriteTimeout
	}
	t := &WebSocketTransport{
		conn:      conn,
		writeWait: writeWait,
		lastPing:  time.Now(),
		done:      make(chan struct{}),
	}
	go t.readPump()
	return t
}

// readPump discards client messages; the push feed is one-way.
func (t *WebSocketTransport) readPump() {
	defer t.markClosed()

	t.conn.SetReadLimit(maxMessageSize)
	if err := t.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	t.conn.SetPongHandler(func(string) error {
		return t.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Debug().Str("component", "stream").Err(err).Msg("unexpected websocket close")
			}
			return
		}
	}
}

// WriteFrame writes frame as a text message, followed by a ping when one is due.
func (t *WebSocketTransport) WriteFrame(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeWait)); err != nil {
		return err
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}

	if time.Since(t.lastPing) >= pingPeriod/2 {
		if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			return err
		}
		t.lastPing = time.Now()
	}
	return nil
}

// Closed is closed once the read pump exits.
func (t *WebSocketTransport) Closed() <-chan struct{} { return t.done }

// Name implements Transport.
func (t *WebSocketTransport) Name() string { return "websocket" }

// Close sends a normal close frame and closes the connection.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	werr := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.writeWait))
	t.mu.Unlock()

	cerr := t.conn.Close()
	if errors.Is(werr, websocket.ErrCloseSent) {
		werr = nil
	}
	return errors.Join(werr, cerr)
}

func (t *WebSocketTransport) markClosed() {
	t.closeOnce.Do(func() { close(t.done) })
}
