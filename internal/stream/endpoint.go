// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package stream bridges push connections to the broadcast hub.
//
// An Endpoint serves exactly one connection. It attaches to the hub, replays
// the attach-time snapshot oldest first, then forwards deliveries until the
// connection goes away, writing a keepalive frame whenever the stream has
// been idle for KeepaliveInterval. The transport (SSE or WebSocket) only
// has to write frames and report closure.
package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/threatfeed/internal/hub"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
	"github.com/tomtom215/threatfeed/internal/wire"
)

// State is the endpoint lifecycle state.
type State int32

const (
	StateOpening State = iota
	StateStreaming
	StateClosing
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Transport is a push connection that accepts pre-encoded frames.
type Transport interface {
	// WriteFrame writes one complete frame.
	WriteFrame(frame []byte) error
	// Closed is closed when the peer goes away.
	Closed() <-chan struct{}
	// Name is the metrics label, e.g. "sse".
	Name() string
}

// Source is the part of the hub an endpoint needs.
type Source interface {
	Attach() (*hub.Handle, error)
	Detach(*hub.Handle)
	SnapshotSeq() ([]models.EventEnvelope, uint64)
}

// Config controls endpoint timing.
type Config struct {
	// KeepaliveInterval is the idle time before a keepalive frame is written.
	KeepaliveInterval time.Duration

	// WriteTimeout bounds each transport write.
	WriteTimeout time.Duration
}

// DefaultConfig returns the default endpoint timing.
func DefaultConfig() Config {
	return Config{
		KeepaliveInterval: 15 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Endpoint serves one push connection.
type Endpoint struct {
	src       Source
	transport Transport
	cfg       Config

	state      atomic.Int32
	detachOnce sync.Once

	// covered is the newest hub sequence sent in a resync frame.
	covered uint64
}

// NewEndpoint returns an endpoint in the opening state.
func NewEndpoint(src Source, t Transport, cfg Config) *Endpoint {
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = DefaultConfig().KeepaliveInterval
	}
	return &Endpoint{src: src, transport: t, cfg: cfg}
}

// State returns the current lifecycle state.
func (e *Endpoint) State() State {
	return State(e.state.Load())
}

// Serve streams until the transport closes, ctx is done or the hub drops the
// handle. A clean end returns nil; a write failure returns an error wrapping
// ErrTransportClosed. The handle is detached exactly once either way.
func (e *Endpoint) Serve(ctx context.Context) error {
	handle, err := e.src.Attach()
	if err != nil {
		e.state.Store(int32(StateClosing))
		return fmt.Errorf("attach: %w", err)
	}

	e.state.Store(int32(StateStreaming))
	name := e.transport.Name()
	metrics.TrackStreamEndpoint(name, true)
	defer func() {
		e.state.Store(int32(StateClosing))
		e.detach(handle)
		metrics.TrackStreamEndpoint(name, false)
	}()

	log := logging.Ctx(ctx).With().
		Str("component", "stream").
		Str("transport", name).
		Uint64("handle", handle.ID()).
		Logger()
	log.Debug().Int("replay", len(handle.Replay())).Msg("push endpoint streaming")

	for _, env := range models.Reverse(handle.Replay()) {
		if err := e.writeEnvelope(&env); err != nil {
			return e.fail(err)
		}
	}

	keepalive := time.NewTimer(e.cfg.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("push endpoint canceled")
			return nil

		case <-e.transport.Closed():
			log.Debug().Msg("push peer disconnected")
			return nil

		case d, ok := <-handle.C():
			if !ok {
				log.Debug().Msg("hub released handle")
				return nil
			}
			if err := e.forward(handle, d); err != nil {
				return e.fail(err)
			}
			resetTimer(keepalive, e.cfg.KeepaliveInterval)

		case <-keepalive.C:
			if err := e.write(wire.Keepalive(), wire.KindKeepalive); err != nil {
				return e.fail(err)
			}
			keepalive.Reset(e.cfg.KeepaliveInterval)
		}
	}
}

// forward writes d unless a resync frame already covered it. When the hub
// dropped deliveries for this handle it resyncs first.
func (e *Endpoint) forward(handle *hub.Handle, d hub.Delivery) error {
	if handle.TakeResync() {
		return e.resync(handle, d)
	}
	if d.Seq <= e.covered {
		return nil
	}
	return e.writeEnvelope(&d.Envelope)
}

// resync replaces the gap left by dropped deliveries with the hub's current
// window. Queued deliveries older than the window are written first, in
// order, since the resync frame does not carry them. Deliveries inside the
// window are skipped here and on later calls.
func (e *Endpoint) resync(handle *hub.Handle, d hub.Delivery) error {
	snap, newest := e.src.SnapshotSeq()
	oldest := newest + 1 - uint64(len(snap))

	pending := true
	for pending && d.Seq < oldest {
		if err := e.writeEnvelope(&d.Envelope); err != nil {
			return err
		}
		d, pending = tryReceive(handle.C())
	}

	frame, err := wire.EncodeResync(models.Reverse(snap))
	if err != nil {
		return err
	}
	logging.Debug().
		Str("component", "stream").
		Uint64("handle", handle.ID()).
		Uint64("dropped", handle.Dropped()).
		Uint64("seq", newest).
		Int("envelopes", len(snap)).
		Msg("resyncing slow consumer")
	if err := e.write(frame, wire.KindResync); err != nil {
		return err
	}
	e.covered = newest

	if pending && d.Seq > newest {
		return e.writeEnvelope(&d.Envelope)
	}
	return nil
}

// tryReceive takes one queued delivery without blocking. A closed channel
// reports false and stays observable to the caller's select.
func tryReceive(ch <-chan hub.Delivery) (hub.Delivery, bool) {
	select {
	case d, ok := <-ch:
		return d, ok
	default:
		return hub.Delivery{}, false
	}
}

func (e *Endpoint) writeEnvelope(env *models.EventEnvelope) error {
	frame, err := wire.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	return e.write(frame, wire.KindEnvelope)
}

func (e *Endpoint) write(frame []byte, kind wire.Kind) error {
	if err := e.transport.WriteFrame(frame); err != nil {
		return fmt.Errorf("%w: %s write: %w", ErrTransportClosed, e.transport.Name(), err)
	}
	metrics.RecordFrameSent(e.transport.Name(), kind.String())
	return nil
}

func (e *Endpoint) fail(err error) error {
	metrics.RecordStreamError(e.transport.Name(), "write")
	logging.Debug().
		Str("component", "stream").
		Str("transport", e.transport.Name()).
		Err(err).
		Msg("push endpoint write failed")
	return err
}

func (e *Endpoint) detach(handle *hub.Handle) {
	e.detachOnce.Do(func() {
		e.src.Detach(handle)
	})
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
