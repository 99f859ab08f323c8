// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline means the supervising context timed out.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"

	// ShutdownReasonClosed means Close was called directly.
	ShutdownReasonClosed ShutdownReason = "closed"
)

// Config controls hub sizing.
type Config struct {
	// BufferSize is the replay window length.
	BufferSize int

	// ChannelSize is the per-consumer delivery queue length.
	ChannelSize int

	// StatsInterval is how often RunWithContext refreshes gauges.
	StatsInterval time.Duration
}

// DefaultConfig returns the default hub sizing.
func DefaultConfig() Config {
	return Config{
		BufferSize:    DefaultBufferSize,
		ChannelSize:   DefaultChannelSize,
		StatsInterval: 15 * time.Second,
	}
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Consumers int  `json:"consumers"`
	Buffered  int  `json:"buffered"`
	Capacity  int  `json:"capacity"`
	Closed    bool `json:"closed"`
}

// Hub is the single fan-out point for envelopes. All four operations
// (Attach, Detach, Submit, Snapshot) are safe for concurrent use; one mutex
// serializes changes to the handle set and the replay buffer.
//
// Fan-out runs under that mutex but never blocks: each handle drops its
// oldest queued envelope rather than wait for a slow reader.
type Hub struct {
	cfg Config

	mu      sync.Mutex
	buffer  *ReplayBuffer
	handles []*Handle // ascending ID order
	nextID  uint64
	seq     uint64 // last accepted submission
	closed  bool

	slowLog rate.Sometimes
}

// New creates a running hub with an empty replay buffer.
func New(cfg Config) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.ChannelSize <= 0 {
		cfg.ChannelSize = DefaultChannelSize
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = DefaultConfig().StatsInterval
	}
	return &Hub{
		cfg:     cfg,
		buffer:  NewReplayBuffer(cfg.BufferSize),
		slowLog: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// Attach registers a new consumer. The returned handle's Replay holds the
// buffer as it was at this instant; every later Submit lands on C.
func (h *Hub) Attach() (*Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextID++
	handle := newHandle(h.nextID, h.cfg.ChannelSize, cloneAll(h.buffer.Snapshot()))
	h.handles = append(h.handles, handle)
	metrics.UpdateHubGauges(len(h.handles), h.buffer.Len())

	logging.Debug().
		Str("component", "hub").
		Uint64("handle", handle.id).
		Int("consumers", len(h.handles)).
		Int("replay", len(handle.replay)).
		Msg("consumer attached")

	return handle, nil
}

// Detach removes handle and closes its channel. Detaching a handle that is
// already gone, or nil, is a no-op.
func (h *Hub) Detach(handle *Handle) {
	if handle == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, cur := range h.handles {
		if cur == handle {
			h.handles = append(h.handles[:i], h.handles[i+1:]...)
			break
		}
	}
	if handle.close() {
		metrics.UpdateHubGauges(len(h.handles), h.buffer.Len())
		logging.Debug().
			Str("component", "hub").
			Uint64("handle", handle.id).
			Uint64("dropped", handle.Dropped()).
			Int("consumers", len(h.handles)).
			Msg("consumer detached")
	}
}

// Submit appends env to the replay buffer and hands it to every attached
// consumer. It returns the number of consumers it was delivered to.
func (h *Hub) Submit(env models.EventEnvelope) (int, error) {
	if err := validate(&env); err != nil {
		metrics.RecordSubmission("invalid", "", "", 0)
		return 0, err
	}
	env = env.Clone()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		metrics.RecordSubmission("closed", "", "", 0)
		return 0, ErrHubClosed
	}
	if h.buffer.Contains(env.ID) {
		metrics.RecordSubmission("duplicate", "", "", 0)
		return 0, fmt.Errorf("%w: id %q already buffered", ErrDuplicateEnvelope, env.ID)
	}

	h.seq++
	h.buffer.Append(env)

	d := Delivery{Seq: h.seq, Envelope: env}
	delivered := 0
	for _, handle := range h.handles {
		ok, dropped := handle.deliver(d)
		if ok {
			delivered++
		}
		if dropped {
			h.reportSlow(handle)
		}
	}

	metrics.RecordSubmission("accepted", string(env.Category), string(env.Severity), delivered)
	return delivered, nil
}

// Snapshot returns a copy of the replay buffer, newest first.
func (h *Hub) Snapshot() []models.EventEnvelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneAll(h.buffer.Snapshot())
}

// SnapshotSeq returns the replay buffer together with the sequence of its
// newest entry. Entries carry consecutive sequences, so the oldest one is
// seq-len(envs)+1. Unlike Snapshot the envelopes are not cloned; their
// Attributes maps belong to the buffer and must not be modified.
func (h *Hub) SnapshotSeq() (envs []models.EventEnvelope, seq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffer.Snapshot(), h.seq
}

func cloneAll(envs []models.EventEnvelope) []models.EventEnvelope {
	for i := range envs {
		envs[i] = envs[i].Clone()
	}
	return envs
}

// HandleCount returns the number of attached consumers.
func (h *Hub) HandleCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handles)
}

// Stats returns current sizes.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Consumers: len(h.handles),
		Buffered:  h.buffer.Len(),
		Capacity:  h.buffer.Cap(),
		Closed:    h.closed,
	}
}

// Close drops every handle and rejects further Attach and Submit calls.
// It returns the number of handles that were closed.
func (h *Hub) Close() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}
	h.closed = true

	n := 0
	for _, handle := range h.handles {
		if handle.close() {
			n++
		}
	}
	h.handles = nil
	metrics.UpdateHubGauges(0, h.buffer.Len())
	return n
}

// RunWithContext keeps the hub's gauges current until ctx is done, then
// closes the hub. It is meant to run under a suture supervisor.
func (h *Hub) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			consumers := h.Close()
			logging.Info().
				Str("component", "hub").
				Str("reason", string(shutdownReason(ctx))).
				Int("consumers_closed", consumers).
				Msg("broadcast hub stopped")
			return ctx.Err()

		case <-ticker.C:
			st := h.Stats()
			metrics.UpdateHubGauges(st.Consumers, st.Buffered)
		}
	}
}

// reportSlow must be called with h.mu held.
func (h *Hub) reportSlow(handle *Handle) {
	metrics.RecordDroppedDelivery()
	h.slowLog.Do(func() {
		logging.Warn().
			Str("component", "hub").
			Err(ErrConsumerSlow).
			Uint64("handle", handle.id).
			Uint64("dropped_total", handle.Dropped()).
			Msg("consumer channel full, dropped oldest undelivered envelope")
	})
}

func validate(env *models.EventEnvelope) error {
	if env.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEnvelope)
	}
	if env.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEnvelope)
	}
	return nil
}

func shutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	case context.Canceled:
		return ShutdownReasonContextCanceled
	default:
		return ShutdownReasonClosed
	}
}
