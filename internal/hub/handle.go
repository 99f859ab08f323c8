// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/threatfeed/internal/models"
)

// DefaultChannelSize is the per-consumer delivery queue length.
const DefaultChannelSize = 64

// Delivery is one envelope handed to a consumer. Seq is the hub's
// submission sequence: it rises by one per accepted Submit, so a gap in
// Seq on one handle means envelopes were dropped for it. Envelope shares
// its Attributes map with the buffer and the other consumers and must be
// treated as read-only.
type Delivery struct {
	Seq      uint64
	Envelope models.EventEnvelope
}

// Handle is one attached consumer. Its channel is owned by whoever called
// Attach and is closed exactly once, by Detach or by Hub.Close.
type Handle struct {
	id         uint64
	attachedAt time.Time
	replay     []models.EventEnvelope

	mu     sync.Mutex // serializes deliver and close
	ch     chan Delivery
	closed bool

	dropped atomic.Uint64
	resync  atomic.Bool
}

func newHandle(id uint64, size int, replay []models.EventEnvelope) *Handle {
	return &Handle{
		id:         id,
		attachedAt: time.Now(),
		replay:     replay,
		ch:         make(chan Delivery, size),
	}
}

// ID returns the hub-assigned handle ID.
func (h *Handle) ID() uint64 { return h.id }

// AttachedAt returns when the handle was registered.
func (h *Handle) AttachedAt() time.Time { return h.attachedAt }

// C returns the delivery channel. It is closed when the handle is removed.
func (h *Handle) C() <-chan Delivery { return h.ch }

// Replay returns the buffer contents captured at attach time, newest first.
// Together with C it covers every envelope without gap or duplicate.
func (h *Handle) Replay() []models.EventEnvelope { return h.replay }

// Dropped returns how many envelopes were discarded because the consumer
// fell behind.
func (h *Handle) Dropped() uint64 { return h.dropped.Load() }

// TakeResync reports whether a delivery was dropped since the last call,
// and clears the flag.
func (h *Handle) TakeResync() bool { return h.resync.Swap(false) }

// deliver enqueues env without blocking. When the channel is full the oldest
// queued envelope is discarded first. It reports whether a drop happened.
func (h *Handle) deliver(d Delivery) (ok, dropped bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false, false
	}

	for {
		select {
		case h.ch <- d:
			return true, dropped
		default:
		}

		// Full: drop one from the head. The consumer may race us and drain
		// it first, in which case the retry simply succeeds.
		select {
		case <-h.ch:
			if !dropped {
				dropped = true
				h.dropped.Add(1)
				h.resync.Store(true)
			}
		default:
		}
	}
}

// close closes the channel once. It reports whether this call closed it.
func (h *Handle) close() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true
	close(h.ch)
	return true
}
