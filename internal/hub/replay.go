// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package hub

import "github.com/tomtom215/threatfeed/internal/models"

// DefaultBufferSize is the replay window used when none is configured.
const DefaultBufferSize = 10

// ReplayBuffer is a fixed-capacity ring of the most recent envelopes.
// It is not safe for concurrent use; the Hub serializes access.
type ReplayBuffer struct {
	ring  []models.EventEnvelope
	next  int // slot the next Append writes
	count int
	ids   map[string]struct{}
}

// NewReplayBuffer creates a buffer holding at most capacity envelopes.
// A non-positive capacity falls back to DefaultBufferSize.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &ReplayBuffer{
		ring: make([]models.EventEnvelope, capacity),
		ids:  make(map[string]struct{}, capacity),
	}
}

// Append inserts env as the newest entry, evicting the oldest when full.
func (b *ReplayBuffer) Append(env models.EventEnvelope) {
	if b.count == len(b.ring) {
		delete(b.ids, b.ring[b.next].ID)
	} else {
		b.count++
	}
	b.ring[b.next] = env
	b.ids[env.ID] = struct{}{}
	b.next = (b.next + 1) % len(b.ring)
}

// Contains reports whether an envelope with id is currently buffered.
func (b *ReplayBuffer) Contains(id string) bool {
	_, ok := b.ids[id]
	return ok
}

// Snapshot returns the buffered envelopes in a new slice, newest first.
// Attributes maps are not copied.
func (b *ReplayBuffer) Snapshot() []models.EventEnvelope {
	out := make([]models.EventEnvelope, b.count)
	idx := b.next
	for i := range b.count {
		idx = (idx - 1 + len(b.ring)) % len(b.ring)
		out[i] = b.ring[idx]
	}
	return out
}

// Len returns the number of buffered envelopes.
func (b *ReplayBuffer) Len() int { return b.count }

// Cap returns the buffer capacity.
func (b *ReplayBuffer) Cap() int { return len(b.ring) }
