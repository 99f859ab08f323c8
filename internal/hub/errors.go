// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package hub

import "errors"

var (
	// ErrInvalidEnvelope is returned by Submit when the envelope lacks an ID
	// or timestamp. Producers must not retry the same payload unmodified.
	ErrInvalidEnvelope = errors.New("invalid envelope")

	// ErrDuplicateEnvelope is returned by Submit when an envelope with the
	// same ID is still held in the replay buffer.
	ErrDuplicateEnvelope = errors.New("duplicate envelope")

	// ErrHubClosed is returned by Attach and Submit after Close.
	ErrHubClosed = errors.New("hub closed")

	// ErrConsumerSlow marks a dropped delivery on a full consumer channel.
	// It is logged, never returned to producers.
	ErrConsumerSlow = errors.New("consumer slow")
)
