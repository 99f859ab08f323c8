// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package hub implements the broadcast hub: one producer-facing Submit, any
number of attached consumers, and a bounded replay buffer that seeds new
consumers.

# Lifecycle

	h := hub.New(hub.DefaultConfig())
	defer h.Close()

	handle, err := h.Attach()
	...
	defer h.Detach(handle)

	for _, env := range models.Reverse(handle.Replay()) {
	    render(env) // oldest first
	}
	for d := range handle.C() {
	    render(d.Envelope)
	}

# Delivery

Submit never blocks on a consumer. Each handle has a bounded channel; when
it is full the oldest queued envelope is discarded, the drop is counted and
logged (rate limited), and the handle's resync flag is raised so the owner
can re-send a Snapshot.

Every delivery carries the hub's submission sequence. SnapshotSeq returns
the sequence of the newest buffered entry, which lets a consumer tell
queued deliveries that a resync already covers from ones that fall
before the buffered window.

# Concurrency

A single mutex guards the handle set and the buffer. Handles are locked only
while the hub lock is held (hub then handle), never the other way round.

# Restart

A hub is not reused after Close. A restarted process constructs a new Hub,
which starts with an empty buffer, so the first Attach gets an empty Replay.
*/
package hub
