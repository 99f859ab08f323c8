// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package feed is the client side of the event stream: a connection
supervisor that keeps a dashboard session supplied with envelopes.

The supervisor dials the push stream (SSE or WebSocket), hands every
envelope to a Consumer and reports connection state changes. Failed dials
are retried with exponential backoff. After Config.MaxAttempts consecutive
failures the session enters the degraded state: it polls the snapshot
endpoint every PollInterval through a circuit breaker and keeps retrying
push in the background. The first successful dial returns it to connected.

	sup := feed.New("", &feed.SSEDialer{URL: streamURL},
	    feed.NewHTTPPuller(snapshotURL, nil, "", feed.DefaultBreakerConfig()),
	    consumer, feed.DefaultConfig())
	err := sup.Run(ctx)

Consumers may see an envelope more than once: replay after a reconnect
overlaps what was already received, and pulled snapshots repeat until the
buffer moves on. Deduplicate by envelope ID.
*/
package feed
