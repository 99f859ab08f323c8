// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Command server runs the ThreatFeed broadcast hub.

Producers submit security events over HTTP (POST /api/v1/events) or, when
NATS_ENABLED=true, by publishing JSON envelopes to NATS_SUBJECT. Dashboard
sessions receive them over Server-Sent Events (/api/v1/events/stream) or
WebSocket (/api/v1/events/ws), and can fall back to polling
/api/v1/events/snapshot.

# Process Layout

	threatfeed
	├── ingest-layer        embedded nats-server, NATS bridge
	├── distribution-layer  broadcast hub
	└── api-layer           HTTP server

# Configuration

See package config. Common settings:

	HTTP_PORT=3860
	HUB_BUFFER_SIZE=10
	STREAM_KEEPALIVE_INTERVAL=15s
	CORS_ORIGINS=https://soc.example.com
	NATS_ENABLED=true NATS_EMBEDDED=true

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server stops
accepting connections, the hub closes every consumer handle so open
streams end, and the NATS bridge closes its subscription.
*/
package main
