// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package ingest feeds the broadcast hub from NATS.

Backend producers publish JSON event envelopes to a subject. NATSBridge
consumes that subject through a Watermill NATS subscriber, validates each
envelope and hands it to the hub's Submit. Malformed, invalid and duplicate
messages are acknowledged and counted, never redelivered: the hub keeps no
durable state, so redelivery would not help.

EmbeddedServer runs an in-process nats-server for single-binary
deployments and tests. Publisher is the producer-side helper.

	srv, _ := ingest.NewEmbeddedServer(ingest.DefaultServerConfig())
	bridge, _ := ingest.NewNATSBridge(ingest.BridgeConfig{URL: srv.ClientURL(), Subject: "security.events"}, h)
	go bridge.Serve(ctx)
*/
package ingest
