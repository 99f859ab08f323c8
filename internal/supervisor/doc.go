// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package supervisor runs the long-lived parts of a process under suture v4.

# Tree

	root ("threatfeed")
	├── ingest-layer
	│   ├── nats-embedded-server (NATS_EMBEDDED=true)
	│   └── nats-ingest-bridge   (NATS_ENABLED=true)
	├── distribution-layer
	│   └── broadcast-hub        (cmd/watch: feed-session-<id>)
	└── api-layer
	    └── http-server

Each layer has its own failure counter, so a flapping broker connection
backs off inside ingest-layer while the hub keeps serving streams.

# Logging

Supervisor events go through sutureslog into a *slog.Logger. The process
passes logging.NewSlogLogger(), which forwards to the zerolog global, so
restarts and backoff show up in the same JSON stream as everything else.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDistributionService(services.NewHubService(h))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	<-errCh
*/
package supervisor
