// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package config provides layered configuration for the hub server and the
watch client.

# Configuration Sources

Sources are applied in order, later layers overriding earlier ones:

 1. Built-in defaults (koanf structs provider)
 2. A YAML file from CONFIG_PATH, or config.yaml / config.yml in the
    working directory, or /etc/threatfeed/config.yaml
 3. Environment variables listed in the mapping table

Only mapped environment variables are read.

# Environment Variables

HTTP Server:
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT: Listen port (default: 3860)
  - HTTP_SHUTDOWN_TIMEOUT: Graceful shutdown bound (default: 10s)

Hub and push streams:
  - HUB_BUFFER_SIZE: Replay window length (default: 10)
  - HUB_CHANNEL_SIZE: Per-consumer queue length (default: 64)
  - STREAM_KEEPALIVE_INTERVAL: Idle keepalive period, at most 30s (default: 15s)
  - STREAM_WRITE_TIMEOUT: Per-frame write bound (default: 10s)

Ingest:
  - INGEST_MAX_BODY_BYTES: POST body limit (default: 65536)
  - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW: Per-IP ingest limit (default: 600/1m)
  - DISABLE_RATE_LIMIT: true disables the ingest limit
  - CORS_ORIGINS: Comma-separated allowed origins (default: *)

NATS: see NATSConfig.

Watch client:
  - FEED_SERVER_URL: Hub base URL (default: http://127.0.0.1:3860)
  - FEED_TRANSPORT: sse or websocket (default: sse)
  - FEED_MAX_ATTEMPTS: Push retries before degrading to pull (default: 3)
  - FEED_POLL_INTERVAL: Pull period while degraded (default: 5s)

# Usage Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	addr := cfg.Server.Address()
*/
package config
