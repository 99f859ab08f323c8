// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package metrics defines the Prometheus collectors for ThreatFeed.

All collectors are registered on the default registry through promauto and
exposed by the API at /metrics:

	curl http://localhost:8080/metrics

# Available Metrics

HTTP:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests

Hub:
  - hub_consumers, hub_replay_buffer_envelopes
  - hub_submissions_total{result}
  - hub_envelopes_total{category,severity}
  - hub_deliveries_total, hub_dropped_deliveries_total

Push streams:
  - stream_endpoints_active{transport}
  - stream_frames_sent_total{transport,kind}
  - stream_errors_total{transport,error_type}

Feed sessions (client side, cmd/watch):
  - feed_connection_state{session}
  - feed_state_transitions_total{from_state,to_state}
  - feed_dial_attempts_total{result}, feed_pulls_total{result}
  - feed_envelopes_received_total{source}

Circuit breaker:
  - circuit_breaker_state{name}
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}

NATS ingest:
  - nats_ingest_messages_consumed_total
  - nats_ingest_messages_rejected_total{reason}

Components call the Record* helpers rather than touching collectors
directly, which keeps label values consistent.
*/
package metrics
