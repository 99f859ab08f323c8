// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Hub Metrics
	HubConsumers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_consumers",
			Help: "Current number of attached consumer handles",
		},
	)

	HubBufferedEnvelopes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_replay_buffer_envelopes",
			Help: "Current number of envelopes held in the replay buffer",
		},
	)

	HubSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_submissions_total",
			Help: "Total number of envelope submissions by result",
		},
		[]string{"result"}, // accepted, invalid, duplicate, closed
	)

	HubEnvelopesBySeverity = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_envelopes_total",
			Help: "Total number of accepted envelopes by category and severity",
		},
		[]string{"category", "severity"},
	)

	HubDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_deliveries_total",
			Help: "Total number of envelopes handed to consumer channels",
		},
	)

	HubDroppedDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_dropped_deliveries_total",
			Help: "Total number of undelivered envelopes dropped from full consumer channels",
		},
	)

	// Push Stream Metrics
	StreamEndpointsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stream_endpoints_active",
			Help: "Current number of streaming push endpoints",
		},
		[]string{"transport"}, // sse, websocket
	)

	StreamFramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_frames_sent_total",
			Help: "Total number of frames written to push transports",
		},
		[]string{"transport", "kind"}, // kind: envelope, resync, keepalive
	)

	StreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_errors_total",
			Help: "Total number of push endpoint errors",
		},
		[]string{"transport", "error_type"},
	)

	// Feed (client session) Metrics
	FeedConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feed_connection_state",
			Help: "Feed connection state (0=disconnected, 1=connecting, 2=connected, 3=degraded)",
		},
		[]string{"session"},
	)

	FeedStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_state_transitions_total",
			Help: "Total number of feed connection state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	FeedDialAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_dial_attempts_total",
			Help: "Total number of push transport dial attempts",
		},
		[]string{"result"}, // success, failure
	)

	FeedPulls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_pulls_total",
			Help: "Total number of pull fallback requests",
		},
		[]string{"result"}, // success, failure
	)

	FeedEnvelopesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_envelopes_received_total",
			Help: "Total number of envelopes handed to the consumer",
		},
		[]string{"source"}, // push, resync, pull
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// NATS Ingest Metrics
	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_ingest_messages_consumed_total",
			Help: "Total number of messages received by the NATS ingest bridge",
		},
	)

	NATSMessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_ingest_messages_rejected_total",
			Help: "Total number of NATS ingest messages that were not submitted",
		},
		[]string{"reason"}, // decode, invalid, duplicate, closed
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSubmission records the outcome of one Hub.Submit call.
func RecordSubmission(result, category, severity string, delivered int) {
	HubSubmissions.WithLabelValues(result).Inc()
	if result != "accepted" {
		return
	}
	HubEnvelopesBySeverity.WithLabelValues(category, severity).Inc()
	HubDeliveries.Add(float64(delivered))
}

// RecordDroppedDelivery records one drop-oldest on a full consumer channel.
func RecordDroppedDelivery() {
	HubDroppedDeliveries.Inc()
}

// UpdateHubGauges sets the hub size gauges.
func UpdateHubGauges(consumers, buffered int) {
	HubConsumers.Set(float64(consumers))
	HubBufferedEnvelopes.Set(float64(buffered))
}

// TrackStreamEndpoint tracks streaming endpoints per transport.
func TrackStreamEndpoint(transport string, inc bool) {
	if inc {
		StreamEndpointsActive.WithLabelValues(transport).Inc()
	} else {
		StreamEndpointsActive.WithLabelValues(transport).Dec()
	}
}

// RecordFrameSent records one frame written to a push transport.
func RecordFrameSent(transport, kind string) {
	StreamFramesSent.WithLabelValues(transport, kind).Inc()
}

// RecordStreamError records a push endpoint failure.
func RecordStreamError(transport, errorType string) {
	StreamErrors.WithLabelValues(transport, errorType).Inc()
}

// RecordFeedState records a connection state transition for a session.
func RecordFeedState(session, from, to string, value int) {
	FeedConnectionState.WithLabelValues(session).Set(float64(value))
	FeedStateTransitions.WithLabelValues(from, to).Inc()
}

// ForgetFeedSession removes the per-session gauge once a session ends.
func ForgetFeedSession(session string) {
	FeedConnectionState.DeleteLabelValues(session)
}

// RecordFeedDial records a push dial attempt.
func RecordFeedDial(success bool) {
	FeedDialAttempts.WithLabelValues(resultLabel(success)).Inc()
}

// RecordFeedPull records a pull fallback request.
func RecordFeedPull(success bool) {
	FeedPulls.WithLabelValues(resultLabel(success)).Inc()
}

// RecordFeedEnvelopes records envelopes handed to the consumer.
func RecordFeedEnvelopes(source string, n int) {
	FeedEnvelopesReceived.WithLabelValues(source).Add(float64(n))
}

// RecordCircuitBreakerState records a breaker transition.
func RecordCircuitBreakerState(name, from, to string, value int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(value))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordCircuitBreakerRequest records a call routed through a breaker.
func RecordCircuitBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordNATSConsumed records one message received by the ingest bridge.
func RecordNATSConsumed() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSRejected records an ingest message that was not submitted.
func RecordNATSRejected(reason string) {
	NATSMessagesRejected.WithLabelValues(reason).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
