// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// histogramCount reads the sample count of one histogram series.
func histogramCount(t *testing.T, obs prometheus.Observer) uint64 {
	t.Helper()
	var m io_prometheus_client.Metric
	if err := obs.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestRecordSubmission(t *testing.T) {
	tests := []struct {
		name       string
		result     string
		delivered  int
		wantEnvInc float64
		wantDelInc float64
	}{
		{name: "accepted with consumers", result: "accepted", delivered: 3, wantEnvInc: 1, wantDelInc: 3},
		{name: "accepted without consumers", result: "accepted", delivered: 0, wantEnvInc: 1, wantDelInc: 0},
		{name: "invalid", result: "invalid", delivered: 0, wantEnvInc: 0, wantDelInc: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			beforeSub := testutil.ToFloat64(HubSubmissions.WithLabelValues(tt.result))
			beforeEnv := testutil.ToFloat64(HubEnvelopesBySeverity.WithLabelValues("network", "high"))
			beforeDel := testutil.ToFloat64(HubDeliveries)

			RecordSubmission(tt.result, "network", "high", tt.delivered)

			if got := testutil.ToFloat64(HubSubmissions.WithLabelValues(tt.result)) - beforeSub; got != 1 {
				t.Errorf("submissions delta = %v, want 1", got)
			}
			if got := testutil.ToFloat64(HubEnvelopesBySeverity.WithLabelValues("network", "high")) - beforeEnv; got != tt.wantEnvInc {
				t.Errorf("envelopes delta = %v, want %v", got, tt.wantEnvInc)
			}
			if got := testutil.ToFloat64(HubDeliveries) - beforeDel; got != tt.wantDelInc {
				t.Errorf("deliveries delta = %v, want %v", got, tt.wantDelInc)
			}
		})
	}
}

func TestUpdateHubGauges(t *testing.T) {
	UpdateHubGauges(4, 10)

	if got := testutil.ToFloat64(HubConsumers); got != 4 {
		t.Errorf("hub_consumers = %v, want 4", got)
	}
	if got := testutil.ToFloat64(HubBufferedEnvelopes); got != 10 {
		t.Errorf("hub_replay_buffer_envelopes = %v, want 10", got)
	}
}

func TestTrackStreamEndpoint(t *testing.T) {
	before := testutil.ToFloat64(StreamEndpointsActive.WithLabelValues("sse"))

	TrackStreamEndpoint("sse", true)
	TrackStreamEndpoint("sse", true)
	TrackStreamEndpoint("sse", false)

	if got := testutil.ToFloat64(StreamEndpointsActive.WithLabelValues("sse")) - before; got != 1 {
		t.Errorf("active endpoints delta = %v, want 1", got)
	}
}

func TestRecordFeedState(t *testing.T) {
	RecordFeedState("sess-test", "connecting", "degraded", 3)

	if got := testutil.ToFloat64(FeedConnectionState.WithLabelValues("sess-test")); got != 3 {
		t.Errorf("feed_connection_state = %v, want 3", got)
	}

	ForgetFeedSession("sess-test")
	if n := testutil.CollectAndCount(FeedConnectionState); n != 0 {
		t.Errorf("feed_connection_state series = %d after forget, want 0", n)
	}
}

func TestResultLabels(t *testing.T) {
	beforeOK := testutil.ToFloat64(FeedPulls.WithLabelValues("success"))
	beforeFail := testutil.ToFloat64(FeedDialAttempts.WithLabelValues("failure"))

	RecordFeedPull(true)
	RecordFeedDial(false)

	if got := testutil.ToFloat64(FeedPulls.WithLabelValues("success")) - beforeOK; got != 1 {
		t.Errorf("pull success delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(FeedDialAttempts.WithLabelValues("failure")) - beforeFail; got != 1 {
		t.Errorf("dial failure delta = %v, want 1", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/events", "201"))
	beforeObs := histogramCount(t, APIRequestDuration.WithLabelValues("POST", "/api/v1/events"))

	RecordAPIRequest("POST", "/api/v1/events", "201", 5*time.Millisecond)

	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/events", "201")) - before; got != 1 {
		t.Errorf("api_requests_total delta = %v, want 1", got)
	}
	if got := histogramCount(t, APIRequestDuration.WithLabelValues("POST", "/api/v1/events")) - beforeObs; got != 1 {
		t.Errorf("api_request_duration_seconds samples delta = %d, want 1", got)
	}
}
