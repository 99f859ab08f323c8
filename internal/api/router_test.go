// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/threatfeed/internal/hub"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/models"
	"github.com/tomtom215/threatfeed/internal/stream"
	"github.com/tomtom215/threatfeed/internal/wire"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

type staticCheck struct {
	name string
	ok   bool
}

func (c staticCheck) Name() string  { return c.name }
func (c staticCheck) Healthy() bool { return c.ok }

func newTestRouter(t *testing.T, mwCfg *ChiMiddlewareConfig, checks ...HealthChecker) (*hub.Hub, http.Handler) {
	t.Helper()
	h := hub.New(hub.DefaultConfig())
	handler := NewHandler(h, HandlerConfig{
		Stream:       stream.Config{KeepaliveInterval: time.Hour, WriteTimeout: time.Second},
		MaxBodyBytes: 4096,
		Version:      "test",
	}, checks...)
	return h, NewRouter(handler, NewChiMiddleware(mwCfg))
}

func envelopeJSON(id, severity string) string {
	return `{"id":"` + id + `","timestamp":"2026-05-01T10:00:00Z","category":"network","severity":"` + severity + `","title":"port scan"}`
}

func post(t *testing.T, router http.Handler, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return rec, resp
}

func TestIngestEvent(t *testing.T) {
	h, router := newTestRouter(t, nil)

	rec, resp := post(t, router, envelopeJSON("evt-1", "high"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]any)
	if data["id"] != "evt-1" || data["broadcast"] != false || data["consumers"] != float64(0) {
		t.Errorf("data = %v", data)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	handle, err := h.Attach()
	if err != nil {
		t.Fatal(err)
	}
	defer h.Detach(handle)

	_, resp = post(t, router, envelopeJSON("evt-2", "critical"))
	data = resp.Data.(map[string]any)
	if data["broadcast"] != true || data["consumers"] != float64(1) {
		t.Errorf("data with consumer = %v", data)
	}
	if got := (<-handle.C()).Envelope.ID; got != "evt-2" {
		t.Errorf("delivered %s, want evt-2", got)
	}
}

func TestIngestEvent_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"id":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing id", `{"timestamp":"2026-05-01T10:00:00Z","title":"x"}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"missing timestamp", `{"id":"a","title":"x"}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"bad severity", envelopeJSON("a", "apocalyptic"), http.StatusBadRequest, ErrCodeValidationFailed},
		{"too large", `{"id":"` + strings.Repeat("x", 5000) + `"}`, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router := newTestRouter(t, nil)
			rec, resp := post(t, router, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.code)
			}
			if resp.Error.RequestID == "" {
				t.Error("error missing request_id")
			}
		})
	}
}

func TestIngestEvent_Duplicate(t *testing.T) {
	_, router := newTestRouter(t, nil)
	post(t, router, envelopeJSON("dup", "low"))

	rec, resp := post(t, router, envelopeJSON("dup", "low"))
	if rec.Code != http.StatusConflict || resp.Error.Code != ErrCodeDuplicateEnvelope {
		t.Errorf("status %d, error %+v; want 409 DUPLICATE_ENVELOPE", rec.Code, resp.Error)
	}
}

func TestIngestEvent_HubClosed(t *testing.T) {
	h, router := newTestRouter(t, nil)
	h.Close()

	rec, resp := post(t, router, envelopeJSON("late", "low"))
	if rec.Code != http.StatusServiceUnavailable || resp.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("status %d, error %+v; want 503", rec.Code, resp.Error)
	}
}

func TestIngestEvent_RateLimited(t *testing.T) {
	_, router := newTestRouter(t, &ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})

	for i, id := range []string{"r1", "r2"} {
		if rec, _ := post(t, router, envelopeJSON(id, "low")); rec.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec, resp := post(t, router, envelopeJSON("r3", "low"))
	if rec.Code != http.StatusTooManyRequests || resp.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("status %d, error %+v; want 429", rec.Code, resp.Error)
	}
}

func TestSnapshot(t *testing.T) {
	h, router := newTestRouter(t, nil)
	for _, id := range []string{"a", "b", "c"} {
		post(t, router, envelopeJSON(id, "medium"))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events/snapshot", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data     []models.EventEnvelope `json:"data"`
		Metadata APIMeta                `json:"metadata"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, e := range resp.Data {
		ids = append(ids, e.ID)
	}
	if strings.Join(ids, ",") != "c,b,a" {
		t.Errorf("snapshot = %v, want newest first c,b,a", ids)
	}
	if *resp.Metadata.Count != 3 || *resp.Metadata.Capacity != h.Stats().Capacity {
		t.Errorf("metadata = count %d capacity %d", *resp.Metadata.Count, *resp.Metadata.Capacity)
	}
}

func TestSnapshot_EmptyIsArray(t *testing.T) {
	_, router := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/events/snapshot", http.NoBody))
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"data":[]`)) {
		t.Errorf("body = %s, want empty data array", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthChecker
		close  bool
		code   int
		status string
	}{
		{"healthy", nil, false, http.StatusOK, "healthy"},
		{"degraded dependency", []HealthChecker{staticCheck{"nats", false}}, false, http.StatusOK, "degraded"},
		{"closed hub", nil, true, http.StatusServiceUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, router := newTestRouter(t, nil, tt.checks...)
			if tt.close {
				h.Close()
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", http.NoBody))
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			if tt.status == "" {
				return
			}

			var resp struct {
				Data HealthStatus `json:"data"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Data.Status != tt.status || resp.Data.Capacity != hub.DefaultBufferSize {
				t.Errorf("health = %+v", resp.Data)
			}
		})
	}
}

func TestHealthProbes(t *testing.T) {
	h, router := newTestRouter(t, nil)

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}

	h.Close()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", http.NoBody))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready after close = %d, want 503", rec.Code)
	}
}

func TestRouter_NotFoundAndMetrics(t *testing.T) {
	_, router := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", http.NoBody))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), ErrCodeNotFound) {
		t.Errorf("not found = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "api_requests_total") {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestStreamSSE_ThroughRouter(t *testing.T) {
	h, router := newTestRouter(t, nil)
	if _, err := h.Submit(models.EventEnvelope{
		ID: "seed", Timestamp: time.Now(), Category: models.CategoryHost, Severity: models.SeverityLow, Title: "seed",
	}); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events/stream", http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	dec := wire.NewDecoder(resp.Body)
	fr, err := dec.Next()
	if err != nil || fr.Kind != wire.KindEnvelope || fr.Envelopes[0].ID != "seed" {
		t.Fatalf("first frame = %+v, %v", fr, err)
	}

	post(t, router, envelopeJSON("live", "critical"))
	fr, err = dec.Next()
	if err != nil || fr.Envelopes[0].ID != "live" {
		t.Fatalf("second frame = %+v, %v", fr, err)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for h.HandleCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("handle not detached after client disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamWebSocket_Origin(t *testing.T) {
	h := hub.New(hub.DefaultConfig())
	handler := NewHandler(h, HandlerConfig{
		Stream:         stream.Config{KeepaliveInterval: time.Hour, WriteTimeout: time.Second},
		AllowedOrigins: []string{"https://soc.example.com"},
	})
	srv := httptest.NewServer(NewRouter(handler, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws"

	tests := []struct {
		origin string
		ok     bool
	}{
		{"", true},
		{"https://soc.example.com", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		header := http.Header{}
		if tt.origin != "" {
			header.Set("Origin", tt.origin)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(url, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if tt.ok != (err == nil) {
			t.Errorf("origin %q: dial error = %v, want ok=%v", tt.origin, err, tt.ok)
		}
		if conn != nil {
			_ = conn.Close()
		}
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\x00c"); got != "a_b_c" {
		t.Errorf("sanitizeLogValue = %q", got)
	}
	if got := sanitizeLogValue(strings.Repeat("x", 500)); len(got) != 200 {
		t.Errorf("len = %d, want 200", len(got))
	}
}
