// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/threatfeed/internal/hub"
	"github.com/tomtom215/threatfeed/internal/models"
	"github.com/tomtom215/threatfeed/internal/stream"
	"github.com/tomtom215/threatfeed/internal/wire"
)

func newStreamServer(t *testing.T, h *hub.Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SessionHeader) == "" {
			t.Errorf("missing %s header", SessionHeader)
		}
		tr, err := stream.NewSSETransport(w, r, time.Second)
		if err != nil {
			return
		}
		_ = stream.NewEndpoint(h, tr, stream.Config{KeepaliveInterval: 10 * time.Millisecond}).Serve(r.Context())
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		tr := stream.NewWebSocketTransport(conn, time.Second)
		defer tr.Close()
		_ = stream.NewEndpoint(h, tr, stream.Config{KeepaliveInterval: 10 * time.Millisecond}).Serve(r.Context())
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func nextEnvelope(t *testing.T, st Stream) models.EventEnvelope {
	t.Helper()
	for {
		f, err := st.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if f.Kind == wire.KindEnvelope {
			return f.Envelopes[0]
		}
	}
}

func TestDialers(t *testing.T) {
	tests := []struct {
		name   string
		dialer func(base string) Dialer
	}{
		{"sse", func(base string) Dialer {
			return &SSEDialer{URL: base + "/stream", SessionID: "dash-1"}
		}},
		{"websocket", func(base string) Dialer {
			return &WebSocketDialer{URL: "ws" + strings.TrimPrefix(base, "http") + "/ws", SessionID: "dash-1"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hub.New(hub.DefaultConfig())
			if _, err := h.Submit(envelope("seed")); err != nil {
				t.Fatal(err)
			}
			srv := newStreamServer(t, h)

			st, err := tt.dialer(srv.URL).Dial(context.Background())
			if err != nil {
				t.Fatalf("Dial() error = %v", err)
			}

			if got := nextEnvelope(t, st); got.ID != "seed" {
				t.Fatalf("replay = %s, want seed", got.ID)
			}
			if _, err := h.Submit(envelope("live")); err != nil {
				t.Fatal(err)
			}
			if got := nextEnvelope(t, st); got.ID != "live" {
				t.Fatalf("delivery = %s, want live", got.ID)
			}

			_ = st.Close()
			// buffered keepalives may still be returned before the error
			for range 100 {
				if _, err = st.Next(); err != nil {
					break
				}
			}
			if !errors.Is(err, ErrTransportClosed) {
				t.Errorf("Next() after Close error = %v, want ErrTransportClosed", err)
			}
			waitFor(t, func() bool { return h.HandleCount() == 0 })
		})
	}
}

func TestSSEDialer_RejectsNonStream(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}},
		{"content type", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := (&SSEDialer{URL: srv.URL}).Dial(context.Background())
			if !errors.Is(err, ErrUnexpectedStatus) {
				t.Errorf("Dial() error = %v, want ErrUnexpectedStatus", err)
			}
		})
	}
}

func TestSSEDialer_SilentStreamTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	st, err := (&SSEDialer{URL: srv.URL, ReadTimeout: 100 * time.Millisecond}).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer st.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := st.Next()
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrTransportClosed) {
			t.Errorf("Next() error = %v, want ErrTransportClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next() still blocked on a silent stream")
	}
}

func TestSSEDialer_KeepalivesResetReadTimeout(t *testing.T) {
	srv := newStreamServer(t, hub.New(hub.DefaultConfig()))

	st, err := (&SSEDialer{URL: srv.URL + "/stream", SessionID: "dash-1", ReadTimeout: 80 * time.Millisecond}).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer st.Close()

	// Keepalives every 10ms keep an idle stream open well past ReadTimeout.
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		f, err := st.Next()
		if err != nil {
			t.Fatalf("Next() error = %v on a stream with keepalives", err)
		}
		if f.Kind != wire.KindKeepalive {
			t.Fatalf("frame kind = %s, want keepalive", f.Kind)
		}
	}
}

func TestWebSocketDialer_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := (&WebSocketDialer{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}).Dial(context.Background())
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("Dial() error = %v, want ErrUnexpectedStatus", err)
	}
}

func snapshotServer(t *testing.T, status *atomic.Int32, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get(SessionHeader) != "dash-2" {
			t.Errorf("session header = %q", r.Header.Get(SessionHeader))
		}
		code := int(status.Load())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if code != http.StatusOK {
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    []models.EventEnvelope{envelope("n2"), envelope("n1")},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPPuller_Pull(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusOK)
	srv := snapshotServer(t, &status, &hits)

	p := NewHTTPPuller(srv.URL, nil, "dash-2", DefaultBreakerConfig())
	envs, err := p.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}

	ids := make([]string, 0, len(envs))
	for _, env := range envs {
		ids = append(ids, env.ID)
	}
	if !slices.Equal(ids, []string{"n2", "n1"}) {
		t.Errorf("Pull() = %v, want newest first [n2 n1]", ids)
	}
}

func TestHTTPPuller_BreakerOpens(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusInternalServerError)
	srv := snapshotServer(t, &status, &hits)

	cfg := DefaultBreakerConfig()
	cfg.Name = "test-pull"
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	p := NewHTTPPuller(srv.URL, nil, "dash-2", cfg)

	for range 2 {
		if _, err := p.Pull(context.Background()); !errors.Is(err, ErrUnexpectedStatus) {
			t.Fatalf("Pull() error = %v, want ErrUnexpectedStatus", err)
		}
	}
	if p.BreakerState() != gobreaker.StateOpen.String() {
		t.Fatalf("BreakerState() = %s, want open", p.BreakerState())
	}

	status.Store(http.StatusOK)
	if _, err := p.Pull(context.Background()); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Pull() error = %v, want ErrOpenState", err)
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2 (open breaker must not call out)", hits.Load())
	}
}

func TestSupervisor_EndToEndSSE(t *testing.T) {
	h := hub.New(hub.DefaultConfig())
	if _, err := h.Submit(envelope("seed")); err != nil {
		t.Fatal(err)
	}
	srv := newStreamServer(t, h)

	rec := &recorder{}
	sup := New("dash-3", &SSEDialer{URL: srv.URL + "/stream", SessionID: "dash-3"}, nil, rec, testConfig())
	cancel, done := runSupervisor(t, sup)

	waitFor(t, func() bool { return sup.State() == StateConnected && h.HandleCount() == 1 })
	if _, err := h.Submit(envelope("live")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, envs := rec.snapshot()
		return len(envs) == 2
	})
	stop(t, cancel, done)

	_, envs := rec.snapshot()
	if !slices.Equal(envs, []string{"seed", "live"}) {
		t.Errorf("envelopes = %v, want [seed live]", envs)
	}
	waitFor(t, func() bool { return h.HandleCount() == 0 })
}
