// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func testEnvelope(id string, sev models.Severity) models.EventEnvelope {
	return models.EventEnvelope{
		ID:        id,
		Timestamp: time.Now(),
		Category:  models.CategoryNetwork,
		Severity:  sev,
		Title:     "test " + id,
	}
}

func mustAttach(t *testing.T, h *Hub) *Handle {
	t.Helper()
	handle, err := h.Attach()
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	return handle
}

func mustSubmit(t *testing.T, h *Hub, env models.EventEnvelope) int {
	t.Helper()
	n, err := h.Submit(env)
	if err != nil {
		t.Fatalf("Submit(%s) error = %v", env.ID, err)
	}
	return n
}

// receive reads one envelope or fails after a short wait.
func receive(t *testing.T, handle *Handle) models.EventEnvelope {
	t.Helper()
	select {
	case d, ok := <-handle.C():
		if !ok {
			t.Fatal("handle channel closed unexpectedly")
		}
		return d.Envelope
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
	return models.EventEnvelope{}
}

func assertEmpty(t *testing.T, handle *Handle) {
	t.Helper()
	select {
	case d, ok := <-handle.C():
		if ok {
			t.Fatalf("unexpected delivery %s", d.Envelope.ID)
		}
	default:
	}
}

func TestNew_Defaults(t *testing.T) {
	h := New(Config{})

	st := h.Stats()
	checks := []struct {
		name  string
		check bool
	}{
		{"capacity defaulted", st.Capacity == DefaultBufferSize},
		{"no consumers", st.Consumers == 0},
		{"empty buffer", st.Buffered == 0},
		{"running", !st.Closed},
		{"channel size defaulted", h.cfg.ChannelSize == DefaultChannelSize},
	}
	for _, c := range checks {
		if !c.check {
			t.Errorf("%s: stats = %+v", c.name, st)
		}
	}
}

func TestSubmit_Validation(t *testing.T) {
	h := New(DefaultConfig())

	tests := []struct {
		name string
		env  models.EventEnvelope
	}{
		{"missing id", models.EventEnvelope{Timestamp: time.Now()}},
		{"missing timestamp", models.EventEnvelope{ID: "x"}},
		{"empty", models.EventEnvelope{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Submit(tt.env)
			if !errors.Is(err, ErrInvalidEnvelope) {
				t.Fatalf("Submit() error = %v, want ErrInvalidEnvelope", err)
			}
		})
	}

	if len(h.Snapshot()) != 0 {
		t.Error("rejected envelopes must not be buffered")
	}
}

func TestSubmit_DuplicateID(t *testing.T) {
	h := New(Config{BufferSize: 2})
	mustSubmit(t, h, testEnvelope("a", models.SeverityLow))

	if _, err := h.Submit(testEnvelope("a", models.SeverityHigh)); !errors.Is(err, ErrDuplicateEnvelope) {
		t.Fatalf("Submit(dup) error = %v, want ErrDuplicateEnvelope", err)
	}

	// Once evicted the ID may be reused.
	mustSubmit(t, h, testEnvelope("b", models.SeverityLow))
	mustSubmit(t, h, testEnvelope("c", models.SeverityLow))
	mustSubmit(t, h, testEnvelope("a", models.SeverityLow))
}

func TestSubmit_StoresCopy(t *testing.T) {
	h := New(DefaultConfig())
	env := testEnvelope("a", models.SeverityLow)
	env.Attributes = map[string]any{"port": 22}

	mustSubmit(t, h, env)
	env.Attributes["port"] = 443

	if got := h.Snapshot()[0].Attributes["port"]; got != 22 {
		t.Errorf("buffered attribute = %v, want 22", got)
	}
}

func TestSnapshotAndReplayAreCopies(t *testing.T) {
	h := New(DefaultConfig())
	env := testEnvelope("a", models.SeverityLow)
	env.Attributes = map[string]any{"port": 22}
	mustSubmit(t, h, env)

	h.Snapshot()[0].Attributes["port"] = 443

	handle := mustAttach(t, h)
	defer h.Detach(handle)
	handle.Replay()[0].Attributes["port"] = 8080

	if got := h.Snapshot()[0].Attributes["port"]; got != 22 {
		t.Errorf("buffered attribute = %v, want 22", got)
	}
	other := mustAttach(t, h)
	defer h.Detach(other)
	if got := other.Replay()[0].Attributes["port"]; got != 22 {
		t.Errorf("replayed attribute = %v, want 22", got)
	}
}

func TestSnapshot_NewestFirst(t *testing.T) {
	const capacity = 4
	h := New(Config{BufferSize: capacity})

	for i := range 10 {
		mustSubmit(t, h, testEnvelope(fmt.Sprintf("e%d", i), models.SeverityLow))
	}

	snap := h.Snapshot()
	if len(snap) != capacity {
		t.Fatalf("len(Snapshot()) = %d, want %d", len(snap), capacity)
	}
	for i, env := range snap {
		if want := fmt.Sprintf("e%d", 9-i); env.ID != want {
			t.Errorf("Snapshot()[%d] = %s, want %s", i, env.ID, want)
		}
	}
}

func TestAttach_ReplayMatchesSnapshot(t *testing.T) {
	h := New(Config{BufferSize: 5})
	for i := range 3 {
		mustSubmit(t, h, testEnvelope(fmt.Sprintf("e%d", i), models.SeverityLow))
	}

	snap := h.Snapshot()
	handle := mustAttach(t, h)
	defer h.Detach(handle)

	replay := handle.Replay()
	if len(replay) != len(snap) {
		t.Fatalf("len(Replay()) = %d, want %d", len(replay), len(snap))
	}
	for i := range snap {
		if replay[i].ID != snap[i].ID {
			t.Errorf("Replay()[%d] = %s, want %s", i, replay[i].ID, snap[i].ID)
		}
	}
	assertEmpty(t, handle)
}

// A(low) is submitted, a consumer attaches, then B(critical): the consumer
// sees [A] as its replay and then B as its only delivery.
func TestAttachBetweenSubmissions(t *testing.T) {
	h := New(DefaultConfig())

	mustSubmit(t, h, testEnvelope("A", models.SeverityLow))
	handle := mustAttach(t, h)
	defer h.Detach(handle)

	if n := mustSubmit(t, h, testEnvelope("B", models.SeverityCritical)); n != 1 {
		t.Errorf("Submit(B) delivered = %d, want 1", n)
	}

	replay := handle.Replay()
	if len(replay) != 1 || replay[0].ID != "A" {
		t.Fatalf("Replay() = %v, want [A]", replay)
	}
	got := receive(t, handle)
	if got.ID != "B" || got.Severity != models.SeverityCritical {
		t.Errorf("delivery = %s/%s, want B/critical", got.ID, got.Severity)
	}
	assertEmpty(t, handle)
}

func TestAttach_ConcurrentSubmitNoGapNoDuplicate(t *testing.T) {
	h := New(Config{BufferSize: 1000, ChannelSize: 1000})

	const total = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range total {
			_, _ = h.Submit(testEnvelope(fmt.Sprintf("e%03d", i), models.SeverityLow))
		}
	}()

	time.Sleep(time.Millisecond)
	handle := mustAttach(t, h)
	wg.Wait()
	h.Detach(handle)

	var seen []string
	for _, env := range models.Reverse(handle.Replay()) {
		seen = append(seen, env.ID)
	}
	for d := range handle.C() {
		seen = append(seen, d.Envelope.ID)
	}

	if len(seen) != total {
		t.Fatalf("saw %d envelopes, want %d", len(seen), total)
	}
	for i, id := range seen {
		if want := fmt.Sprintf("e%03d", i); id != want {
			t.Fatalf("position %d = %s, want %s", i, id, want)
		}
	}
}

func TestDetach_Idempotent(t *testing.T) {
	h := New(DefaultConfig())
	handle := mustAttach(t, h)

	h.Detach(handle)
	h.Detach(handle)
	h.Detach(nil)

	if h.HandleCount() != 0 {
		t.Errorf("HandleCount() = %d, want 0", h.HandleCount())
	}

	n, err := h.Submit(testEnvelope("after", models.SeverityLow))
	if err != nil {
		t.Fatalf("Submit() after detach error = %v", err)
	}
	if n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}

	if _, ok := <-handle.C(); ok {
		t.Error("detached handle received a delivery")
	}
}

func TestSlowConsumerDoesNotAffectOthers(t *testing.T) {
	h := New(Config{BufferSize: 10, ChannelSize: 4})

	slow := mustAttach(t, h)
	fast := mustAttach(t, h)
	defer h.Detach(slow)
	defer h.Detach(fast)

	const total = 50
	for i := range total {
		mustSubmit(t, h, testEnvelope(fmt.Sprintf("e%02d", i), models.SeverityMedium))
		env := receive(t, fast)
		if want := fmt.Sprintf("e%02d", i); env.ID != want {
			t.Fatalf("fast consumer position %d = %s, want %s", i, env.ID, want)
		}
	}

	if slow.Dropped() != total-4 {
		t.Errorf("slow.Dropped() = %d, want %d", slow.Dropped(), total-4)
	}
	if !slow.TakeResync() {
		t.Error("slow handle should be flagged for resync")
	}
	if slow.TakeResync() {
		t.Error("TakeResync() should clear the flag")
	}

	// The slow consumer holds the newest items, oldest of them first.
	for i := range 4 {
		env := receive(t, slow)
		if want := fmt.Sprintf("e%02d", total-4+i); env.ID != want {
			t.Errorf("slow position %d = %s, want %s", i, env.ID, want)
		}
	}
}

func TestDeliverySeq(t *testing.T) {
	h := New(Config{BufferSize: 2, ChannelSize: 8})
	handle := mustAttach(t, h)
	defer h.Detach(handle)

	mustSubmit(t, h, testEnvelope("a", models.SeverityLow))
	if _, err := h.Submit(testEnvelope("a", models.SeverityLow)); !errors.Is(err, ErrDuplicateEnvelope) {
		t.Fatalf("duplicate Submit() error = %v", err)
	}
	mustSubmit(t, h, testEnvelope("b", models.SeverityLow))
	mustSubmit(t, h, testEnvelope("c", models.SeverityLow))

	// Rejected submissions take no sequence number.
	for want := uint64(1); want <= 3; want++ {
		select {
		case d := <-handle.C():
			if d.Seq != want {
				t.Errorf("%s Seq = %d, want %d", d.Envelope.ID, d.Seq, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
	}

	envs, seq := h.SnapshotSeq()
	if seq != 3 || len(envs) != 2 || envs[0].ID != "c" || envs[1].ID != "b" {
		t.Errorf("SnapshotSeq() = %d %v, want 3 [c b]", seq, envs)
	}
}

func TestClose(t *testing.T) {
	h := New(DefaultConfig())
	a := mustAttach(t, h)
	b := mustAttach(t, h)

	if n := h.Close(); n != 2 {
		t.Errorf("Close() = %d, want 2", n)
	}
	if n := h.Close(); n != 0 {
		t.Errorf("second Close() = %d, want 0", n)
	}

	for _, handle := range []*Handle{a, b} {
		if _, ok := <-handle.C(); ok {
			t.Error("handle channel should be closed")
		}
	}
	if _, err := h.Attach(); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Attach() after Close error = %v, want ErrHubClosed", err)
	}
	if _, err := h.Submit(testEnvelope("x", models.SeverityLow)); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrHubClosed", err)
	}

	// Detach after Close is still a no-op.
	h.Detach(a)
}

func TestRestartStartsEmpty(t *testing.T) {
	old := New(DefaultConfig())
	mustSubmit(t, old, testEnvelope("a", models.SeverityHigh))
	old.Close()

	restarted := New(DefaultConfig())
	if snap := restarted.Snapshot(); len(snap) != 0 {
		t.Errorf("Snapshot() after restart = %d items, want 0", len(snap))
	}
	handle := mustAttach(t, restarted)
	defer restarted.Detach(handle)
	if len(handle.Replay()) != 0 {
		t.Errorf("Replay() after restart = %d items, want 0", len(handle.Replay()))
	}
}

func TestRunWithContext_ClosesOnCancel(t *testing.T) {
	h := New(Config{StatsInterval: 5 * time.Millisecond})
	handle := mustAttach(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.RunWithContext(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunWithContext did not return")
	}

	if _, ok := <-handle.C(); ok {
		t.Error("handle should be closed after shutdown")
	}
	if !h.Stats().Closed {
		t.Error("hub should report closed")
	}
}

func TestShutdownReason(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()

	tests := []struct {
		ctx  context.Context
		want ShutdownReason
	}{
		{canceled, ShutdownReasonContextCanceled},
		{expired, ShutdownReasonContextDeadline},
		{context.Background(), ShutdownReasonClosed},
	}
	for _, tt := range tests {
		if got := shutdownReason(tt.ctx); got != tt.want {
			t.Errorf("shutdownReason() = %s, want %s", got, tt.want)
		}
	}
}
