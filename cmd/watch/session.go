// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/threatfeed/internal/config"
	"github.com/tomtom215/threatfeed/internal/dashboard"
	"github.com/tomtom215/threatfeed/internal/feed"
	"github.com/tomtom215/threatfeed/internal/models"
)

const (
	streamPath   = "/api/v1/events/stream"
	wsPath       = "/api/v1/events/ws"
	snapshotPath = "/api/v1/events/snapshot"
)

// newSession wires a feed.Supervisor for cfg that renders to out.
func newSession(cfg config.FeedConfig, out io.Writer) (*feed.Supervisor, *terminal) {
	sessionID := uuid.NewString()
	base := strings.TrimSuffix(cfg.ServerURL, "/")

	var dialer feed.Dialer
	switch cfg.Transport {
	case "websocket":
		dialer = &feed.WebSocketDialer{
			URL:         wsURL(base) + wsPath,
			SessionID:   sessionID,
			ReadTimeout: 2 * config.MaxKeepaliveInterval,
		}
	default:
		dialer = &feed.SSEDialer{
			URL:         base + streamPath,
			Client:      feed.NewStreamClient(10 * time.Second),
			SessionID:   sessionID,
			ReadTimeout: 2 * config.MaxKeepaliveInterval,
		}
	}

	puller := feed.NewHTTPPuller(base+snapshotPath, nil, sessionID, feed.BreakerConfig{
		Name:             "feed-pull",
		MaxRequests:      1,
		Interval:         cfg.BreakerInterval,
		Timeout:          cfg.BreakerTimeout,
		FailureThreshold: cfg.BreakerFailureThreshold,
	})

	store := dashboard.NewStore(dashboard.Config{
		RecentLimit: cfg.RecentLimit,
		MinSeverity: models.Severity(cfg.MinSeverity),
	})
	term := newTerminal(store, out, 30*time.Second)

	sup := feed.New(sessionID, dialer, puller, term, feed.Config{
		MaxAttempts:   cfg.MaxAttempts,
		RetryDelay:    cfg.RetryDelay,
		MaxRetryDelay: cfg.MaxRetryDelay,
		PollInterval:  cfg.PollInterval,
		PullTimeout:   cfg.PullTimeout,
	})
	return sup, term
}

func wsURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}

// terminal prints new envelopes and state changes, and a summary of the
// store at most once per summary interval.
type terminal struct {
	store   *dashboard.Store
	out     io.Writer
	summary rate.Sometimes
	changed bool // set by the store when an envelope is accepted
}

var _ feed.Consumer = (*terminal)(nil)

func newTerminal(store *dashboard.Store, out io.Writer, summaryEvery time.Duration) *terminal {
	t := &terminal{
		store:   store,
		out:     out,
		summary: rate.Sometimes{Interval: summaryEvery},
	}
	store.OnChange(func() { t.changed = true })
	return t
}

func (t *terminal) OnEnvelope(env models.EventEnvelope) {
	t.changed = false
	t.store.OnEnvelope(env)
	if !t.changed {
		return // duplicate or filtered
	}

	fmt.Fprintf(t.out, "%s  %-8s  %-11s  %s  [%s]\n",
		env.Timestamp.Local().Format(time.TimeOnly),
		strings.ToUpper(string(env.Severity)),
		env.Category,
		env.Title,
		env.ID)
	t.summary.Do(func() { t.printSummary(t.store.Snapshot()) })
}

func (t *terminal) OnConnectionStateChanged(s feed.State) {
	t.store.OnConnectionStateChanged(s)
	fmt.Fprintf(t.out, "-- feed %s\n", s)
}

func (t *terminal) printSummary(st dashboard.State) {
	var b strings.Builder
	fmt.Fprintf(&b, "== %d events (%d in last %s, %d duplicates, %d filtered)",
		st.Total, st.EventsInWindow, st.Window, st.Duplicates, st.Filtered)
	for _, sev := range slices.Backward(models.Severities) {
		fmt.Fprintf(&b, " %s=%d", sev, st.BySeverity[sev])
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(t.out, b.String())
}
