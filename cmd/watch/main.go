// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Command watch is a terminal dashboard session. It connects to a hub's push
stream, prints each new event, and switches to polling the snapshot after
repeated connection failures.

	FEED_SERVER_URL=http://hub:3860 FEED_TRANSPORT=websocket FEED_MIN_SEVERITY=high watch

Diagnostics go to stderr; events go to stdout.
*/
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/threatfeed/internal/config"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    "console",
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		Name:            "threatfeed-watch",
		FailureBackoff:  5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	session, _ := newSession(cfg.Feed, os.Stdout)
	tree.AddDistributionService(session)

	logging.Info().
		Str("server", cfg.Feed.ServerURL).
		Str("transport", cfg.Feed.Transport).
		Str("session_id", session.SessionID()).
		Msg("Watching security events")

	if err := <-tree.ServeBackground(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Err(err).Msg("Supervisor tree error")
	}
}
