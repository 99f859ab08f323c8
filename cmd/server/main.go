// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/threatfeed/internal/api"
	"github.com/tomtom215/threatfeed/internal/config"
	"github.com/tomtom215/threatfeed/internal/hub"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/stream"
	"github.com/tomtom215/threatfeed/internal/supervisor"
	"github.com/tomtom215/threatfeed/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().Str("version", version).Msg("Starting ThreatFeed hub")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	h := hub.New(hub.Config{
		BufferSize:    cfg.Hub.BufferSize,
		ChannelSize:   cfg.Hub.ChannelSize,
		StatsInterval: cfg.Hub.StatsInterval,
	})

	natsComponents, err := InitNATS(cfg, h)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS ingest")
	}

	handler := api.NewHandler(h, api.HandlerConfig{
		Stream: stream.Config{
			KeepaliveInterval: cfg.Stream.KeepaliveInterval,
			WriteTimeout:      cfg.Stream.WriteTimeout,
		},
		MaxBodyBytes:   cfg.Ingest.MaxBodyBytes,
		AllowedOrigins: cfg.Security.CORSOrigins,
		Version:        version,
	}, natsComponents.HealthCheckers()...)

	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		CORSMaxAge:         int(cfg.Security.CORSMaxAge.Seconds()),
		RateLimitRequests:  cfg.Ingest.RateLimitRequests,
		RateLimitWindow:    cfg.Ingest.RateLimitWindow,
		RateLimitDisabled:  cfg.Ingest.RateLimitDisabled,
	})

	if cfg.Ingest.RateLimitDisabled {
		logging.Warn().Msg("Ingest rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	for _, origin := range cfg.Security.CORSOrigins {
		if origin == "*" {
			logging.Warn().Msg("CORS_ORIGINS=* allows any website to read the event stream; set explicit origins in production")
			break
		}
	}

	// No WriteTimeout: push streams stay open indefinitely and bound each
	// write themselves.
	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           api.NewRouter(handler, mw),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	// Shutdown does not wait for hijacked or streaming connections on its
	// own; closing the hub ends every endpoint's Serve loop.
	server.RegisterOnShutdown(func() {
		n := h.Close()
		logging.Info().Int("consumers_closed", n).Msg("Hub closed for HTTP shutdown")
	})

	// === ADD SERVICES TO SUPERVISOR TREE ===

	natsComponents.AddToSupervisor(tree)
	tree.AddDistributionService(services.NewHubService(h))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("ThreatFeed hub stopped")
}
