// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/threatfeed/internal/logging"
)

// ErrServerNotReady is returned when the embedded server does not accept
// connections within ServerConfig.StartTimeout.
var ErrServerNotReady = errors.New("embedded NATS server not ready")

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host string
	Port int // -1 picks a free port

	// StoreDir enables JetStream when set.
	StoreDir string

	MaxPayload   int32
	StartTimeout time.Duration
}

// DefaultServerConfig returns defaults for a local embedded broker.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "127.0.0.1",
		Port:         4222,
		MaxPayload:   1 << 20,
		StartTimeout: 10 * time.Second,
	}
}

// EmbeddedServer wraps an in-process NATS server with lifecycle management.
type EmbeddedServer struct {
	server    *server.Server
	config    ServerConfig
	clientURL string
}

// NewEmbeddedServer creates and starts an embedded NATS server and waits
// until it accepts connections.
func NewEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = DefaultServerConfig().StartTimeout
	}

	opts := &server.Options{
		ServerName: "threatfeed",
		Host:       cfg.Host,
		Port:       cfg.Port,
		JetStream:  cfg.StoreDir != "",
		StoreDir:   cfg.StoreDir,
		MaxPayload: cfg.MaxPayload,
		NoSigs:     true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, errors.Join(ErrServerNotReady, err)
	}
	ns.SetLoggerV2(natsServerLogger{log: logging.WithComponent("nats-server")}, false, false, false)

	go ns.Start()

	if !ns.ReadyForConnections(cfg.StartTimeout) {
		ns.Shutdown()
		return nil, ErrServerNotReady
	}

	logging.Info().
		Str("component", "nats-server").
		Str("url", ns.ClientURL()).
		Bool("jetstream", opts.JetStream).
		Msg("embedded NATS server started")

	return &EmbeddedServer{
		server:    ns,
		config:    cfg,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server, waiting for it to finish or ctx to end.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// IsRunning reports whether the server is running.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Name implements api.HealthChecker.
func (s *EmbeddedServer) Name() string { return "nats_server" }

// Healthy implements api.HealthChecker.
func (s *EmbeddedServer) Healthy() bool { return s.IsRunning() }

// Serve implements suture.Service. The server runs from construction; Serve
// only ties its shutdown to the supervisor.
func (s *EmbeddedServer) Serve(ctx context.Context) error {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Str("component", "nats-server").Msg("embedded NATS server shutdown timed out")
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture.
func (s *EmbeddedServer) String() string { return "nats-embedded-server" }
