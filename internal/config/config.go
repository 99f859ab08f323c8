// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package config

import "time"

// Config holds all application configuration.
//
// Configuration is loaded in layers: built-in defaults, then an optional
// YAML file, then environment variables. See LoadWithKoanf.
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Hub      HubConfig      `koanf:"hub"`
	Stream   StreamConfig   `koanf:"stream"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Security SecurityConfig `koanf:"security"`
	NATS     NATSConfig     `koanf:"nats"`
	Logging  LoggingConfig  `koanf:"logging"`
	Feed     FeedConfig     `koanf:"feed"` // Used by cmd/watch
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HubConfig sizes the broadcast hub.
type HubConfig struct {
	// BufferSize is the replay window length. Default: 10
	BufferSize int `koanf:"buffer_size"`

	// ChannelSize is the per-consumer delivery queue length. Default: 64
	ChannelSize int `koanf:"channel_size"`

	// StatsInterval is how often hub gauges are refreshed. Default: 15s
	StatsInterval time.Duration `koanf:"stats_interval"`
}

// StreamConfig holds push endpoint timing.
type StreamConfig struct {
	// KeepaliveInterval is the idle time before a keepalive frame.
	// Must not exceed 30s. Default: 15s
	KeepaliveInterval time.Duration `koanf:"keepalive_interval"`

	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// IngestConfig holds HTTP ingest limits.
type IngestConfig struct {
	MaxBodyBytes      int64         `koanf:"max_body_bytes"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// SecurityConfig holds browser-facing settings.
type SecurityConfig struct {
	// CORSOrigins also gates WebSocket upgrades that carry an Origin header.
	CORSOrigins []string      `koanf:"cors_origins"`
	CORSMaxAge  time.Duration `koanf:"cors_max_age"`
}

// NATSConfig holds the NATS ingest bridge settings.
//
// Environment Variables:
//   - NATS_ENABLED: Enable the NATS ingest bridge (default: false)
//   - NATS_URL: Broker URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: Run an in-process nats-server (default: false)
//   - NATS_SUBJECT: Subject carrying envelopes (default: security.events)
//   - NATS_QUEUE_GROUP: Queue group shared by hub replicas (default: threatfeed)
//   - NATS_STORE_DIR: JetStream storage for the embedded server; empty disables JetStream
//   - NATS_JETSTREAM: Consume through a durable JetStream consumer (default: false)
type NATSConfig struct {
	Enabled          bool   `koanf:"enabled"`
	URL              string `koanf:"url"`
	EmbeddedServer   bool   `koanf:"embedded_server"`
	ServerHost       string `koanf:"server_host"`
	ServerPort       int    `koanf:"server_port"`
	Subject          string `koanf:"subject"`
	QueueGroup       string `koanf:"queue_group"`
	SubscribersCount int    `koanf:"subscribers_count"`
	StoreDir         string `koanf:"store_dir"`
	JetStream        bool   `koanf:"jetstream"`
	DurableName      string `koanf:"durable_name"`
}

// LoggingConfig holds logging settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// JSON is recommended for production. Console is human-readable.
	Format string `koanf:"format"`

	Caller bool `koanf:"caller"`
}

// FeedConfig configures a dashboard session connecting to a hub.
type FeedConfig struct {
	// ServerURL is the hub base URL, e.g. http://localhost:3860
	ServerURL string `koanf:"server_url"`

	// Transport is sse or websocket.
	Transport string `koanf:"transport"`

	MaxAttempts   int           `koanf:"max_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	MaxRetryDelay time.Duration `koanf:"max_retry_delay"`
	PollInterval  time.Duration `koanf:"poll_interval"`
	PullTimeout   time.Duration `koanf:"pull_timeout"`

	// Pull circuit breaker
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`

	// Dashboard store
	RecentLimit int    `koanf:"recent_limit"`
	MinSeverity string `koanf:"min_severity"`
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return joinHostPort(s.Host, s.Port)
}

// Load reads configuration using a layered approach:
//  1. Built-in defaults
//  2. Config file (config.yaml if exists, or path specified in CONFIG_PATH env var)
//  3. Environment variables
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
