// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/threatfeed/config.yaml",
	"/etc/threatfeed/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3860,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Hub: HubConfig{
			BufferSize:    10,
			ChannelSize:   64,
			StatsInterval: 15 * time.Second,
		},
		Stream: StreamConfig{
			KeepaliveInterval: 15 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
		Ingest: IngestConfig{
			MaxBodyBytes:      64 << 10,
			RateLimitRequests: 600,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Security: SecurityConfig{
			CORSOrigins: []string{"*"},
			CORSMaxAge:  5 * time.Minute,
		},
		NATS: NATSConfig{
			Enabled:          false, // HTTP ingest is always on; NATS is opt-in
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   false,
			ServerHost:       "127.0.0.1",
			ServerPort:       4222,
			Subject:          "security.events",
			QueueGroup:       "threatfeed",
			SubscribersCount: 1,
			StoreDir:         "",
			JetStream:        false,
			DurableName:      "threatfeed",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Feed: FeedConfig{
			ServerURL:               "http://127.0.0.1:3860",
			Transport:               "sse",
			MaxAttempts:             3,
			RetryDelay:              time.Second,
			MaxRetryDelay:           30 * time.Second,
			PollInterval:            5 * time.Second,
			PullTimeout:             10 * time.Second,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
			BreakerInterval:         time.Minute,
			RecentLimit:             20,
			MinSeverity:             "",
		},
	}
}

// LoadWithKoanf loads configuration using Koanf with layered sources.
// Priority (highest to lowest): env vars > config file > defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first existing
// default path, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are keys that accept a comma-separated env value.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated strings into slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to config keys.
var envMappings = map[string]string{
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"hub_buffer_size":    "hub.buffer_size",
	"hub_channel_size":   "hub.channel_size",
	"hub_stats_interval": "hub.stats_interval",

	"stream_keepalive_interval": "stream.keepalive_interval",
	"stream_write_timeout":      "stream.write_timeout",

	"ingest_max_body_bytes": "ingest.max_body_bytes",
	"rate_limit_requests":   "ingest.rate_limit_requests",
	"rate_limit_window":     "ingest.rate_limit_window",
	"disable_rate_limit":    "ingest.rate_limit_disabled",

	"cors_origins": "security.cors_origins",
	"cors_max_age": "security.cors_max_age",

	"nats_enabled":      "nats.enabled",
	"nats_url":          "nats.url",
	"nats_embedded":     "nats.embedded_server",
	"nats_server_host":  "nats.server_host",
	"nats_server_port":  "nats.server_port",
	"nats_subject":      "nats.subject",
	"nats_queue_group":  "nats.queue_group",
	"nats_subscribers":  "nats.subscribers_count",
	"nats_store_dir":    "nats.store_dir",
	"nats_jetstream":    "nats.jetstream",
	"nats_durable_name": "nats.durable_name",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"feed_server_url":                "feed.server_url",
	"feed_transport":                 "feed.transport",
	"feed_max_attempts":              "feed.max_attempts",
	"feed_retry_delay":               "feed.retry_delay",
	"feed_max_retry_delay":           "feed.max_retry_delay",
	"feed_poll_interval":             "feed.poll_interval",
	"feed_pull_timeout":              "feed.pull_timeout",
	"feed_breaker_failure_threshold": "feed.breaker_failure_threshold",
	"feed_breaker_timeout":           "feed.breaker_timeout",
	"feed_breaker_interval":          "feed.breaker_interval",
	"feed_recent_limit":              "feed.recent_limit",
	"feed_min_severity":              "feed.min_severity",
}

// envTransformFunc maps known environment variables to config keys.
// Unmapped variables return "" and are skipped, so unrelated environment
// never leaks into the config.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
