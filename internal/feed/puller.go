// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
)

// Puller fetches the hub's current replay window, newest first.
type Puller interface {
	Pull(ctx context.Context) ([]models.EventEnvelope, error)
}

// BreakerConfig configures the pull circuit breaker.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // half-open probes
	Interval         time.Duration // closed-state count reset
	Timeout          time.Duration // open-state duration
	FailureThreshold uint32        // consecutive failures that trip
}

// DefaultBreakerConfig returns the default pull breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "feed-pull",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// HTTPPuller calls the snapshot endpoint through a circuit breaker.
type HTTPPuller struct {
	url       string
	client    *http.Client
	sessionID string
	breaker   *gobreaker.CircuitBreaker[[]models.EventEnvelope]
}

// NewHTTPPuller returns a puller for url. A nil client gets a 10s timeout.
func NewHTTPPuller(url string, client *http.Client, sessionID string, cfg BreakerConfig) *HTTPPuller {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Name == "" {
		cfg.Name = DefaultBreakerConfig().Name
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerState(name, from.String(), to.String(), breakerStateValue(to))
			logging.Warn().
				Str("component", "feed").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("pull circuit breaker state changed")
		},
	}

	return &HTTPPuller{
		url:       url,
		client:    client,
		sessionID: sessionID,
		breaker:   gobreaker.NewCircuitBreaker[[]models.EventEnvelope](settings),
	}
}

// snapshotResponse is the subset of the API envelope the puller reads.
type snapshotResponse struct {
	Success bool                   `json:"success"`
	Data    []models.EventEnvelope `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Pull implements Puller.
func (p *HTTPPuller) Pull(ctx context.Context) ([]models.EventEnvelope, error) {
	envs, err := p.breaker.Execute(func() ([]models.EventEnvelope, error) {
		return p.fetch(ctx)
	})

	switch {
	case err == nil:
		metrics.RecordCircuitBreakerRequest(p.breaker.Name(), "success")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(p.breaker.Name(), "rejected")
	default:
		metrics.RecordCircuitBreakerRequest(p.breaker.Name(), "failure")
	}
	return envs, err
}

// BreakerState returns the breaker's current state name.
func (p *HTTPPuller) BreakerState() string {
	return p.breaker.State().String()
}

func (p *HTTPPuller) fetch(ctx context.Context) ([]models.EventEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build pull request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.sessionID != "" {
		req.Header.Set(SessionHeader, p.sessionID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pull snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: snapshot returned HTTP %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if !body.Success {
		if body.Error != nil {
			return nil, fmt.Errorf("snapshot failed: %s: %s", body.Error.Code, body.Error.Message)
		}
		return nil, errors.New("snapshot failed")
	}
	return body.Data, nil
}

func breakerStateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
