// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
	"github.com/tomtom215/threatfeed/internal/wire"
)

// Config controls reconnect and fallback behavior.
type Config struct {
	// MaxAttempts is how many consecutive push failures are retried in the
	// connecting state. The next failure switches to degraded.
	MaxAttempts int

	// RetryDelay is the first backoff delay; it doubles up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// PollInterval is the pull period while degraded.
	PollInterval time.Duration

	// PullTimeout bounds one pull request.
	PullTimeout time.Duration
}

// DefaultConfig returns the default session policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
		PollInterval:  5 * time.Second,
		PullTimeout:   10 * time.Second,
	}
}

// Supervisor keeps one logical feed alive for a dashboard session. It
// prefers the push stream, retries it with backoff, and while push stays
// down it polls the snapshot endpoint instead.
//
// State machine:
//
//	disconnected -> connecting -> connected
//	connecting --(MaxAttempts+1 failures)--> degraded
//	degraded --(push dial succeeds)--> connected
//	connected --(stream ends)--> disconnected -> connecting
//
// Every callback runs on the Run goroutine.
type Supervisor struct {
	id       string
	dialer   Dialer
	puller   Puller
	consumer Consumer
	cfg      Config
	log      zerolog.Logger

	state   atomic.Int32
	running atomic.Bool

	pullTicker *time.Ticker
}

// New returns a supervisor in the disconnected state. An empty sessionID
// gets a generated one.
func New(sessionID string, dialer Dialer, puller Puller, consumer Consumer, cfg Config) *Supervisor {
	def := DefaultConfig()
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = max(cfg.RetryDelay, def.MaxRetryDelay)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PullTimeout <= 0 {
		cfg.PullTimeout = def.PullTimeout
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	return &Supervisor{
		id:       sessionID,
		dialer:   dialer,
		puller:   puller,
		consumer: consumer,
		cfg:      cfg,
		log:      logging.WithComponent("feed").With().Str("session_id", sessionID).Logger(),
	}
}

// SessionID returns the session identifier sent to the server.
func (s *Supervisor) SessionID() string { return s.id }

// State returns the current connection state. Safe from any goroutine.
func (s *Supervisor) State() State { return State(s.state.Load()) }

// String implements suture.Service.
func (s *Supervisor) String() string { return "feed-session-" + s.id }

// Serve implements suture.Service.
func (s *Supervisor) Serve(ctx context.Context) error {
	if err := s.Run(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

// Run drives the session until ctx is canceled, then closes the active
// stream, stops polling and reports disconnected. It returns nil on
// shutdown; no callbacks happen after it returns.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	defer func() {
		s.stopPull()
		s.setState(StateDisconnected)
		metrics.ForgetFeedSession(s.id)
		s.log.Info().Msg("feed session stopped")
	}()

	failures := 0
	delay := s.cfg.RetryDelay

	for {
		if ctx.Err() != nil {
			return nil
		}
		if s.State() != StateDegraded {
			s.setState(StateConnecting)
		}

		st, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.RecordFeedDial(false)
			failures++
			s.log.Warn().Err(err).Int("failures", failures).Dur("retry_in", delay).Msg("push dial failed")
			s.onFailure(ctx, failures)

			if !s.wait(ctx, delay) {
				return nil
			}
			delay = min(delay*2, s.cfg.MaxRetryDelay)
			continue
		}

		metrics.RecordFeedDial(true)
		failures = 0
		delay = s.cfg.RetryDelay
		s.stopPull()
		s.setState(StateConnected)

		err = s.consume(ctx, st)
		if ctx.Err() != nil {
			return nil
		}

		s.log.Warn().Err(err).Msg("push stream ended")
		s.setState(StateDisconnected)
		failures = 1
		s.onFailure(ctx, failures)

		if !s.wait(ctx, delay) {
			return nil
		}
	}
}

// onFailure switches to degraded once failures exceed the retry bound.
func (s *Supervisor) onFailure(ctx context.Context, failures int) {
	if failures <= s.cfg.MaxAttempts || s.State() == StateDegraded {
		return
	}

	s.log.Warn().
		Err(ErrReconnectExhausted).
		Int("attempts", failures).
		Dur("poll_interval", s.cfg.PollInterval).
		Msg("push unavailable, falling back to pull")
	s.setState(StateDegraded)

	s.pull(ctx)
	s.pullTicker = time.NewTicker(s.cfg.PollInterval)
}

type dialResult struct {
	stream Stream
	err    error
}

// dial runs one push dial on its own goroutine and keeps pulling on
// schedule until it finishes. A stream that arrives after ctx ended is
// closed.
func (s *Supervisor) dial(ctx context.Context) (Stream, error) {
	results := make(chan dialResult, 1)
	go func() {
		st, err := s.dialer.Dial(ctx)
		results <- dialResult{stream: st, err: err}
	}()

	for {
		select {
		case r := <-results:
			return r.stream, r.err
		case <-s.pullC():
			s.pull(ctx)
		case <-ctx.Done():
			go func() {
				if r := <-results; r.err == nil && r.stream != nil {
					_ = r.stream.Close()
				}
			}()
			return nil, ctx.Err()
		}
	}
}

// wait sleeps for d, pulling on schedule while degraded. It returns false
// if ctx ended first.
func (s *Supervisor) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-s.pullC():
			s.pull(ctx)
		}
	}
}

// pullC is the poll schedule, or nil when not degraded.
func (s *Supervisor) pullC() <-chan time.Time {
	if s.pullTicker == nil {
		return nil
	}
	return s.pullTicker.C
}

func (s *Supervisor) pull(ctx context.Context) {
	if s.puller == nil {
		return
	}

	pullCtx, cancel := context.WithTimeout(ctx, s.cfg.PullTimeout)
	envs, err := s.puller.Pull(pullCtx)
	cancel()

	metrics.RecordFeedPull(err == nil)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("pull fallback failed")
		}
		return
	}

	s.deliver(models.Reverse(envs), "pull")
}

func (s *Supervisor) stopPull() {
	if s.pullTicker != nil {
		s.pullTicker.Stop()
		s.pullTicker = nil
	}
}

type frameResult struct {
	frame wire.Frame
	err   error
}

// consume reads st until it fails or ctx ends. The reader goroutine is
// joined before returning.
func (s *Supervisor) consume(ctx context.Context, st Stream) error {
	frames := make(chan frameResult)
	done := make(chan struct{})

	go func() {
		defer close(frames)
		for {
			f, err := st.Next()
			select {
			case frames <- frameResult{frame: f, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	defer func() {
		close(done)
		_ = st.Close()
		for range frames {
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-frames:
			if !ok {
				return ErrTransportClosed
			}
			if r.err != nil {
				return fmt.Errorf("read push frame: %w", r.err)
			}
			s.handleFrame(r.frame)
		}
	}
}

func (s *Supervisor) handleFrame(f wire.Frame) {
	switch f.Kind {
	case wire.KindEnvelope:
		s.deliver(f.Envelopes, "push")
	case wire.KindResync:
		s.log.Debug().Int("envelopes", len(f.Envelopes)).Msg("resync received")
		s.deliver(f.Envelopes, "resync")
	case wire.KindKeepalive:
	}
}

func (s *Supervisor) deliver(envs []models.EventEnvelope, source string) {
	if len(envs) == 0 || s.consumer == nil {
		return
	}
	for _, env := range envs {
		s.consumer.OnEnvelope(env)
	}
	metrics.RecordFeedEnvelopes(source, len(envs))
}

func (s *Supervisor) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev == next {
		return
	}

	metrics.RecordFeedState(s.id, prev.String(), next.String(), int(next))
	s.log.Info().Str("from", prev.String()).Str("to", next.String()).Msg("feed connection state changed")

	if s.consumer != nil {
		s.consumer.OnConnectionStateChanged(next)
	}
}
