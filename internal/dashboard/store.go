// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package dashboard holds the client-side view state a dashboard session
// renders from: recent alerts, counters and connection state.
package dashboard

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/tomtom215/threatfeed/internal/cache"
	"github.com/tomtom215/threatfeed/internal/feed"
	"github.com/tomtom215/threatfeed/internal/models"
)

// Config sizes the store.
type Config struct {
	// RecentLimit caps the recent alert list.
	RecentLimit int
	// DedupCapacity and DedupTTL bound the seen-ID set.
	DedupCapacity int
	DedupTTL      time.Duration
	// MinSeverity drops envelopes below it. Empty keeps everything.
	MinSeverity models.Severity
	// RateWindow is the span of EventsInWindow.
	RateWindow time.Duration
}

// DefaultConfig returns defaults for an interactive session.
func DefaultConfig() Config {
	return Config{
		RecentLimit:   50,
		DedupCapacity: 4096,
		DedupTTL:      30 * time.Minute,
		RateWindow:    time.Minute,
	}
}

// State is a point-in-time copy of the store.
type State struct {
	Connection     feed.State
	Recent         []models.EventEnvelope // newest first
	BySeverity     map[models.Severity]int
	ByCategory     map[models.Category]int
	Total          int
	Duplicates     int
	Filtered       int
	EventsInWindow int64
	Window         time.Duration
	LastEventAt    time.Time
	StateChangedAt time.Time
}

// Store is a feed.Consumer that keeps renderable dashboard state. The feed
// calls it from one goroutine; Snapshot may be called from any other.
type Store struct {
	cfg  Config
	seen *cache.SeenSet
	rate *cache.RateWindow

	mu             sync.RWMutex
	connection     feed.State
	recent         []models.EventEnvelope
	bySeverity     map[models.Severity]int
	byCategory     map[models.Category]int
	total          int
	duplicates     int
	filtered       int
	lastEventAt    time.Time
	stateChangedAt time.Time

	onChange func()
}

var _ feed.Consumer = (*Store)(nil)

// NewStore returns an empty store.
func NewStore(cfg Config) *Store {
	def := DefaultConfig()
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = def.RecentLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}

	return &Store{
		cfg:        cfg,
		seen:       cache.NewSeenSet(cfg.DedupCapacity, cfg.DedupTTL),
		rate:       cache.NewRateWindow(cfg.RateWindow, 12),
		recent:     make([]models.EventEnvelope, 0, cfg.RecentLimit),
		bySeverity: make(map[models.Severity]int, len(models.Severities)),
		byCategory: make(map[models.Category]int, len(models.Categories)),
	}
}

// OnChange registers fn to run after every state change. Set it before the
// store is handed to a feed.
func (s *Store) OnChange(fn func()) { s.onChange = fn }

// OnEnvelope implements feed.Consumer.
func (s *Store) OnEnvelope(env models.EventEnvelope) {
	if s.seen.Observe(env.ID) {
		s.mu.Lock()
		s.duplicates++
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.cfg.MinSeverity != "" && !env.Severity.AtLeast(s.cfg.MinSeverity) {
		s.filtered++
		s.mu.Unlock()
		return
	}

	s.total++
	s.bySeverity[env.Severity]++
	s.byCategory[env.Category]++
	s.lastEventAt = time.Now()
	s.insertRecent(env)
	s.mu.Unlock()

	s.rate.Add(1)
	s.changed()
}

// OnConnectionStateChanged implements feed.Consumer.
func (s *Store) OnConnectionStateChanged(state feed.State) {
	s.mu.Lock()
	s.connection = state
	s.stateChangedAt = time.Now()
	s.mu.Unlock()

	s.changed()
}

// Snapshot returns a copy safe to keep and render.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return State{
		Connection:     s.connection,
		Recent:         slices.Clone(s.recent),
		BySeverity:     maps.Clone(s.bySeverity),
		ByCategory:     maps.Clone(s.byCategory),
		Total:          s.total,
		Duplicates:     s.duplicates,
		Filtered:       s.filtered,
		EventsInWindow: s.rate.Count(),
		Window:         s.rate.Window(),
		LastEventAt:    s.lastEventAt,
		StateChangedAt: s.stateChangedAt,
	}
}

// insertRecent keeps recent ordered by timestamp, newest first. Envelopes
// that arrive late (a resync or a pull) land in their timestamp slot.
func (s *Store) insertRecent(env models.EventEnvelope) {
	i, _ := slices.BinarySearchFunc(s.recent, env.Timestamp, func(e models.EventEnvelope, ts time.Time) int {
		// descending
		return ts.Compare(e.Timestamp)
	})
	if i >= s.cfg.RecentLimit {
		return
	}
	s.recent = slices.Insert(s.recent, i, env)
	if len(s.recent) > s.cfg.RecentLimit {
		s.recent = s.recent[:s.cfg.RecentLimit]
	}
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
