// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package cache

import (
	"sync"
	"time"
)

// RateWindow counts occurrences over a trailing window split into buckets.
// Count is accurate to one bucket width.
type RateWindow struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	window     time.Duration
	current    int
	lastTick   time.Time
	now        func() time.Time
}

// NewRateWindow returns a counter over window using n buckets. Defaults are
// one minute and 12 buckets.
func NewRateWindow(window time.Duration, n int) *RateWindow {
	if n <= 0 {
		n = 12
	}
	if window <= 0 {
		window = time.Minute
	}

	bucket := window / time.Duration(n)
	if bucket <= 0 {
		bucket = 1
	}
	return &RateWindow{
		buckets:    make([]int64, n),
		bucketSize: bucket,
		window:     window,
		lastTick:   time.Now(),
		now:        time.Now,
	}
}

// Add records delta occurrences now.
func (w *RateWindow) Add(delta int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advance()
	w.buckets[w.current] += delta
}

// Count returns the occurrences within the window.
func (w *RateWindow) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.advance()
	var total int64
	for _, c := range w.buckets {
		total += c
	}
	return total
}

// Window returns the window length.
func (w *RateWindow) Window() time.Duration { return w.window }

func (w *RateWindow) advance() {
	now := w.now()
	steps := int(now.Sub(w.lastTick) / w.bucketSize)
	if steps <= 0 {
		return
	}

	if steps >= len(w.buckets) {
		clear(w.buckets)
		w.current = 0
	} else {
		for range steps {
			w.current = (w.current + 1) % len(w.buckets)
			w.buckets[w.current] = 0
		}
	}
	// keep lastTick on a bucket boundary so partial buckets carry over
	w.lastTick = w.lastTick.Add(time.Duration(steps) * w.bucketSize)
}
