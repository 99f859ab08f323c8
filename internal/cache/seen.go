// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package cache

import (
	"sync"
	"time"
)

type seenEntry struct {
	key       string
	seenAt    time.Time
	expiresAt time.Time
	prev      *seenEntry
	next      *seenEntry
}

// SeenSet remembers recently observed keys with LRU eviction and a TTL.
// All operations are O(1). It is safe for concurrent use.
//
// The list runs from head (most recent) to tail (least recent) between two
// sentinel nodes.
type SeenSet struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*seenEntry
	head     *seenEntry
	tail     *seenEntry
	now      func() time.Time

	hits   int64
	misses int64
}

// NewSeenSet returns a set holding at most capacity keys for ttl each.
// Non-positive arguments select 1024 keys and 10 minutes.
func NewSeenSet(capacity int, ttl time.Duration) *SeenSet {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	s := &SeenSet{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*seenEntry, capacity),
		head:     &seenEntry{},
		tail:     &seenEntry{},
		now:      time.Now,
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Observe records key and reports whether it was already present and
// unexpired. A repeat refreshes its recency but not its TTL.
func (s *SeenSet) Observe(key string) (duplicate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.items[key]; ok {
		if now.Before(e.expiresAt) {
			s.unlink(e)
			s.pushFront(e)
			s.hits++
			return true
		}
		s.remove(e)
	}

	e := &seenEntry{key: key, seenAt: now, expiresAt: now.Add(s.ttl)}
	s.pushFront(e)
	s.items[key] = e
	for len(s.items) > s.capacity {
		s.remove(s.tail.prev)
	}

	s.misses++
	return false
}

// Contains reports whether key is present and unexpired without touching
// its recency.
func (s *SeenSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	return ok && s.now().Before(e.expiresAt)
}

// SeenAt returns when key was first observed.
func (s *SeenSet) SeenAt(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return time.Time{}, false
	}
	return e.seenAt, true
}

// Forget removes key. It reports whether key was present.
func (s *SeenSet) Forget(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if ok {
		s.remove(e)
	}
	return ok
}

// Prune drops expired keys, oldest first, and returns how many went.
func (s *SeenSet) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for e := s.tail.prev; e != s.head; {
		prev := e.prev
		if !now.Before(e.expiresAt) {
			s.remove(e)
			removed++
		}
		e = prev
	}
	return removed
}

// Len returns the number of tracked keys, expired ones included until
// they are pruned or evicted.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Stats returns duplicate hits, first sightings and current size.
func (s *SeenSet) Stats() (hits, misses int64, size int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses, len(s.items)
}

// Lock held for the helpers below.

func (s *SeenSet) pushFront(e *seenEntry) {
	e.prev = s.head
	e.next = s.head.next
	s.head.next.prev = e
	s.head.next = e
}

func (s *SeenSet) unlink(e *seenEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (s *SeenSet) remove(e *seenEntry) {
	if e == s.head || e == s.tail {
		return
	}
	s.unlink(e)
	delete(s.items, e.key)
}
