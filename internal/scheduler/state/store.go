/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package state

import (
	"sync"
	"time"
)

// DefaultCapacity bounds the number of runs kept in memory.
const DefaultCapacity = 256

// RunRecord summarizes one finished planning run.
type RunRecord struct {
	RunID      string        `json:"run_id"`
	UserID     string        `json:"-"`
	Title      string        `json:"title"`
	Operation  string        `json:"operation"`
	Mode       string        `json:"mode"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Revision   int           `json:"revision"`
	Filled     int           `json:"filled"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration_ns"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Store keeps the most recent runs in memory, oldest first.
type Store struct {
	mu       sync.RWMutex
	capacity int
	recent   []RunRecord
}

// NewStore creates a run history store.
func NewStore() *Store {
	return NewStoreWithCapacity(DefaultCapacity)
}

// NewStoreWithCapacity creates a store holding at most capacity runs.
func NewStoreWithCapacity(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity, recent: make([]RunRecord, 0, 16)}
}

// Add registers a finished run, evicting the oldest past capacity.
func (s *Store) Add(run RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, run)
	if over := len(s.recent) - s.capacity; over > 0 {
		s.recent = append(s.recent[:0], s.recent[over:]...)
	}
}

// Recent returns the user's runs, newest first. An empty userID returns all.
func (s *Store) Recent(userID string, limit int) []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunRecord, 0, len(s.recent))
	for i := len(s.recent) - 1; i >= 0; i-- {
		if userID != "" && s.recent[i].UserID != userID {
			continue
		}
		out = append(out, s.recent[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Prune removes entries finished before cutoff.
func (s *Store) Prune(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := s.recent[:0]
	for _, r := range s.recent {
		if r.FinishedAt.After(cutoff) {
			filtered = append(filtered, r)
		}
	}
	s.recent = filtered
}
