/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import "math/bits"

// ConsumedSet records which catalog indexes are committed for a run.
type ConsumedSet struct {
	words []uint64
	count int
}

// NewConsumedSet sizes a set for n candidates.
func NewConsumedSet(n int) *ConsumedSet {
	return &ConsumedSet{words: make([]uint64, (n+63)/64)}
}

// Has reports whether index i is consumed.
func (s *ConsumedSet) Has(i int) bool {
	w := i / 64
	if w >= len(s.words) {
		return false
	}
	return s.words[w]&(1<<(uint(i)%64)) != 0
}

// Mark consumes index i permanently.
func (s *ConsumedSet) Mark(i int) {
	s.set(i, true)
}

// Acquire consumes index i and returns a release that restores the prior
// state. Release is safe to call more than once.
func (s *ConsumedSet) Acquire(i int) (release func()) {
	was := s.Has(i)
	s.set(i, true)
	done := false
	return func() {
		if done {
			return
		}
		done = true
		s.set(i, was)
	}
}

// Len counts consumed indexes.
func (s *ConsumedSet) Len() int { return s.count }

// Clone copies the set.
func (s *ConsumedSet) Clone() *ConsumedSet {
	cp := &ConsumedSet{words: make([]uint64, len(s.words)), count: s.count}
	copy(cp.words, s.words)
	return cp
}

func (s *ConsumedSet) set(i int, on bool) {
	w := i / 64
	for w >= len(s.words) {
		s.words = append(s.words, 0)
	}
	mask := uint64(1) << (uint(i) % 64)
	before := s.words[w]
	if on {
		s.words[w] |= mask
	} else {
		s.words[w] &^= mask
	}
	s.count += bits.OnesCount64(s.words[w]) - bits.OnesCount64(before)
}
