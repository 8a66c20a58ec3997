/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"sort"
	"time"

	"github.com/friendsincode/wayfarer/internal/clock"
	"github.com/friendsincode/wayfarer/internal/itinerary"
	"github.com/friendsincode/wayfarer/internal/policy"
)

// DefaultBranchFactor is the number of candidates kept per slot.
const DefaultBranchFactor = 5

type runKey struct {
	date       string
	start, end clock.TimeOfDay
	categories string
}

// Selector narrows the catalog to the top candidates for one slot. A
// Selector belongs to a single run and is not safe for concurrent use.
type Selector struct {
	catalog   *Catalog
	distances *Distances
	k         int
	filtered  map[runKey][]int
	weekdays  map[string]int
}

// NewSelector builds a selector over cat keeping at most k candidates.
func NewSelector(cat *Catalog, distances *Distances, k int) *Selector {
	if k <= 0 {
		k = DefaultBranchFactor
	}
	if distances == nil {
		distances = NewDistances()
	}
	return &Selector{
		catalog:   cat,
		distances: distances,
		k:         k,
		filtered:  make(map[runKey][]int),
		weekdays:  make(map[string]int),
	}
}

// Candidates returns up to k catalog indexes for the slot, nearest first
// when prev is known and most trusted first otherwise.
func (s *Selector) Candidates(categories policy.CategorySet, date string, slot itinerary.Slot, prev *itinerary.Location, consumed *ConsumedSet) []int {
	pool := s.eligible(categories, date, slot)

	out := make([]int, 0, len(pool))
	for _, i := range pool {
		if consumed != nil && consumed.Has(i) {
			continue
		}
		out = append(out, i)
	}

	if prev != nil {
		from := *prev
		sort.SliceStable(out, func(a, b int) bool {
			return s.distances.Squared(from, s.catalog.At(out[a]).Location()) <
				s.distances.Squared(from, s.catalog.At(out[b]).Location())
		})
	} else {
		sort.SliceStable(out, func(a, b int) bool {
			return s.catalog.At(out[a]).TrustScore > s.catalog.At(out[b]).TrustScore
		})
	}

	if len(out) > s.k {
		out = out[:s.k]
	}
	return out
}

// eligible applies every filter except consumption and caches the result.
func (s *Selector) eligible(categories policy.CategorySet, date string, slot itinerary.Slot) []int {
	key := runKey{date: date, start: slot.Start, end: slot.End, categories: categories.Key()}
	if pool, ok := s.filtered[key]; ok {
		return pool
	}

	wd, known := s.weekday(date)
	var pool []int
	for i, e := range s.catalog.entries {
		if !categories.Contains(e.Category) || !e.Operational || IsLodging(e.Name) {
			continue
		}
		if known && !e.hours.IsOpen(wd, slot.Start, slot.End) {
			continue
		}
		pool = append(pool, i)
	}
	s.filtered[key] = pool
	return pool
}

func (s *Selector) weekday(date string) (time.Weekday, bool) {
	if v, hit := s.weekdays[date]; hit {
		return time.Weekday(v), v >= 0
	}
	w, err := clock.Weekday(date)
	if err != nil {
		s.weekdays[date] = -1
		return 0, false
	}
	s.weekdays[date] = int(w)
	return w, true
}
