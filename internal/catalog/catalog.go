/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog holds the scored candidate places of a planning run and
// the selection logic that narrows them down for one slot.
package catalog

import (
	"math"
	"strings"

	"github.com/friendsincode/wayfarer/internal/clock"
	"github.com/friendsincode/wayfarer/internal/itinerary"
)

// Candidate is a scored catalog entry. Candidates are never mutated by the
// planner; consumption is tracked in a ConsumedSet.
type Candidate struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Category      itinerary.Category `json:"category"`
	Lat           float64            `json:"lat"`
	Lng           float64            `json:"lng"`
	TrustScore    float64            `json:"trust_score"`
	AffinityScore float64            `json:"affinity_score"`
	AversionScore float64            `json:"aversion_score"`
	OpenHours     []string           `json:"open_hours,omitempty"`
	Operational   bool               `json:"operational"`
}

// Location returns the candidate's coordinates as an itinerary location.
func (c Candidate) Location() itinerary.Location {
	return itinerary.Location{Name: c.Name, Lat: c.Lat, Lng: c.Lng}
}

// Occupant converts the candidate into slot content.
func (c Candidate) Occupant() itinerary.Occupant {
	loc := c.Location()
	return itinerary.Occupant{Title: c.Name, Category: c.Category, Location: &loc, PlaceID: c.ID}
}

var lodgingMarkers = []string{"호텔", "모텔", "게스트하우스", "hotel", "motel", "hostel", "guesthouse"}

// IsLodging reports whether a place name denotes somewhere to sleep.
func IsLodging(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range lodgingMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

type entry struct {
	Candidate
	hours     clock.OpenHours
	affinityN float64
	aversionN float64
}

// Catalog is an immutable, indexed candidate list with catalog-wide
// min-max normalized affinity and aversion.
type Catalog struct {
	entries []entry
	byID    map[string]int
	byName  map[string]int
}

// New builds a catalog from candidates.
func New(candidates []Candidate) *Catalog {
	c := &Catalog{
		entries: make([]entry, len(candidates)),
		byID:    make(map[string]int, len(candidates)),
		byName:  make(map[string]int, len(candidates)),
	}

	affMin, affMax := math.Inf(1), math.Inf(-1)
	avMin, avMax := math.Inf(1), math.Inf(-1)
	for _, cand := range candidates {
		affMin, affMax = math.Min(affMin, cand.AffinityScore), math.Max(affMax, cand.AffinityScore)
		avMin, avMax = math.Min(avMin, cand.AversionScore), math.Max(avMax, cand.AversionScore)
	}

	for i, cand := range candidates {
		c.entries[i] = entry{
			Candidate: cand,
			hours:     clock.ParseOpenHours(cand.OpenHours),
			affinityN: normalize(cand.AffinityScore, affMin, affMax),
			aversionN: normalize(cand.AversionScore, avMin, avMax),
		}
		if cand.ID != "" {
			if _, dup := c.byID[cand.ID]; !dup {
				c.byID[cand.ID] = i
			}
		}
		key := strings.ToLower(strings.TrimSpace(cand.Name))
		if _, dup := c.byName[key]; !dup {
			c.byName[key] = i
		}
	}
	return c
}

func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// Len returns the number of candidates.
func (c *Catalog) Len() int { return len(c.entries) }

// At returns candidate i.
func (c *Catalog) At(i int) Candidate { return c.entries[i].Candidate }

// Normalized returns the normalized affinity and aversion of candidate i.
func (c *Catalog) Normalized(i int) (affinity, aversion float64) {
	e := c.entries[i]
	return e.affinityN, e.aversionN
}

// Lookup finds a candidate by place id, then by case-insensitive name.
func (c *Catalog) Lookup(placeID, name string) (int, bool) {
	if placeID != "" {
		if i, ok := c.byID[placeID]; ok {
			return i, true
		}
	}
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return i, ok
}

// SeedConsumed marks every catalog entry already assigned in the itinerary.
func (c *Catalog) SeedConsumed(it *itinerary.Itinerary, set *ConsumedSet) int {
	n := 0
	for _, o := range it.Occupants() {
		if i, ok := c.Lookup(o.PlaceID, o.Title); ok && !set.Has(i) {
			set.Mark(i)
			n++
		}
	}
	return n
}
