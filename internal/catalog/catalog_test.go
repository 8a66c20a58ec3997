/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/wayfarer/internal/clock"
	"github.com/friendsincode/wayfarer/internal/itinerary"
	"github.com/friendsincode/wayfarer/internal/policy"
)

func place(id, name string, cat itinerary.Category, lat, lng, trust float64) Candidate {
	return Candidate{ID: id, Name: name, Category: cat, Lat: lat, Lng: lng, TrustScore: trust, Operational: true}
}

func slotAt(start, end string) itinerary.Slot {
	return itinerary.Slot{Start: clock.MustParse(start), End: clock.MustParse(end), Kind: itinerary.KindNormal}
}

func TestNormalization(t *testing.T) {
	cat := New([]Candidate{
		{ID: "a", AffinityScore: 2, AversionScore: 1},
		{ID: "b", AffinityScore: 4, AversionScore: 1},
		{ID: "c", AffinityScore: 3, AversionScore: 1},
	})

	aff, av := cat.Normalized(0)
	assert.Equal(t, 0.0, aff)
	assert.Equal(t, 0.0, av, "flat aversion normalizes to zero")

	aff, _ = cat.Normalized(1)
	assert.Equal(t, 1.0, aff)
	aff, _ = cat.Normalized(2)
	assert.InDelta(t, 0.5, aff, 1e-9)
}

func TestConsumedSetAcquireRelease(t *testing.T) {
	set := NewConsumedSet(3)
	release := set.Acquire(1)
	assert.True(t, set.Has(1))
	assert.Equal(t, 1, set.Len())

	release()
	release()
	assert.False(t, set.Has(1))
	assert.Equal(t, 0, set.Len())

	set.Mark(2)
	release = set.Acquire(2)
	release()
	assert.True(t, set.Has(2), "release restores a prior commit")

	set.Mark(130)
	assert.True(t, set.Has(130))
	assert.Equal(t, 2, set.Len())
}

func TestSelectorFiltersAndRanks(t *testing.T) {
	cat := New([]Candidate{
		place("far", "Far Museum", itinerary.CategoryAttraction, 0.3, 0, 4.9),
		place("near", "Near Gallery", itinerary.CategoryAttraction, 0.1, 0, 3.0),
		place("mid", "Mid Palace", itinerary.CategoryAttraction, 0.2, 0, 4.0),
		place("meal", "Noodle Bar", itinerary.CategoryMeal, 0, 0, 5.0),
		place("hotel", "Grand Hotel", itinerary.CategoryAttraction, 0, 0, 5.0),
		{ID: "shut", Name: "Closed Tower", Category: itinerary.CategoryAttraction, TrustScore: 5},
	})
	sel := NewSelector(cat, NewDistances(), 5)
	set := policy.NewCategorySet(itinerary.CategoryAttraction)
	slot := slotAt("10:00", "12:00")

	prev := &itinerary.Location{Lat: 0, Lng: 0}
	got := sel.Candidates(set, "2025-06-02", slot, prev, NewConsumedSet(cat.Len()))
	require.Len(t, got, 3)
	assert.Equal(t, []string{"near", "mid", "far"}, ids(cat, got))

	got = sel.Candidates(set, "2025-06-02", slot, nil, NewConsumedSet(cat.Len()))
	assert.Equal(t, []string{"far", "mid", "near"}, ids(cat, got))

	consumed := NewConsumedSet(cat.Len())
	consumed.Mark(1)
	got = sel.Candidates(set, "2025-06-02", slot, prev, consumed)
	assert.Equal(t, []string{"mid", "far"}, ids(cat, got), "cached pool still honours consumption")
}

func TestSelectorTruncatesAndKeepsTies(t *testing.T) {
	var cands []Candidate
	for _, id := range []string{"a", "b", "c", "d"} {
		cands = append(cands, place(id, "Cafe "+id, itinerary.CategoryCafe, 0, 0, 4))
	}
	cat := New(cands)
	sel := NewSelector(cat, nil, 2)

	got := sel.Candidates(policy.NewCategorySet(itinerary.CategoryCafe), "2025-06-02", slotAt("10:00", "12:00"), nil, nil)
	assert.Equal(t, []string{"a", "b"}, ids(cat, got))
}

func TestSelectorOpenHours(t *testing.T) {
	museum := place("m", "Museum", itinerary.CategoryAttraction, 0, 0, 4)
	museum.OpenHours = []string{"Monday: 9:00 AM – 6:00 PM", "Tuesday: Closed"}
	cat := New([]Candidate{museum})
	sel := NewSelector(cat, nil, 5)
	set := policy.NewCategorySet(itinerary.CategoryAttraction)

	assert.Len(t, sel.Candidates(set, "2025-06-02", slotAt("10:00", "12:00"), nil, nil), 1)
	assert.Empty(t, sel.Candidates(set, "2025-06-02", slotAt("17:00", "19:00"), nil, nil))
	assert.Empty(t, sel.Candidates(set, "2025-06-03", slotAt("10:00", "12:00"), nil, nil))
	assert.Empty(t, sel.Candidates(set, "2025-06-04", slotAt("10:00", "12:00"), nil, nil))
}

func TestSeedConsumed(t *testing.T) {
	cat := New([]Candidate{
		place("p1", "Palace", itinerary.CategoryAttraction, 0, 0, 4),
		place("p2", "Tea House", itinerary.CategoryCafe, 0, 0, 4),
	})
	it := &itinerary.Itinerary{Days: []*itinerary.DaySchedule{{
		Date: "2025-06-02",
		Slots: []itinerary.Slot{
			{Start: clock.At(9, 0), End: clock.At(11, 0), Kind: itinerary.KindNormal,
				Content: itinerary.Occupied(itinerary.Occupant{Title: "tea house", Category: itinerary.CategoryCafe})},
		},
	}}}

	set := NewConsumedSet(cat.Len())
	assert.Equal(t, 1, cat.SeedConsumed(it, set))
	assert.True(t, set.Has(1))
	assert.False(t, set.Has(0))
}

func TestDistancesMemo(t *testing.T) {
	d := NewDistances()
	a := itinerary.Location{Lat: 0, Lng: 0}
	b := itinerary.Location{Lat: 3, Lng: 4}

	assert.Equal(t, 25.0, d.Squared(a, b))
	assert.Equal(t, 5.0, d.Euclid(a, b))
	assert.Equal(t, 1, d.Len())
	assert.InDelta(t, 1.0/6.0, d.Proximity(&a, b), 1e-12)
	assert.Equal(t, 0.0, d.Proximity(nil, b))
}

func TestTrustScore(t *testing.T) {
	assert.InDelta(t, 4.0, TrustScore(4.0, 1000, ""), 1e-9)
	assert.InDelta(t, 4.0, TrustScore(4.0, 5000, ""), 1e-9, "review count saturates")
	assert.InDelta(t, 2.0, TrustScore(4.0, 31, ""), 0.02)
	assert.InDelta(t, 4.4, TrustScore(4.0, 1000, "2 weeks ago"), 1e-9)
	assert.InDelta(t, 4.2, TrustScore(4.0, 1000, "3개월 전"), 1e-9)
	assert.Equal(t, 5.0, TrustScore(4.9, 1000, "a day ago"))
	assert.Equal(t, 0.0, TrustScore(4.5, 0, ""))
	assert.Equal(t, 0.0, RecencyBonus("2 years ago"))
	assert.Equal(t, 0.0, RecencyBonus("9 months ago"))
	assert.Equal(t, 0.0, RecencyBonus("11 months ago"))
	assert.Equal(t, 0.10, RecencyBonus("한 달 전"))
}

func TestIsLodging(t *testing.T) {
	assert.True(t, IsLodging("신라호텔"))
	assert.True(t, IsLodging("Seaside HOSTEL"))
	assert.False(t, IsLodging("Hot Pot House"))
}

func ids(cat *Catalog, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = cat.At(j).ID
	}
	return out
}
