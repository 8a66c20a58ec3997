/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package itinerary models a multi-day trip as per-day slot sequences.
package itinerary

import (
	"sort"

	"github.com/friendsincode/wayfarer/internal/clock"
)

// Kind classifies a slot. Every kind other than KindNormal is protected.
type Kind string

const (
	KindNormal     Kind = "normal"
	KindDayStart   Kind = "day-start"
	KindDayEnd     Kind = "day-end"
	KindBaseAnchor Kind = "base-anchor"
)

// Category tags the place type of an occupied slot.
type Category string

const (
	CategoryAttraction Category = "tourist_attraction"
	CategoryMeal       Category = "restaurant"
	CategoryCafe       Category = "cafe"
	CategoryBakery     Category = "bakery"
	CategoryBar        Category = "bar"
	CategoryShopping   Category = "shopping_mall"

	// Anchor pseudo-categories.
	CategoryStart   Category = "start"
	CategoryEnd     Category = "end"
	CategoryLodging Category = "accommodation"
)

// Universe lists every fillable category in a fixed order.
func Universe() []Category {
	return []Category{
		CategoryAttraction,
		CategoryCafe,
		CategoryMeal,
		CategoryBakery,
		CategoryBar,
		CategoryShopping,
	}
}

// Location is a named coordinate.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Occupant is what an occupied slot holds.
type Occupant struct {
	Title    string
	Category Category
	Location *Location
	PlaceID  string
}

// Content is either empty or occupied. The zero value is empty.
type Content struct {
	occupant *Occupant
}

// Empty returns empty content.
func Empty() Content { return Content{} }

// Occupied wraps an occupant.
func Occupied(o Occupant) Content {
	if o.Location != nil {
		loc := *o.Location
		o.Location = &loc
	}
	return Content{occupant: &o}
}

// IsEmpty reports whether nothing is assigned.
func (c Content) IsEmpty() bool { return c.occupant == nil }

// Occupant returns the occupant and whether one is present.
func (c Content) Occupant() (Occupant, bool) {
	if c.occupant == nil {
		return Occupant{}, false
	}
	return *c.occupant, true
}

// Slot is a half-open interval [Start, End) within one day.
type Slot struct {
	Start   clock.TimeOfDay
	End     clock.TimeOfDay
	Kind    Kind
	Content Content
}

// Protected reports whether the slot is an anchor that must not change.
func (s Slot) Protected() bool {
	return s.Kind != KindNormal && s.Kind != ""
}

// Duration in minutes.
func (s Slot) Duration() int { return s.End.Sub(s.Start) }

// IsEmpty reports whether the slot has no content.
func (s Slot) IsEmpty() bool { return s.Content.IsEmpty() }

// Fillable reports whether the filler may assign this slot.
func (s Slot) Fillable() bool { return !s.Protected() && s.IsEmpty() }

// Category returns the occupant category, or "" when empty.
func (s Slot) Category() Category {
	if o, ok := s.Content.Occupant(); ok {
		return o.Category
	}
	return ""
}

// Location returns the occupant location, or nil.
func (s Slot) Location() *Location {
	if o, ok := s.Content.Occupant(); ok {
		return o.Location
	}
	return nil
}

// DaySchedule is one calendar date of the trip.
type DaySchedule struct {
	Date        string
	Weekday     string
	StartAnchor string
	EndAnchor   string
	Slots       []Slot
}

// Find returns the index of the slot spanning exactly [start, end), or -1.
func (d *DaySchedule) Find(start, end clock.TimeOfDay) int {
	for i, s := range d.Slots {
		if s.Start == start && s.End == end {
			return i
		}
	}
	return -1
}

// Assign sets the content of slot i. Protected slots are refused.
func (d *DaySchedule) Assign(i int, c Content) bool {
	if i < 0 || i >= len(d.Slots) || d.Slots[i].Protected() {
		return false
	}
	d.Slots[i].Content = c
	return true
}

// PrevLocation returns the location of the most recent located slot
// strictly before index i.
func (d *DaySchedule) PrevLocation(i int) *Location {
	for j := i - 1; j >= 0; j-- {
		if loc := d.Slots[j].Location(); loc != nil {
			return loc
		}
	}
	return nil
}

// SortSlots orders slots by start time, keeping ties stable.
func (d *DaySchedule) SortSlots() {
	sort.SliceStable(d.Slots, func(i, j int) bool {
		return d.Slots[i].Start < d.Slots[j].Start
	})
}

// Itinerary is the ordered set of trip days.
type Itinerary struct {
	Days []*DaySchedule
}

// Day returns the schedule for a date, or nil.
func (it *Itinerary) Day(date string) *DaySchedule {
	if it == nil {
		return nil
	}
	for _, d := range it.Days {
		if d.Date == date {
			return d
		}
	}
	return nil
}

// Clone returns a deep copy.
func (it *Itinerary) Clone() *Itinerary {
	if it == nil {
		return nil
	}
	out := &Itinerary{Days: make([]*DaySchedule, len(it.Days))}
	for i, d := range it.Days {
		cp := *d
		cp.Slots = make([]Slot, len(d.Slots))
		for j, s := range d.Slots {
			if o, ok := s.Content.Occupant(); ok {
				s.Content = Occupied(o)
			}
			cp.Slots[j] = s
		}
		out.Days[i] = &cp
	}
	return out
}

// SlotCount returns the total number of slots across all days.
func (it *Itinerary) SlotCount() int {
	n := 0
	for _, d := range it.Days {
		n += len(d.Slots)
	}
	return n
}

// Occupants lists every occupant of a normal slot, in chronological order.
func (it *Itinerary) Occupants() []Occupant {
	var out []Occupant
	for _, d := range it.Days {
		for _, s := range d.Slots {
			if s.Protected() {
				continue
			}
			if o, ok := s.Content.Occupant(); ok {
				out = append(out, o)
			}
		}
	}
	return out
}
