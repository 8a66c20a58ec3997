/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package itinerary

import (
	"errors"
	"fmt"
	"sort"

	"github.com/friendsincode/wayfarer/internal/clock"
)

// ErrMalformedRecord indicates a day or slot record that cannot be read.
var ErrMalformedRecord = errors.New("malformed itinerary record")

// SlotRecord is the persisted and wire form of a slot.
type SlotRecord struct {
	Start    string    `json:"start"`
	End      string    `json:"end"`
	Title    *string   `json:"title"`
	Category *string   `json:"category"`
	Location *Location `json:"location"`
	Kind     string    `json:"kind,omitempty"`
	PlaceID  string    `json:"place_id,omitempty"`
}

// DayRecord is the persisted and wire form of a day.
type DayRecord struct {
	Weekday       string       `json:"weekday"`
	StartLocation string       `json:"start_location"`
	EndLocation   string       `json:"end_location"`
	Schedule      []SlotRecord `json:"schedule"`
}

// Record maps YYYY-MM-DD dates to day records.
type Record map[string]DayRecord

// TimelineEvent is a flattened slot for calendar rendering.
type TimelineEvent struct {
	Title *string `json:"title"`
	Start string  `json:"start"`
	End   string  `json:"end"`
	Type  string  `json:"type"`
}

// TimelineDay groups timeline events by date.
type TimelineDay struct {
	Date    string          `json:"date"`
	Weekday string          `json:"weekday"`
	Events  []TimelineEvent `json:"events"`
}

// Record serializes the itinerary.
func (it *Itinerary) Record() Record {
	out := make(Record, len(it.Days))
	for _, d := range it.Days {
		out[d.Date] = d.Record()
	}
	return out
}

// Record serializes one day.
func (d *DaySchedule) Record() DayRecord {
	rec := DayRecord{
		Weekday:       d.Weekday,
		StartLocation: d.StartAnchor,
		EndLocation:   d.EndAnchor,
		Schedule:      make([]SlotRecord, 0, len(d.Slots)),
	}
	for _, s := range d.Slots {
		rec.Schedule = append(rec.Schedule, s.Record())
	}
	return rec
}

// Record serializes one slot.
func (s Slot) Record() SlotRecord {
	rec := SlotRecord{
		Start: s.Start.String(),
		End:   s.End.String(),
		Kind:  string(s.Kind),
	}
	if o, ok := s.Content.Occupant(); ok {
		title := o.Title
		category := string(o.Category)
		rec.Title = &title
		rec.Category = &category
		if o.Location != nil {
			loc := *o.Location
			rec.Location = &loc
		}
		rec.PlaceID = o.PlaceID
	}
	return rec
}

// FromRecord rebuilds an itinerary, ordering days by date and slots by start.
func FromRecord(rec Record) (*Itinerary, error) {
	dates := make([]string, 0, len(rec))
	for date := range rec {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	it := &Itinerary{Days: make([]*DaySchedule, 0, len(dates))}
	for _, date := range dates {
		day, err := DayFromRecord(date, rec[date])
		if err != nil {
			return nil, err
		}
		it.Days = append(it.Days, day)
	}
	return it, nil
}

// DayFromRecord rebuilds one day.
func DayFromRecord(date string, rec DayRecord) (*DaySchedule, error) {
	if _, err := clock.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrMalformedRecord, date)
	}
	day := &DaySchedule{
		Date:        date,
		Weekday:     rec.Weekday,
		StartAnchor: rec.StartLocation,
		EndAnchor:   rec.EndLocation,
		Slots:       make([]Slot, 0, len(rec.Schedule)),
	}
	for i, sr := range rec.Schedule {
		slot, err := sr.slot(i, len(rec.Schedule))
		if err != nil {
			return nil, fmt.Errorf("%s slot %d: %w", date, i, err)
		}
		day.Slots = append(day.Slots, slot)
	}
	day.SortSlots()
	for i := 1; i < len(day.Slots); i++ {
		prev, cur := day.Slots[i-1], day.Slots[i]
		if cur.Start < prev.End {
			return nil, fmt.Errorf("%w: %s slots %s-%s and %s-%s overlap", ErrMalformedRecord, date, prev.Start, prev.End, cur.Start, cur.End)
		}
	}
	return day, nil
}

func (sr SlotRecord) slot(index, total int) (Slot, error) {
	start, err := clock.Parse(sr.Start)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: start: %v", ErrMalformedRecord, err)
	}
	end, err := clock.Parse(sr.End)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: end: %v", ErrMalformedRecord, err)
	}
	if end < start {
		return Slot{}, fmt.Errorf("%w: end %s before start %s", ErrMalformedRecord, sr.End, sr.Start)
	}

	slot := Slot{Start: start, End: end, Kind: Kind(sr.Kind)}
	var category Category
	if sr.Category != nil {
		category = Category(*sr.Category)
	}
	if slot.Kind == "" {
		slot.Kind = inferKind(category, index, total)
	}
	switch slot.Kind {
	case KindNormal, KindDayStart, KindDayEnd, KindBaseAnchor:
	default:
		return Slot{}, fmt.Errorf("%w: kind %q", ErrMalformedRecord, sr.Kind)
	}

	if sr.Title != nil {
		o := Occupant{Title: *sr.Title, Category: category, PlaceID: sr.PlaceID}
		if sr.Location != nil {
			loc := *sr.Location
			o.Location = &loc
		}
		slot.Content = Occupied(o)
	}
	return slot, nil
}

// inferKind recovers anchors from records that predate the kind field.
func inferKind(category Category, index, total int) Kind {
	switch category {
	case CategoryStart:
		return KindDayStart
	case CategoryEnd:
		return KindDayEnd
	case CategoryLodging:
		if index == 0 {
			return KindDayStart
		}
		if index == total-1 {
			return KindDayEnd
		}
		return KindBaseAnchor
	}
	return KindNormal
}

// Timeline flattens a record into date-sorted calendar days.
func Timeline(rec Record) []TimelineDay {
	dates := make([]string, 0, len(rec))
	for date := range rec {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	days := make([]TimelineDay, 0, len(dates))
	for _, date := range dates {
		dr := rec[date]
		events := make([]TimelineEvent, 0, len(dr.Schedule))
		for _, s := range dr.Schedule {
			typ := "etc"
			if s.Category != nil && *s.Category != "" {
				typ = *s.Category
			}
			events = append(events, TimelineEvent{Title: s.Title, Start: s.Start, End: s.End, Type: typ})
		}
		days = append(days, TimelineDay{Date: date, Weekday: dr.Weekday, Events: events})
	}
	return days
}
