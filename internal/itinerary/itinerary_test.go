/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/wayfarer/internal/clock"
)

func strPtr(s string) *string { return &s }

func sampleDay() *DaySchedule {
	hotel := &Location{Name: "Harbor Inn", Lat: 35.1, Lng: 129.0}
	return &DaySchedule{
		Date:        "2025-06-02",
		Weekday:     "Monday",
		StartAnchor: "Harbor Inn",
		EndAnchor:   "Harbor Inn",
		Slots: []Slot{
			{Start: clock.At(8, 0), End: clock.At(9, 0), Kind: KindDayStart,
				Content: Occupied(Occupant{Title: "Harbor Inn", Category: CategoryLodging, Location: hotel})},
			{Start: clock.At(9, 0), End: clock.At(11, 0), Kind: KindNormal},
			{Start: clock.At(11, 0), End: clock.At(13, 0), Kind: KindNormal,
				Content: Occupied(Occupant{Title: "Fish Market", Category: CategoryMeal, Location: &Location{Name: "Fish Market", Lat: 35.2, Lng: 129.1}})},
			{Start: clock.At(13, 0), End: clock.At(14, 0), Kind: KindDayEnd,
				Content: Occupied(Occupant{Title: "Harbor Inn", Category: CategoryLodging, Location: hotel})},
		},
	}
}

func TestAssignRefusesProtected(t *testing.T) {
	day := sampleDay()

	ok := day.Assign(0, Empty())
	assert.False(t, ok)
	assert.False(t, day.Slots[0].IsEmpty())

	ok = day.Assign(1, Occupied(Occupant{Title: "Museum", Category: CategoryAttraction}))
	assert.True(t, ok)
	assert.Equal(t, CategoryAttraction, day.Slots[1].Category())
}

func TestPrevLocationSkipsEmptySlots(t *testing.T) {
	day := sampleDay()

	loc := day.PrevLocation(2)
	require.NotNil(t, loc)
	assert.Equal(t, "Harbor Inn", loc.Name)

	assert.Nil(t, day.PrevLocation(0))
	assert.Equal(t, "Fish Market", day.PrevLocation(3).Name)
}

func TestCloneIsIndependent(t *testing.T) {
	it := &Itinerary{Days: []*DaySchedule{sampleDay()}}
	cp := it.Clone()

	cp.Days[0].Assign(2, Empty())
	cp.Days[0].Slots[0].Content = Occupied(Occupant{Title: "Elsewhere"})

	assert.False(t, it.Days[0].Slots[2].IsEmpty())
	o, _ := it.Days[0].Slots[0].Content.Occupant()
	assert.Equal(t, "Harbor Inn", o.Title)
}

func TestFromRecordInfersAnchorKinds(t *testing.T) {
	rec := Record{
		"2025-06-03": {
			Weekday: "Tuesday",
			Schedule: []SlotRecord{
				{Start: "12:00", End: "14:00"},
				{Start: "08:00", End: "09:00", Title: strPtr("Harbor Inn"), Category: strPtr("accommodation")},
				{Start: "09:00", End: "11:00", Title: strPtr("Tower"), Category: strPtr("tourist_attraction")},
				{Start: "14:00", End: "15:00", Title: strPtr("Station"), Category: strPtr("end")},
			},
		},
	}

	it, err := FromRecord(rec)
	require.NoError(t, err)
	require.Len(t, it.Days, 1)

	slots := it.Days[0].Slots
	require.Len(t, slots, 4)
	assert.Equal(t, clock.At(8, 0), slots[0].Start)
	assert.Equal(t, KindBaseAnchor, slots[0].Kind, "lodging that was not first in the record stays protected")
	assert.Equal(t, KindNormal, slots[1].Kind)
	assert.True(t, slots[2].IsEmpty())
	assert.Equal(t, KindDayEnd, slots[3].Kind)
}

func TestFromRecordRejectsBadTimes(t *testing.T) {
	_, err := FromRecord(Record{"2025-06-03": {Schedule: []SlotRecord{{Start: "nine", End: "10:00"}}}})
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = FromRecord(Record{"2025-06-03": {Schedule: []SlotRecord{{Start: "11:00", End: "10:00"}}}})
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = FromRecord(Record{"June 3": {}})
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestFromRecordRejectsOverlappingSlots(t *testing.T) {
	_, err := DayFromRecord("2025-06-03", DayRecord{Schedule: []SlotRecord{
		{Start: "10:00", End: "11:00"},
		{Start: "09:00", End: "12:00"},
	}})
	assert.ErrorIs(t, err, ErrMalformedRecord)

	day, err := DayFromRecord("2025-06-03", DayRecord{Schedule: []SlotRecord{
		{Start: "11:00", End: "12:00"},
		{Start: "09:00", End: "11:00"},
	}})
	require.NoError(t, err, "touching slots are not an overlap")
	assert.Len(t, day.Slots, 2)
}

func TestRecordCarriesNullsForEmptySlots(t *testing.T) {
	rec := sampleDay().Record()

	require.Len(t, rec.Schedule, 4)
	assert.Nil(t, rec.Schedule[1].Title)
	assert.Nil(t, rec.Schedule[1].Location)
	assert.Equal(t, "09:00", rec.Schedule[1].Start)
	require.NotNil(t, rec.Schedule[2].Category)
	assert.Equal(t, "restaurant", *rec.Schedule[2].Category)
}

func TestTimeline(t *testing.T) {
	rec := Record{
		"2025-06-03": {Weekday: "Tuesday", Schedule: []SlotRecord{{Start: "09:00", End: "11:00"}}},
		"2025-06-02": sampleDay().Record(),
	}

	days := Timeline(rec)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-06-02", days[0].Date)
	assert.Equal(t, "etc", days[1].Events[0].Type)
	assert.Equal(t, "accommodation", days[0].Events[0].Type)
}
