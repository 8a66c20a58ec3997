/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/friendsincode/wayfarer/internal/clock"
	"github.com/friendsincode/wayfarer/internal/itinerary"
)

const testDate = "2025-06-02"

func occupied(title string, cat itinerary.Category) itinerary.Content {
	loc := itinerary.Location{Name: title, Lat: 37.5, Lng: 127}
	return itinerary.Occupied(itinerary.Occupant{Title: title, Category: cat, Location: &loc, PlaceID: title})
}

// sampleItinerary is 08:00-09:00 anchor, 09:00-11:00 museum, 11:00-13:00
// empty, 13:00-15:00 noodles, 15:00-16:30 empty, 16:30-17:30 end anchor.
func sampleItinerary() *itinerary.Itinerary {
	return &itinerary.Itinerary{Days: []*itinerary.DaySchedule{{
		Date:    testDate,
		Weekday: "Monday",
		Slots: []itinerary.Slot{
			{Start: clock.At(8, 0), End: clock.At(9, 0), Kind: itinerary.KindDayStart, Content: occupied("Station", itinerary.CategoryStart)},
			{Start: clock.At(9, 0), End: clock.At(11, 0), Kind: itinerary.KindNormal, Content: occupied("Museum", itinerary.CategoryAttraction)},
			{Start: clock.At(11, 0), End: clock.At(13, 0), Kind: itinerary.KindNormal},
			{Start: clock.At(13, 0), End: clock.At(15, 0), Kind: itinerary.KindNormal, Content: occupied("Noodles", itinerary.CategoryMeal)},
			{Start: clock.At(15, 0), End: clock.At(16, 30), Kind: itinerary.KindNormal},
			{Start: clock.At(16, 30), End: clock.At(17, 30), Kind: itinerary.KindDayEnd, Content: occupied("Airport", itinerary.CategoryEnd)},
		},
	}}}
}

func spans(day *itinerary.DaySchedule) []string {
	out := make([]string, len(day.Slots))
	for i, s := range day.Slots {
		out[i] = s.Start.String() + "-" + s.End.String()
	}
	return out
}

func TestDeletion(t *testing.T) {
	r := NewReconciler(zerolog.Nop())
	in := sampleItinerary()

	out, report, err := r.Apply(in, Edits{Deletions: []Deletion{
		{Date: testDate, Start: "09:00", End: "11:00"},
		{Date: testDate, Start: "08:00", End: "09:00"},
		{Date: testDate, Start: "10:00", End: "12:00"},
		{Date: "2025-06-09", Start: "09:00", End: "11:00"},
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deleted)
	assert.Len(t, report.Ignored, 3)
	assert.True(t, out.Days[0].Slots[1].IsEmpty())
	assert.False(t, out.Days[0].Slots[0].IsEmpty(), "anchors cannot be deleted")
	assert.False(t, in.Days[0].Slots[1].IsEmpty(), "input is untouched")
}

func TestNonExistentDeletionIsNoop(t *testing.T) {
	r := NewReconciler(zerolog.Nop())
	in := sampleItinerary()

	out, _, err := r.Apply(in, Edits{Deletions: []Deletion{{Date: testDate, Start: "19:00", End: "21:00"}}})
	require.NoError(t, err)
	assert.Equal(t, in.Record(), out.Record())
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		split   Split
		applied bool
		want    []string
	}{
		{
			name:    "center rounds to quarter hour",
			split:   Split{Date: testDate, Start: "11:00", End: "13:00"},
			applied: true,
			want:    []string{"08:00-09:00", "09:00-11:00", "11:00-12:00", "12:00-13:00", "13:00-15:00", "15:00-16:30", "16:30-17:30"},
		},
		{
			name:    "ninety minutes splits at quarter",
			split:   Split{Date: testDate, Start: "15:00", End: "16:30"},
			applied: true,
			want:    []string{"08:00-09:00", "09:00-11:00", "11:00-13:00", "13:00-15:00", "15:00-15:45", "15:45-16:30", "16:30-17:30"},
		},
		{
			name:    "explicit mid is clamped",
			split:   Split{Date: testDate, Start: "11:00", End: "13:00", Mid: "11:10"},
			applied: true,
			want:    []string{"08:00-09:00", "09:00-11:00", "11:00-11:30", "11:30-13:00", "13:00-15:00", "15:00-16:30", "16:30-17:30"},
		},
		{
			name:  "occupied slot is not split",
			split: Split{Date: testDate, Start: "09:00", End: "11:00"},
		},
		{
			name:  "protected slot is not split",
			split: Split{Date: testDate, Start: "16:30", End: "17:30"},
		},
	}

	r := NewReconciler(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleItinerary()
			out, report, err := r.Apply(in, Edits{Splits: []Split{tt.split}})
			require.NoError(t, err)
			if !tt.applied {
				assert.Zero(t, report.Split)
				assert.Equal(t, spans(in.Days[0]), spans(out.Days[0]))
				return
			}
			assert.Equal(t, 1, report.Split)
			assert.Equal(t, tt.want, spans(out.Days[0]))
		})
	}
}

func TestSplitShortSlotIsNoop(t *testing.T) {
	it := sampleItinerary()
	it.Days[0].Slots[2] = itinerary.Slot{Start: clock.At(11, 0), End: clock.At(11, 50), Kind: itinerary.KindNormal}

	out, report, err := NewReconciler(zerolog.Nop()).Apply(it, Edits{Splits: []Split{{Date: testDate, Start: "11:00", End: "11:50"}}})
	require.NoError(t, err)
	assert.Zero(t, report.Split)
	assert.Len(t, out.Days[0].Slots, 6)
}

func TestMerge(t *testing.T) {
	r := NewReconciler(zerolog.Nop())

	out, report, err := r.Apply(sampleItinerary(), Edits{Merges: []Merge{{
		Date:   testDate,
		Winner: Span{Start: "09:00", End: "11:00"},
		Loser:  Span{Start: "11:00", End: "13:00"},
	}}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merged)

	day := out.Days[0]
	assert.Equal(t, []string{"08:00-09:00", "09:00-13:00", "13:00-15:00", "15:00-16:30", "16:30-17:30"}, spans(day))
	o, ok := day.Slots[1].Content.Occupant()
	require.True(t, ok)
	assert.Equal(t, "Museum", o.Title)
}

func TestMergeNoops(t *testing.T) {
	tests := []struct {
		name  string
		merge Merge
	}{
		{"winner equals loser", Merge{Date: testDate, Winner: Span{"09:00", "11:00"}, Loser: Span{"09:00", "11:00"}}},
		{"protected loser", Merge{Date: testDate, Winner: Span{"15:00", "16:30"}, Loser: Span{"16:30", "17:30"}}},
		{"missing loser", Merge{Date: testDate, Winner: Span{"09:00", "11:00"}, Loser: Span{"11:00", "12:00"}}},
		{"span covers a third slot", Merge{Date: testDate, Winner: Span{"09:00", "11:00"}, Loser: Span{"13:00", "15:00"}}},
		{"unknown date", Merge{Date: "2025-06-05", Winner: Span{"09:00", "11:00"}, Loser: Span{"11:00", "13:00"}}},
	}

	r := NewReconciler(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleItinerary()
			out, report, err := r.Apply(in, Edits{Merges: []Merge{tt.merge}})
			require.NoError(t, err)
			assert.Zero(t, report.Merged)
			assert.Equal(t, in.Record(), out.Record())
		})
	}
}

func TestMalformedEdits(t *testing.T) {
	tests := []struct {
		name  string
		edits Edits
	}{
		{"deletion without date", Edits{Deletions: []Deletion{{Start: "09:00", End: "11:00"}}}},
		{"deletion bad time", Edits{Deletions: []Deletion{{Date: testDate, Start: "9am", End: "11:00"}}}},
		{"split without end", Edits{Splits: []Split{{Date: testDate, Start: "11:00"}}}},
		{"split bad mid", Edits{Splits: []Split{{Date: testDate, Start: "11:00", End: "13:00", Mid: "25:00"}}}},
		{"merge bad loser", Edits{Merges: []Merge{{Date: testDate, Winner: Span{"09:00", "11:00"}, Loser: Span{"", "13:00"}}}}},
		{"bad date", Edits{Deletions: []Deletion{{Date: "06/02/2025", Start: "09:00", End: "11:00"}}}},
	}

	r := NewReconciler(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.Apply(sampleItinerary(), tt.edits)
			assert.ErrorIs(t, err, ErrMalformedEdit)
			assert.ErrorIs(t, r.Validate(tt.edits), ErrMalformedEdit)
		})
	}
}

func TestMalformedEditAppliesNothing(t *testing.T) {
	in := sampleItinerary()
	out, _, err := NewReconciler(zerolog.Nop()).Apply(in, Edits{
		Deletions: []Deletion{{Date: testDate, Start: "09:00", End: "11:00"}},
		Merges:    []Merge{{Date: testDate}},
	})
	assert.ErrorIs(t, err, ErrMalformedEdit)
	assert.Nil(t, out)
	assert.False(t, in.Days[0].Slots[1].IsEmpty())
}

func TestEditOrderDeleteThenMerge(t *testing.T) {
	out, report, err := NewReconciler(zerolog.Nop()).Apply(sampleItinerary(), Edits{
		Deletions: []Deletion{{Date: testDate, Start: "13:00", End: "15:00"}},
		Splits:    []Split{{Date: testDate, Start: "13:00", End: "15:00"}},
		Merges: []Merge{{
			Date:   testDate,
			Winner: Span{Start: "14:00", End: "15:00"},
			Loser:  Span{Start: "15:00", End: "16:30"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, report.Split)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, []string{"08:00-09:00", "09:00-11:00", "11:00-13:00", "13:00-14:00", "14:00-16:30", "16:30-17:30"}, spans(out.Days[0]))
}

func TestOverlayKeepsAnchors(t *testing.T) {
	r := NewReconciler(zerolog.Nop())
	title := func(s string) *string { return &s }
	cat := func(s string) *string { return &s }

	overlay := itinerary.Record{testDate: {
		Weekday: "Monday",
		Schedule: []itinerary.SlotRecord{
			{Start: "07:30", End: "09:00", Title: title("Hijacked"), Category: cat("start")},
			{Start: "09:00", End: "12:00", Title: title("Palace"), Category: cat("tourist_attraction")},
			{Start: "12:00", End: "14:00"},
			{Start: "16:00", End: "18:00", Title: title("Bar"), Category: cat("bar")},
		},
	}}

	out, report, err := r.Apply(sampleItinerary(), Edits{
		Overlay:   overlay,
		Deletions: []Deletion{{Date: testDate, Start: "09:00", End: "12:00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Overlaid)
	assert.Zero(t, report.Deleted, "discrete edits are skipped with an overlay")

	day := out.Days[0]
	assert.Equal(t, []string{"08:00-09:00", "09:00-12:00", "12:00-14:00", "16:30-17:30"}, spans(day))
	start, _ := day.Slots[0].Content.Occupant()
	assert.Equal(t, "Station", start.Title)
	palace, _ := day.Slots[1].Content.Occupant()
	assert.Equal(t, "Palace", palace.Title)
}

func TestOverlayAddsUnknownDay(t *testing.T) {
	overlay := itinerary.Record{"2025-06-01": {Weekday: "Sunday", Schedule: []itinerary.SlotRecord{{Start: "10:00", End: "12:00"}}}}

	out, _, err := NewReconciler(zerolog.Nop()).Apply(sampleItinerary(), Edits{Overlay: overlay})
	require.NoError(t, err)
	require.Len(t, out.Days, 2)
	assert.Equal(t, "2025-06-01", out.Days[0].Date)
}

func TestOverlayMalformed(t *testing.T) {
	overlay := itinerary.Record{testDate: {Schedule: []itinerary.SlotRecord{{Start: "nine", End: "12:00"}}}}
	_, _, err := NewReconciler(zerolog.Nop()).Apply(sampleItinerary(), Edits{Overlay: overlay})
	assert.ErrorIs(t, err, ErrMalformedEdit)
}

func TestOverlayRejectsOverlappingSlots(t *testing.T) {
	overlay := itinerary.Record{testDate: {Weekday: "Monday", Schedule: []itinerary.SlotRecord{
		{Start: "09:00", End: "12:00"},
		{Start: "10:00", End: "11:00"},
	}}}

	in := sampleItinerary()
	_, _, err := NewReconciler(zerolog.Nop()).Apply(in, Edits{Overlay: overlay})
	assert.ErrorIs(t, err, ErrMalformedEdit)
	assert.Len(t, in.Days[0].Slots, 6, "input is left untouched")
}

func TestApplyMerges(t *testing.T) {
	r := NewReconciler(zerolog.Nop())
	out, n, err := r.ApplyMerges(sampleItinerary(), []Merge{{
		Date:   testDate,
		Winner: Span{Start: "13:00", End: "15:00"},
		Loser:  Span{Start: "15:00", End: "16:30"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"08:00-09:00", "09:00-11:00", "11:00-13:00", "13:00-16:30", "16:30-17:30"}, spans(out.Days[0]))
}
