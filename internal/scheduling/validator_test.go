/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/wayfarer/internal/clock"
	"github.com/friendsincode/wayfarer/internal/itinerary"
)

func TestValidateCleanItinerary(t *testing.T) {
	result := NewValidator(zerolog.Nop()).Validate(sampleItinerary())
	if !result.Valid {
		t.Fatalf("expected valid itinerary, got errors: %s", result.Summary())
	}
	if len(result.Info) != 1 || result.Info[0].RuleType != RuleTypeUnfilled {
		t.Fatalf("expected one unfilled info entry, got %+v", result.Info)
	}
}

func TestValidateViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(it *itinerary.Itinerary)
		want   RuleType
	}{
		{
			name: "overlap",
			mutate: func(it *itinerary.Itinerary) {
				it.Days[0].Slots[2].End = clock.At(13, 30)
			},
			want: RuleTypeOverlap,
		},
		{
			name: "unsorted",
			mutate: func(it *itinerary.Itinerary) {
				s := it.Days[0].Slots
				s[1], s[2] = s[2], s[1]
			},
			want: RuleTypeOrder,
		},
		{
			name: "empty anchor",
			mutate: func(it *itinerary.Itinerary) {
				it.Days[0].Slots[0].Content = itinerary.Empty()
			},
			want: RuleTypeProtectedContent,
		},
		{
			name: "duplicate place",
			mutate: func(it *itinerary.Itinerary) {
				it.Days[0].Slots[2].Content = occupied("Museum", itinerary.CategoryAttraction)
			},
			want: RuleTypeDuplicatePlace,
		},
		{
			name: "inverted slot",
			mutate: func(it *itinerary.Itinerary) {
				it.Days[0].Slots[4].End = it.Days[0].Slots[4].Start
			},
			want: RuleTypeBounds,
		},
	}

	v := NewValidator(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := sampleItinerary()
			tt.mutate(it)

			result := v.Validate(it)
			if result.Valid {
				t.Fatal("expected invalid itinerary")
			}
			found := false
			for _, e := range result.Errors {
				if e.RuleType == tt.want {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %s violation, got %+v", tt.want, result.Errors)
			}
		})
	}
}

func TestValidateDuplicateAcrossDays(t *testing.T) {
	it := sampleItinerary()
	second := *it.Days[0]
	second.Date = "2025-06-03"
	second.Slots = []itinerary.Slot{
		{Start: clock.At(10, 0), End: clock.At(12, 0), Kind: itinerary.KindNormal, Content: occupied("Noodles", itinerary.CategoryMeal)},
	}
	it.Days = append(it.Days, &second)

	result := NewValidator(zerolog.Nop()).Validate(it)
	if result.Valid || result.Errors[0].RuleType != RuleTypeDuplicatePlace {
		t.Fatalf("expected duplicate place across days, got %+v", result.Errors)
	}
	if result.Errors[0].Date != "2025-06-03" {
		t.Fatalf("violation date = %s, want 2025-06-03", result.Errors[0].Date)
	}
}
