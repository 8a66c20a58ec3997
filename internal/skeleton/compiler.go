/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package skeleton builds the empty per-day slot layout of a trip.
package skeleton

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/wayfarer/internal/clock"
	"github.com/friendsincode/wayfarer/internal/itinerary"
)

var (
	// ErrInvalidDateRange indicates an empty or inverted trip range.
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrAnchorUnresolved indicates an anchor location could not be found.
	ErrAnchorUnresolved = errors.New("anchor location unresolved")
)

// Chunking rule, in minutes.
const (
	MinGap      = 90
	ChunkLength = 120
	MaxTail     = 210
	AnchorSpan  = 60
)

// AnchorResolver looks up a named location.
type AnchorResolver interface {
	ResolveAnchor(ctx context.Context, query string) (itinerary.Location, bool, error)
}

// TripRequest describes the trip whose skeleton is compiled.
type TripRequest struct {
	StartDate     string
	EndDate       string
	FirstDayStart clock.TimeOfDay
	LastDayEnd    clock.TimeOfDay
	StartLocation string
	EndLocation   string
	Lodging       string // defaults to EndLocation
}

// Planner compiles trip requests into slot skeletons.
type Planner struct {
	resolver AnchorResolver
	dayStart clock.TimeOfDay
	dayEnd   clock.TimeOfDay
	logger   zerolog.Logger
}

// NewPlanner constructs a planner using the default 09:00-23:00 day window.
func NewPlanner(resolver AnchorResolver, logger zerolog.Logger) *Planner {
	return &Planner{
		resolver: resolver,
		dayStart: clock.At(9, 0),
		dayEnd:   clock.At(23, 0),
		logger:   logger.With().Str("component", "skeleton").Logger(),
	}
}

// WithDayWindow overrides the window used for intermediate days.
func (p *Planner) WithDayWindow(start, end clock.TimeOfDay) *Planner {
	p.dayStart, p.dayEnd = start, end
	return p
}

type anchors struct {
	start itinerary.Location
	end   itinerary.Location
	base  itinerary.Location
}

// Compile resolves anchors and lays out every day of the trip.
func (p *Planner) Compile(ctx context.Context, req TripRequest) (*itinerary.Itinerary, error) {
	first, err := clock.ParseDate(req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q", ErrInvalidDateRange, req.StartDate)
	}
	last, err := clock.ParseDate(req.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: end date %q", ErrInvalidDateRange, req.EndDate)
	}
	dates := clock.DateRange(first, last)
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidDateRange, req.StartDate, req.EndDate)
	}

	a, err := p.resolveAnchors(ctx, req)
	if err != nil {
		return nil, err
	}

	it := &itinerary.Itinerary{Days: make([]*itinerary.DaySchedule, 0, len(dates))}
	for i, date := range dates {
		isFirst, isLast := i == 0, i == len(dates)-1

		windowStart, windowEnd := p.dayStart, p.dayEnd
		if isFirst {
			windowStart = req.FirstDayStart
		}
		if isLast {
			windowEnd = req.LastDayEnd
		}
		if windowEnd < windowStart {
			return nil, fmt.Errorf("%w: %s window %s-%s is inverted", ErrInvalidDateRange, clock.FormatDate(date), windowStart, windowEnd)
		}

		startLoc, startCat := a.base, itinerary.CategoryLodging
		if isFirst {
			startLoc, startCat = a.start, itinerary.CategoryStart
		}
		endLoc, endCat := a.base, itinerary.CategoryLodging
		if isLast {
			endLoc, endCat = a.end, itinerary.CategoryEnd
		}

		slots := SplitRange(windowStart, windowEnd)
		day := &itinerary.DaySchedule{
			Date:        clock.FormatDate(date),
			Weekday:     date.Weekday().String(),
			StartAnchor: startLoc.Name,
			EndAnchor:   endLoc.Name,
			Slots:       insertAnchors(slots, windowStart, windowEnd, anchorSlot(startLoc, startCat), anchorSlot(endLoc, endCat)),
		}

		p.logger.Debug().
			Str("date", day.Date).
			Str("window", windowStart.String()+"-"+windowEnd.String()).
			Int("slots", len(slots)).
			Msg("day compiled")

		it.Days = append(it.Days, day)
	}

	return it, nil
}

func (p *Planner) resolveAnchors(ctx context.Context, req TripRequest) (anchors, error) {
	lodging := req.Lodging
	if lodging == "" {
		lodging = req.EndLocation
	}

	var a anchors
	g, gctx := errgroup.WithContext(ctx)
	resolve := func(label, query string, dst *itinerary.Location) {
		g.Go(func() error {
			loc, ok, err := p.resolver.ResolveAnchor(gctx, query)
			if err != nil {
				return fmt.Errorf("resolve %s anchor %q: %w", label, query, err)
			}
			if !ok {
				return fmt.Errorf("%w: %s %q", ErrAnchorUnresolved, label, query)
			}
			*dst = loc
			return nil
		})
	}
	resolve("start", req.StartLocation, &a.start)
	resolve("end", req.EndLocation, &a.end)
	// Lodging is resolved even for single-day trips that never use it.
	resolve("lodging", lodging, &a.base)
	if err := g.Wait(); err != nil {
		return anchors{}, err
	}
	return a, nil
}

type anchor struct {
	loc      itinerary.Location
	category itinerary.Category
}

func anchorSlot(loc itinerary.Location, category itinerary.Category) anchor {
	return anchor{loc: loc, category: category}
}

func (a anchor) content() itinerary.Content {
	loc := a.loc
	return itinerary.Occupied(itinerary.Occupant{Title: loc.Name, Category: a.category, Location: &loc})
}

// insertAnchors brackets the day's slots with a day-start and a day-end
// anchor, each AnchorSpan minutes long.
func insertAnchors(slots []itinerary.Slot, windowStart, windowEnd clock.TimeOfDay, head, tail anchor) []itinerary.Slot {
	first, last := windowStart, windowEnd
	if len(slots) > 0 {
		first, last = slots[0].Start, slots[len(slots)-1].End
	}

	out := make([]itinerary.Slot, 0, len(slots)+2)
	out = append(out, itinerary.Slot{
		Start:   first.Add(-AnchorSpan),
		End:     first,
		Kind:    itinerary.KindDayStart,
		Content: head.content(),
	})
	out = append(out, slots...)
	out = append(out, itinerary.Slot{
		Start:   last,
		End:     last.Add(AnchorSpan),
		Kind:    itinerary.KindDayEnd,
		Content: tail.content(),
	})
	return out
}

// SplitRange cuts [start, end) into empty slots. Gaps under MinGap are
// dropped, gaps under ChunkLength become one slot, and longer gaps are cut
// into ChunkLength pieces with a tail of MinGap..MaxTail kept whole.
func SplitRange(start, end clock.TimeOfDay) []itinerary.Slot {
	gap := end.Sub(start)
	if gap < MinGap {
		return nil
	}
	if gap < ChunkLength {
		return []itinerary.Slot{emptySlot(start, end)}
	}

	var slots []itinerary.Slot
	cursor := start
	for end.Sub(cursor) >= ChunkLength {
		next := cursor.Add(ChunkLength)
		slots = append(slots, emptySlot(cursor, next))
		cursor = next
	}
	if rest := end.Sub(cursor); rest >= MinGap && rest <= MaxTail {
		slots = append(slots, emptySlot(cursor, end))
	}
	return slots
}

func emptySlot(start, end clock.TimeOfDay) itinerary.Slot {
	return itinerary.Slot{Start: start, End: end, Kind: itinerary.KindNormal}
}
