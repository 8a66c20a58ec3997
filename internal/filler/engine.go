/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package filler assigns catalog candidates to empty slots with a
// bounded-depth greedy lookahead.
package filler

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/friendsincode/wayfarer/internal/catalog"
	"github.com/friendsincode/wayfarer/internal/itinerary"
	"github.com/friendsincode/wayfarer/internal/policy"
	"github.com/friendsincode/wayfarer/internal/weights"
)

// DefaultDepth is the lookahead depth. Depth 1 is plain greedy.
const DefaultDepth = 3

// Engine fills itineraries from a catalog.
type Engine struct {
	policy *policy.Policy
	logger zerolog.Logger
}

// New creates a filler engine. A nil policy uses the default profiles.
func New(p *policy.Policy, logger zerolog.Logger) *Engine {
	if p == nil {
		p = policy.Default()
	}
	return &Engine{policy: p, logger: logger.With().Str("component", "filler").Logger()}
}

// FillRequest describes one fill pass.
type FillRequest struct {
	Itinerary    *itinerary.Itinerary
	Catalog      *catalog.Catalog
	Weights      weights.Vector
	Mode         policy.Mode
	Depth        int
	BranchFactor int
	// Consumed seeds the run's consumed set. It is copied, not mutated.
	Consumed *catalog.ConsumedSet
}

// Decision records what happened to one empty slot.
type Decision struct {
	Date       string  `json:"date"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	PlaceID    string  `json:"place_id,omitempty"`
	Title      string  `json:"title,omitempty"`
	Category   string  `json:"category,omitempty"`
	Score      float64 `json:"score"`
	Considered int     `json:"considered"`
}

// FillResult is the outcome of a fill pass.
type FillResult struct {
	Itinerary *itinerary.Itinerary
	Consumed  *catalog.ConsumedSet
	Filled    int
	Skipped   int
	Evaluated int
	Decisions []Decision
}

type cursor struct {
	day, slot int
}

// run holds the state of one Fill call. Not safe for concurrent use.
type run struct {
	it        *itinerary.Itinerary
	cat       *catalog.Catalog
	sel       *catalog.Selector
	dist      *catalog.Distances
	w         weights.Vector
	mode      policy.Mode
	policy    *policy.Policy
	consumed  *catalog.ConsumedSet
	cursors   []cursor
	evaluated int
}

// Fill assigns candidates to every empty, unprotected slot in
// chronological order. The input itinerary is not modified.
func (e *Engine) Fill(ctx context.Context, req FillRequest) (FillResult, error) {
	it := req.Itinerary.Clone()
	if it == nil {
		it = &itinerary.Itinerary{}
	}

	depth := req.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}

	var consumed *catalog.ConsumedSet
	size := 0
	if req.Catalog != nil {
		size = req.Catalog.Len()
	}
	if req.Consumed != nil {
		consumed = req.Consumed.Clone()
	} else {
		consumed = catalog.NewConsumedSet(size)
	}

	result := FillResult{Itinerary: it, Consumed: consumed}
	if size == 0 {
		e.logger.Debug().Msg("empty catalog, itinerary unchanged")
		return result, nil
	}

	dist := catalog.NewDistances()
	r := &run{
		it:       it,
		cat:      req.Catalog,
		sel:      catalog.NewSelector(req.Catalog, dist, req.BranchFactor),
		dist:     dist,
		w:        req.Weights,
		mode:     req.Mode,
		policy:   e.policy,
		consumed: consumed,
	}
	for d, day := range it.Days {
		for s := range day.Slots {
			r.cursors = append(r.cursors, cursor{day: d, slot: s})
		}
	}

	for pos, cur := range r.cursors {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		day := it.Days[cur.day]
		slot := day.Slots[cur.slot]
		if !slot.Fillable() {
			continue
		}

		decision := Decision{Date: day.Date, Start: slot.Start.String(), End: slot.End.String()}
		cands := r.candidates(cur)
		decision.Considered = len(cands)

		best, bestScore := -1, math.Inf(-1)
		for _, c := range cands {
			total := r.branch(pos, c, depth)
			if total > bestScore {
				best, bestScore = c, total
			}
		}

		if best < 0 {
			result.Skipped++
			result.Decisions = append(result.Decisions, decision)
			e.logger.Debug().Str("date", day.Date).Str("start", decision.Start).Msg("no candidate for slot")
			continue
		}

		chosen := r.cat.At(best)
		day.Assign(cur.slot, itinerary.Occupied(chosen.Occupant()))
		consumed.Mark(best)

		decision.PlaceID = chosen.ID
		decision.Title = chosen.Name
		decision.Category = string(chosen.Category)
		decision.Score = bestScore
		result.Filled++
		result.Decisions = append(result.Decisions, decision)
	}

	result.Evaluated = r.evaluated
	e.logger.Debug().
		Int("filled", result.Filled).
		Int("skipped", result.Skipped).
		Int("evaluated", result.Evaluated).
		Int("depth", depth).
		Msg("fill complete")
	return result, nil
}

func (r *run) candidates(cur cursor) []int {
	day := r.it.Days[cur.day]
	allowed := r.policy.AllowedCategories(day, cur.slot, r.mode)
	prev := day.PrevLocation(cur.slot)
	return r.sel.Candidates(allowed, day.Date, day.Slots[cur.slot], prev, r.consumed)
}

// immediate scores candidate c for the slot at cur.
func (r *run) immediate(cur cursor, c int) float64 {
	cand := r.cat.At(c)
	affinity, aversion := r.cat.Normalized(c)
	prev := r.it.Days[cur.day].PrevLocation(cur.slot)
	return r.w.Dist*r.dist.Proximity(prev, cand.Location()) +
		r.w.Cluster*affinity +
		r.w.Trust*cand.TrustScore -
		r.w.Nonhope*aversion +
		r.w.Intercept
}

// branch scores c at position pos plus the best continuation of depth-1,
// with c tentatively committed.
func (r *run) branch(pos, c, depth int) float64 {
	cur := r.cursors[pos]
	r.evaluated++
	score := r.immediate(cur, c)

	undo := r.tentative(cur, c)
	defer undo()
	return score + r.future(pos+1, depth-1)
}

// future returns the best achievable score from pos with the given depth.
func (r *run) future(pos, depth int) float64 {
	if depth <= 0 || pos >= len(r.cursors) {
		return 0
	}
	cur := r.cursors[pos]
	day := r.it.Days[cur.day]
	slot := day.Slots[cur.slot]

	if !slot.Fillable() {
		loc := slot.Location()
		if loc == nil {
			return 0
		}
		return r.w.Dist * r.dist.Proximity(day.PrevLocation(cur.slot), *loc)
	}

	cands := r.candidates(cur)
	if len(cands) == 0 {
		return 0
	}
	best := math.Inf(-1)
	for _, c := range cands {
		if v := r.branch(pos, c, depth); v > best {
			best = v
		}
	}
	return best
}

// tentative places c in the slot at cur and marks it consumed. The
// returned func restores both.
func (r *run) tentative(cur cursor, c int) func() {
	day := r.it.Days[cur.day]
	prior := day.Slots[cur.slot].Content
	day.Slots[cur.slot].Content = itinerary.Occupied(r.cat.At(c).Occupant())
	release := r.consumed.Acquire(c)
	return func() {
		day.Slots[cur.slot].Content = prior
		release()
	}
}
