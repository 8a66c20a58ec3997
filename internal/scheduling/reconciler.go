/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduling applies client edits to an itinerary and checks the
// result for broken invariants.
package scheduling

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/wayfarer/internal/clock"
	"github.com/friendsincode/wayfarer/internal/itinerary"
)

// ErrMalformedEdit indicates an edit with a missing or unparseable field.
var ErrMalformedEdit = errors.New("malformed edit")

const (
	minSplitable  = 60
	minSplitHalf  = 30
	splitRounding = 15
)

// Span is a start/end pair in HH:MM form.
type Span struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Deletion clears one slot.
type Deletion struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Split cuts one empty slot in two. Mid is optional.
type Split struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
	Mid   string `json:"mid,omitempty"`
}

// Merge joins two slots of one day, keeping the winner's content.
type Merge struct {
	Date   string `json:"date"`
	Winner Span   `json:"winner"`
	Loser  Span   `json:"loser"`
}

// Edits is the full edit set of a reschedule request.
type Edits struct {
	Deletions []Deletion       `json:"deletions,omitempty"`
	Splits    []Split          `json:"splits,omitempty"`
	Merges    []Merge          `json:"merges,omitempty"`
	Overlay   itinerary.Record `json:"tables,omitempty"`
}

// Empty reports whether there is nothing to apply.
func (e Edits) Empty() bool {
	return len(e.Deletions) == 0 && len(e.Splits) == 0 && len(e.Merges) == 0 && len(e.Overlay) == 0
}

// Report counts what Apply changed.
type Report struct {
	Overlaid int      `json:"overlaid"`
	Deleted  int      `json:"deleted"`
	Split    int      `json:"split"`
	Merged   int      `json:"merged"`
	Ignored  []string `json:"ignored,omitempty"`
}

// Reconciler applies edits.
type Reconciler struct {
	logger zerolog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(logger zerolog.Logger) *Reconciler {
	return &Reconciler{logger: logger.With().Str("component", "reconciler").Logger()}
}

type parsedSpan struct {
	start, end clock.TimeOfDay
}

type parsedDeletion struct {
	date string
	span parsedSpan
}

type parsedSplit struct {
	date   string
	span   parsedSpan
	mid    clock.TimeOfDay
	hasMid bool
}

type parsedMerge struct {
	date          string
	winner, loser parsedSpan
}

// Apply returns a copy of it with edits applied. An overlay replaces the
// days it names and suppresses the discrete edits. Malformed edits fail
// the whole call before anything is applied.
func (r *Reconciler) Apply(it *itinerary.Itinerary, edits Edits) (*itinerary.Itinerary, Report, error) {
	var report Report
	out := it.Clone()
	if out == nil {
		out = &itinerary.Itinerary{}
	}

	if len(edits.Overlay) > 0 {
		if err := r.overlay(out, edits.Overlay, &report); err != nil {
			return nil, report, err
		}
		if len(edits.Deletions)+len(edits.Splits)+len(edits.Merges) > 0 {
			report.Ignored = append(report.Ignored, "discrete edits ignored with overlay")
		}
		return out, report, nil
	}

	deletions, splits, merges, err := parseEdits(edits)
	if err != nil {
		return nil, report, err
	}

	for _, d := range deletions {
		if r.deleteSlot(out, d) {
			report.Deleted++
		} else {
			report.Ignored = append(report.Ignored, fmt.Sprintf("delete %s %s-%s", d.date, d.span.start, d.span.end))
		}
	}
	for _, s := range splits {
		if r.splitSlot(out, s) {
			report.Split++
		} else {
			report.Ignored = append(report.Ignored, fmt.Sprintf("split %s %s-%s", s.date, s.span.start, s.span.end))
		}
	}
	report.Merged, report.Ignored = r.applyMerges(out, merges, report.Ignored)

	r.logger.Debug().
		Int("deleted", report.Deleted).
		Int("split", report.Split).
		Int("merged", report.Merged).
		Int("ignored", len(report.Ignored)).
		Msg("edits applied")
	return out, report, nil
}

// Validate checks edits for malformed fields without applying them.
func (r *Reconciler) Validate(edits Edits) error {
	if len(edits.Overlay) > 0 {
		return nil
	}
	_, _, _, err := parseEdits(edits)
	return err
}

// ApplyMerges applies only merge edits, for re-merging after a fill.
func (r *Reconciler) ApplyMerges(it *itinerary.Itinerary, merges []Merge) (*itinerary.Itinerary, int, error) {
	_, _, parsed, err := parseEdits(Edits{Merges: merges})
	if err != nil {
		return nil, 0, err
	}
	out := it.Clone()
	n, _ := r.applyMerges(out, parsed, nil)
	return out, n, nil
}

func (r *Reconciler) applyMerges(it *itinerary.Itinerary, merges []parsedMerge, ignored []string) (int, []string) {
	n := 0
	for _, m := range merges {
		if r.mergeSlots(it, m) {
			n++
		} else {
			ignored = append(ignored, fmt.Sprintf("merge %s %s-%s into %s-%s", m.date, m.loser.start, m.loser.end, m.winner.start, m.winner.end))
		}
	}
	return n, ignored
}

func parseEdits(edits Edits) ([]parsedDeletion, []parsedSplit, []parsedMerge, error) {
	deletions := make([]parsedDeletion, 0, len(edits.Deletions))
	for i, d := range edits.Deletions {
		date, err := parseDate(d.Date)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: deletion %d: %v", ErrMalformedEdit, i, err)
		}
		span, err := parseSpan(d.Start, d.End)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: deletion %d: %v", ErrMalformedEdit, i, err)
		}
		deletions = append(deletions, parsedDeletion{date: date, span: span})
	}

	splits := make([]parsedSplit, 0, len(edits.Splits))
	for i, s := range edits.Splits {
		date, err := parseDate(s.Date)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: split %d: %v", ErrMalformedEdit, i, err)
		}
		span, err := parseSpan(s.Start, s.End)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: split %d: %v", ErrMalformedEdit, i, err)
		}
		ps := parsedSplit{date: date, span: span}
		if strings.TrimSpace(s.Mid) != "" {
			mid, err := clock.Parse(s.Mid)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%w: split %d mid: %v", ErrMalformedEdit, i, err)
			}
			ps.mid, ps.hasMid = mid, true
		}
		splits = append(splits, ps)
	}

	merges := make([]parsedMerge, 0, len(edits.Merges))
	for i, m := range edits.Merges {
		date, err := parseDate(m.Date)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: merge %d: %v", ErrMalformedEdit, i, err)
		}
		winner, err := parseSpan(m.Winner.Start, m.Winner.End)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: merge %d winner: %v", ErrMalformedEdit, i, err)
		}
		loser, err := parseSpan(m.Loser.Start, m.Loser.End)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: merge %d loser: %v", ErrMalformedEdit, i, err)
		}
		merges = append(merges, parsedMerge{date: date, winner: winner, loser: loser})
	}

	return deletions, splits, merges, nil
}

func parseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("missing date")
	}
	if _, err := clock.ParseDate(s); err != nil {
		return "", fmt.Errorf("bad date %q", s)
	}
	return s, nil
}

func parseSpan(start, end string) (parsedSpan, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return parsedSpan{}, errors.New("missing start or end")
	}
	s, err := clock.Parse(start)
	if err != nil {
		return parsedSpan{}, err
	}
	e, err := clock.Parse(end)
	if err != nil {
		return parsedSpan{}, err
	}
	return parsedSpan{start: s, end: e}, nil
}

func (r *Reconciler) deleteSlot(it *itinerary.Itinerary, d parsedDeletion) bool {
	day := it.Day(d.date)
	if day == nil {
		return false
	}
	i := day.Find(d.span.start, d.span.end)
	if i < 0 || day.Slots[i].IsEmpty() {
		return false
	}
	return day.Assign(i, itinerary.Empty())
}

func (r *Reconciler) splitSlot(it *itinerary.Itinerary, s parsedSplit) bool {
	day := it.Day(s.date)
	if day == nil {
		return false
	}
	i := day.Find(s.span.start, s.span.end)
	if i < 0 {
		return false
	}
	slot := day.Slots[i]
	if slot.Protected() || !slot.IsEmpty() || slot.Duration() < minSplitable {
		return false
	}

	mid := s.mid
	if !s.hasMid {
		mid = slot.Start.Add(slot.Duration() / 2).RoundToNearest(splitRounding)
	}
	mid = clock.Clamp(mid, slot.Start.Add(minSplitHalf), slot.End.Add(-minSplitHalf))

	first := itinerary.Slot{Start: slot.Start, End: mid, Kind: itinerary.KindNormal}
	second := itinerary.Slot{Start: mid, End: slot.End, Kind: itinerary.KindNormal}
	slots := make([]itinerary.Slot, 0, len(day.Slots)+1)
	slots = append(slots, day.Slots[:i]...)
	slots = append(slots, first, second)
	slots = append(slots, day.Slots[i+1:]...)
	day.Slots = slots
	return true
}

func (r *Reconciler) mergeSlots(it *itinerary.Itinerary, m parsedMerge) bool {
	day := it.Day(m.date)
	if day == nil || m.winner == m.loser {
		return false
	}
	wi := day.Find(m.winner.start, m.winner.end)
	li := day.Find(m.loser.start, m.loser.end)
	if wi < 0 || li < 0 || day.Slots[wi].Protected() || day.Slots[li].Protected() {
		return false
	}

	start := min(m.winner.start, m.loser.start)
	end := max(m.winner.end, m.loser.end)
	for k, s := range day.Slots {
		if k == wi || k == li {
			continue
		}
		if s.Start < end && start < s.End {
			return false
		}
	}

	merged := itinerary.Slot{Start: start, End: end, Kind: itinerary.KindNormal, Content: day.Slots[wi].Content}
	slots := make([]itinerary.Slot, 0, len(day.Slots)-1)
	for k, s := range day.Slots {
		switch k {
		case wi:
			slots = append(slots, merged)
		case li:
		default:
			slots = append(slots, s)
		}
	}
	day.Slots = slots
	day.SortSlots()
	return true
}

// overlay replaces days wholesale, keeping the engine's anchors.
func (r *Reconciler) overlay(it *itinerary.Itinerary, rec itinerary.Record, report *Report) error {
	dates := make([]string, 0, len(rec))
	for date := range rec {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		client, err := itinerary.DayFromRecord(date, rec[date])
		if err != nil {
			return fmt.Errorf("%w: overlay %s: %v", ErrMalformedEdit, date, err)
		}

		current := it.Day(date)
		if current == nil {
			it.Days = append(it.Days, client)
			report.Overlaid++
			continue
		}

		*current = *mergeAnchors(current, client)
		report.Overlaid++
	}

	sort.SliceStable(it.Days, func(i, j int) bool { return it.Days[i].Date < it.Days[j].Date })
	return nil
}

// mergeAnchors takes the client's normal slots and the engine's protected
// slots. Client slots that collide with an anchor are dropped.
func mergeAnchors(engine, client *itinerary.DaySchedule) *itinerary.DaySchedule {
	var anchors []itinerary.Slot
	for _, s := range engine.Slots {
		if s.Protected() {
			anchors = append(anchors, s)
		}
	}

	out := &itinerary.DaySchedule{
		Date:        engine.Date,
		Weekday:     engine.Weekday,
		StartAnchor: engine.StartAnchor,
		EndAnchor:   engine.EndAnchor,
	}
	if len(anchors) == 0 {
		out.Slots = client.Slots
		out.StartAnchor, out.EndAnchor = client.StartAnchor, client.EndAnchor
		if out.Weekday == "" {
			out.Weekday = client.Weekday
		}
		return out
	}

	out.Slots = append(out.Slots, anchors...)
	for _, s := range client.Slots {
		if s.Protected() {
			continue
		}
		collides := false
		for _, a := range anchors {
			if s.Start < a.End && a.Start < s.End {
				collides = true
				break
			}
		}
		if !collides {
			s.Kind = itinerary.KindNormal
			out.Slots = append(out.Slots, s)
		}
	}
	out.SortSlots()
	return out
}
