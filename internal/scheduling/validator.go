/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/wayfarer/internal/itinerary"
)

// RuleType identifies a validation check.
type RuleType string

const (
	RuleTypeOverlap          RuleType = "overlap"
	RuleTypeOrder            RuleType = "order"
	RuleTypeBounds           RuleType = "bounds"
	RuleTypeProtectedContent RuleType = "protected_content"
	RuleTypeDuplicatePlace   RuleType = "duplicate_place"
	RuleTypeUnfilled         RuleType = "unfilled"
)

// Severity of a violation. Only errors make a result invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Violation describes one broken invariant.
type Violation struct {
	RuleType RuleType       `json:"rule_type"`
	Severity Severity       `json:"severity"`
	Date     string         `json:"date"`
	Start    string         `json:"start,omitempty"`
	End      string         `json:"end,omitempty"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// ValidationResult groups violations by severity.
type ValidationResult struct {
	Valid     bool        `json:"valid"`
	Errors    []Violation `json:"errors"`
	Warnings  []Violation `json:"warnings"`
	Info      []Violation `json:"info"`
	CheckedAt time.Time   `json:"checked_at"`
}

// Summary joins error messages into one line.
func (r *ValidationResult) Summary() string {
	msgs := make([]string, len(r.Errors))
	for i, v := range r.Errors {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) add(v Violation) {
	switch v.Severity {
	case SeverityError:
		r.Errors = append(r.Errors, v)
		r.Valid = false
	case SeverityWarning:
		r.Warnings = append(r.Warnings, v)
	default:
		r.Info = append(r.Info, v)
	}
}

// Validator checks itinerary invariants after a run.
type Validator struct {
	logger zerolog.Logger
}

// NewValidator creates a new itinerary validator.
func NewValidator(logger zerolog.Logger) *Validator {
	return &Validator{
		logger: logger.With().Str("component", "itinerary_validator").Logger(),
	}
}

// Validate runs every check over it.
func (v *Validator) Validate(it *itinerary.Itinerary) *ValidationResult {
	result := &ValidationResult{
		Valid:     true,
		Errors:    []Violation{},
		Warnings:  []Violation{},
		Info:      []Violation{},
		CheckedAt: time.Now(),
	}
	if it == nil {
		return result
	}

	seen := map[string]string{}
	for _, day := range it.Days {
		for _, violation := range v.checkBounds(day) {
			result.add(violation)
		}
		for _, violation := range v.checkOrder(day) {
			result.add(violation)
		}
		for _, violation := range v.checkOverlaps(day) {
			result.add(violation)
		}
		for _, violation := range v.checkProtected(day) {
			result.add(violation)
		}
		for _, violation := range v.checkDuplicates(day, seen) {
			result.add(violation)
		}
		if n := unfilled(day); n > 0 {
			result.add(Violation{
				RuleType: RuleTypeUnfilled,
				Severity: SeverityInfo,
				Date:     day.Date,
				Message:  fmt.Sprintf("%d slot(s) on %s have no candidate", n, day.Date),
				Details:  map[string]any{"count": n},
			})
		}
	}

	if !result.Valid {
		v.logger.Warn().Int("errors", len(result.Errors)).Str("summary", result.Summary()).Msg("itinerary failed validation")
	}
	return result
}

func slotViolation(rt RuleType, sev Severity, day *itinerary.DaySchedule, s itinerary.Slot, msg string) Violation {
	return Violation{
		RuleType: rt,
		Severity: sev,
		Date:     day.Date,
		Start:    s.Start.String(),
		End:      s.End.String(),
		Message:  msg,
	}
}

func (v *Validator) checkBounds(day *itinerary.DaySchedule) []Violation {
	var violations []Violation
	for _, s := range day.Slots {
		if s.End <= s.Start {
			violations = append(violations, slotViolation(RuleTypeBounds, SeverityError, day, s,
				fmt.Sprintf("slot %s-%s on %s is empty or inverted", s.Start, s.End, day.Date)))
		}
	}
	return violations
}

func (v *Validator) checkOrder(day *itinerary.DaySchedule) []Violation {
	for i := 1; i < len(day.Slots); i++ {
		if day.Slots[i].Start < day.Slots[i-1].Start {
			s := day.Slots[i]
			return []Violation{slotViolation(RuleTypeOrder, SeverityError, day, s,
				fmt.Sprintf("slots on %s are not sorted: %s follows %s", day.Date, s.Start, day.Slots[i-1].Start))}
		}
	}
	return nil
}

func (v *Validator) checkOverlaps(day *itinerary.DaySchedule) []Violation {
	var violations []Violation

	for i := 0; i < len(day.Slots); i++ {
		for j := i + 1; j < len(day.Slots); j++ {
			a, b := day.Slots[i], day.Slots[j]
			if a.Start < b.End && b.Start < a.End {
				overlapStart := max(a.Start, b.Start)
				overlapEnd := min(a.End, b.End)
				violations = append(violations, Violation{
					RuleType: RuleTypeOverlap,
					Severity: SeverityError,
					Date:     day.Date,
					Start:    a.Start.String(),
					End:      a.End.String(),
					Message: fmt.Sprintf("slots %s-%s and %s-%s on %s overlap by %d minutes",
						a.Start, a.End, b.Start, b.End, day.Date, overlapEnd.Sub(overlapStart)),
					Details: map[string]any{
						"overlap_start":   overlapStart.String(),
						"overlap_end":     overlapEnd.String(),
						"overlap_minutes": overlapEnd.Sub(overlapStart),
					},
				})
			}
		}
	}

	return violations
}

func (v *Validator) checkProtected(day *itinerary.DaySchedule) []Violation {
	var violations []Violation
	for _, s := range day.Slots {
		if s.Protected() && s.IsEmpty() {
			violations = append(violations, slotViolation(RuleTypeProtectedContent, SeverityError, day, s,
				fmt.Sprintf("%s anchor %s-%s on %s has no location", s.Kind, s.Start, s.End, day.Date)))
		}
	}
	return violations
}

func (v *Validator) checkDuplicates(day *itinerary.DaySchedule, seen map[string]string) []Violation {
	var violations []Violation
	for _, s := range day.Slots {
		if s.Protected() {
			continue
		}
		o, ok := s.Content.Occupant()
		if !ok {
			continue
		}
		key := o.PlaceID
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(o.Title))
		}
		where := day.Date + " " + s.Start.String()
		if first, dup := seen[key]; dup {
			violations = append(violations, slotViolation(RuleTypeDuplicatePlace, SeverityError, day, s,
				fmt.Sprintf("%q is scheduled at %s and again at %s", o.Title, first, where)))
			continue
		}
		seen[key] = where
	}
	return violations
}

func unfilled(day *itinerary.DaySchedule) int {
	n := 0
	for _, s := range day.Slots {
		if s.Fillable() {
			n++
		}
	}
	return n
}
