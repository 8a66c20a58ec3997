/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clock holds the time-of-day arithmetic used by the planner.
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the exclusive upper bound of a calendar day.
const MinutesPerDay = 24 * 60

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ErrInvalidTime is returned for unparseable HH:MM values.
var ErrInvalidTime = errors.New("invalid time of day")

// TimeOfDay counts minutes since midnight. 1440 is a valid value and
// denotes the end of the day.
type TimeOfDay int

// At builds a TimeOfDay from hours and minutes.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// Parse reads "HH:MM" (or "H:MM"). "24:00" is accepted.
func Parse(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if hour < 0 || minute < 0 || minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return At(hour, minute), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String formats as zero-padded HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Minutes returns the raw minute count.
func (t TimeOfDay) Minutes() int { return int(t) }

// Add shifts by minutes, clamped to the day.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return Clamp(TimeOfDay(int(t)+minutes), 0, MinutesPerDay)
}

// Sub returns t - u in minutes.
func (t TimeOfDay) Sub(u TimeOfDay) int {
	return int(t) - int(u)
}

// RoundToNearest rounds to the nearest multiple of step minutes; halves round up.
func (t TimeOfDay) RoundToNearest(step int) TimeOfDay {
	if step <= 0 {
		return t
	}
	return TimeOfDay(((int(t) + step/2) / step) * step)
}

// Clamp bounds t to [lo, hi].
func Clamp(t, lo, hi TimeOfDay) TimeOfDay {
	if t < lo {
		return lo
	}
	if t > hi {
		return hi
	}
	return t
}

// Abs returns |a-b| in minutes.
func Abs(a, b TimeOfDay) int {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

// ParseDate reads a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// FormatDate formats a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Weekday resolves the weekday of a YYYY-MM-DD date.
func Weekday(date string) (time.Weekday, error) {
	d, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return d.Weekday(), nil
}

// DateRange lists every date from start to end inclusive. An inverted
// range yields nil.
func DateRange(start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
