/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Range is an open interval within one day, [Open, Close].
type Range struct {
	Open  TimeOfDay
	Close TimeOfDay
}

type dayHours struct {
	allDay bool
	ranges []Range
}

// OpenHours is the parsed form of per-weekday opening text.
type OpenHours struct {
	known bool
	days  map[time.Weekday]*dayHours
}

var weekdayNames = map[string]time.Weekday{
	"일요일": time.Sunday, "월요일": time.Monday, "화요일": time.Tuesday, "수요일": time.Wednesday,
	"목요일": time.Thursday, "금요일": time.Friday, "토요일": time.Saturday,
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

var rangeSep = regexp.MustCompile(`\s*[~–—-]\s*`)

const latestClose = TimeOfDay(23*60 + 59)

// ParseOpenHours parses lines such as "월요일: 오전 9:00 ~ 오후 6:00" or
// "Monday: 9:00 AM – 6:00 PM". Lines it cannot read are skipped.
func ParseOpenHours(lines []string) OpenHours {
	h := OpenHours{known: len(lines) > 0, days: make(map[time.Weekday]*dayHours)}
	for _, line := range lines {
		name, body, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		day := h.days[wd]
		if day == nil {
			day = &dayHours{}
			h.days[wd] = day
		}
		body = normalizeSpaces(body)
		lower := strings.ToLower(body)
		switch {
		case strings.Contains(body, "24시간") || strings.Contains(lower, "open 24 hours"):
			day.allDay = true
			continue
		case strings.Contains(body, "휴무") || strings.Contains(lower, "closed"):
			continue
		}
		for _, part := range strings.Split(body, ",") {
			if r, ok := parseRange(part); ok {
				day.ranges = append(day.ranges, r)
			}
		}
	}
	return h
}

// Known reports whether any hours text was supplied.
func (h OpenHours) Known() bool { return h.known }

// IsOpen reports whether [start, end] fits inside one open range on the
// weekday. Unknown hours are treated as always open; a weekday with no
// line is closed.
func (h OpenHours) IsOpen(wd time.Weekday, start, end TimeOfDay) bool {
	if !h.known {
		return true
	}
	day := h.days[wd]
	if day == nil {
		return false
	}
	if day.allDay {
		return true
	}
	for _, r := range day.ranges {
		if r.Open <= start && end <= r.Close {
			return true
		}
	}
	return false
}

func parseRange(s string) (Range, bool) {
	parts := rangeSep.Split(strings.TrimSpace(s), -1)
	if len(parts) != 2 {
		return Range{}, false
	}
	open, openMer, ok := parseClockToken(parts[0])
	if !ok {
		return Range{}, false
	}
	closeAt, closeMer, ok := parseClockToken(parts[1])
	if !ok {
		return Range{}, false
	}
	// "5:00 – 10:00 PM" carries the meridiem only on the close side.
	if openMer == meridiemNone {
		openMer = closeMer
	}
	r := Range{Open: applyMeridiem(open, openMer), Close: applyMeridiem(closeAt, closeMer)}
	if r.Close < r.Open {
		r.Close = latestClose
	}
	return r, true
}

type meridiem int

const (
	meridiemNone meridiem = iota
	meridiemAM
	meridiemPM
)

func parseClockToken(s string) (TimeOfDay, meridiem, bool) {
	s = strings.TrimSpace(s)
	mer := meridiemNone
	switch {
	case strings.HasPrefix(s, "오전"):
		mer, s = meridiemAM, strings.TrimPrefix(s, "오전")
	case strings.HasPrefix(s, "오후"):
		mer, s = meridiemPM, strings.TrimPrefix(s, "오후")
	}
	upper := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.HasSuffix(upper, "AM"):
		mer, upper = meridiemAM, strings.TrimSuffix(upper, "AM")
	case strings.HasSuffix(upper, "PM"):
		mer, upper = meridiemPM, strings.TrimSuffix(upper, "PM")
	}
	hs, ms, ok := strings.Cut(strings.TrimSpace(upper), ":")
	if !ok {
		return 0, mer, false
	}
	hour, err := strconv.Atoi(hs)
	if err != nil || hour < 0 || hour > 24 {
		return 0, mer, false
	}
	minute, err := strconv.Atoi(ms)
	if err != nil || minute < 0 || minute > 59 {
		return 0, mer, false
	}
	return At(hour, minute), mer, true
}

func applyMeridiem(t TimeOfDay, m meridiem) TimeOfDay {
	hour, minute := int(t)/60, int(t)%60
	switch m {
	case meridiemAM:
		if hour == 12 {
			hour = 0
		}
	case meridiemPM:
		if hour != 12 {
			hour += 12
		}
	}
	return At(hour, minute)
}

func normalizeSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u202f', '\u2009':
			return ' '
		}
		return r
	}, s)
}
