/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"math"
	"strings"
)

const (
	maxTrust       = 5.0
	reviewSaturate = 1000
)

// TrustScore combines a place rating with its review volume and how recent
// the latest review is. Recency is the provider's relative phrase, e.g.
// "2 weeks ago" or "3개월 전".
func TrustScore(rating float64, reviews int, recency string) float64 {
	if rating <= 0 || reviews <= 0 {
		return 0
	}
	n := reviews
	if n > reviewSaturate {
		n = reviewSaturate
	}
	volume := math.Log10(float64(n)) / math.Log10(reviewSaturate)
	score := rating * volume * (1 + RecencyBonus(recency))
	return math.Min(score, maxTrust)
}

// RecencyBonus is 0.10 for reviews up to a month old, 0.05 up to six
// months and 0 otherwise.
func RecencyBonus(recency string) float64 {
	s := strings.ToLower(strings.TrimSpace(recency))
	if s == "" {
		return 0
	}
	if containsAny(s, "month", "개월", "달") {
		switch n := leadingNumber(s); {
		case n <= 1:
			return 0.10
		case n <= 6:
			return 0.05
		default:
			return 0
		}
	}
	if containsAny(s, "year", "년") {
		return 0
	}
	if containsAny(s, "day", "hour", "minute", "week", "일 전", "시간 전", "분 전", "주 전") {
		return 0.10
	}
	return 0
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func leadingNumber(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
