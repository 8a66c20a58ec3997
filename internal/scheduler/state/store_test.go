/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package state

import (
	"testing"
	"time"
)

func TestRecentNewestFirstPerUser(t *testing.T) {
	s := NewStore()
	s.Add(RunRecord{RunID: "1", UserID: "u1"})
	s.Add(RunRecord{RunID: "2", UserID: "u2"})
	s.Add(RunRecord{RunID: "3", UserID: "u1"})

	got := s.Recent("u1", 0)
	if len(got) != 2 || got[0].RunID != "3" || got[1].RunID != "1" {
		t.Fatalf("unexpected runs %+v", got)
	}
	if all := s.Recent("", 0); len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	if limited := s.Recent("", 1); len(limited) != 1 || limited[0].RunID != "3" {
		t.Fatalf("unexpected limited runs %+v", limited)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := NewStoreWithCapacity(2)
	for _, id := range []string{"a", "b", "c"} {
		s.Add(RunRecord{RunID: id})
	}
	got := s.Recent("", 0)
	if len(got) != 2 || got[0].RunID != "c" || got[1].RunID != "b" {
		t.Fatalf("unexpected runs after eviction %+v", got)
	}
}

func TestPrune(t *testing.T) {
	now := time.Now()
	s := NewStore()
	s.Add(RunRecord{RunID: "old", FinishedAt: now.Add(-2 * time.Hour)})
	s.Add(RunRecord{RunID: "new", FinishedAt: now})

	s.Prune(now.Add(-time.Hour))
	got := s.Recent("", 0)
	if len(got) != 1 || got[0].RunID != "new" {
		t.Fatalf("unexpected runs after prune %+v", got)
	}
}
