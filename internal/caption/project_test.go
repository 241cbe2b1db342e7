package caption

import (
	"testing"
	"time"
)

func fixedCaption(text string, final bool, age time.Duration, now time.Time) Caption {
	return Caption{
		ID:        text,
		Text:      text,
		IsFinal:   final,
		Timestamp: now.Add(-age),
	}
}

func TestProjectEvictsAgedFinals(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	list := []Caption{
		fixedCaption("ancient", true, 20*time.Second, now),
		fixedCaption("recent", true, 5*time.Second, now),
	}

	visible := Project(list, ProjectionOptions{MaxAge: 15 * time.Second, MaxLines: 8, Now: now})
	if len(visible) != 1 || visible[0].Text != "recent" {
		t.Fatalf("expected only the recent record, got %+v", visible)
	}
}

func TestProjectKeepsInterimRegardlessOfAge(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	list := []Caption{
		fixedCaption("old final", true, 30*time.Second, now),
		fixedCaption("stale interim", false, 30*time.Second, now),
	}

	visible := Project(list, ProjectionOptions{MaxAge: 15 * time.Second, MaxLines: 8, Now: now})
	if len(visible) != 1 || visible[0].Text != "stale interim" {
		t.Fatalf("expected the interim to survive aging, got %+v", visible)
	}
}

func TestProjectNotesStyleNeverEvicts(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	list := []Caption{
		fixedCaption("hour old", true, time.Hour, now),
		fixedCaption("fresh", true, time.Second, now),
	}

	visible := Project(list, ProjectionOptions{MaxAge: 0, MaxLines: 0, Now: now})
	if len(visible) != 2 {
		t.Fatalf("notes style must not age-evict, got %+v", visible)
	}
}

func TestProjectTruncatesToMaxLines(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var list []Caption
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		list = append(list, fixedCaption(text, true, time.Second, now))
	}

	visible := Project(list, ProjectionOptions{MaxAge: 15 * time.Second, MaxLines: 3, Now: now})
	if len(visible) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(visible))
	}
	if visible[0].Text != "c" || visible[2].Text != "e" {
		t.Fatalf("expected most recent entries kept in order, got %+v", visible)
	}
}

func TestProjectIdempotentForFixedClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	list := []Caption{
		fixedCaption("one", true, 14*time.Second, now),
		fixedCaption("two", true, 2*time.Second, now),
		fixedCaption("three", false, time.Second, now),
	}
	opts := ProjectionOptions{MaxAge: 15 * time.Second, MaxLines: 8, Now: now}

	once := Project(list, opts)
	twice := Project(once, opts)
	if len(once) != len(twice) {
		t.Fatalf("projection not idempotent: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("projection not idempotent at %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestOpacityCurrentAlwaysFull(t *testing.T) {
	for _, age := range []time.Duration{0, 3 * time.Second, 14 * time.Second, time.Hour} {
		if got := Opacity(age, RoleCurrent); got != 1 {
			t.Fatalf("current at age %v: expected 1, got %v", age, got)
		}
	}
}

func TestOpacityEndpoints(t *testing.T) {
	if got := Opacity(0, RoleOlder); got != 0.9 {
		t.Fatalf("age 0: expected 0.9, got %v", got)
	}
	if got := Opacity(15*time.Second, RoleOlder); got != 0 {
		t.Fatalf("age 15s: expected eviction (0), got %v", got)
	}
	if got := Opacity(3*time.Second, RoleOlder); got != 0.9 {
		t.Fatalf("age 3s: expected 0.9, got %v", got)
	}
}

func TestOpacityMonotonicNonIncreasing(t *testing.T) {
	prev := Opacity(3*time.Second, RoleOlder)
	for age := 3 * time.Second; age <= 15*time.Second; age += 250 * time.Millisecond {
		got := Opacity(age, RoleOlder)
		if got > prev {
			t.Fatalf("opacity increased at age %v: %v -> %v", age, prev, got)
		}
		if got > 0 && got < floorOpacity {
			t.Fatalf("opacity %v below floor before eviction at age %v", got, age)
		}
		prev = got
	}
}

func TestRoleOf(t *testing.T) {
	if RoleOf(2, 3) != RoleCurrent {
		t.Fatal("last entry must be current")
	}
	if RoleOf(0, 3) != RoleOlder {
		t.Fatal("earlier entries must be older")
	}
	if RoleOf(0, 1) != RoleCurrent {
		t.Fatal("sole entry must be current")
	}
}
