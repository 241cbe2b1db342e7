package session

import (
	"testing"
	"time"
)

func TestMaterializeJoinsLines(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	state := &sessionState{
		Subject: "Physics",
		Started: started,
		Stopped: started.Add(50 * time.Minute),
		Lines:   []string{"first sentence.", "second sentence."},
	}

	session := materialize("s1", state, started.Add(2*time.Hour))
	if session.Duration != 50 {
		t.Fatalf("expected 50 minutes, got %d", session.Duration)
	}
	if session.RawText != "first sentence. second sentence." {
		t.Fatalf("unexpected raw text %q", session.RawText)
	}
	if len(session.Captions) != 2 {
		t.Fatalf("unexpected captions %v", session.Captions)
	}
	if !session.Timestamp.Equal(started) {
		t.Fatalf("timestamp should be session start, got %v", session.Timestamp)
	}
}

func TestMaterializeUsesNowWhenNotStopped(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	state := &sessionState{Started: started, Lines: []string{"x"}}

	session := materialize("s1", state, started.Add(30*time.Minute))
	if session.Duration != 30 {
		t.Fatalf("expected 30 minutes, got %d", session.Duration)
	}
}

func TestMaterializeDurationFloor(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	state := &sessionState{Started: started, Lines: []string{"x"}}

	session := materialize("s1", state, started.Add(10*time.Second))
	if session.Duration != 1 {
		t.Fatalf("short sessions round up to one minute, got %d", session.Duration)
	}
}

func TestMaterializeCopiesLines(t *testing.T) {
	state := &sessionState{
		Started: time.Now(),
		Lines:   []string{"a"},
	}
	session := materialize("s1", state, time.Now())
	state.Lines[0] = "mutated"
	if session.Captions[0] != "a" {
		t.Fatal("materialized captions must not alias accumulator state")
	}
}
