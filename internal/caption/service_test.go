package caption

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/captionlabs/livecap-core/internal/config"
	"github.com/captionlabs/livecap-core/internal/protocol"
)

func newTestService(t *testing.T, cfg config.DisplayConfig) *Service {
	t.Helper()
	svc := NewService(context.Background(), cfg, nil, slog.Default())
	t.Cleanup(svc.Close)
	return svc
}

// startLoop runs the presentation loop without bus subscriptions.
func startLoop(svc *Service) {
	svc.wg.Add(1)
	go svc.run()
}

func waitForSnapshot(t *testing.T, svc *Service, ok func(protocol.CaptionSnapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ok(svc.Snapshot()) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for snapshot state")
}

func TestNotesStyleKeepsOldLinesOpaque(t *testing.T) {
	svc := newTestService(t, config.DisplayConfig{Style: "notes"})

	changes := svc.reconciler.Subscribe()
	svc.reconciler.ApplyEvent(Event{
		Text:      "twenty seconds old",
		IsFinal:   true,
		Timestamp: time.Now().Add(-20 * time.Second),
	})
	waitForChange(t, changes, func() bool { return len(svc.reconciler.Current()) == 1 })

	svc.publishSnapshot()
	snap := svc.Snapshot()
	if len(snap.Lines) != 1 {
		t.Fatalf("expected the old final retained, got %d lines", len(snap.Lines))
	}
	if snap.Lines[0].Opacity != 1 {
		t.Fatalf("retained line must stay fully opaque, got %v", snap.Lines[0].Opacity)
	}
}

func TestKaraokeStyleStillFades(t *testing.T) {
	svc := newTestService(t, config.DisplayConfig{Style: "karaoke", MaxAgeMS: 15000})

	if got := svc.lineOpacity(20*time.Second, RoleOlder); got != 0 {
		t.Fatalf("expected expired line opacity 0, got %v", got)
	}
	if got := svc.lineOpacity(0, RoleCurrent); got != 1 {
		t.Fatalf("expected current line opacity 1, got %v", got)
	}
}

func TestSweepEvictsExpiredLinesWithoutNewEvents(t *testing.T) {
	svc := newTestService(t, config.DisplayConfig{Style: "karaoke", MaxAgeMS: 300, MaxLines: 5})
	svc.sweepEvery = 20 * time.Millisecond
	startLoop(svc)

	svc.reconciler.ApplyEvent(Event{Text: "short lived", IsFinal: true, Timestamp: time.Now()})

	waitForSnapshot(t, svc, func(s protocol.CaptionSnapshot) bool { return len(s.Lines) == 1 })
	// No further events arrive; the periodic sweep alone must republish
	// with the expired line gone.
	waitForSnapshot(t, svc, func(s protocol.CaptionSnapshot) bool { return len(s.Lines) == 0 })
}

func TestErrorAutoDismissesAfterLinger(t *testing.T) {
	svc := newTestService(t, config.DisplayConfig{Style: "karaoke", MaxAgeMS: 15000})
	svc.errorLinger = 50 * time.Millisecond
	startLoop(svc)

	svc.reconciler.SetError("mic disconnected")
	waitForSnapshot(t, svc, func(s protocol.CaptionSnapshot) bool { return s.Error != "" })
	waitForSnapshot(t, svc, func(s protocol.CaptionSnapshot) bool { return s.Error == "" })
	if svc.reconciler.Error() != "" {
		t.Fatalf("error still surfaced after linger: %q", svc.reconciler.Error())
	}
}

func TestErrorDismissSurvivesUnrelatedChanges(t *testing.T) {
	svc := newTestService(t, config.DisplayConfig{Style: "karaoke", MaxAgeMS: 15000})
	svc.errorLinger = 150 * time.Millisecond
	startLoop(svc)

	changes := svc.reconciler.Subscribe()
	svc.reconciler.ApplyEvent(Event{Text: "hola mundo", IsFinal: true, Timestamp: time.Now()})
	waitForChange(t, changes, func() bool { return len(svc.reconciler.Current()) == 1 })
	id := svc.reconciler.Current()[0].ID

	svc.reconciler.SetError("mic disconnected")
	waitForChange(t, changes, func() bool { return svc.reconciler.Error() != "" })

	// Translation churn keeps the loop busy; the dismiss window must still
	// expire on schedule instead of restarting on every state change.
	deadline := time.Now().Add(1500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if svc.reconciler.Error() == "" {
			return
		}
		svc.reconciler.AttachTranslation(id, "hello world")
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatal("error banner never auto-dismissed under state churn")
}
