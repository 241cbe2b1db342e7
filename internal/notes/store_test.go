package notes

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/captionlabs/livecap-core/internal/config"
)

func testStore(t *testing.T, cfg config.StoreConfig) *Store {
	t.Helper()
	if cfg.Path == "" && cfg.RetentionMode != "ephemeral" {
		cfg.Path = filepath.Join(t.TempDir(), "sessions.db")
	}
	if cfg.RetentionMode == "" {
		cfg.RetentionMode = "session"
	}
	store, err := Open(context.Background(), cfg, slog.Default())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := testStore(t, config.StoreConfig{})
	ctx := context.Background()

	session := CaptureSession{
		ID:        "s1",
		Subject:   "Physics",
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Duration:  50,
		Captions:  []string{"first line", "second line"},
		RawText:   "first line second line",
	}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Subject != "Physics" || got.Duration != 50 {
		t.Fatalf("unexpected session: %+v", got)
	}
	if len(got.Captions) != 2 || got.Captions[1] != "second line" {
		t.Fatalf("captions not preserved: %v", got.Captions)
	}
	if got.IsProcessed {
		t.Fatal("fresh session should not be processed")
	}
}

func TestSaveRejectsDuplicateID(t *testing.T) {
	store := testStore(t, config.StoreConfig{})
	ctx := context.Background()

	session := CaptureSession{ID: "dup", Subject: "Math", RawText: "x"}
	if err := store.SaveSession(ctx, session); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveSession(ctx, session); err == nil {
		t.Fatal("expected duplicate save to fail")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store := testStore(t, config.StoreConfig{})
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	store := testStore(t, config.StoreConfig{})
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	sessions := []CaptureSession{
		{ID: "a", Subject: "Physics", Timestamp: base, RawText: "Newton and forces"},
		{ID: "b", Subject: "Mathematics", Timestamp: base.Add(time.Hour), RawText: "derivatives and limits"},
		{ID: "c", Subject: "Physics", Timestamp: base.Add(2 * time.Hour), RawText: "thermodynamics basics"},
	}
	for _, s := range sessions {
		if err := store.SaveSession(ctx, s); err != nil {
			t.Fatalf("save %s: %v", s.ID, err)
		}
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	if all[0].ID != "c" {
		t.Fatalf("expected newest first, got %s", all[0].ID)
	}

	physics, err := store.List(ctx, Filter{Subject: "Physics"})
	if err != nil {
		t.Fatalf("list physics: %v", err)
	}
	if len(physics) != 2 {
		t.Fatalf("expected 2 physics sessions, got %d", len(physics))
	}

	search, err := store.List(ctx, Filter{Search: "NEWTON"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(search) != 1 || search[0].ID != "a" {
		t.Fatalf("case-insensitive search failed: %+v", search)
	}

	allSubject, err := store.List(ctx, Filter{Subject: "All"})
	if err != nil {
		t.Fatalf("list All: %v", err)
	}
	if len(allSubject) != 3 {
		t.Fatalf("subject All should match everything, got %d", len(allSubject))
	}
}

func TestAttachSummaryMarksProcessed(t *testing.T) {
	store := testStore(t, config.StoreConfig{})
	ctx := context.Background()

	if err := store.SaveSession(ctx, CaptureSession{ID: "s1", RawText: "text"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	summary := Summary{
		Summary:          "a short recap",
		KeyPoints:        []string{"one", "two"},
		SuggestedSubject: "Chemistry",
		Topics:           []string{"reactions"},
		StudyQuestions:   []string{"what is a mole?"},
	}
	if err := store.AttachSummary(ctx, "s1", summary); err != nil {
		t.Fatalf("attach: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsProcessed {
		t.Fatal("expected session to be marked processed")
	}
	if got.Summary != "a short recap" || len(got.KeyPoints) != 2 {
		t.Fatalf("summary not persisted: %+v", got)
	}
	if got.Subject != "Chemistry" {
		t.Fatalf("expected suggested subject to replace Unclassified, got %q", got.Subject)
	}

	if err := store.AttachSummary(ctx, "missing", summary); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachSummaryKeepsExplicitSubject(t *testing.T) {
	store := testStore(t, config.StoreConfig{})
	ctx := context.Background()

	if err := store.SaveSession(ctx, CaptureSession{ID: "s1", Subject: "Physics", RawText: "x"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.AttachSummary(ctx, "s1", Summary{SuggestedSubject: "History"}); err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, _ := store.Get(ctx, "s1")
	if got.Subject != "Physics" {
		t.Fatalf("explicit subject must not be overwritten, got %q", got.Subject)
	}
}

func TestPruneRetentionDays(t *testing.T) {
	store := testStore(t, config.StoreConfig{RetentionDays: 7})
	ctx := context.Background()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	old := CaptureSession{ID: "old", Timestamp: now.Add(-10 * 24 * time.Hour), RawText: "x"}
	fresh := CaptureSession{ID: "fresh", Timestamp: now.Add(-time.Hour), RawText: "y"}
	for _, s := range []CaptureSession{old, fresh} {
		if err := store.SaveSession(ctx, s); err != nil {
			t.Fatalf("save %s: %v", s.ID, err)
		}
	}

	if err := store.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected old session pruned, got %v", err)
	}
	if _, err := store.Get(ctx, "fresh"); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
}

func TestEphemeralStoreSeedsDemoSessions(t *testing.T) {
	store := testStore(t, config.StoreConfig{RetentionMode: "ephemeral", DemoSeed: true})
	all, err := store.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != len(DemoSessions()) {
		t.Fatalf("expected %d seeded sessions, got %d", len(DemoSessions()), len(all))
	}
	if _, err := store.Get(context.Background(), "demo-cs-bigo"); err != nil {
		t.Fatalf("seeded session missing: %v", err)
	}
}

func TestLanguagePreferenceRoundTrip(t *testing.T) {
	store := testStore(t, config.StoreConfig{})
	ctx := context.Background()

	lang, err := store.LanguagePreference(ctx)
	if err != nil {
		t.Fatalf("default preference: %v", err)
	}
	if lang != "en" {
		t.Fatalf("expected en default, got %q", lang)
	}

	if err := store.SetLanguagePreference(ctx, "es"); err != nil {
		t.Fatalf("set: %v", err)
	}
	lang, err = store.LanguagePreference(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if lang != "es" {
		t.Fatalf("expected es, got %q", lang)
	}

	if err := store.SetLanguagePreference(ctx, "fr"); err == nil {
		t.Fatal("expected unsupported language to be rejected")
	}
}

func TestEphemeralLanguagePreferenceRoundTrip(t *testing.T) {
	store := testStore(t, config.StoreConfig{RetentionMode: "ephemeral"})
	ctx := context.Background()

	lang, err := store.LanguagePreference(ctx)
	if err != nil {
		t.Fatalf("default preference: %v", err)
	}
	if lang != "en" {
		t.Fatalf("expected en default, got %q", lang)
	}

	if err := store.SetLanguagePreference(ctx, "es"); err != nil {
		t.Fatalf("set: %v", err)
	}
	lang, err = store.LanguagePreference(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if lang != "es" {
		t.Fatalf("preference not retained without a database, got %q", lang)
	}
}
