package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/captionlabs/livecap-core/internal/config"
	_ "modernc.org/sqlite"
)

// CaptureSession is a completed listening session. It is append-only: once
// saved, only the asynchronous AI-enrichment step may touch it, via
// AttachSummary.
type CaptureSession struct {
	ID                string
	Subject           string
	Timestamp         time.Time
	Duration          int // minutes
	Captions          []string
	RawText           string
	IsProcessed       bool
	Summary           string
	KeyPoints         []string
	Topics            []string
	StudyQuestions    []string
	TranslatedRawText string
	TargetLanguage    string
}

// Summary is the AI-derived enrichment attached after the fact.
type Summary struct {
	Summary          string
	KeyPoints        []string
	SuggestedSubject string
	Topics           []string
	StudyQuestions   []string
}

// Filter narrows List results. Subject matches exactly ("" or "All" match
// everything); Search is a case-insensitive substring match over the raw
// transcript and the subject.
type Filter struct {
	Subject string
	Search  string
}

// ErrNotFound is returned when a session id has no row.
var ErrNotFound = errors.New("capture session not found")

// Store keeps capture sessions either in SQLite or, in ephemeral retention
// mode, in a plain in-memory list (the demo configuration).
type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time

	mu   sync.RWMutex
	mem  []CaptureSession
	lang string
}

// Open initializes the session store according to config.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	s := &Store{cfg: cfg, log: log, clock: time.Now}

	if cfg.RetentionMode == "ephemeral" {
		if cfg.DemoSeed {
			s.mem = append(s.mem, DemoSessions()...)
		}
		return s, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s.db = db

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("session store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("session store prune on start failed", slog.String("error", err.Error()))
	}

	if cfg.DemoSeed {
		if err := s.seed(ctx); err != nil {
			log.Warn("demo seed failed", slog.String("error", err.Error()))
		}
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS capture_sessions (
    session_id TEXT PRIMARY KEY,
    subject TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    duration_minutes INTEGER NOT NULL,
    captions TEXT NOT NULL,
    raw_text TEXT NOT NULL,
    is_processed INTEGER NOT NULL DEFAULT 0,
    summary TEXT,
    key_points TEXT,
    topics TEXT,
    study_questions TEXT,
    translated_raw_text TEXT,
    target_language TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON capture_sessions(created_at);
CREATE TABLE IF NOT EXISTS preferences (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) seed(ctx context.Context) error {
	for _, session := range DemoSessions() {
		if err := s.insert(ctx, session, true); err != nil {
			return err
		}
	}
	return nil
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSession appends a completed session. Saving the same id twice is an
// error; sessions are never overwritten.
func (s *Store) SaveSession(ctx context.Context, session CaptureSession) error {
	if session.ID == "" {
		return errors.New("session id must not be empty")
	}
	if session.Timestamp.IsZero() {
		session.Timestamp = s.clock().UTC()
	}
	if session.Subject == "" {
		session.Subject = "Unclassified"
	}

	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, existing := range s.mem {
			if existing.ID == session.ID {
				return fmt.Errorf("session %s already saved", session.ID)
			}
		}
		s.mem = append(s.mem, session)
		return nil
	}
	return s.insert(ctx, session, false)
}

func (s *Store) insert(ctx context.Context, session CaptureSession, ignoreExisting bool) error {
	captions, err := json.Marshal(session.Captions)
	if err != nil {
		return err
	}
	keyPoints, _ := json.Marshal(session.KeyPoints)
	topics, _ := json.Marshal(session.Topics)
	questions, _ := json.Marshal(session.StudyQuestions)

	verb := "INSERT"
	if ignoreExisting {
		verb = "INSERT OR IGNORE"
	}
	_, err = s.db.ExecContext(ctx, verb+` INTO capture_sessions
		(session_id, subject, created_at, duration_minutes, captions, raw_text,
		 is_processed, summary, key_points, topics, study_questions,
		 translated_raw_text, target_language)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Subject, session.Timestamp.UTC().Format(time.RFC3339Nano),
		session.Duration, string(captions), session.RawText,
		boolToInt(session.IsProcessed), session.Summary, string(keyPoints),
		string(topics), string(questions), session.TranslatedRawText, session.TargetLanguage)
	return err
}

// Get retrieves one session by id.
func (s *Store) Get(ctx context.Context, id string) (CaptureSession, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, session := range s.mem {
			if session.ID == id {
				return session, nil
			}
		}
		return CaptureSession{}, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE session_id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CaptureSession{}, ErrNotFound
	}
	return session, err
}

// List returns sessions matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]CaptureSession, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		var out []CaptureSession
		for _, session := range s.mem {
			if matches(session, filter) {
				out = append(out, session)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaptureSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		if matches(session, filter) {
			out = append(out, session)
		}
	}
	return out, rows.Err()
}

// AttachSummary records the AI enrichment for a saved session and marks it
// processed. This is the single permitted post-save mutation.
func (s *Store) AttachSummary(ctx context.Context, id string, summary Summary) error {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.mem {
			if s.mem[i].ID == id {
				applySummary(&s.mem[i], summary)
				return nil
			}
		}
		return ErrNotFound
	}

	keyPoints, _ := json.Marshal(summary.KeyPoints)
	topics, _ := json.Marshal(summary.Topics)
	questions, _ := json.Marshal(summary.StudyQuestions)

	result, err := s.db.ExecContext(ctx, `UPDATE capture_sessions SET
			is_processed = 1, summary = ?, key_points = ?, topics = ?, study_questions = ?,
			subject = CASE WHEN subject = 'Unclassified' AND ? != '' THEN ? ELSE subject END
		WHERE session_id = ?`,
		summary.Summary, string(keyPoints), string(topics), string(questions),
		summary.SuggestedSubject, summary.SuggestedSubject, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func applySummary(session *CaptureSession, summary Summary) {
	session.IsProcessed = true
	session.Summary = summary.Summary
	session.KeyPoints = summary.KeyPoints
	session.Topics = summary.Topics
	session.StudyQuestions = summary.StudyQuestions
	if session.Subject == "Unclassified" && summary.SuggestedSubject != "" {
		session.Subject = summary.SuggestedSubject
	}
}

// Prune applies configured retention.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM capture_sessions WHERE created_at < ?`,
			cutoff.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if s.cfg.MaxSessions > 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM capture_sessions WHERE session_id IN (
			SELECT session_id FROM capture_sessions ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxSessions); err != nil {
			return err
		}
	}
	return nil
}

const languageKey = "preferred_language"

// LanguagePreference returns the persisted display language, defaulting to
// English.
func (s *Store) LanguagePreference(ctx context.Context) (string, error) {
	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.lang == "" {
			return "en", nil
		}
		return s.lang, nil
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, languageKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "en", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetLanguagePreference persists the display language.
func (s *Store) SetLanguagePreference(ctx context.Context, lang string) error {
	if lang != "en" && lang != "es" {
		return fmt.Errorf("unsupported language %q", lang)
	}
	if s.db == nil {
		s.mu.Lock()
		s.lang = lang
		s.mu.Unlock()
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, languageKey, lang)
	return err
}

func matches(session CaptureSession, filter Filter) bool {
	if filter.Subject != "" && filter.Subject != "All" && session.Subject != filter.Subject {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(session.RawText), needle) &&
			!strings.Contains(strings.ToLower(session.Subject), needle) {
			return false
		}
	}
	return true
}

const selectColumns = `SELECT session_id, subject, created_at, duration_minutes,
	captions, raw_text, is_processed, summary, key_points, topics,
	study_questions, translated_raw_text, target_language
	FROM capture_sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (CaptureSession, error) {
	var session CaptureSession
	var created string
	var processed int
	var captions, keyPoints, topics, questions string
	var summary, translated, targetLang sql.NullString

	err := row.Scan(&session.ID, &session.Subject, &created, &session.Duration,
		&captions, &session.RawText, &processed, &summary, &keyPoints,
		&topics, &questions, &translated, &targetLang)
	if err != nil {
		return CaptureSession{}, err
	}

	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		session.Timestamp = ts
	}
	session.IsProcessed = processed != 0
	session.Summary = summary.String
	session.TranslatedRawText = translated.String
	session.TargetLanguage = targetLang.String
	_ = json.Unmarshal([]byte(captions), &session.Captions)
	_ = json.Unmarshal([]byte(keyPoints), &session.KeyPoints)
	_ = json.Unmarshal([]byte(topics), &session.Topics)
	_ = json.Unmarshal([]byte(questions), &session.StudyQuestions)
	return session, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
