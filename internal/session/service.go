package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/captionlabs/livecap-core/internal/assistant"
	"github.com/captionlabs/livecap-core/internal/bus"
	"github.com/captionlabs/livecap-core/internal/config"
	"github.com/captionlabs/livecap-core/internal/notes"
	"github.com/captionlabs/livecap-core/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Service orchestrates the capture lifecycle. It collects final caption
// lines between start and stop, materializes a capture session on save,
// and kicks off AI enrichment in the background.
type Service struct {
	cfg       config.AssistantConfig
	bus       *bus.Client
	store     *notes.Store
	generator assistant.Generator
	logger    *slog.Logger
	subs      []*nats.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	ready     bool
	clock     func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	Subject string
	Started time.Time
	Stopped time.Time
	Lines   []string
}

func NewService(parent context.Context, cfg config.AssistantConfig, busClient *bus.Client, store *notes.Store, generator assistant.Generator, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:       cfg,
		bus:       busClient,
		store:     store,
		generator: generator,
		logger:    logger.With(slog.String("component", "session-service")),
		ctx:       ctx,
		cancel:    cancel,
		clock:     time.Now,
		sessions:  make(map[string]*sessionState),
	}
}

func (s *Service) Start() error {
	handlers := map[string]nats.MsgHandler{
		protocol.SubjectSessionStart: s.handleStart,
		protocol.SubjectSessionStop:  s.handleStop,
		protocol.SubjectSessionSave:  s.handleSave,
		protocol.SubjectCaptionFinal: s.handleFinal,
	}
	for subject, handler := range handlers {
		sub, err := s.bus.Conn().Subscribe(subject, handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return s.ready }

func (s *Service) handleStart(msg *nats.Msg) {
	var ctrl protocol.SessionControl
	if err := json.Unmarshal(msg.Data, &ctrl); err != nil {
		s.logger.Warn("failed to decode session start", slogError(err))
		return
	}
	if ctrl.SessionID == "" {
		return
	}
	started := ctrl.Timestamp
	if started.IsZero() {
		started = s.clock().UTC()
	}
	s.mu.Lock()
	s.sessions[ctrl.SessionID] = &sessionState{
		Subject: ctrl.Subject,
		Started: started,
	}
	s.mu.Unlock()
	s.logger.Info("session started", slog.String("session_id", ctrl.SessionID))
}

func (s *Service) handleStop(msg *nats.Msg) {
	var ctrl protocol.SessionControl
	if err := json.Unmarshal(msg.Data, &ctrl); err != nil {
		s.logger.Warn("failed to decode session stop", slogError(err))
		return
	}
	s.mu.Lock()
	if state := s.sessions[ctrl.SessionID]; state != nil && state.Stopped.IsZero() {
		state.Stopped = s.clock().UTC()
	}
	s.mu.Unlock()
}

func (s *Service) handleFinal(msg *nats.Msg) {
	var evt protocol.RecognitionEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		s.logger.Warn("failed to decode caption event", slogError(err))
		return
	}
	if evt.Text == "" {
		return
	}
	s.mu.Lock()
	if state := s.sessions[evt.SessionID]; state != nil && state.Stopped.IsZero() {
		state.Lines = append(state.Lines, evt.Text)
	}
	s.mu.Unlock()
}

func (s *Service) handleSave(msg *nats.Msg) {
	var ctrl protocol.SessionControl
	if err := json.Unmarshal(msg.Data, &ctrl); err != nil {
		s.logger.Warn("failed to decode session save", slogError(err))
		return
	}

	s.mu.Lock()
	state := s.sessions[ctrl.SessionID]
	if state != nil {
		delete(s.sessions, ctrl.SessionID)
	}
	s.mu.Unlock()
	if state == nil {
		s.logger.Warn("save for unknown session", slog.String("session_id", ctrl.SessionID))
		return
	}
	if len(state.Lines) == 0 {
		s.logger.Info("discarding empty session", slog.String("session_id", ctrl.SessionID))
		return
	}
	if ctrl.Subject != "" {
		state.Subject = ctrl.Subject
	}

	session := materialize(ctrl.SessionID, state, s.clock().UTC())

	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	if err := s.store.SaveSession(ctx, session); err != nil {
		s.logger.Warn("failed to save session", slogError(err))
		return
	}
	s.publishSaved(session)
	s.logger.Info("session saved",
		slog.String("session_id", session.ID),
		slog.Int("lines", len(session.Captions)),
		slog.Int("duration_minutes", session.Duration))

	if s.cfg.Enabled && s.cfg.Summarize {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.summarize(session)
		}()
	}
}

// materialize turns accumulated state into a stored session. Duration is
// rounded to whole minutes with a one minute floor.
func materialize(id string, state *sessionState, now time.Time) notes.CaptureSession {
	end := state.Stopped
	if end.IsZero() {
		end = now
	}
	minutes := int(end.Sub(state.Started).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return notes.CaptureSession{
		ID:        id,
		Subject:   state.Subject,
		Timestamp: state.Started,
		Duration:  minutes,
		Captions:  append([]string(nil), state.Lines...),
		RawText:   strings.Join(state.Lines, " "),
	}
}

func (s *Service) summarize(session notes.CaptureSession) {
	ctx, cancel := context.WithTimeout(s.ctx, 90*time.Second)
	defer cancel()

	result, err := assistant.Summarize(ctx, s.generator, session.RawText, session.Duration)
	if err != nil {
		s.logger.Warn("session summarization failed", slogError(err))
		return
	}

	guide, err := assistant.BuildStudyGuide(ctx, s.generator, session.RawText, result.SuggestedSubject)
	if err != nil {
		s.logger.Warn("study guide generation failed", slogError(err))
	}

	err = s.store.AttachSummary(ctx, session.ID, notes.Summary{
		Summary:          result.Summary,
		KeyPoints:        result.KeyPoints,
		SuggestedSubject: result.SuggestedSubject,
		Topics:           result.Topics,
		StudyQuestions:   guide.Questions,
	})
	if err != nil {
		s.logger.Warn("failed to attach summary", slogError(err))
		return
	}
	s.logger.Info("session enriched", slog.String("session_id", session.ID))
}

func (s *Service) publishSaved(session notes.CaptureSession) {
	msg := protocol.SessionSaved{
		SessionID: session.ID,
		Subject:   session.Subject,
		Duration:  session.Duration,
		Lines:     len(session.Captions),
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectSessionSaved, data); err != nil {
		s.logger.Warn("failed to publish session saved", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
