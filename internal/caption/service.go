package caption

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/captionlabs/livecap-core/internal/bus"
	"github.com/captionlabs/livecap-core/internal/config"
	"github.com/captionlabs/livecap-core/internal/protocol"
	"github.com/nats-io/nats.go"
)

const (
	defaultSweepInterval = time.Second
	defaultErrorLinger   = 10 * time.Second
)

// Service bridges the bus and the reconciler: recognition events, translation
// resolutions, and control messages flow in; visibility snapshots flow out.
type Service struct {
	cfg         config.DisplayConfig
	bus         *bus.Client
	reconciler  *Reconciler
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	subs        []*nats.Subscription
	wg          sync.WaitGroup
	ready       bool
	clock       func() time.Time
	sweepEvery  time.Duration
	errorLinger time.Duration

	mu   sync.RWMutex
	last protocol.CaptionSnapshot
}

func NewService(parent context.Context, cfg config.DisplayConfig, busClient *bus.Client, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:         cfg,
		bus:         busClient,
		reconciler:  NewReconciler(),
		logger:      logger.With(slog.String("component", "caption-service")),
		ctx:         ctx,
		cancel:      cancel,
		clock:       time.Now,
		sweepEvery:  defaultSweepInterval,
		errorLinger: defaultErrorLinger,
	}
}

func (s *Service) Start() error {
	subjects := map[string]nats.MsgHandler{
		protocol.SubjectCaptionPartial:     s.handleEvent,
		protocol.SubjectCaptionFinal:       s.handleEvent,
		protocol.SubjectCaptionTranslation: s.handleTranslation,
		protocol.SubjectRecognitionError:   s.handleError,
		protocol.SubjectSessionStop:        s.handleStop,
		protocol.SubjectCaptionClear:       s.handleClear,
	}
	for subject, handler := range subjects {
		sub, err := s.bus.Conn().Subscribe(subject, handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}

	s.wg.Add(1)
	go s.run()

	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
	s.reconciler.Close()
}

func (s *Service) Healthy() bool {
	return s.ready
}

// Reconciler exposes the state container to sibling services.
func (s *Service) Reconciler() *Reconciler {
	return s.reconciler
}

// Snapshot returns the last published visibility projection.
func (s *Service) Snapshot() protocol.CaptionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Service) handleEvent(msg *nats.Msg) {
	var evt protocol.RecognitionEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		s.logger.Warn("failed to decode recognition event", slogError(err))
		return
	}
	s.reconciler.ApplyEvent(Event{
		ID:         evt.ID,
		Text:       evt.Text,
		IsFinal:    evt.IsFinal,
		Confidence: evt.Confidence,
		Timestamp:  evt.Timestamp,
	})
}

func (s *Service) handleTranslation(msg *nats.Msg) {
	var tr protocol.CaptionTranslation
	if err := json.Unmarshal(msg.Data, &tr); err != nil {
		s.logger.Warn("failed to decode caption translation", slogError(err))
		return
	}
	s.reconciler.AttachTranslation(tr.CaptionID, tr.Text)
}

func (s *Service) handleError(msg *nats.Msg) {
	var recErr protocol.RecognitionError
	if err := json.Unmarshal(msg.Data, &recErr); err != nil {
		s.logger.Warn("failed to decode recognition error", slogError(err))
		return
	}
	s.logger.Warn("recognition error surfaced", slog.String("message", recErr.Message))
	s.reconciler.SetError(recErr.Message)
}

func (s *Service) handleStop(msg *nats.Msg) {
	// Stopping mid-utterance discards the pending hypothesis; it must not
	// reappear or be finalized retroactively.
	s.reconciler.DiscardInterim()
}

func (s *Service) handleClear(msg *nats.Msg) {
	s.reconciler.Clear()
}

// run is the presentation loop: it republishes the projection on every state
// change, once per second while records are present so newly-expired entries
// evict without fresh events, and auto-dismisses surfaced errors after 10s.
func (s *Service) run() {
	defer s.wg.Done()

	changes := s.reconciler.Subscribe()

	var sweep *time.Ticker
	var sweepC <-chan time.Time
	var errTimer *time.Timer
	var errTimerC <-chan time.Time
	var surfaced string

	stopSweep := func() {
		if sweep != nil {
			sweep.Stop()
			sweep, sweepC = nil, nil
		}
	}
	stopErrTimer := func() {
		if errTimer != nil {
			errTimer.Stop()
			errTimer, errTimerC = nil, nil
		}
	}
	defer stopSweep()
	defer stopErrTimer()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-changes:
			s.publishSnapshot()
			if s.agingEnabled() && len(s.reconciler.Current()) > 0 {
				if sweep == nil {
					sweep = time.NewTicker(s.sweepEvery)
					sweepC = sweep.C
				}
			} else {
				stopSweep()
			}
			// The dismiss window runs from when the error first surfaced.
			// Unrelated state churn must not push it out, so the timer only
			// rearms when the message itself changes.
			if msg := s.reconciler.Error(); msg != "" {
				if msg != surfaced {
					stopErrTimer()
					errTimer = time.NewTimer(s.errorLinger)
					errTimerC = errTimer.C
					surfaced = msg
				}
			} else {
				stopErrTimer()
				surfaced = ""
			}
		case <-sweepC:
			s.publishSnapshot()
			if len(s.reconciler.Current()) == 0 {
				stopSweep()
			}
		case <-errTimerC:
			stopErrTimer()
			surfaced = ""
			s.reconciler.ClearError()
		}
	}
}

func (s *Service) agingEnabled() bool {
	return s.cfg.Style == "karaoke" && s.cfg.MaxAgeMS > 0
}

// lineOpacity applies the karaoke fade. Notes style keeps records
// indefinitely, so retained lines render fully opaque no matter their age.
func (s *Service) lineOpacity(age time.Duration, role Role) float64 {
	if !s.agingEnabled() {
		return 1
	}
	return Opacity(age, role)
}

func (s *Service) projectionOptions(now time.Time) ProjectionOptions {
	opts := ProjectionOptions{MaxLines: s.cfg.MaxLines, Now: now}
	if s.agingEnabled() {
		opts.MaxAge = time.Duration(s.cfg.MaxAgeMS) * time.Millisecond
	}
	return opts
}

func (s *Service) publishSnapshot() {
	now := s.clock().UTC()
	visible := Project(s.reconciler.Current(), s.projectionOptions(now))

	snapshot := protocol.CaptionSnapshot{
		Lines:     make([]protocol.CaptionLine, 0, len(visible)),
		Error:     s.reconciler.Error(),
		Timestamp: now,
	}
	for i, c := range visible {
		role := RoleOf(i, len(visible))
		age := now.Sub(c.Timestamp)
		snapshot.Lines = append(snapshot.Lines, protocol.CaptionLine{
			ID:             c.ID,
			Text:           c.Text,
			TranslatedText: c.TranslatedText,
			IsFinal:        c.IsFinal,
			Confidence:     c.Confidence,
			AgeMS:          age.Milliseconds(),
			Current:        role == RoleCurrent,
			Opacity:        s.lineOpacity(age, role),
		})
	}

	s.mu.Lock()
	s.last = snapshot
	s.mu.Unlock()

	if s.bus == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Warn("failed to marshal caption snapshot", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectCaptionSnapshot, data); err != nil {
		s.logger.Warn("failed to publish caption snapshot", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
