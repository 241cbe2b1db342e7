package audio

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
	"github.com/captionlabs/livecap-core/internal/volume"
	"github.com/nats-io/nats.go"
)

// Source abstracts the capture device so the service can be driven by a
// fake in tests.
type Source interface {
	Start(onFrame func(pcm []byte)) error
	Stop()
	Close() error
}

// Service owns the microphone. It opens the device when a session starts,
// streams frames onto the bus, and guarantees the device is released on
// stop, on a failed start, and on shutdown. Sustained silence ends the
// current utterance by publishing a final frame.
type Service struct {
	cfg    config.AudioConfig
	bus    *bus.Client
	source Source
	subs   []*nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	ready  bool
	logger *slog.Logger
	clock  func() time.Time

	mu        sync.Mutex
	sessionID string
	sequence  int
	lastVoice time.Time
	hasVoice  bool
}

func NewService(parent context.Context, cfg config.AudioConfig, busClient *bus.Client, source Source, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:    cfg,
		bus:    busClient,
		source: source,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(slog.String("component", "audio-service")),
		clock:  time.Now,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	handlers := map[string]nats.MsgHandler{
		protocol.SubjectSessionStart: s.handleStart,
		protocol.SubjectSessionStop:  s.handleStop,
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
	s.mu.Lock()
	active := s.sessionID != ""
	s.sessionID = ""
	s.mu.Unlock()
	if active {
		s.source.Stop()
	}
	if err := s.source.Close(); err != nil {
		s.logger.Warn("audio source close failed", slogError(err))
	}
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready
}

func (s *Service) handleStart(msg *nats.Msg) {
	var ctrl protocol.SessionControl
	if err := json.Unmarshal(msg.Data, &ctrl); err != nil {
		s.logger.Warn("failed to decode session start", slogError(err))
		return
	}
	if ctrl.SessionID == "" {
		return
	}

	s.mu.Lock()
	// One device, one session. The previous capture must be fully
	// released before the next one may open the device.
	if s.sessionID != "" {
		s.source.Stop()
	}
	s.sessionID = ctrl.SessionID
	s.sequence = 0
	s.hasVoice = false
	s.mu.Unlock()

	if err := s.source.Start(s.onFrame); err != nil {
		s.mu.Lock()
		s.sessionID = ""
		s.mu.Unlock()
		s.logger.Warn("failed to open capture device", slogError(err))
		s.publishError(ctrl.SessionID, "Microphone unavailable. Check permissions and try again.")
		return
	}
	s.logger.Info("capture started", slog.String("session_id", ctrl.SessionID))
}

func (s *Service) handleStop(msg *nats.Msg) {
	var ctrl protocol.SessionControl
	if err := json.Unmarshal(msg.Data, &ctrl); err != nil {
		s.logger.Warn("failed to decode session stop", slogError(err))
		return
	}

	s.mu.Lock()
	if s.sessionID == "" || (ctrl.SessionID != "" && ctrl.SessionID != s.sessionID) {
		s.mu.Unlock()
		return
	}
	stopped := s.sessionID
	s.sessionID = ""
	s.mu.Unlock()

	s.source.Stop()
	s.logger.Info("capture stopped", slog.String("session_id", stopped))
}

func (s *Service) onFrame(pcm []byte) {
	s.mu.Lock()
	sessionID := s.sessionID
	if sessionID == "" {
		s.mu.Unlock()
		return
	}
	s.sequence++
	seq := s.sequence

	final := s.endpoint(pcm, s.clock())
	s.mu.Unlock()

	s.publishFrame(protocol.AudioFrame{
		SessionID:  sessionID,
		Sequence:   seq,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		PCM:        pcm,
		Final:      final,
	})
}

// endpoint decides whether this frame closes the current utterance. A
// stretch of silence at least SilenceEndpointMS long after voiced audio
// marks the boundary. Caller holds s.mu.
func (s *Service) endpoint(pcm []byte, now time.Time) bool {
	if volume.Classify(volume.Amplitude(pcm)) != volume.LevelSilent {
		s.lastVoice = now
		s.hasVoice = true
		return false
	}
	if !s.hasVoice || s.cfg.SilenceEndpointMS <= 0 {
		return false
	}
	if now.Sub(s.lastVoice) >= time.Duration(s.cfg.SilenceEndpointMS)*time.Millisecond {
		s.hasVoice = false
		return true
	}
	return false
}

func (s *Service) publishFrame(frame protocol.AudioFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Warn("failed to marshal audio frame", slogError(err))
		return
	}
	subject := protocol.SubjectAudioFramePrefix + "." + frame.SessionID
	if err := s.bus.Conn().Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish audio frame", slogError(err))
	}
}

func (s *Service) publishError(sessionID, message string) {
	msg := protocol.RecognitionError{
		SessionID: sessionID,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectRecognitionError, data); err != nil {
		s.logger.Warn("failed to publish capture error", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
