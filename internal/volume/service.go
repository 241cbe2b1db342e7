package volume

import (
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

// publishEvery throttles level updates; the meter does not need every frame.
const publishEvery = 200 * time.Millisecond

// Service monitors input amplitude on a timeline independent of the
// recognition stream: it samples the same audio frames off the bus,
// classifies them, and publishes the running level. It goes quiet as soon
// as the capture side stops publishing frames.
type Service struct {
	cfg      config.VolumeConfig
	bus      *bus.Client
	logger   *slog.Logger
	subs     []*nats.Subscription
	ready    bool
	clock    func() time.Time
	mu       sync.Mutex
	lastPub  time.Time
	current  protocol.VolumeLevel
	feedback *Feedback
}

func NewService(cfg config.VolumeConfig, busClient *bus.Client, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		bus:    busClient,
		logger: logger.With(slog.String("component", "volume-monitor")),
		clock:  time.Now,
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	frameSub, err := s.bus.Conn().Subscribe(protocol.SubjectAudioFramePrefix+".>", s.handleFrame)
	if err != nil {
		return fmt.Errorf("subscribe audio frames: %w", err)
	}
	s.subs = append(s.subs, frameSub)

	stopSub, err := s.bus.Conn().Subscribe(protocol.SubjectSessionStop, s.handleStop)
	if err != nil {
		return fmt.Errorf("subscribe session stop: %w", err)
	}
	s.subs = append(s.subs, stopSub)

	s.ready = true
	return nil
}

func (s *Service) Close() {
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready
}

// Current returns the last published level.
func (s *Service) Current() protocol.VolumeLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Service) handleFrame(msg *nats.Msg) {
	var frame protocol.AudioFrame
	if err := json.Unmarshal(msg.Data, &frame); err != nil {
		s.logger.Warn("failed to decode audio frame", slogError(err))
		return
	}

	amplitude := Amplitude(frame.PCM)
	now := s.clock()

	s.mu.Lock()
	if s.feedback == nil {
		s.feedback = NewFeedback(now)
	}
	if !s.lastPub.IsZero() && now.Sub(s.lastPub) < publishEvery {
		s.mu.Unlock()
		return
	}
	s.lastPub = now
	band := Classify(amplitude)
	level := protocol.VolumeLevel{
		SessionID: frame.SessionID,
		Volume:    amplitude,
		Level:     string(band),
		Nudge:     s.feedback.Observe(band, now),
		Timestamp: now.UTC(),
	}
	s.current = level
	s.mu.Unlock()

	s.publish(level)
}

func (s *Service) handleStop(msg *nats.Msg) {
	now := s.clock()
	level := protocol.VolumeLevel{
		Volume:    0,
		Level:     string(LevelSilent),
		Timestamp: now.UTC(),
	}
	s.mu.Lock()
	s.lastPub = time.Time{}
	s.feedback = nil
	s.current = level
	s.mu.Unlock()
	s.publish(level)
}

func (s *Service) publish(level protocol.VolumeLevel) {
	data, err := json.Marshal(level)
	if err != nil {
		s.logger.Warn("failed to marshal volume level", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectVolumeLevel, data); err != nil {
		s.logger.Warn("failed to publish volume level", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
