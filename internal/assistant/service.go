package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/captionlabs/livecap-core/internal/bus"
	"github.com/captionlabs/livecap-core/internal/config"
	"github.com/captionlabs/livecap-core/internal/notes"
	"github.com/captionlabs/livecap-core/internal/protocol"
	"github.com/nats-io/nats.go"
)

const fallbackReply = "Sorry, I'm having trouble connecting right now. Please try again."

// Service answers chat requests over the bus, grounding each reply in the
// saved session notes.
type Service struct {
	cfg       config.AssistantConfig
	bus       *bus.Client
	generator Generator
	store     *notes.Store
	sub       *nats.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	ready     bool
	logger    *slog.Logger
}

func NewService(parent context.Context, cfg config.AssistantConfig, busClient *bus.Client, store *notes.Store, generator Generator, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:       cfg,
		bus:       busClient,
		generator: generator,
		store:     store,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("component", "assistant-service")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectAssistantChatRequest, s.handleChat)
	if err != nil {
		return fmt.Errorf("subscribe chat requests: %w", err)
	}
	s.sub = sub
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready
}

// Generator exposes the configured backend for callers that run their own
// prompts, such as session summarization.
func (s *Service) Generator() Generator { return s.generator }

func (s *Service) handleChat(msg *nats.Msg) {
	var req protocol.ChatRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode chat request", slogError(err))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, 60*time.Second)
		defer cancel()

		sessions, err := s.store.List(ctx, notes.Filter{})
		if err != nil {
			s.logger.Warn("failed to load sessions for chat context", slogError(err))
		}

		start := time.Now()
		content, err := collect(ctx, s.generator, Request{
			RequestID:   req.RequestID,
			Prompt:      chatPrompt(req.Message, sessions),
			MaxTokens:   s.cfg.MaxTokens,
			Temperature: s.cfg.Temperature,
		})
		fallback := false
		if err != nil || content == "" {
			if err != nil {
				s.logger.Warn("chat generation failed", slogError(err))
			}
			content = fallbackReply
			fallback = true
		} else {
			s.logger.Info("chat generation complete", slog.Duration("latency", time.Since(start)))
		}

		s.publishReply(protocol.ChatResponse{
			RequestID: req.RequestID,
			Content:   content,
			Fallback:  fallback,
			Timestamp: time.Now().UTC(),
		})
	}()
}

func (s *Service) publishReply(reply protocol.ChatResponse) {
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to encode chat reply", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectAssistantChatReply, data); err != nil {
		s.logger.Warn("failed to publish chat reply", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
