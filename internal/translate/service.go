package translate

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

// Service attaches translations to finalized captions. Each finalized
// caption gets its own fire-and-forget request; the caption renders before
// the translation resolves, and the resolution is published keyed by
// caption id so it tolerates arriving after eviction or out of order.
type Service struct {
	cfg        config.TranslationConfig
	bus        *bus.Client
	translator Translator
	sub        *nats.Subscription
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	ready      bool
	logger     *slog.Logger
}

func NewService(parent context.Context, cfg config.TranslationConfig, busClient *bus.Client, translator Translator, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:        cfg,
		bus:        busClient,
		translator: translator,
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.With(slog.String("component", "translation-service")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	if Passthrough(s.cfg.SourceLanguage, s.cfg.TargetLanguage) {
		// Nothing to attach; captions already show the source language.
		s.ready = true
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectCaptionFinal, s.handleFinal)
	if err != nil {
		return fmt.Errorf("subscribe finalized captions: %w", err)
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

func (s *Service) handleFinal(msg *nats.Msg) {
	var evt protocol.RecognitionEvent
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		s.logger.Warn("failed to decode finalized caption", slogError(err))
		return
	}
	if evt.ID == "" || evt.Text == "" {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timeout := time.Duration(s.cfg.TimeoutMS) * time.Millisecond
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()

		// Resolve never fails; a backend error logs and yields the
		// original text, which is still worth attaching so dual-column
		// displays have both sides populated.
		text := Resolve(ctx, s.translator, evt.Text, s.cfg.SourceLanguage, s.cfg.TargetLanguage)
		if text == evt.Text && ctx.Err() != nil {
			s.logger.Warn("translation timed out, falling back to original",
				slog.String("caption_id", evt.ID))
		}

		s.publish(protocol.CaptionTranslation{
			CaptionID: evt.ID,
			Text:      text,
			Language:  s.cfg.TargetLanguage,
			Timestamp: time.Now().UTC(),
		})
	}()
}

func (s *Service) publish(tr protocol.CaptionTranslation) {
	data, err := json.Marshal(tr)
	if err != nil {
		s.logger.Warn("failed to marshal caption translation", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectCaptionTranslation, data); err != nil {
		s.logger.Warn("failed to publish caption translation", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
