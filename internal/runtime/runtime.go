package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/captionlabs/livecap-core/internal/assistant"
	"github.com/captionlabs/livecap-core/internal/audio"
	"github.com/captionlabs/livecap-core/internal/bus"
	"github.com/captionlabs/livecap-core/internal/caption"
	"github.com/captionlabs/livecap-core/internal/config"
	"github.com/captionlabs/livecap-core/internal/natsserver"
	"github.com/captionlabs/livecap-core/internal/notes"
	"github.com/captionlabs/livecap-core/internal/presence"
	"github.com/captionlabs/livecap-core/internal/recognition"
	"github.com/captionlabs/livecap-core/internal/session"
	"github.com/captionlabs/livecap-core/internal/translate"
	"github.com/captionlabs/livecap-core/internal/volume"
)

// healthChecker is the common surface every bus service exposes.
type healthChecker interface {
	Healthy() bool
}

// Runtime owns the full process lifecycle: broker, bus client, session
// store, the caption pipeline services, and the HTTP surface.
type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	ready      atomic.Bool
	wg         sync.WaitGroup

	store    *notes.Store
	captions *caption.Service
	volume   *volume.Service
	presence *presence.Registry
	checks   []healthChecker
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the runtime up and blocks until ctx is cancelled, then tears
// everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded broker: %w", err)
	}

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		embedded.Shutdown()
		return fmt.Errorf("failed to connect to bus: %w", err)
	}

	store, err := notes.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		busClient.Close()
		embedded.Shutdown()
		return fmt.Errorf("failed to open session store: %w", err)
	}
	r.store = store

	closers, err := r.startServices(ctx, busClient)
	if err != nil {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		_ = store.Close()
		busClient.Close()
		embedded.Shutdown()
		return err
	}

	mux := r.buildMux(metricHandler)
	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	if err := store.Close(); err != nil {
		r.logger.Error("store close error", slog.String("error", err.Error()))
	}
	busClient.Close()
	embedded.Shutdown()

	if shutdownTelemetry != nil {
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
	return nil
}

// startServices wires the caption pipeline onto the bus. Returned closers
// undo the services already started when a later one fails.
func (r *Runtime) startServices(ctx context.Context, busClient *bus.Client) ([]func(), error) {
	var closers []func()

	captionSvc := caption.NewService(ctx, r.cfg.Display, busClient, r.logger)
	if err := captionSvc.Start(); err != nil {
		return closers, fmt.Errorf("start caption service: %w", err)
	}
	closers = append(closers, captionSvc.Close)
	r.captions = captionSvc
	r.checks = append(r.checks, captionSvc)

	volumeSvc := volume.NewService(r.cfg.Volume, busClient, r.logger)
	if err := volumeSvc.Start(); err != nil {
		return closers, fmt.Errorf("start volume service: %w", err)
	}
	closers = append(closers, volumeSvc.Close)
	r.volume = volumeSvc
	r.checks = append(r.checks, volumeSvc)

	if r.cfg.Translation.Enabled {
		translator, err := translate.NewTranslator(r.cfg.Translation)
		if err != nil {
			return closers, fmt.Errorf("build translator: %w", err)
		}
		translateSvc := translate.NewService(ctx, r.cfg.Translation, busClient, translator, r.logger)
		if err := translateSvc.Start(); err != nil {
			return closers, fmt.Errorf("start translation service: %w", err)
		}
		closers = append(closers, translateSvc.Close)
		r.checks = append(r.checks, translateSvc)
	}

	if r.cfg.Recognition.Enabled {
		recognizer, err := recognition.NewRecognizer(r.cfg.Recognition)
		if err != nil {
			return closers, fmt.Errorf("build recognizer: %w", err)
		}
		recognitionSvc := recognition.NewService(ctx, r.cfg.Recognition, busClient, recognizer, r.logger)
		if err := recognitionSvc.Start(); err != nil {
			return closers, fmt.Errorf("start recognition service: %w", err)
		}
		closers = append(closers, recognitionSvc.Close)
		r.checks = append(r.checks, recognitionSvc)
	}

	if r.cfg.Audio.Enabled {
		capture, err := audio.NewCapture(r.cfg.Audio.SampleRate, r.cfg.Audio.Channels)
		if err != nil {
			return closers, fmt.Errorf("init audio capture: %w", err)
		}
		audioSvc := audio.NewService(ctx, r.cfg.Audio, busClient, capture, r.logger)
		if err := audioSvc.Start(); err != nil {
			_ = capture.Close()
			return closers, fmt.Errorf("start audio service: %w", err)
		}
		closers = append(closers, audioSvc.Close)
		r.checks = append(r.checks, audioSvc)
	}

	generator, err := assistant.NewGenerator(r.cfg.Assistant)
	if err != nil {
		return closers, fmt.Errorf("build assistant backend: %w", err)
	}

	assistantSvc := assistant.NewService(ctx, r.cfg.Assistant, busClient, r.store, generator, r.logger)
	if err := assistantSvc.Start(); err != nil {
		return closers, fmt.Errorf("start assistant service: %w", err)
	}
	closers = append(closers, assistantSvc.Close)
	r.checks = append(r.checks, assistantSvc)

	sessionSvc := session.NewService(ctx, r.cfg.Assistant, busClient, r.store, generator, r.logger)
	if err := sessionSvc.Start(); err != nil {
		return closers, fmt.Errorf("start session service: %w", err)
	}
	closers = append(closers, sessionSvc.Close)
	r.checks = append(r.checks, sessionSvc)

	registry, err := presence.NewRegistry(ctx, r.cfg.Client, busClient, r.logger)
	if err != nil {
		return closers, fmt.Errorf("start presence registry: %w", err)
	}
	closers = append(closers, registry.Close)
	r.presence = registry

	r.checks = append(r.checks, busClient)
	return closers, nil
}
