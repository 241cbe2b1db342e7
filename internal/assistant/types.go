package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/captionlabs/livecap-core/internal/config"
)

// Request describes a language model prompt.
type Request struct {
	RequestID   string
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Chunk represents streamed model output.
type Chunk struct {
	RequestID string
	Content   string
	Partial   bool
	Latency   time.Duration
}

// Generator defines a pluggable language model backend.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// NewGenerator builds the backend selected in config.
func NewGenerator(cfg config.AssistantConfig) (Generator, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockGenerator(), nil
	case "ollama":
		return NewOllamaGenerator(cfg.Endpoint, cfg.Model), nil
	case "exec":
		return NewExecGenerator(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown assistant mode %q", cfg.Mode)
	}
}

// collect runs a generation to completion and joins the streamed chunks.
func collect(ctx context.Context, gen Generator, req Request) (string, error) {
	var out string
	err := gen.Generate(ctx, req, func(chunk Chunk) error {
		out += chunk.Content
		return nil
	})
	return out, err
}
