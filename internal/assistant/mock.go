package assistant

import (
	"context"
	"strings"
	"time"
)

type mockGenerator struct{}

func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	var content string
	switch {
	case strings.Contains(req.Prompt, `"suggestedSubject"`):
		content = `{"summary": "A mock summary of the captured session.", "keyPoints": ["mock point one", "mock point two"], "suggestedSubject": "Other", "topics": ["mock topic"]}`
	case strings.Contains(req.Prompt, `"reviewPoints"`):
		content = `{"questions": ["mock question?"], "reviewPoints": ["mock review point"]}`
	default:
		content = "[mock completion for " + strings.TrimSpace(req.Prompt) + "]"
	}
	return consumer(Chunk{
		RequestID: req.RequestID,
		Content:   content,
		Partial:   false,
		Latency:   20 * time.Millisecond,
	})
}
