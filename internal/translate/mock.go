package translate

import (
	"context"
	"fmt"
)

type mockTranslator struct{}

func NewMockTranslator() Translator {
	return &mockTranslator{}
}

func (m *mockTranslator) Translate(_ context.Context, text, _, target string) (string, error) {
	return fmt.Sprintf("[%s] %s", target, text), nil
}

func (m *mockTranslator) TranslateBatch(_ context.Context, texts []string, _, target string) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = fmt.Sprintf("[%s] %s", target, text)
	}
	return out, nil
}
