package translate

import (
	"context"
	"fmt"

	"github.com/captionlabs/livecap-core/internal/config"
)

// Translator abstracts the text translation backend.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
	TranslateBatch(ctx context.Context, texts []string, source, target string) ([]string, error)
}

// NewTranslator builds the backend selected in config.
func NewTranslator(cfg config.TranslationConfig) (Translator, error) {
	switch cfg.Mode {
	case "mock":
		return NewMockTranslator(), nil
	case "google":
		return NewGoogleTranslator(cfg), nil
	default:
		return nil, fmt.Errorf("unknown translation mode %q", cfg.Mode)
	}
}

// Passthrough reports whether a call should be skipped entirely: English
// targets and same-language pairs return the original text unchanged.
func Passthrough(source, target string) bool {
	return target == "en" || target == source
}

// Resolve returns the translated text for display. It never fails: any
// backend error falls back to the original text, so a caption is never
// blanked or blocked on translation.
func Resolve(ctx context.Context, tr Translator, text, source, target string) string {
	if Passthrough(source, target) {
		return text
	}
	translated, err := tr.Translate(ctx, text, source, target)
	if err != nil || translated == "" {
		return text
	}
	return translated
}
