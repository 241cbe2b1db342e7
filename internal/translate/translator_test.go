package translate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/captionlabs/livecap-core/internal/config"
)

type failingTranslator struct {
	err error
}

func (f *failingTranslator) Translate(context.Context, string, string, string) (string, error) {
	return "", f.err
}

func (f *failingTranslator) TranslateBatch(context.Context, []string, string, string) ([]string, error) {
	return nil, f.err
}

func TestPassthrough(t *testing.T) {
	if !Passthrough("en", "en") {
		t.Fatal("same language must pass through")
	}
	if !Passthrough("es", "en") {
		t.Fatal("english target must pass through")
	}
	if Passthrough("en", "es") {
		t.Fatal("en to es must translate")
	}
}

func TestResolveFallsBackOnError(t *testing.T) {
	tr := &failingTranslator{err: errors.New("boom")}
	got := Resolve(context.Background(), tr, "hello world", "en", "es")
	if got != "hello world" {
		t.Fatalf("expected original text on failure, got %q", got)
	}
}

func TestResolveFallsBackOnEmptyResult(t *testing.T) {
	tr := &failingTranslator{err: nil}
	got := Resolve(context.Background(), tr, "hello world", "en", "es")
	if got == "" {
		t.Fatal("resolved text must never be empty")
	}
	if got != "hello world" {
		t.Fatalf("expected original text, got %q", got)
	}
}

func TestResolveSkipsCallOnPassthrough(t *testing.T) {
	tr := &failingTranslator{err: errors.New("must not be called")}
	got := Resolve(context.Background(), tr, "hello", "en", "en")
	if got != "hello" {
		t.Fatalf("expected identity passthrough, got %q", got)
	}
}

func TestGoogleTranslatorRequiresKeyAtCallTime(t *testing.T) {
	tr := NewGoogleTranslator(config.TranslationConfig{
		Endpoint: "https://translation.example/v2",
	})
	_, err := tr.Translate(context.Background(), "hola", "es", "fr")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestGoogleTranslatorParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("expected api key in query, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"hola mundo"}]}}`))
	}))
	defer srv.Close()

	tr := NewGoogleTranslator(config.TranslationConfig{
		Endpoint: srv.URL,
		APIKey:   "test-key",
	})
	got, err := tr.Translate(context.Background(), "hello world", "en", "es")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hola mundo" {
		t.Fatalf("expected translated text, got %q", got)
	}
}

func TestGoogleTranslatorBatchCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"uno"}]}}`))
	}))
	defer srv.Close()

	tr := NewGoogleTranslator(config.TranslationConfig{Endpoint: srv.URL, APIKey: "k"})
	_, err := tr.TranslateBatch(context.Background(), []string{"one", "two"}, "en", "es")
	if err == nil {
		t.Fatal("expected count mismatch error")
	}
}

func TestGoogleTranslatorServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tr := NewGoogleTranslator(config.TranslationConfig{Endpoint: srv.URL, APIKey: "k", TimeoutMS: 1000})
	_, err := tr.Translate(context.Background(), "hello", "en", "es")
	if err == nil {
		t.Fatal("expected error on HTTP failure")
	}

	// The display path still resolves to the original text.
	got := Resolve(context.Background(), tr, "hello", "en", "es")
	if got != "hello" {
		t.Fatalf("expected fallback to original, got %q", got)
	}
}

func TestResolveTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"tarde"}]}}`))
	}))
	defer srv.Close()

	tr := NewGoogleTranslator(config.TranslationConfig{Endpoint: srv.URL, APIKey: "k", TimeoutMS: 5000})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got := Resolve(ctx, tr, "late caption", "en", "es")
	if got != "late caption" {
		t.Fatalf("expected original text on timeout, got %q", got)
	}
}
