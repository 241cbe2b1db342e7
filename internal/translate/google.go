package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/captionlabs/livecap-core/internal/config"
)

// ErrMissingAPIKey is returned at call time when no key is configured.
// Construction succeeds without one so the rest of the runtime stays usable.
var ErrMissingAPIKey = errors.New("translation API key not configured")

type googleTranslator struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewGoogleTranslator builds a client for the Cloud Translation v2 endpoint.
func NewGoogleTranslator(cfg config.TranslationConfig) Translator {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &googleTranslator{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type translateRequest struct {
	Q      any    `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

func (g *googleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	results, err := g.call(ctx, text, source, target)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", errors.New("empty translation response")
	}
	return results[0], nil
}

func (g *googleTranslator) TranslateBatch(ctx context.Context, texts []string, source, target string) ([]string, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results, err := g.call(ctx, texts, source, target)
	if err != nil {
		return nil, err
	}
	if len(results) != len(texts) {
		return nil, fmt.Errorf("translation count mismatch: sent %d, got %d", len(texts), len(results))
	}
	return results, nil
}

func (g *googleTranslator) call(ctx context.Context, q any, source, target string) ([]string, error) {
	if g.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	payload := translateRequest{Q: q, Source: source, Target: target, Format: "text"}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := g.endpoint + "?key=" + url.QueryEscape(g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("translation API returned status %s", resp.Status)
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode translation response: %w", err)
	}

	results := make([]string, 0, len(decoded.Data.Translations))
	for _, t := range decoded.Data.Translations {
		results = append(results, t.TranslatedText)
	}
	return results, nil
}
