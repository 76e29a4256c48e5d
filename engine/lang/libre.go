package lang

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/carfix-labs/carfix/engine/domain"
)

// LibreClient talks to a LibreTranslate-compatible /translate endpoint.
type LibreClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// LibreOption configures a LibreClient.
type LibreOption func(*LibreClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) LibreOption {
	return func(l *LibreClient) { l.client = c }
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(perSecond float64, burst int) LibreOption {
	return func(l *LibreClient) { l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewLibreClient creates a client for baseURL, e.g. "http://localhost:5000".
func NewLibreClient(baseURL, apiKey string, opts ...LibreOption) *LibreClient {
	l := &LibreClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// Translate implements Translator.
func (l *LibreClient) Translate(ctx context.Context, text string, target domain.Language) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("libre: rate limit: %w", err)
	}

	body, err := json.Marshal(libreRequest{
		Q:      text,
		Source: "auto",
		Target: string(target),
		Format: "text",
		APIKey: l.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("libre: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("libre: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("libre: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("libre: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out libreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("libre: decode: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("libre: %s", out.Error)
	}
	return out.TranslatedText, nil
}
