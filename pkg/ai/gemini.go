// Package ai talks to the Gemini generateContent endpoint.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("ai: api key not configured")

// ErrEmptyResponse is returned when the model produced no text part.
var ErrEmptyResponse = errors.New("ai: empty response")

// GenerationConfig mirrors the sampling knobs accepted by generateContent.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// DefaultGenerationConfig keeps answers short and close to deterministic.
var DefaultGenerationConfig = GenerationConfig{
	Temperature:     0.3,
	TopK:            1,
	TopP:            1,
	MaxOutputTokens: 500,
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Client is a minimal Gemini REST client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	genConfig  GenerationConfig
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithGenerationConfig overrides the sampling parameters.
func WithGenerationConfig(cfg GenerationConfig) Option {
	return func(c *Client) { c.genConfig = cfg }
}

// NewClient builds a client for model at baseURL.
func NewClient(baseURL, model, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		genConfig:  DefaultGenerationConfig,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an API key is available.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Generate sends prompt as a single user turn and returns the first candidate's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: c.genConfig,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// StripCodeFences removes a surrounding ```json ... ``` or ``` ... ``` block.
func StripCodeFences(text string) string {
	out := strings.TrimSpace(text)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```JSON")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
