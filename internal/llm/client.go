// Package llm implements an OpenAI-compatible chat completions client used to
// generate course documents. It works against any provider exposing the
// /v1/chat/completions surface, including local vLLM and Ollama endpoints.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/abaykopenov/llm-scorm/internal/course"
)

const (
	chatCompletionsPath = "/v1/chat/completions"
	modelsPath          = "/v1/models"
	ollamaTagsPath      = "/api/tags"

	maxAttempts = 3
)

// Params configures a Client. BaseURL and Model are required; the zero values
// of the remaining fields select sane defaults.
type Params struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// Client talks to one OpenAI-compatible provider. Clients are cheap to
// construct; the orchestrator builds a fresh one from the current settings
// snapshot for every generation.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	timeout     time.Duration
	temperature float64
	maxTokens   int

	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client. It validates addressing only; connectivity is checked
// by TestConnection or the first generation call.
func New(p Params, logger *slog.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base_url required", ErrInvalidRequest)
	}
	if strings.TrimSpace(p.Model) == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidRequest)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	temperature := p.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 16384
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(p.APIKey),
		model:       strings.TrimSpace(p.Model),
		timeout:     timeout,
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Transport: tr},
		logger:      logger.With("system", "llm"),
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using
// a custom http.Client.
func NewWithHTTPClient(p Params, logger *slog.Logger, httpClient *http.Client) (*Client, error) {
	c, err := New(p, logger)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
}

// GenerateCourse runs one full generation: prompt build, chat completion with
// retries, response parsing, and structural validation. The returned document
// always passes course.Validate.
func (c *Client) GenerateCourse(ctx context.Context, req *Request) (*course.Document, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	sysPrompt := req.SystemPrompt
	if sysPrompt == "" {
		sysPrompt = defaultSystemPrompt
	}

	body := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: sysPrompt},
			{Role: "user", Content: BuildPrompt(req)},
		},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	raw, err := c.completeWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}

	doc, err := ParseDocument(raw)
	if err != nil {
		c.logger.Warn("response parse failed", "error", err, "preview", preview(raw))
		return nil, err
	}

	c.logger.Info("course generated",
		"topic", req.Topic,
		"shape", req.Shape().String(),
		"title", doc.Title)
	return doc, nil
}

// TestConnection probes the provider's model listing endpoint. It verifies
// addressing and credentials without spending tokens.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}

// ListModels returns the model identifiers the provider reports. It tries
// the OpenAI /v1/models surface first and falls back to the Ollama-style
// /api/tags listing for local servers that do not implement it.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var openAI struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	openAIErr := c.getJSON(ctx, c.baseURL+modelsPath, &openAI)
	if openAIErr == nil {
		models := make([]string, 0, len(openAI.Data))
		for _, m := range openAI.Data {
			models = append(models, m.ID)
		}
		return models, nil
	}

	var ollama struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	tagsURL := strings.TrimSuffix(c.baseURL, "/v1") + ollamaTagsPath
	if err := c.getJSON(ctx, tagsURL, &ollama); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, openAIErr)
	}

	models := make([]string, 0, len(ollama.Models))
	for _, m := range ollama.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) completeWithRetry(ctx context.Context, body chatCompletionRequest) (string, error) {
	var raw string

	op := func() error {
		var resp chatCompletionResponse
		if err := c.doJSON(ctx, body, &resp); err != nil {
			if retryable(err) {
				c.logger.Warn("completion attempt failed, retrying", "error", err)
				return err
			}
			return backoff.Permanent(err)
		}

		text := extractChatText(resp)
		if strings.TrimSpace(text) == "" {
			return backoff.Permanent(fmt.Errorf("%w: empty completion", ErrUpstreamMalformed))
		}
		raw = text
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx))
	if err != nil {
		if errors.Is(err, ErrUpstreamMalformed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	return raw, nil
}

func (c *Client) doJSON(ctx context.Context, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, &buf)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func extractChatText(resp chatCompletionResponse) string {
	for _, choice := range resp.Choices {
		if strings.TrimSpace(choice.Message.Content) != "" {
			return choice.Message.Content
		}
		if strings.TrimSpace(choice.Text) != "" {
			return choice.Text
		}
	}
	return ""
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
