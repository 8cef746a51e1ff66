package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/Veraticus/treasury-vouchers/internal/common"
)

// openAIClient talks to any OpenAI-compatible chat completions endpoint.
type openAIClient struct {
	httpClient   *http.Client
	endpoint     string
	apiKey       string
	model        string
	responsePath string
	temperature  float64
	maxTokens    int
}

func newOpenAIClient(cfg Config) (Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	path := cfg.ResponsePath
	if path == "" {
		path = DefaultResponsePath
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &openAIClient{
		endpoint:     strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:       cfg.APIKey,
		model:        model,
		responsePath: path,
		temperature:  cfg.Temperature,
		maxTokens:    maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// Complete posts a chat completion and extracts the answer with the
// configured JSONPath expression.
func (c *openAIClient) Complete(ctx context.Context, req Request) (string, error) {
	requestBody := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.Prompt},
		},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: true}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &common.RetryableError{
			Err:        fmt.Errorf("oracle status %d: %w", resp.StatusCode, common.ErrRateLimit),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			Retryable:  true,
		}
	case resp.StatusCode >= 500:
		return "", &common.RetryableError{
			Err:       fmt.Errorf("oracle server error (status %d): %s", resp.StatusCode, string(body)),
			Retryable: true,
		}
	case resp.StatusCode != http.StatusOK:
		return "", common.Permanent(fmt.Errorf("oracle API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", common.Permanent(fmt.Errorf("failed to parse response: %w", err))
	}

	return extractText(payload, c.responsePath)
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// extractText evaluates path against payload and returns the first string found.
func extractText(payload any, path string) (string, error) {
	val, err := jsonpath.Get(path, payload)
	if err != nil {
		return "", common.Permanent(fmt.Errorf("response path %q: %w", path, err))
	}
	if list, ok := val.([]any); ok {
		if len(list) == 0 {
			return "", common.Permanent(fmt.Errorf("response path %q matched nothing", path))
		}
		val = list[0]
	}
	text, ok := val.(string)
	if !ok {
		return "", common.Permanent(fmt.Errorf("response path %q is not text: %v", path, val))
	}
	return text, nil
}
