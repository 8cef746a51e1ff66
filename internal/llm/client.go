package llm

import (
	"context"
	"time"
)

// Client sends a single prompt to a language model and returns its text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is one system instruction plus one user prompt.
type Request struct {
	System string
	Prompt string
}

// Config holds configuration for the oracle and its provider client.
type Config struct {
	Provider     string
	BaseURL      string
	APIKey       string
	Model        string
	ResponsePath string
	Timeout      time.Duration
	RetryDelay   time.Duration
	CacheTTL     time.Duration
	MaxRetries   int
	RateLimit    int
	MaxTokens    int
	Temperature  float64
}

// Defaults for OpenAI-compatible servers.
const (
	DefaultBaseURL      = "http://localhost:1234/v1"
	DefaultModel        = "Qwen3-8B-Instruct"
	DefaultGeminiModel  = "gemini-2.5-flash"
	DefaultResponsePath = "$.choices[0].message.content"
	DefaultTimeout      = 10 * time.Second
	DefaultMaxTokens    = 10
)
