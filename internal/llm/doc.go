// Package llm implements the remote classification oracle. It talks to
// OpenAI-compatible chat completion servers or Google Gemini, with retry,
// rate limiting and a per-run answer cache.
package llm
