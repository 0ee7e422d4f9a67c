// Package llm implements the resilient language-model invocation layer:
// provider adapters, a failure-threshold circuit breaker, a retrying invoker
// with exponential backoff, and a deduplicating response cache composed as
// invoker = RetryingInvoker(breaker, provider), cached = ResponseCache(invoker).
package llm

import (
	"context"
)

// Provider sends a formatted prompt to a specific LM backend and returns the
// raw completion text. Implementations contain no retry or caching logic;
// resilience is layered on top by RetryingInvoker and ResponseCache.
type Provider interface {
	// Name returns the provider identifier (for logging and cache keys).
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// SendPrompt performs one upstream call. It honors ctx cancellation and
	// returns an error on any transport or provider failure.
	SendPrompt(ctx context.Context, prompt string) (string, error)
}

// ResponseResult is the value returned by every resilient invocation.
// It never carries a Go error: failures are reported through the Error string
// so the conversation layer always has presentable text to fall back on.
type ResponseResult struct {
	Text       string `json:"text"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// OK reports whether the invocation produced a real upstream answer.
func (r ResponseResult) OK() bool {
	return r.Error == ""
}
