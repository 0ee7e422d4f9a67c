package llm

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// Degraded-service messages returned when the resilience layer cannot get a
// real answer. The employee-facing conversation never sees a raw error; it
// sees one of these. The two paths stay distinct for observability.
const (
	// DegradedCircuitOpenText is returned when the breaker rejects the call
	// before any upstream attempt.
	DegradedCircuitOpenText = "I'm sorry, our conversation service needs a short pause. Your answer has been saved - please try again in a minute."

	// DegradedRetryExhaustedText is returned after all retries failed.
	DegradedRetryExhaustedText = "I'm sorry, I couldn't process that just now. Your answer has been saved and we can continue with the next question."

	// ErrCircuitOpen is the stable error string for circuit rejections.
	ErrCircuitOpen = "circuit breaker open"
)

// RetryingInvoker wraps a single provider call with bounded retries,
// exponential backoff with jitter, and circuit-breaker integration.
// The breaker is mutated exactly once per terminal outcome (success or final
// failure), never per intermediate retry.
type RetryingInvoker struct {
	provider Provider
	breaker  *CircuitBreaker

	// maxRetries is the number of additional attempts after the first.
	maxRetries  int
	backoffBase time.Duration
	// jitterMax bounds the uniform random addition to each backoff wait.
	jitterMax time.Duration
	// timeout applies per upstream attempt.
	timeout time.Duration

	logger *log.Helper
}

// NewRetryingInvoker creates an invoker around the given provider and breaker.
func NewRetryingInvoker(provider Provider, breaker *CircuitBreaker, maxRetries int, backoffBase, timeout time.Duration, logger log.Logger) *RetryingInvoker {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &RetryingInvoker{
		provider:    provider,
		breaker:     breaker,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		jitterMax:   500 * time.Millisecond,
		timeout:     timeout,
		logger:      log.NewHelper(logger),
	}
}

// Invoke performs one resilient upstream call. It never returns a Go error:
// a rejected circuit or exhausted retries produce a degraded ResponseResult
// with Error set.
func (inv *RetryingInvoker) Invoke(ctx context.Context, prompt string) ResponseResult {
	start := time.Now()

	// Fail fast on an open circuit: no upstream call, no retry.
	if !inv.breaker.CanExecute() {
		inv.logger.Warnw("msg", "invocation rejected by open circuit", "type", "breaker")
		return ResponseResult{
			Text:       DegradedCircuitOpenText,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      ErrCircuitOpen,
		}
	}

	var lastErr error
	for attempt := 0; attempt <= inv.maxRetries; attempt++ {
		if attempt > 0 {
			wait := inv.backoffDelay(attempt - 1)
			inv.logger.Infow("msg", "retrying upstream call",
				"type", "llm",
				"attempt", attempt,
				"wait", wait.String(),
				"last_error", lastErr.Error())

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				// Caller cancelled the enclosing request mid-backoff.
				lastErr = ctx.Err()
				return inv.fail(start, lastErr)
			}
		}

		text, err := inv.attempt(ctx, prompt)
		if err == nil {
			inv.breaker.RecordSuccess()
			return ResponseResult{
				Text:       text,
				DurationMs: time.Since(start).Milliseconds(),
			}
		}
		lastErr = err
	}

	return inv.fail(start, lastErr)
}

// attempt performs a single provider call under the per-attempt timeout.
func (inv *RetryingInvoker) attempt(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	return inv.provider.SendPrompt(attemptCtx, prompt)
}

// fail records the terminal failure on the breaker and builds the degraded result.
func (inv *RetryingInvoker) fail(start time.Time, lastErr error) ResponseResult {
	inv.breaker.RecordFailure()
	inv.logger.Errorw("msg", "upstream call failed after retries",
		"type", "llm",
		"attempts", inv.maxRetries+1,
		"error", lastErr.Error())

	return ResponseResult{
		Text:       DegradedRetryExhaustedText,
		DurationMs: time.Since(start).Milliseconds(),
		Error:      lastErr.Error(),
	}
}

// backoffDelay computes backoffBase * 2^attempt plus uniform jitter.
func (inv *RetryingInvoker) backoffDelay(attempt int) time.Duration {
	delay := inv.backoffBase << uint(attempt)
	if inv.jitterMax > 0 {
		delay += time.Duration(rand.Int63n(int64(inv.jitterMax)))
	}
	return delay
}
