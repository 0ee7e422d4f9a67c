package llm

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"ExitLane/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
)

// Client is the cached, retried, circuit-broken entry point to the LM backend.
// Layers are composed at construction time; each exposes the same call shape.
type Client struct {
	provider Provider
	invoker  *RetryingInvoker
	cache    *ResponseCache
	breaker  *CircuitBreaker
	logger   *log.Helper
}

// NewClient wires provider -> breaker -> invoker -> cache from configuration.
// The provider is injected so tests can substitute a fake backend.
func NewClient(c *conf.LLM, provider Provider, logger log.Logger) *Client {
	breaker := NewCircuitBreaker(
		int(c.Breaker.FailureThreshold),
		c.Breaker.RecoveryPeriod.AsDuration(),
		logger,
	)
	invoker := NewRetryingInvoker(
		provider,
		breaker,
		int(c.MaxRetries),
		c.BackoffBase.AsDuration(),
		c.Timeout.AsDuration(),
		logger,
	)
	cache := NewResponseCache(
		c.Cache.Ttl.AsDuration(),
		int(c.Cache.MaxEntries),
		logger,
	)

	return &Client{
		provider: provider,
		invoker:  invoker,
		cache:    cache,
		breaker:  breaker,
		logger:   log.NewHelper(logger),
	}
}

// GenerateResponse runs one resilient, deduplicated invocation. It never
// returns a Go error; degraded outcomes carry the Error string.
// Extra fields participate in the cache key (e.g. the interview ID when the
// same question text must not be shared across interviews).
func (c *Client) GenerateResponse(ctx context.Context, prompt string, extra ...string) ResponseResult {
	key := c.cache.Key(c.provider.Name(), c.provider.Model(), prompt, extra...)
	return c.cache.GetOrCompute(key, func() ResponseResult {
		return c.invoker.Invoke(ctx, prompt)
	})
}

// sentimentPromptTemplate asks for a bare score so parsing stays trivial.
const sentimentPromptTemplate = `Rate the sentiment of the following employee message on a scale from -1.0 (very negative) to 1.0 (very positive). Respond with only the number.

Message: `

// AnalyzeSentiment returns a score in [-1.0, 1.0] for the given text, with
// the same resilience wrapping as GenerateResponse. Empty input and any
// unparseable upstream output yield the neutral score 0.0 rather than an error.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0.0
	}

	res := c.GenerateResponse(ctx, sentimentPromptTemplate+text)
	if !res.OK() {
		return 0.0
	}

	return parseSentimentScore(res.Text, c.logger)
}

// Cache exposes the response cache for the maintenance cron.
func (c *Client) Cache() *ResponseCache {
	return c.cache
}

// Breaker exposes the circuit breaker for observability.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// floatPattern matches the first signed decimal in upstream output, tolerating
// models that wrap the score in prose.
var floatPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseSentimentScore extracts and clamps the score, falling back to neutral
// on malformed output.
func parseSentimentScore(text string, logger *log.Helper) float64 {
	match := floatPattern.FindString(text)
	if match == "" {
		logger.Warnw("msg", "unparseable sentiment output, using neutral score",
			"type", "sentiment",
			"output", strings.TrimSpace(text))
		return 0.0
	}

	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0.0
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < -1.0 {
		score = -1.0
	}
	return score
}
