package llm

import (
	"fmt"

	"ExitLane/internal/conf"
)

// NewProvider builds the configured provider adapter.
func NewProvider(c *conf.LLM) (Provider, error) {
	if c == nil {
		return nil, fmt.Errorf("llm configuration is required")
	}

	switch c.Provider {
	case "openai":
		return NewOpenAIProvider(c.ApiKey, c.Model, c.BaseUrl), nil
	case "anthropic":
		return NewAnthropicProvider(c.ApiKey, c.Model, c.BaseUrl), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", c.Provider)
	}
}
