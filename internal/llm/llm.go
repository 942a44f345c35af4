// Package llm is the plan-generation capability boundary: a prompt goes in,
// model text comes out. Providers are plain HTTP clients; failures surface as
// GenerationError and are never retried here; the user resubmits.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// requestTimeout bounds a single generation call.
const requestTimeout = 120 * time.Second

// Result is a successful generation.
type Result struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerationError is any transport, auth, quota, or malformed-response
// failure from a provider. The provider's own message is carried verbatim.
type GenerationError struct {
	Provider   string
	Model      string
	StatusCode int
	Message    string
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s generation failed (%s, HTTP %d): %s", e.Provider, e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s generation failed (%s): %s", e.Provider, e.Model, e.Message)
}

// Client generates text from a prompt. Generate blocks until the provider
// responds; cancel the context to abandon the wait.
type Client interface {
	Generate(ctx context.Context, prompt string) (*Result, error)
}

// New returns a client for the configured model. Models containing "claude"
// go to the Anthropic Messages API, everything else to an OpenAI-compatible
// chat completions endpoint, mirroring how the model string doubles as the
// provider selector in the config.
func New(model, apiKey string) Client {
	if strings.Contains(model, "claude") {
		return NewAnthropicClient(model, resolveKey(apiKey, "ANTHROPIC_API_KEY"))
	}
	return NewOpenAIClient(model, resolveKey(apiKey, "OPENAI_API_KEY"))
}

// resolveKey prefers the configured key, falling back to the environment.
func resolveKey(configured, envVar string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv(envVar)
}
