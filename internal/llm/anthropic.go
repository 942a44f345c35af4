package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lazyaider/lazyaider/internal/logging"
)

var llmLog = logging.ForComponent(logging.CompLLM)

const (
	anthropicBaseURL   = "https://api.anthropic.com/v1/messages"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 8192
)

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
func NewAnthropicClient(model, apiKey string) *AnthropicClient {
	return &AnthropicClient{
		model:   model,
		apiKey:  apiKey,
		baseURL: anthropicBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// Generate sends the prompt as a single user message and returns the text.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string) (*Result, error) {
	if c.apiKey == "" {
		return nil, &GenerationError{Provider: "anthropic", Model: c.model,
			Message: "no API key configured (set llm_api_key or ANTHROPIC_API_KEY)"}
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, &GenerationError{Provider: "anthropic", Model: c.model, Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Provider: "anthropic", Model: c.model, Message: err.Error()}
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	llmLog.Info("llm_request", slog.String("provider", "anthropic"), slog.String("model", c.model))
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, &GenerationError{Provider: "anthropic", Model: c.model, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GenerationError{Provider: "anthropic", Model: c.model, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		var apiResp anthropicResponse
		if json.Unmarshal(respBody, &apiResp) == nil && apiResp.Error != nil {
			msg = apiResp.Error.Message
		}
		return nil, &GenerationError{Provider: "anthropic", Model: c.model,
			StatusCode: resp.StatusCode, Message: msg}
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, &GenerationError{Provider: "anthropic", Model: c.model,
			Message: "malformed response: " + err.Error()}
	}
	if len(apiResp.Content) == 0 || strings.TrimSpace(apiResp.Content[0].Text) == "" {
		return nil, &GenerationError{Provider: "anthropic", Model: c.model,
			Message: "empty response content"}
	}

	return &Result{
		Text:             strings.TrimSpace(apiResp.Content[0].Text),
		Model:            c.model,
		PromptTokens:     apiResp.Usage.InputTokens,
		CompletionTokens: apiResp.Usage.OutputTokens,
		TotalTokens:      apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
	}, nil
}
