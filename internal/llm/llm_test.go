package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsProviderByModel(t *testing.T) {
	_, isAnthropic := New("claude-sonnet-4", "k").(*AnthropicClient)
	assert.True(t, isAnthropic)

	_, isOpenAI := New("gpt-4o", "k").(*OpenAIClient)
	assert.True(t, isOpenAI)
}

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		w.Write([]byte(`{
			"content": [{"type": "text", "text": "# Plan\n\n## Step\nbody"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 20}
		}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("claude-sonnet-4", "test-key")
	c.baseURL = srv.URL

	res, err := c.Generate(context.Background(), "make a plan")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "## Step")
	assert.Equal(t, 10, res.PromptTokens)
	assert.Equal(t, 20, res.CompletionTokens)
	assert.Equal(t, 30, res.TotalTokens)
}

func TestAnthropicGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("claude-sonnet-4", "bad-key")
	c.baseURL = srv.URL

	_, err := c.Generate(context.Background(), "prompt")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, http.StatusUnauthorized, genErr.StatusCode)
	// Provider message is carried verbatim.
	assert.Contains(t, genErr.Message, "invalid x-api-key")
}

func TestAnthropicGenerateEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": [], "usage": {}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("claude-sonnet-4", "k")
	c.baseURL = srv.URL

	_, err := c.Generate(context.Background(), "prompt")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Message, "empty response")
}

func TestAnthropicGenerateMissingKey(t *testing.T) {
	c := NewAnthropicClient("claude-sonnet-4", "")
	_, err := c.Generate(context.Background(), "prompt")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Message, "no API key")
}

func TestOpenAIGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"choices": [{"message": {"content": "# Plan\n\n## Step\nbody"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("gpt-4o", "test-key")
	c.baseURL = srv.URL

	res, err := c.Generate(context.Background(), "make a plan")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "## Step")
	assert.Equal(t, 12, res.TotalTokens)
}

func TestGenerateCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewOpenAIClient("gpt-4o", "k")
	c.baseURL = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := c.Generate(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
}
