package mistral

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/internal/testutil"
	"github.com/hupe1980/llmrelay/provider"
)

func testConfig() *config.Config {
	return &config.Config{MistralAPIKey: "test-key"}
}

func completionBody(content, finishReason string) map[string]any {
	return map[string]any{
		"id":    "cmpl-1",
		"model": "mistral-medium-latest",
		"choices": []map[string]any{
			{
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func TestCompleteText(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(completionBody("bonjour", "stop"))
	}))
	defer server.Close()

	adapter := New(testConfig(), func(o *Options) {
		o.BaseURL = server.URL
	})

	payload := testutil.NewTask("summary", "hello").WithSystemPrompt("be brief").Build().Data
	result, err := adapter.Complete(context.Background(), "req-1", payload)

	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, provider.BaselineModel, gotReq.Model, "empty model resolves to the baseline")
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "be brief", gotReq.Messages[0].Content)

	assert.Equal(t, "bonjour", result.Content)
	assert.Equal(t, core.StopReasonStop, result.StopReason)
	assert.True(t, result.Success)
	assert.Equal(t, provider.Mistral, result.Metadata.Provider)
	assert.Equal(t, "req-1", result.Metadata.RequestID)
	require.NotNil(t, result.Metadata.Usage)
	assert.Equal(t, 15, result.Metadata.Usage.TotalTokens)
}

func TestCompleteToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id":   "call-1",
								"type": "function",
								"function": map[string]any{
									"name":      "lookup",
									"arguments": `{"query":"go"}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	adapter := New(testConfig(), func(o *Options) {
		o.BaseURL = server.URL
	})

	payload := testutil.NewTask("research", "look up go").Build().Data
	payload.Options.Tools = []core.ToolDefinition{{Name: "lookup", Parameters: map[string]any{"type": "object"}}}

	result, err := adapter.Complete(context.Background(), "req-1", payload)

	require.NoError(t, err)
	assert.Equal(t, core.StopReasonToolUse, result.StopReason)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "lookup", result.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"query": "go"}, result.ToolCalls[0].Input)
	require.Len(t, result.RawContentBlocks, 1)
	assert.Equal(t, "tool_use", result.RawContentBlocks[0].Type)
}

func TestCompleteRetriesThrottling(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(completionBody("after retry", "stop"))
	}))
	defer server.Close()

	adapter := New(testConfig(), func(o *Options) {
		o.BaseURL = server.URL
		o.MaxRetries = 2
	})

	payload := testutil.NewTask("summary", "hello").Build().Data
	result, err := adapter.Complete(context.Background(), "req-1", payload)

	require.NoError(t, err)
	assert.Equal(t, "after retry", result.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	adapter := New(testConfig(), func(o *Options) {
		o.BaseURL = server.URL
		o.MaxRetries = 3
	})

	payload := testutil.NewTask("summary", "hello").Build().Data
	_, err := adapter.Complete(context.Background(), "req-1", payload)

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCompleteMissingCredential(t *testing.T) {
	adapter := New(&config.Config{})

	payload := testutil.NewTask("summary", "hello").Build().Data
	_, err := adapter.Complete(context.Background(), "req-1", payload)

	var cfgErr *provider.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, provider.Mistral, cfgErr.Provider)
	assert.Equal(t, "MISTRAL_API_KEY", cfgErr.Variable)
}

func TestBuildMessagesToolResultPerCall(t *testing.T) {
	payload := &core.RequestPayload{
		Type: "research",
		Messages: []core.Message{
			{Role: "user", Content: "look this up"},
			{Role: "assistant", ToolCalls: []core.ToolCall{
				{ID: "call-1", Name: "lookup", Input: map[string]any{"query": "a"}},
				{ID: "call-2", Name: "lookup", Input: map[string]any{"query": "b"}},
			}},
			{Role: "tool", ToolCallID: "call-1", Content: "result a"},
			{Role: "tool", ToolCallID: "call-2", Content: "result b"},
		},
	}

	messages := buildMessages(payload)

	require.Len(t, messages, 4)
	assert.Len(t, messages[1].ToolCalls, 2)
	assert.Equal(t, "tool", messages[2].Role)
	assert.Equal(t, "call-1", messages[2].ToolCallID)
	assert.Equal(t, "tool", messages[3].Role)
	assert.Equal(t, "call-2", messages[3].ToolCallID)
}

func TestBuildMessagesInlinesAttachments(t *testing.T) {
	payload := &core.RequestPayload{
		Type: "summary",
		Messages: []core.Message{
			{
				Role:    "user",
				Content: "summarize this",
				Attachments: []core.Attachment{
					{Name: "notes.txt", MimeType: "text/plain", Data: []byte("attachment body")},
				},
			},
		},
	}

	messages := buildMessages(payload)

	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content, "summarize this")
	assert.Contains(t, messages[0].Content, "attachment body")
}
