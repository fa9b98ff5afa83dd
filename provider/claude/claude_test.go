package claude

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/internal/testutil"
	"github.com/hupe1980/llmrelay/provider"
)

func TestCompleteMissingCredential(t *testing.T) {
	adapter := New(&config.Config{})

	payload := testutil.NewTask("summary", "hello").Build().Data
	_, err := adapter.Complete(context.Background(), "req-1", payload)

	var cfgErr *provider.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, provider.Claude, cfgErr.Provider)
	assert.Equal(t, "ANTHROPIC_API_KEY", cfgErr.Variable)
}

func TestBuildParamsDefaults(t *testing.T) {
	payload := testutil.NewTask("summary", "hello").Build().Data

	params, model := buildParams(payload)

	assert.Equal(t, provider.ClaudeDefaultModel, model)
	assert.Equal(t, int64(1024), params.MaxTokens)
	require.Len(t, params.Messages, 1)
}

func TestBuildParamsMaxTokensFloor(t *testing.T) {
	payload := testutil.NewTask("summary", "hello").Build().Data
	payload.Options.MaxTokens = 0

	params, _ := buildParams(payload)

	assert.Equal(t, int64(defaultMaxTokens), params.MaxTokens)
}

func TestSystemBlocksCollected(t *testing.T) {
	payload := &core.RequestPayload{
		Type:         "summary",
		SystemPrompt: "be precise",
		Messages: []core.Message{
			{Role: "system", Content: "extra instruction"},
			{Role: "user", Content: "hello"},
		},
	}

	blocks := systemBlocks(payload)

	require.Len(t, blocks, 2)
	assert.Equal(t, "be precise", blocks[0].Text)
	assert.Equal(t, "extra instruction", blocks[1].Text)
}

func TestBuildMessagesSkipsSystemAndMapsTools(t *testing.T) {
	payload := &core.RequestPayload{
		Type: "research",
		Messages: []core.Message{
			{Role: "system", Content: "out of band"},
			{Role: "user", Content: "look this up"},
			{Role: "assistant", ToolCalls: []core.ToolCall{{ID: "call-1", Name: "lookup", Input: map[string]any{"q": "go"}}}},
			{Role: "tool", ToolCallID: "call-1", Content: "found it"},
		},
	}

	messages := buildMessages(payload)

	// system handled out of band; tool result becomes its own user turn
	require.Len(t, messages, 3)
}

func TestRequiredStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, requiredStrings([]string{"a", "b"}))
	assert.Equal(t, []string{"a"}, requiredStrings([]any{"a", 42}))
	assert.Nil(t, requiredStrings("not a list"))
}
