// Package claude implements the provider adapter for the Anthropic API,
// reached directly rather than through Bedrock. It exists for deployments
// holding a first-party Anthropic key; the selector never routes here on its
// own, only an explicit provider request does.
package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/cenkalti/backoff/v4"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/internal/util"
	"github.com/hupe1980/llmrelay/provider"
)

const defaultMaxTokens = 4096

// Options configures the Claude adapter.
type Options struct {
	// MaxRetries bounds backoff attempts on throttling and overload.
	MaxRetries uint64
}

// Adapter wraps the Anthropic Messages API behind provider.Adapter.
type Adapter struct {
	cfg  *config.Config
	opts Options

	once    sync.Once
	client  *anthropic.Client
	initErr error
}

// New constructs the adapter. The SDK client is built lazily so a missing
// credential surfaces at first use.
func New(cfg *config.Config, optFns ...func(o *Options)) *Adapter {
	opts := Options{MaxRetries: 3}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{cfg: cfg, opts: opts}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return provider.Claude }

func (a *Adapter) ensureClient() (*anthropic.Client, error) {
	a.once.Do(func() {
		if a.cfg == nil || a.cfg.AnthropicAPIKey == "" {
			a.initErr = &provider.ConfigError{Provider: provider.Claude, Variable: "ANTHROPIC_API_KEY"}
			return
		}
		client := anthropic.NewClient(option.WithAPIKey(a.cfg.AnthropicAPIKey))
		a.client = &client
	})
	return a.client, a.initErr
}

// Complete implements provider.Adapter.
func (a *Adapter) Complete(ctx context.Context, requestID string, payload *core.RequestPayload) (*core.Result, error) {
	client, err := a.ensureClient()
	if err != nil {
		return nil, err
	}

	params, model := buildParams(payload)

	var resp *anthropic.Message
	operation := func() error {
		r, opErr := client.Messages.New(ctx, params)
		if opErr != nil {
			if isThrottled(opErr) {
				return fmt.Errorf("claude throttled: %v: %w", opErr, provider.ErrRateLimited)
			}
			return backoff.Permanent(fmt.Errorf("claude api error: %w", opErr))
		}
		resp = r
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.opts.MaxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	return translateResponse(resp, model, requestID)
}

func isThrottled(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		// 529 is the Anthropic overloaded status.
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable, 529:
			return true
		}
	}
	return false
}

func buildParams(payload *core.RequestPayload) (anthropic.MessageNewParams, string) {
	model := payload.Options.Model
	if model == "" {
		model = provider.ClaudeDefaultModel
	}
	temperature, _ := provider.EffectiveSampling(payload)
	maxTokens := int64(payload.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		Messages:    buildMessages(payload),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if system := systemBlocks(payload); len(system) > 0 {
		params.System = system
	}
	if len(payload.Options.Tools) > 0 {
		params.Tools = buildTools(payload.Options.Tools)
	}
	return params, model
}

// systemBlocks collects the dedicated system prompt and any system-role
// transcript messages; the Messages API takes them out of band.
func systemBlocks(payload *core.RequestPayload) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if payload.SystemPrompt != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: payload.SystemPrompt})
	}
	for _, m := range payload.Messages {
		if m.Role == "system" && m.Content != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.Content})
		}
	}
	return blocks
}

// buildMessages converts the normalized transcript into Messages API turns.
// Tool results become tool_result blocks inside a user turn, matching the
// alternation the API enforces.
func buildMessages(payload *core.RequestPayload) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, m := range payload.Messages {
		switch m.Role {
		case "system":
			// Handled out of band.
		case "assistant":
			var content []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				content = append(content, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				content = append(content, anthropic.NewToolUseBlock(tc.ID, tc.Input, tc.Name))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		case "tool":
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		default:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(util.InlineAttachments(m)),
			))
		}
	}
	return messages
}

func buildTools(tools []core.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if t.Parameters != nil {
			if properties, ok := t.Parameters["properties"]; ok {
				schema.Properties = properties
			}
			if required, ok := t.Parameters["required"]; ok {
				schema.Required = requiredStrings(required)
			}
		}
		out[i] = anthropic.ToolUnionParamOfTool(schema, t.Name)
	}
	return out
}

func requiredStrings(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		var out []string
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func translateResponse(resp *anthropic.Message, model, requestID string) (*core.Result, error) {
	if resp == nil {
		return nil, fmt.Errorf("claude api returned no message")
	}

	result := &core.Result{
		Success:  true,
		Metadata: core.NewResultMetadata(provider.Claude, model, requestID),
	}
	result.Metadata.Usage = &core.TokenUsage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text := block.AsText().Text
			if text == "" {
				continue
			}
			result.Content += text
			result.RawContentBlocks = append(result.RawContentBlocks, core.ContentBlock{Type: "text", Text: text})
		case "tool_use":
			toolBlock := block.AsToolUse()
			var input map[string]any
			if toolBlock.Input != nil {
				if raw, err := json.Marshal(toolBlock.Input); err == nil {
					_ = json.Unmarshal(raw, &input)
				}
			}
			call := core.ToolCall{ID: toolBlock.ID, Name: toolBlock.Name, Input: input}
			result.ToolCalls = append(result.ToolCalls, call)
			blockCall := call
			result.RawContentBlocks = append(result.RawContentBlocks, core.ContentBlock{Type: "tool_use", ToolCall: &blockCall})
		}
	}

	switch resp.StopReason {
	case anthropic.StopReasonToolUse:
		result.StopReason = core.StopReasonToolUse
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		result.StopReason = core.StopReasonStop
	default:
		result.StopReason = core.StopReasonOther
	}

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("claude returned unusable completion: %w", err)
	}
	return result, nil
}
