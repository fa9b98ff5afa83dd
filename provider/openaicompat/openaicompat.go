// Package openaicompat contains the shared request/response translation for
// every backend speaking the OpenAI chat completions dialect: the OpenAI API
// itself and the proxied litellm/ionos services, which differ only in base
// URL, credentials and default model.
package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/internal/util"
	"github.com/hupe1980/llmrelay/provider"
)

// Config fixes the per-backend parameters of a compatible adapter.
type Config struct {
	// ProviderName is the relay provider identifier (openai, litellm, ionos).
	ProviderName string
	// CredentialVar names the environment variable holding the key, for
	// configuration error messages.
	CredentialVar string
	// APIKey authenticates against the backend.
	APIKey string
	// BaseURL overrides the OpenAI endpoint; empty selects the SDK default.
	BaseURL string
	// DefaultModel is used when the payload carries no model.
	DefaultModel string
	// InlineAttachments converts document attachments to extracted text for
	// backends without native document ingestion.
	InlineAttachments bool
	// MaxRetries bounds backoff attempts on throttling.
	MaxRetries uint64
}

// Adapter implements provider.Adapter for one OpenAI-compatible backend.
type Adapter struct {
	cc Config

	once    sync.Once
	client  *openai.Client
	initErr error
}

// New constructs an adapter. The SDK client is built lazily so a missing
// credential surfaces at first use.
func New(cc Config) *Adapter {
	if cc.MaxRetries == 0 {
		cc.MaxRetries = 3
	}
	return &Adapter{cc: cc}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return a.cc.ProviderName }

func (a *Adapter) ensureClient() (*openai.Client, error) {
	a.once.Do(func() {
		if a.cc.APIKey == "" {
			a.initErr = &provider.ConfigError{Provider: a.cc.ProviderName, Variable: a.cc.CredentialVar}
			return
		}
		opts := []option.RequestOption{option.WithAPIKey(a.cc.APIKey)}
		if a.cc.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(a.cc.BaseURL))
		}
		client := openai.NewClient(opts...)
		a.client = &client
	})
	return a.client, a.initErr
}

// Complete implements provider.Adapter with backoff on throttling.
func (a *Adapter) Complete(ctx context.Context, requestID string, payload *core.RequestPayload) (*core.Result, error) {
	client, err := a.ensureClient()
	if err != nil {
		return nil, err
	}

	params, model := BuildParams(payload, a.cc.DefaultModel, a.cc.InlineAttachments)

	var resp *openai.ChatCompletion
	operation := func() error {
		r, opErr := client.Chat.Completions.New(ctx, params)
		if opErr != nil {
			if isThrottled(opErr) {
				return fmt.Errorf("%s throttled: %v: %w", a.cc.ProviderName, opErr, provider.ErrRateLimited)
			}
			return backoff.Permanent(fmt.Errorf("%s api error: %w", a.cc.ProviderName, opErr))
		}
		resp = r
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.cc.MaxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	return Translate(resp, a.cc.ProviderName, model, requestID)
}

func isThrottled(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return true
		}
	}
	return false
}

// BuildParams converts the normalized payload into chat completion params.
func BuildParams(payload *core.RequestPayload, defaultModel string, inlineAttachments bool) (openai.ChatCompletionNewParams, string) {
	model := payload.Options.Model
	if model == "" {
		model = defaultModel
	}
	temperature, topP := provider.EffectiveSampling(payload)

	params := openai.ChatCompletionNewParams{
		Model:       model,
		Messages:    buildMessages(payload, inlineAttachments),
		Temperature: openai.Float(temperature),
		TopP:        openai.Float(topP),
	}
	if payload.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(payload.Options.MaxTokens))
	}
	if len(payload.Options.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(payload.Options.Tools))
		for i, tdef := range payload.Options.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Name,
					Description: openai.String(tdef.Description),
					Parameters:  tdef.Parameters,
				},
			}
		}
		params.Tools = tools
	}
	return params, model
}

func buildMessages(payload *core.RequestPayload, inlineAttachments bool) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if payload.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(payload.SystemPrompt))
	}
	for _, m := range payload.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			if len(m.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(m.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Input)
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(args),
					},
				}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case "tool":
			messages = append(messages, openai.ToolMessage(m.Content, m.ToolCallID))
		default:
			content := m.Content
			if inlineAttachments {
				content = util.InlineAttachments(m)
			}
			messages = append(messages, openai.UserMessage(content))
		}
	}
	return messages
}

// Translate normalizes the completion into the shared Result shape.
func Translate(resp *openai.ChatCompletion, providerName, model, requestID string) (*core.Result, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s api returned no choices", providerName)
	}
	choice := resp.Choices[0]

	result := &core.Result{
		Content:  choice.Message.Content,
		Success:  true,
		Metadata: core.NewResultMetadata(providerName, model, requestID),
	}
	result.Metadata.Usage = &core.TokenUsage{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}

	if choice.Message.Content != "" {
		result.RawContentBlocks = append(result.RawContentBlocks, core.ContentBlock{Type: "text", Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		var input map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				input = map[string]any{"raw": tc.Function.Arguments}
			}
		}
		call := core.ToolCall{ID: tc.ID, Name: tc.Function.Name, Input: input}
		result.ToolCalls = append(result.ToolCalls, call)
		blockCall := call
		result.RawContentBlocks = append(result.RawContentBlocks, core.ContentBlock{Type: "tool_use", ToolCall: &blockCall})
	}

	switch choice.FinishReason {
	case "tool_calls":
		result.StopReason = core.StopReasonToolUse
	case "stop":
		result.StopReason = core.StopReasonStop
	default:
		result.StopReason = core.StopReasonOther
	}

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%s returned unusable completion: %w", providerName, err)
	}
	return result, nil
}
