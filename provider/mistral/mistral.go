// Package mistral implements the provider adapter for the directly-hosted
// Mistral inference API (chat completions endpoint). It is the platform's
// baseline provider.
package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/internal/util"
	"github.com/hupe1980/llmrelay/logging"
	"github.com/hupe1980/llmrelay/provider"
)

const defaultBaseURL = "https://api.mistral.ai/v1"

// Options configures the Mistral adapter.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries uint64
	Logger     logging.Logger
}

// Adapter wraps the Mistral chat completions API behind provider.Adapter.
type Adapter struct {
	cfg  *config.Config
	opts Options

	once    sync.Once
	client  *http.Client
	initErr error
}

// New constructs the adapter. The HTTP client is built lazily so a missing
// credential surfaces at first use, not at process start.
func New(cfg *config.Config, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		BaseURL:    defaultBaseURL,
		MaxRetries: 3,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{cfg: cfg, opts: opts}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return provider.Mistral }

func (a *Adapter) ensureClient() (*http.Client, error) {
	a.once.Do(func() {
		if a.cfg == nil || a.cfg.MistralAPIKey == "" {
			a.initErr = &provider.ConfigError{Provider: provider.Mistral, Variable: "MISTRAL_API_KEY"}
			return
		}
		if a.opts.HTTPClient != nil {
			a.client = a.opts.HTTPClient
			return
		}
		a.client = &http.Client{Timeout: 120 * time.Second}
	})
	return a.client, a.initErr
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string             `json:"type"`
	Function chatToolDefinition `json:"function"`
}

type chatToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role      string         `json:"role"`
			Content   string         `json:"content"`
			ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete implements provider.Adapter. Transient errors (429 throttling,
// model warm-up 503s) are retried with exponential backoff before failing.
func (a *Adapter) Complete(ctx context.Context, requestID string, payload *core.RequestPayload) (*core.Result, error) {
	client, err := a.ensureClient()
	if err != nil {
		return nil, err
	}

	body, model, err := buildRequest(payload)
	if err != nil {
		return nil, err
	}

	var resp *chatResponse
	operation := func() error {
		start := time.Now()
		r, opErr := a.doRequest(ctx, client, body)
		a.opts.Logger.Debug("mistral attempt",
			"model", model, "duration", time.Since(start), "success", opErr == nil)
		if opErr != nil {
			if provider.IsTransient(opErr) {
				return opErr
			}
			return backoff.Permanent(opErr)
		}
		resp = r
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), a.opts.MaxRetries), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, fmt.Errorf("mistral completion failed: %w", err)
	}

	return translateResponse(resp, model, requestID)
}

func (a *Adapter) doRequest(ctx context.Context, client *http.Client, body []byte) (*chatResponse, error) {
	url := a.opts.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.MistralAPIKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(respBody))
		if isTransientStatus(resp.StatusCode, msg) {
			return nil, fmt.Errorf("mistral api transient error (status %d): %s: %w", resp.StatusCode, msg, provider.ErrRateLimited)
		}
		return nil, fmt.Errorf("mistral api error (status %d): %s", resp.StatusCode, msg)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mistral response decode failed: %w", err)
	}
	return &out, nil
}

func isTransientStatus(status int, body string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	// Capacity and warm-up conditions surface as 5xx with a loading hint.
	if status == http.StatusServiceUnavailable || status == http.StatusBadGateway {
		return true
	}
	return strings.Contains(strings.ToLower(body), "loading")
}

func buildRequest(payload *core.RequestPayload) ([]byte, string, error) {
	model := payload.Options.Model
	if model == "" {
		model = provider.BaselineModel
	}
	temperature, topP := provider.EffectiveSampling(payload)

	req := chatRequest{
		Model:       model,
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   payload.Options.MaxTokens,
		Messages:    buildMessages(payload),
	}
	if len(payload.Options.Tools) > 0 {
		req.Tools = make([]chatTool, len(payload.Options.Tools))
		for i, t := range payload.Options.Tools {
			req.Tools[i] = chatTool{
				Type: "function",
				Function: chatToolDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			}
		}
		req.ToolChoice = "auto"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("mistral request encode failed: %w", err)
	}
	return body, model, nil
}

// buildMessages converts the normalized transcript into Mistral chat
// messages. The API rejects batched tool results: every tool call gets its
// own tool-role message carrying the matching tool_call_id.
func buildMessages(payload *core.RequestPayload) []chatMessage {
	var messages []chatMessage
	if payload.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: payload.SystemPrompt})
	}
	for _, m := range payload.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, chatMessage{Role: "system", Content: m.Content})
		case "assistant":
			am := chatMessage{Role: "assistant", Content: m.Content}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Input)
				am.ToolCalls = append(am.ToolCalls, chatToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: chatFunction{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, am)
		case "tool":
			messages = append(messages, chatMessage{
				Role:       "tool",
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		default:
			messages = append(messages, chatMessage{Role: "user", Content: util.InlineAttachments(m)})
		}
	}
	return messages
}

func translateResponse(resp *chatResponse, model, requestID string) (*core.Result, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("mistral api returned no choices")
	}
	choice := resp.Choices[0]

	result := &core.Result{
		Content:  choice.Message.Content,
		Success:  true,
		Metadata: core.NewResultMetadata(provider.Mistral, model, requestID),
	}
	result.Metadata.Usage = &core.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
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
		return nil, fmt.Errorf("mistral returned unusable completion: %w", err)
	}
	return result, nil
}
