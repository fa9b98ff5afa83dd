package core

import (
	"errors"
	"time"
)

// StopReason is the normalized terminal status of a completion.
type StopReason string

const (
	// StopReasonStop is a normal end-of-turn completion.
	StopReasonStop StopReason = "stop"
	// StopReasonToolUse means the model requested tool invocations instead
	// of (or in addition to) free text.
	StopReasonToolUse StopReason = "tool_use"
	// StopReasonOther covers everything else (length limits, filters, ...).
	StopReasonOther StopReason = "other"
)

// ToolCall is a structured function-call request emitted by a model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ContentBlock is one typed segment of the raw provider output, synthesized
// uniformly by every adapter for downstream consumption.
type ContentBlock struct {
	Type     string    `json:"type"` // "text" or "tool_use"
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// TokenUsage captures token accounting reported by a backend.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResultMetadata identifies which backend produced a result and when.
type ResultMetadata struct {
	Provider  string      `json:"provider"`
	Model     string      `json:"model"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}

// Result is the single response shape every provider adapter must produce.
//
// Invariant: Success implies non-empty Content, or StopReason == tool_use
// with at least one tool call.
type Result struct {
	Content          string         `json:"content"`
	StopReason       StopReason     `json:"stop_reason"`
	ToolCalls        []ToolCall     `json:"tool_calls,omitempty"`
	RawContentBlocks []ContentBlock `json:"raw_content_blocks"`
	Success          bool           `json:"success"`
	Metadata         ResultMetadata `json:"metadata"`
}

// ErrEmptyResult signals an adapter produced no usable content.
var ErrEmptyResult = errors.New("result has neither content nor tool calls")

// Validate enforces the Result invariant. A tool_use stop with no tool calls
// is malformed even when Content is non-empty: downstream consumers would
// wait for calls that never arrive.
func (r *Result) Validate() error {
	if r == nil {
		return errors.New("result is nil")
	}
	if r.StopReason == StopReasonToolUse {
		if len(r.ToolCalls) == 0 {
			return errors.New("stop_reason is tool_use but tool_calls is empty")
		}
		return nil
	}
	if r.Content == "" {
		return ErrEmptyResult
	}
	return nil
}

// NewResultMetadata stamps provider/model/request correlation onto a result.
func NewResultMetadata(provider, model, requestID string) ResultMetadata {
	return ResultMetadata{
		Provider:  provider,
		Model:     model,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}
