// Package testutil provides builders for boundary messages used across the
// relay's test suites.
package testutil

import (
	"github.com/hupe1980/llmrelay/core"
)

// TaskBuilder assembles task envelopes with sensible defaults.
type TaskBuilder struct {
	msg core.TaskMessage
}

// NewTask starts a request-typed task with a fresh request id and one user
// message.
func NewTask(taskType, userText string) *TaskBuilder {
	return &TaskBuilder{msg: core.TaskMessage{
		Type:      core.MessageTypeRequest,
		RequestID: core.NewID(),
		Data: &core.RequestPayload{
			Type: taskType,
			Messages: []core.Message{
				{Role: "user", Content: userText},
			},
			Options:  core.RequestOptions{MaxTokens: 1024},
			Metadata: map[string]any{},
		},
	}}
}

// WithRequestID overrides the generated correlation id.
func (b *TaskBuilder) WithRequestID(id string) *TaskBuilder {
	b.msg.RequestID = id
	return b
}

// WithOptions replaces the payload options.
func (b *TaskBuilder) WithOptions(opts core.RequestOptions) *TaskBuilder {
	b.msg.Data.Options = opts
	return b
}

// WithMetadata sets one metadata key.
func (b *TaskBuilder) WithMetadata(key string, value any) *TaskBuilder {
	b.msg.Data.Metadata[key] = value
	return b
}

// WithSystemPrompt sets the system prompt.
func (b *TaskBuilder) WithSystemPrompt(prompt string) *TaskBuilder {
	b.msg.Data.SystemPrompt = prompt
	return b
}

// Build returns the assembled envelope.
func (b *TaskBuilder) Build() core.TaskMessage { return b.msg }

// TextResult returns a minimal successful text Result for stubbed adapters.
func TextResult(provider, model, requestID, content string) *core.Result {
	return &core.Result{
		Content:    content,
		StopReason: core.StopReasonStop,
		RawContentBlocks: []core.ContentBlock{
			{Type: "text", Text: content},
		},
		Success:  true,
		Metadata: core.NewResultMetadata(provider, model, requestID),
	}
}
