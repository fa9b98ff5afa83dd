package core

import "github.com/google/uuid"

// MessageType discriminates envelopes crossing the worker/dispatcher boundary.
type MessageType string

const (
	// MessageTypeRequest marks an inbound task envelope.
	MessageTypeRequest MessageType = "request"
	// MessageTypeResponse marks a successful outbound envelope.
	MessageTypeResponse MessageType = "response"
	// MessageTypeError marks a failed outbound envelope.
	MessageTypeError MessageType = "error"
)

// TaskMessage is the inbound envelope consumed by a task processor. The
// dispatcher owns RequestID uniqueness among in-flight tasks and must not
// reuse an id until its response or error has been observed.
type TaskMessage struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId"`
	Data      *RequestPayload `json:"data"`
}

// ResponseMessage is the outbound envelope. Exactly one is emitted per
// consumed TaskMessage: Type "response" with Data set, or Type "error" with
// Error set. Errors cross the boundary as plain message strings.
type ResponseMessage struct {
	Type      MessageType `json:"type"`
	RequestID string      `json:"requestId"`
	Data      *Result     `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Message is one conversational turn of a task payload.
type Message struct {
	Role        string       `json:"role"` // user, assistant, tool, system
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	// ToolCallID correlates a tool-role message with the originating call.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolCalls carries calls previously emitted by an assistant turn so
	// adapters can replay them in the backend's native shape.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Attachment is a document attached to a message. Backends that cannot ingest
// documents natively receive extracted text instead (see internal/util).
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// RequestOptions carries caller tuning knobs plus the routing fields the
// selector fills in. Provider, Model and UseBedrock are authoritative once a
// Decision has been merged; the remaining caller values pass through.
type RequestOptions struct {
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	UseBedrock  bool     `json:"useBedrock,omitempty"`

	Tools []ToolDefinition `json:"tools,omitempty"`

	// ExplicitProvider is the selector-level escape hatch: it wins over
	// baseline, pro-mode and use-case pinning.
	ExplicitProvider string `json:"explicitProvider,omitempty"`

	// PrivacyMode and DisableExternalProviders restrict routing to the
	// vetted EU-hosted provider subset. They are never overridden by the
	// operator's global model/provider override.
	PrivacyMode              bool `json:"privacyMode,omitempty"`
	DisableExternalProviders bool `json:"disableExternalProviders,omitempty"`
}

// Clone returns a deep copy so fallback attempts can overwrite routing fields
// without mutating the original request.
func (o RequestOptions) Clone() RequestOptions {
	c := o
	if o.Temperature != nil {
		t := *o.Temperature
		c.Temperature = &t
	}
	if o.TopP != nil {
		p := *o.TopP
		c.TopP = &p
	}
	if len(o.Tools) > 0 {
		c.Tools = make([]ToolDefinition, len(o.Tools))
		copy(c.Tools, o.Tools)
	}
	return c
}

// RequestPayload is the normalized model input carried by a task envelope.
type RequestPayload struct {
	Type         string         `json:"type"` // use-case type: ask, research, social, ...
	Messages     []Message      `json:"messages"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	Options      RequestOptions `json:"options"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Clone deep-copies the payload envelope fields the relay mutates (options,
// metadata). Messages are shared: adapters treat them as read-only.
func (p *RequestPayload) Clone() *RequestPayload {
	if p == nil {
		return nil
	}
	c := *p
	c.Options = p.Options.Clone()
	if len(p.Metadata) > 0 {
		c.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// MetaBool reads a boolean flag from payload metadata, tolerating absence.
func (p *RequestPayload) MetaBool(key string) bool {
	if p == nil || p.Metadata == nil {
		return false
	}
	b, ok := p.Metadata[key].(bool)
	return ok && b
}

// RequiresPrivacy reports whether any of the privacy flags is set on the
// request. Privacy-flagged requests must never be re-routed by the global
// operator override.
func (p *RequestPayload) RequiresPrivacy() bool {
	if p == nil {
		return false
	}
	return p.Options.PrivacyMode ||
		p.Options.DisableExternalProviders ||
		p.MetaBool("privacyMode") ||
		p.MetaBool("requiresPrivacy")
}

// NewID generates a unique identifier usable as a request id.
func NewID() string { return uuid.NewString() }
