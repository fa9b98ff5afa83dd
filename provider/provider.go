// Package provider defines the adapter contract shared by every inference
// backend and the pure routing decision logic that picks a provider and model
// for a task.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/llmrelay/core"
)

// Provider names. These are the only values a Decision may carry.
const (
	Bedrock = "bedrock"
	Mistral = "mistral"
	LiteLLM = "litellm"
	Ionos   = "ionos"
	OpenAI  = "openai"
	Claude  = "claude"
)

// Model identifiers fixed by routing policy.
const (
	// BaselineModel is the platform default for unpinned request types.
	BaselineModel = "mistral-medium-latest"
	// BedrockProModel is the high-quality model used when pro mode
	// (useBedrock) is requested without an explicit model.
	BedrockProModel = "anthropic.claude-sonnet-4-20250514-v1:0"
	// BedrockFastModel is the fast/cheap model pinned for the lightweight
	// "ask" use case and used as the degraded tier of the Bedrock hierarchy.
	BedrockFastModel = "anthropic.claude-3-5-haiku-20241022-v1:0"
	// MistralFallbackModel is the fixed privacy-compliant model used when
	// mistral serves as a fallback candidate.
	MistralFallbackModel = "mistral-small-latest"
	// IonosFallbackModel is the fixed privacy-compliant model used when
	// ionos serves as a fallback candidate.
	IonosFallbackModel = "meta-llama/Llama-3.3-70B-Instruct"
	// OpenAIDefaultModel serves explicit openai requests without a model.
	OpenAIDefaultModel = "gpt-4o-mini"
	// ClaudeDefaultModel serves explicit claude requests without a model.
	ClaudeDefaultModel = "claude-sonnet-4-20250514"
	// LiteLLMDefaultModel serves explicit litellm requests without a model.
	LiteLLMDefaultModel = "mixtral-8x7b-instruct"
)

// Adapter translates a normalized request into one backend's payload and the
// backend's response into the shared Result shape. Implementations must
// return an error (never a dishonest success) on failure, with a
// human-readable message.
type Adapter interface {
	// Complete issues one request/response inference call. At most one call
	// is in flight per task at any time; adapters own their retry/backoff
	// for transient conditions internally.
	Complete(ctx context.Context, requestID string, payload *core.RequestPayload) (*core.Result, error)

	// Name returns the provider identifier this adapter serves.
	Name() string
}

// ErrRateLimited marks transient provider conditions (throttling, model
// warm-up) that adapters retry with backoff before giving up.
var ErrRateLimited = errors.New("provider rate limited")

// IsTransient reports whether err represents a retryable provider condition.
func IsTransient(err error) bool { return errors.Is(err, ErrRateLimited) }

// ConfigError is a fatal configuration problem: a credential required by an
// adapter is missing. It is raised once, at first client construction, and is
// never retried.
type ConfigError struct {
	Provider string
	Variable string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s adapter is not configured: %s is not set", e.Provider, e.Variable)
}

// DefaultSampling returns the temperature/top_p pair applied when the caller
// did not specify one: lower for structure-sensitive use cases, higher for
// creative copy.
func DefaultSampling(taskType string) (temperature, topP float64) {
	switch taskType {
	case "ask", "research", "summary":
		return 0.3, 0.9
	case "social", "letter", "pressrelease", "slogan":
		return 0.9, 0.95
	default:
		return 0.7, 1.0
	}
}

// EffectiveSampling resolves the sampling parameters for a payload, letting
// caller-specified values win over the use-case defaults.
func EffectiveSampling(payload *core.RequestPayload) (temperature, topP float64) {
	temperature, topP = DefaultSampling(payload.Type)
	if payload.Options.Temperature != nil {
		temperature = *payload.Options.Temperature
	}
	if payload.Options.TopP != nil {
		topP = *payload.Options.TopP
	}
	return temperature, topP
}
