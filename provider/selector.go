package provider

import (
	"strings"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
)

// Decision is the selector's output: which provider and model serve a task.
// It is computed fresh per task and never mutated after return.
//
// Invariant: UseBedrock is true exactly when Provider is bedrock.
type Decision struct {
	Provider   string
	Model      string
	UseBedrock bool
}

// Use-case types with pinned routing.
const (
	// TypeAsk is the lightweight question use case, always served by a
	// fast/cheap Bedrock model, even when pro mode was requested.
	TypeAsk = "ask"
	// TypeResearch is the tool-augmented QA use case, always served by
	// mistral regardless of pro mode.
	TypeResearch = "research"
)

// Select decides the provider/model for a task. Pure function: deterministic
// for fixed (payload, cfg), no I/O. Rules apply in order (baseline, pro mode,
// use-case pinning, explicit provider, global operator override), with the
// hard safety invariant that the global override never applies to
// privacy-flagged requests.
func Select(payload *core.RequestPayload, cfg *config.Config) Decision {
	opts := payload.Options

	// Baseline.
	d := Decision{Provider: Mistral, Model: BaselineModel}

	// Pro mode.
	if opts.UseBedrock {
		d = Decision{Provider: Bedrock, UseBedrock: true, Model: opts.Model}
		if d.Model == "" {
			d.Model = BedrockProModel
		}
	}

	// Use-case pinning overrides pro mode.
	switch payload.Type {
	case TypeAsk:
		d = Decision{Provider: Bedrock, UseBedrock: true, Model: BedrockFastModel}
	case TypeResearch:
		d = Decision{Provider: Mistral, Model: BaselineModel}
	}

	// Explicit provider is the top-level escape hatch.
	if opts.ExplicitProvider != "" {
		d = Decision{Provider: opts.ExplicitProvider, Model: opts.Model}
		if d.Model == "" {
			d.Model = DefaultModelFor(opts.ExplicitProvider)
		}
		d.UseBedrock = d.Provider == Bedrock
	}

	// Global operator override. Hard safety invariant: privacy-flagged
	// requests are never re-routed, whatever the operator configured.
	if cfg != nil && cfg.HasGlobalOverride() && !payload.RequiresPrivacy() {
		prov := cfg.ForceProvider
		if prov == "" {
			prov = InferProvider(cfg.ForceModel)
		}
		d = Decision{Provider: prov, Model: cfg.ForceModel, UseBedrock: prov == Bedrock}
	}

	return d
}

// DefaultModelFor maps a provider name to its default model id.
func DefaultModelFor(provider string) string {
	switch provider {
	case Bedrock:
		return BedrockProModel
	case Mistral:
		return BaselineModel
	case Ionos:
		return IonosFallbackModel
	case OpenAI:
		return OpenAIDefaultModel
	case Claude:
		return ClaudeDefaultModel
	case LiteLLM:
		return LiteLLMDefaultModel
	default:
		return ""
	}
}

// InferProvider maps a raw model string to the provider family hosting it,
// by substring match against known families. Unrecognized models route to
// litellm, the safe default.
func InferProvider(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "anthropic.") || strings.Contains(m, "claude"):
		return Bedrock
	case strings.Contains(m, "gpt-") || strings.Contains(m, "openai"):
		return OpenAI
	case strings.Contains(m, "mistral-large") ||
		strings.Contains(m, "mistral-medium") ||
		strings.Contains(m, "mistral-small"):
		return Mistral
	case strings.Contains(m, "llama"):
		return Ionos
	case strings.Contains(m, "mistral") || strings.Contains(m, "mixtral"):
		return LiteLLM
	default:
		return LiteLLM
	}
}
