// Package litellm implements the provider adapter for a litellm proxy, the
// catch-all backend for models no dedicated adapter claims.
package litellm

import (
	"context"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/provider"
	"github.com/hupe1980/llmrelay/provider/openaicompat"
)

// Options configures the litellm adapter.
type Options struct {
	// BaseURL overrides the proxy endpoint from the configuration.
	BaseURL string
	// MaxRetries bounds backoff attempts on throttling.
	MaxRetries uint64
}

// Adapter targets a litellm proxy via its OpenAI-compatible surface.
type Adapter struct {
	inner *openaicompat.Adapter
}

// New constructs the adapter from the relay configuration.
func New(cfg *config.Config, optFns ...func(o *Options)) *Adapter {
	opts := Options{MaxRetries: 3}
	for _, fn := range optFns {
		fn(&opts)
	}
	var apiKey, baseURL string
	if cfg != nil {
		apiKey = cfg.LiteLLMAPIKey
		baseURL = cfg.LiteLLMBaseURL
	}
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	return &Adapter{inner: openaicompat.New(openaicompat.Config{
		ProviderName:  provider.LiteLLM,
		CredentialVar: "LITELLM_API_KEY",
		APIKey:        apiKey,
		BaseURL:       baseURL,
		DefaultModel:  provider.LiteLLMDefaultModel,
		MaxRetries:    opts.MaxRetries,
	})}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return provider.LiteLLM }

// Complete implements provider.Adapter.
func (a *Adapter) Complete(ctx context.Context, requestID string, payload *core.RequestPayload) (*core.Result, error) {
	return a.inner.Complete(ctx, requestID, payload)
}
