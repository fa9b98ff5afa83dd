// Package openai implements the provider adapter for the OpenAI API.
package openai

import (
	"context"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/provider"
	"github.com/hupe1980/llmrelay/provider/openaicompat"
)

// Options configures the OpenAI adapter.
type Options struct {
	// BaseURL overrides the API endpoint, e.g. for an Azure-hosted deployment.
	BaseURL string
	// MaxRetries bounds backoff attempts on throttling.
	MaxRetries uint64
}

// Adapter targets the OpenAI chat completions API.
type Adapter struct {
	inner *openaicompat.Adapter
}

// New constructs the adapter from the relay configuration.
func New(cfg *config.Config, optFns ...func(o *Options)) *Adapter {
	opts := Options{MaxRetries: 3}
	for _, fn := range optFns {
		fn(&opts)
	}
	var apiKey string
	if cfg != nil {
		apiKey = cfg.OpenAIAPIKey
	}
	return &Adapter{inner: openaicompat.New(openaicompat.Config{
		ProviderName:  provider.OpenAI,
		CredentialVar: "OPENAI_API_KEY",
		APIKey:        apiKey,
		BaseURL:       opts.BaseURL,
		DefaultModel:  provider.OpenAIDefaultModel,
		MaxRetries:    opts.MaxRetries,
	})}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return provider.OpenAI }

// Complete implements provider.Adapter.
func (a *Adapter) Complete(ctx context.Context, requestID string, payload *core.RequestPayload) (*core.Result, error) {
	return a.inner.Complete(ctx, requestID, payload)
}
