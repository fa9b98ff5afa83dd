// Package ionos implements the provider adapter for the IONOS AI Model Hub,
// an EU-hosted OpenAI-compatible inference service. It is the second link in
// the privacy-safe fallback chain.
//
// The Model Hub has no document ingestion endpoint, so attachments are
// flattened into the user message text before dispatch.
package ionos

import (
	"context"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/provider"
	"github.com/hupe1980/llmrelay/provider/openaicompat"
)

// Options configures the IONOS adapter.
type Options struct {
	// BaseURL overrides the Model Hub endpoint from the configuration.
	BaseURL string
	// MaxRetries bounds backoff attempts on throttling.
	MaxRetries uint64
}

// Adapter targets the IONOS AI Model Hub.
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
		apiKey = cfg.IonosAPIKey
		baseURL = cfg.IonosBaseURL
	}
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	return &Adapter{inner: openaicompat.New(openaicompat.Config{
		ProviderName:      provider.Ionos,
		CredentialVar:     "IONOS_API_KEY",
		APIKey:            apiKey,
		BaseURL:           baseURL,
		DefaultModel:      provider.IonosFallbackModel,
		InlineAttachments: true,
		MaxRetries:        opts.MaxRetries,
	})}
}

// Name implements provider.Adapter.
func (a *Adapter) Name() string { return provider.Ionos }

// Complete implements provider.Adapter.
func (a *Adapter) Complete(ctx context.Context, requestID string, payload *core.RequestPayload) (*core.Result, error) {
	return a.inner.Complete(ctx, requestID, payload)
}
