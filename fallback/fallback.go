// Package fallback implements the last-resort provider chain: an ordered list
// of privacy-safe candidates tried strictly in sequence after a primary
// failure. Candidates never run in parallel so a task can never be billed
// twice for the same attempt.
package fallback

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/logging"
	"github.com/hupe1980/llmrelay/provider"
)

// Candidate is one backup provider with the fixed privacy-compliant model it
// is invoked with. Fallback attempts never inherit the original request's
// provider/model fields.
type Candidate struct {
	Provider string
	Model    string
}

// DefaultCandidates is the standard privacy-safe chain: both providers are
// EU-hosted.
func DefaultCandidates() []Candidate {
	return []Candidate{
		{Provider: provider.Mistral, Model: provider.MistralFallbackModel},
		{Provider: provider.Ionos, Model: provider.IonosFallbackModel},
	}
}

// InvokeFunc runs one candidate attempt. The payload passed in already
// carries the candidate's provider/model in its options.
type InvokeFunc func(ctx context.Context, candidate Candidate, payload *core.RequestPayload) (*core.Result, error)

// ExhaustedError reports that every candidate in the chain failed. It names
// the chain and carries the last candidate's message. Callers surface the
// original primary error instead; this one is for the log.
type ExhaustedError struct {
	Chain   []Candidate
	LastErr error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	names := make([]string, len(e.Chain))
	for i, c := range e.Chain {
		names[i] = c.Provider
	}
	return fmt.Sprintf("all fallback providers failed [%s]: %v", strings.Join(names, ", "), e.LastErr)
}

// Unwrap exposes the last candidate's error for errors.Is/As.
func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Chain coordinates sequential fallback attempts.
type Chain struct {
	candidates []Candidate
	logger     logging.Logger
}

// Options configures a Chain.
type Options struct {
	// Candidates overrides the default privacy-safe chain.
	Candidates []Candidate
	// Logger receives per-candidate diagnostics.
	Logger logging.Logger
}

// New constructs a Chain with optional overrides.
func New(optFns ...func(o *Options)) *Chain {
	opts := Options{
		Candidates: DefaultCandidates(),
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Chain{candidates: opts.Candidates, logger: opts.Logger}
}

// Candidates returns the configured chain in invocation order.
func (c *Chain) Candidates() []Candidate { return c.candidates }

// Run tries each candidate in order until one succeeds. The original payload
// is cloned per attempt and its provider/model options are overwritten with
// the candidate's values. The first success short-circuits the chain and is
// returned verbatim; if every candidate fails, an ExhaustedError aggregating
// the attempts is returned.
func (c *Chain) Run(ctx context.Context, payload *core.RequestPayload, invoke InvokeFunc) (*core.Result, error) {
	var lastErr error
	for _, candidate := range c.candidates {
		attempt := payload.Clone()
		attempt.Options.Provider = candidate.Provider
		attempt.Options.Model = candidate.Model
		attempt.Options.UseBedrock = candidate.Provider == provider.Bedrock

		result, err := invoke(ctx, candidate, attempt)
		if err == nil {
			c.logger.Info("fallback succeeded", "provider", candidate.Provider, "model", candidate.Model)
			return result, nil
		}
		c.logger.Warn("fallback candidate failed", "provider", candidate.Provider, "error", err.Error())
		lastErr = err
	}
	return nil, &ExhaustedError{Chain: c.candidates, LastErr: lastErr}
}
