package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/llmrelay/core"
	"github.com/hupe1980/llmrelay/internal/testutil"
	"github.com/hupe1980/llmrelay/provider"
)

func TestRunFirstCandidateWins(t *testing.T) {
	chain := New()
	payload := testutil.NewTask("summary", "hello").Build().Data

	var attempts []string
	result, err := chain.Run(context.Background(), payload, func(_ context.Context, c Candidate, attempt *core.RequestPayload) (*core.Result, error) {
		attempts = append(attempts, c.Provider)
		return testutil.TextResult(c.Provider, attempt.Options.Model, "req-1", "ok"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{provider.Mistral}, attempts, "first success short-circuits")
	assert.Equal(t, provider.Mistral, result.Metadata.Provider)
}

func TestRunSecondCandidateAfterFailure(t *testing.T) {
	chain := New()
	payload := testutil.NewTask("summary", "hello").Build().Data

	var attempts []string
	result, err := chain.Run(context.Background(), payload, func(_ context.Context, c Candidate, attempt *core.RequestPayload) (*core.Result, error) {
		attempts = append(attempts, c.Provider)
		if c.Provider == provider.Mistral {
			return nil, errors.New("mistral down")
		}
		return testutil.TextResult(c.Provider, attempt.Options.Model, "req-1", "ok"), nil
	})

	require.NoError(t, err, "earlier candidate failures must not surface once one succeeds")
	assert.Equal(t, []string{provider.Mistral, provider.Ionos}, attempts)
	assert.Equal(t, provider.Ionos, result.Metadata.Provider)
}

func TestRunExhausted(t *testing.T) {
	chain := New()
	payload := testutil.NewTask("summary", "hello").Build().Data

	lastErr := errors.New("ionos down")
	_, err := chain.Run(context.Background(), payload, func(_ context.Context, c Candidate, _ *core.RequestPayload) (*core.Result, error) {
		if c.Provider == provider.Mistral {
			return nil, errors.New("mistral down")
		}
		return nil, lastErr
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.ErrorIs(t, err, lastErr)
	assert.Contains(t, exhausted.Error(), provider.Mistral)
	assert.Contains(t, exhausted.Error(), provider.Ionos)
	assert.Contains(t, exhausted.Error(), "ionos down")
}

func TestRunOverwritesCandidateOptions(t *testing.T) {
	chain := New()
	payload := testutil.NewTask("summary", "hello").
		WithOptions(core.RequestOptions{
			Provider:   provider.Bedrock,
			Model:      "anthropic.claude-sonnet-4-20250514-v1:0",
			UseBedrock: true,
			MaxTokens:  2048,
		}).
		Build().Data

	_, err := chain.Run(context.Background(), payload, func(_ context.Context, c Candidate, attempt *core.RequestPayload) (*core.Result, error) {
		assert.Equal(t, c.Provider, attempt.Options.Provider)
		assert.Equal(t, c.Model, attempt.Options.Model)
		assert.False(t, attempt.Options.UseBedrock)
		assert.Equal(t, 2048, attempt.Options.MaxTokens, "non-routing options pass through")
		return testutil.TextResult(c.Provider, c.Model, "req-1", "ok"), nil
	})

	require.NoError(t, err)
	// The original request is untouched.
	assert.Equal(t, provider.Bedrock, payload.Options.Provider)
	assert.True(t, payload.Options.UseBedrock)
}

func TestDefaultCandidatesOrder(t *testing.T) {
	candidates := DefaultCandidates()

	require.Len(t, candidates, 2)
	assert.Equal(t, Candidate{Provider: provider.Mistral, Model: provider.MistralFallbackModel}, candidates[0])
	assert.Equal(t, Candidate{Provider: provider.Ionos, Model: provider.IonosFallbackModel}, candidates[1])
}

func TestNewWithCustomCandidates(t *testing.T) {
	custom := []Candidate{{Provider: provider.LiteLLM, Model: "mixtral-8x7b-instruct"}}
	chain := New(func(o *Options) {
		o.Candidates = custom
	})

	assert.Equal(t, custom, chain.Candidates())
}
