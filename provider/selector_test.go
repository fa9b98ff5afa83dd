package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/llmrelay/config"
	"github.com/hupe1980/llmrelay/core"
)

func TestSelectBaseline(t *testing.T) {
	payload := &core.RequestPayload{Type: "summary"}

	d := Select(payload, &config.Config{})

	assert.Equal(t, Mistral, d.Provider)
	assert.Equal(t, BaselineModel, d.Model)
	assert.False(t, d.UseBedrock)
}

func TestSelectProMode(t *testing.T) {
	t.Run("default model", func(t *testing.T) {
		payload := &core.RequestPayload{
			Type:    "letter",
			Options: core.RequestOptions{UseBedrock: true},
		}

		d := Select(payload, &config.Config{})

		assert.Equal(t, Bedrock, d.Provider)
		assert.Equal(t, BedrockProModel, d.Model)
		assert.True(t, d.UseBedrock)
	})

	t.Run("explicit model kept", func(t *testing.T) {
		payload := &core.RequestPayload{
			Type:    "letter",
			Options: core.RequestOptions{UseBedrock: true, Model: "anthropic.claude-3-opus-20240229-v1:0"},
		}

		d := Select(payload, &config.Config{})

		assert.Equal(t, Bedrock, d.Provider)
		assert.Equal(t, "anthropic.claude-3-opus-20240229-v1:0", d.Model)
	})
}

func TestSelectUseCasePinning(t *testing.T) {
	t.Run("ask pins fast bedrock even in pro mode", func(t *testing.T) {
		payload := &core.RequestPayload{
			Type:    TypeAsk,
			Options: core.RequestOptions{UseBedrock: true, Model: "anthropic.claude-3-opus-20240229-v1:0"},
		}

		d := Select(payload, &config.Config{})

		assert.Equal(t, Bedrock, d.Provider)
		assert.Equal(t, BedrockFastModel, d.Model)
		assert.True(t, d.UseBedrock)
	})

	t.Run("research pins mistral despite pro mode", func(t *testing.T) {
		payload := &core.RequestPayload{
			Type:    TypeResearch,
			Options: core.RequestOptions{UseBedrock: true},
		}

		d := Select(payload, &config.Config{})

		assert.Equal(t, Mistral, d.Provider)
		assert.Equal(t, BaselineModel, d.Model)
		assert.False(t, d.UseBedrock)
	})
}

func TestSelectExplicitProvider(t *testing.T) {
	payload := &core.RequestPayload{
		Type:    TypeAsk, // pinning loses to the explicit provider
		Options: core.RequestOptions{ExplicitProvider: OpenAI},
	}

	d := Select(payload, &config.Config{})

	assert.Equal(t, OpenAI, d.Provider)
	assert.Equal(t, OpenAIDefaultModel, d.Model)
	assert.False(t, d.UseBedrock)
}

func TestSelectGlobalOverride(t *testing.T) {
	cfg := &config.Config{ForceModel: "gpt-4o", ForceProvider: OpenAI}

	t.Run("applies to plain requests", func(t *testing.T) {
		payload := &core.RequestPayload{Type: "summary"}

		d := Select(payload, cfg)

		assert.Equal(t, OpenAI, d.Provider)
		assert.Equal(t, "gpt-4o", d.Model)
	})

	t.Run("provider inferred when unset", func(t *testing.T) {
		payload := &core.RequestPayload{Type: "summary"}

		d := Select(payload, &config.Config{ForceModel: "anthropic.claude-sonnet-4-20250514-v1:0"})

		assert.Equal(t, Bedrock, d.Provider)
		assert.True(t, d.UseBedrock)
	})

	t.Run("never applies to privacy flagged requests", func(t *testing.T) {
		flagged := []*core.RequestPayload{
			{Type: "summary", Options: core.RequestOptions{PrivacyMode: true}},
			{Type: "summary", Options: core.RequestOptions{DisableExternalProviders: true}},
			{Type: "summary", Metadata: map[string]any{"privacyMode": true}},
			{Type: "summary", Metadata: map[string]any{"requiresPrivacy": true}},
		}
		for _, payload := range flagged {
			d := Select(payload, cfg)

			assert.Equal(t, Mistral, d.Provider)
			assert.Equal(t, BaselineModel, d.Model)
		}
	})
}

func TestSelectIsPure(t *testing.T) {
	payload := &core.RequestPayload{
		Type:    TypeAsk,
		Options: core.RequestOptions{UseBedrock: true},
	}
	cfg := &config.Config{}

	first := Select(payload, cfg)
	second := Select(payload, cfg)

	require.Equal(t, first, second)
}

func TestSelectUseBedrockInvariant(t *testing.T) {
	payloads := []*core.RequestPayload{
		{Type: "summary"},
		{Type: TypeAsk},
		{Type: TypeResearch, Options: core.RequestOptions{UseBedrock: true}},
		{Type: "social", Options: core.RequestOptions{ExplicitProvider: Ionos}},
		{Type: "social", Options: core.RequestOptions{ExplicitProvider: Bedrock}},
	}
	for _, payload := range payloads {
		d := Select(payload, &config.Config{ForceModel: "llama-guard"})

		assert.Equal(t, d.Provider == Bedrock, d.UseBedrock, "payload type %s", payload.Type)
	}
}

func TestInferProvider(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"anthropic.claude-sonnet-4-20250514-v1:0", Bedrock},
		{"claude-3-5-haiku-20241022", Bedrock},
		{"gpt-4o", OpenAI},
		{"openai/gpt-4o-mini", OpenAI},
		{"mistral-medium-latest", Mistral},
		{"mistral-large-2411", Mistral},
		{"mistral-small-latest", Mistral},
		{"mixtral-8x7b-instruct", LiteLLM},
		{"open-mistral-nemo", LiteLLM},
		{"meta-llama/Llama-3.3-70B-Instruct", Ionos},
		{"some-unknown-model", LiteLLM},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, InferProvider(tt.model))
		})
	}
}

func TestDefaultSampling(t *testing.T) {
	tempAsk, _ := DefaultSampling("ask")
	tempSocial, _ := DefaultSampling("social")
	tempOther, topPOther := DefaultSampling("translation")

	assert.Less(t, tempAsk, tempSocial)
	assert.InDelta(t, 0.7, tempOther, 0.001)
	assert.InDelta(t, 1.0, topPOther, 0.001)
}

func TestEffectiveSamplingCallerWins(t *testing.T) {
	temp := 0.123
	topP := 0.456
	payload := &core.RequestPayload{
		Type:    "ask",
		Options: core.RequestOptions{Temperature: &temp, TopP: &topP},
	}

	gotTemp, gotTopP := EffectiveSampling(payload)

	assert.Equal(t, temp, gotTemp)
	assert.Equal(t, topP, gotTopP)
}
