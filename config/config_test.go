package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/llmrelay/logging"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"MISTRAL_API_KEY", "IONOS_API_KEY", "LITELLM_API_KEY", "OPENAI_API_KEY",
		"ANTHROPIC_API_KEY", "LITELLM_BASE_URL", "IONOS_BASE_URL", "AWS_REGION",
		"LLMRELAY_FORCE_MODEL", "LLMRELAY_FORCE_PROVIDER", "LLMRELAY_VERBOSITY",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Empty(t, cfg.MistralAPIKey)
	assert.Equal(t, defaultLiteLLMBaseURL, cfg.LiteLLMBaseURL)
	assert.Equal(t, defaultIonosBaseURL, cfg.IonosBaseURL)
	assert.Equal(t, defaultAWSRegion, cfg.AWSRegion)
	assert.Equal(t, logging.VerbosityInfo, cfg.Verbosity)
	assert.False(t, cfg.HasGlobalOverride())
}

func TestFromEnvValues(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "mk")
	t.Setenv("LITELLM_BASE_URL", "http://proxy:4000/v1")
	t.Setenv("LLMRELAY_FORCE_MODEL", "gpt-4o")
	t.Setenv("LLMRELAY_FORCE_PROVIDER", "openai")
	t.Setenv("LLMRELAY_VERBOSITY", "debug")

	cfg := FromEnv()

	assert.Equal(t, "mk", cfg.MistralAPIKey)
	assert.Equal(t, "http://proxy:4000/v1", cfg.LiteLLMBaseURL)
	assert.Equal(t, "gpt-4o", cfg.ForceModel)
	assert.Equal(t, "openai", cfg.ForceProvider)
	assert.Equal(t, logging.VerbosityDebug, cfg.Verbosity)
	assert.True(t, cfg.HasGlobalOverride())
}

func TestFromEnvTrimsWhitespace(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "  mk  ")
	t.Setenv("LLMRELAY_FORCE_MODEL", "   ")

	cfg := FromEnv()

	assert.Equal(t, "mk", cfg.MistralAPIKey)
	assert.Empty(t, cfg.ForceModel, "whitespace-only values fall back to the default")
	assert.False(t, cfg.HasGlobalOverride())
}

func TestHasGlobalOverrideNilReceiver(t *testing.T) {
	var cfg *Config
	assert.False(t, cfg.HasGlobalOverride())
}
