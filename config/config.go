// Package config loads relay configuration from the environment. Environment
// variables are read-only configuration fixed at process start; credentials
// are validated lazily by the adapter that needs them, so a deployment
// lacking one provider's credentials still boots.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hupe1980/llmrelay/logging"
)

// Config carries every environment-supplied setting the relay consumes.
type Config struct {
	// One credential per provider. Empty values are tolerated until the
	// corresponding adapter is first used.
	MistralAPIKey   string
	IonosAPIKey     string
	LiteLLMAPIKey   string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Endpoint overrides for the OpenAI-compatible proxies.
	LiteLLMBaseURL string
	IonosBaseURL   string

	// AWS settings for the Bedrock adapter. Credentials resolve through the
	// SDK default chain; only the region is surfaced here.
	AWSRegion string

	// ForceModel / ForceProvider implement the operator-controlled global
	// override. When ForceProvider is empty the provider is inferred from
	// the model string. The override never applies to privacy-flagged
	// requests.
	ForceModel    string
	ForceProvider string

	// Verbosity gates request/response payload logging.
	Verbosity logging.Verbosity
}

const (
	defaultIonosBaseURL   = "https://openai.inference.de-txl.ionos.com/v1"
	defaultLiteLLMBaseURL = "http://localhost:4000/v1"
	defaultAWSRegion      = "eu-central-1"
)

// Load reads configuration from the environment. A .env file in the working
// directory is merged in when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() *Config {
	return &Config{
		MistralAPIKey:   getEnv("MISTRAL_API_KEY", ""),
		IonosAPIKey:     getEnv("IONOS_API_KEY", ""),
		LiteLLMAPIKey:   getEnv("LITELLM_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		LiteLLMBaseURL:  getEnv("LITELLM_BASE_URL", defaultLiteLLMBaseURL),
		IonosBaseURL:    getEnv("IONOS_BASE_URL", defaultIonosBaseURL),
		AWSRegion:       getEnv("AWS_REGION", defaultAWSRegion),
		ForceModel:      getEnv("LLMRELAY_FORCE_MODEL", ""),
		ForceProvider:   getEnv("LLMRELAY_FORCE_PROVIDER", ""),
		Verbosity:       logging.ParseVerbosity(getEnv("LLMRELAY_VERBOSITY", "info")),
	}
}

// HasGlobalOverride reports whether the operator forced a platform-wide
// model/provider pair.
func (c *Config) HasGlobalOverride() bool {
	return c != nil && strings.TrimSpace(c.ForceModel) != ""
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}
