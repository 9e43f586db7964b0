// Package classify implements the clash classification clients.
//
// Every provider sends one batch of clashes per request with the same system
// instruction and prompt, and parses the same JSON response shape. Providers
// never retry; a failed call fails the whole batch.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

// Provider names.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default models per provider.
const (
	DefaultGeminiModel    = "gemini-3-flash-preview"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5"
)

// DefaultMaxTokens bounds the response size for providers that require it.
const DefaultMaxTokens = 4096

var (
	_ core.Classifier = (*GeminiClassifier)(nil)
	_ core.Classifier = (*OpenAIClassifier)(nil)
	_ core.Classifier = (*AnthropicClassifier)(nil)
)

// ErrMissingCredential is returned by New when no API key is configured.
var ErrMissingCredential = fmt.Errorf("classify: %w", core.ErrClassifierUnavailable)

// Config selects and configures a provider.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// New builds the classifier for cfg.Provider. An empty provider means Gemini.
func New(ctx context.Context, cfg Config) (core.Classifier, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini, "google", "":
		return NewGemini(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderAnthropic, "claude":
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: gemini, openai, anthropic)", cfg.Provider)
	}
}

// Providers lists the supported provider names.
func Providers() []string {
	return []string{ProviderGemini, ProviderOpenAI, ProviderAnthropic}
}
