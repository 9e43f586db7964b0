package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

// AnthropicClassifier classifies clashes with the Anthropic Messages API.
type AnthropicClassifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates an Anthropic classifier. SDK retries are disabled.
func NewAnthropic(cfg Config) *AnthropicClassifier {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &AnthropicClassifier{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Name returns the provider name.
func (c *AnthropicClassifier) Name() string {
	return ProviderAnthropic
}

// ClassifyBatch sends one batch in a single message.
func (c *AnthropicClassifier) ClassifyBatch(ctx context.Context, batch []core.RawClash) ([]core.ClassificationResult, error) {
	prompt, err := BuildPrompt(batch)
	if err != nil {
		return nil, err
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: SystemInstruction + formatInstruction},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return ParseResponse(block.Text)
		}
	}
	return nil, errors.New("no text content in Anthropic response")
}
