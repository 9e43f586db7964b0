package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

// OpenAIClassifier classifies clashes with the OpenAI Chat Completions API
// in JSON mode.
type OpenAIClassifier struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates an OpenAI classifier. BaseURL points it at any
// OpenAI-compatible endpoint.
func NewOpenAI(cfg Config) *OpenAIClassifier {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIClassifier{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}
}

// Name returns the provider name.
func (c *OpenAIClassifier) Name() string {
	return ProviderOpenAI
}

// ClassifyBatch sends one batch in a single chat completion.
func (c *OpenAIClassifier) ClassifyBatch(ctx context.Context, batch []core.RawClash) ([]core.ClassificationResult, error) {
	prompt, err := BuildPrompt(batch)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemInstruction + formatInstruction},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	return ParseResponse(resp.Choices[0].Message.Content)
}
