package classify

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/JonMunkholm/clashtriage/internal/core"
)

// GeminiClassifier classifies clashes with Google's Gemini API using a
// structured JSON response schema.
type GeminiClassifier struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// NewGemini creates a Gemini classifier.
func NewGemini(ctx context.Context, cfg Config) (*GeminiClassifier, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	return &GeminiClassifier{
		client:    client,
		model:     model,
		maxTokens: int32(cfg.MaxTokens),
	}, nil
}

// Name returns the provider name.
func (c *GeminiClassifier) Name() string {
	return ProviderGemini
}

// ClassifyBatch sends one batch in a single GenerateContent call.
func (c *GeminiClassifier) ClassifyBatch(ctx context.Context, batch []core.RawClash) ([]core.ClassificationResult, error) {
	prompt, err := BuildPrompt(batch)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Models.GenerateContent(ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    responseSchema(),
			MaxOutputTokens:   c.maxTokens,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	return ParseResponse(resp.Text())
}

// responseSchema constrains the model to the {"results": [...]} shape with
// enum-valued severity and responsibility.
func responseSchema() *genai.Schema {
	severities := make([]string, 0, len(core.Severities))
	for _, s := range core.Severities {
		severities = append(severities, string(s))
	}
	disciplines := make([]string, 0, len(core.Disciplines))
	for _, d := range core.Disciplines {
		disciplines = append(disciplines, string(d))
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"results": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":             {Type: genai.TypeString},
						"severity":       {Type: genai.TypeString, Enum: severities},
						"responsibility": {Type: genai.TypeString, Enum: disciplines},
						"description":    {Type: genai.TypeString},
						"reasoning":      {Type: genai.TypeString},
					},
					Required: []string{"id", "severity", "responsibility", "description"},
				},
			},
		},
	}
}
