package oracle

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

func init() {
	RegisterFactory("gemini", func(cfg Config) (Client, error) {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY not set")
		}

		client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: apiKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}

		model := cfg.Model
		if model == "" {
			model = defaultGeminiModel
		}

		return &GeminiClient{client: client, model: model}, nil
	})
}

// GeminiClient implements Client on the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// Name returns the provider name.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Complete sends one instruction/content pair and returns the reply text.
func (c *GeminiClient) Complete(ctx context.Context, systemInstruction, userContent string, maxTokens int) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(userContent, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini completion: empty response")
	}
	return text, nil
}
