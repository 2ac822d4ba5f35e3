package oracle

import (
	"context"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

func init() {
	RegisterFactory("openai", func(cfg Config) (Client, error) {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}

		model := cfg.Model
		if model == "" {
			model = defaultOpenAIModel
		}

		return &OpenAIClient{client: openai.NewClient(apiKey), model: model}, nil
	})
}

// ChatCompleter is the slice of the OpenAI SDK the client uses; narrow
// so tests can substitute a mock.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements Client on the OpenAI chat-completion API.
type OpenAIClient struct {
	client ChatCompleter
	model  string
}

// NewOpenAIClientWith creates a client around an existing completer
// (useful for testing).
func NewOpenAIClientWith(c ChatCompleter, model string) *OpenAIClient {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIClient{client: c, model: model}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Complete sends one instruction/content pair and returns the reply text.
func (c *OpenAIClient) Complete(ctx context.Context, systemInstruction, userContent string, maxTokens int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
