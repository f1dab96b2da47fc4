package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// GroqClient implements Client using the Groq API, which speaks the OpenAI
// chat completion protocol under a different base URL.
type GroqClient struct {
	client *openai.Client
	opts   Options
}

// NewGroqClient creates a new Groq client.
func NewGroqClient(apiKey, baseURL string, opts Options) *GroqClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &GroqClient{
		client: openai.NewClientWithConfig(cfg),
		opts:   opts,
	}
}

// Complete sends a prompt to Groq and returns the response text.
func (c *GroqClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: float32(c.opts.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("groq completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from groq")
	}
	return resp.Choices[0].Message.Content, nil
}
