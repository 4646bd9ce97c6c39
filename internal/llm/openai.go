package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

// Client defines the methods required by the reviewer brief writer.
type Client interface {
	Summarize(ctx context.Context, instruction, text string) (string, error)
}

// OpenAIClient calls the OpenAI API for summarisation responses.
type OpenAIClient struct {
	client       *openai.Client
	summaryModel string
}

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// NewOpenAIClient constructs an OpenAI-backed client.  An empty model falls
// back to DefaultModel.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return NewOpenAIClientWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewOpenAIClientWithConfig allows overriding the base URL (proxies, tests).
func NewOpenAIClientWithConfig(cfg openai.ClientConfig, model string) *OpenAIClient {
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(cfg),
		summaryModel: model,
	}
}

// Summarize sends the instruction as the system message and text as the
// user message, returning the assistant's answer.
func (c *OpenAIClient) Summarize(ctx context.Context, instruction, text string) (string, error) {
	if c == nil || c.client == nil {
		return "", errors.New("openai client not initialized")
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.summaryModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
