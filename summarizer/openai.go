package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI summarizes with the chat completions API of OpenAI or any
// compatible server reachable at baseURL.
type OpenAI struct {
	client *openai.Client
	model  openai.ChatModel
}

func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	m := openai.ChatModel(model)
	if model == "" {
		m = openai.ChatModelGPT4oMini
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: m}
}

func (c *OpenAI) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildPrompt(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
