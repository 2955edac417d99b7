package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const systemPrompt = "You write short, factual news summaries as dash bullet points."

type Anthropic struct {
	client *anthropic.Client
	model  anthropic.Model
}

func NewAnthropic(apiKey, model, baseURL string) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaudeHaiku4_5
	}
	client := anthropic.NewClient(opts...)
	return &Anthropic{client: &client, model: m}
}

func (c *Anthropic) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(text))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no response from anthropic")
	}
	return strings.TrimSpace(resp.Content[0].Text), nil
}
