package summarizer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"remarknews/common"
	"remarknews/config"
)

// Ollama calls a local Ollama server's /api/generate endpoint.
type Ollama struct {
	client  *common.HTTPClient
	baseURL string
	model   string
}

func NewOllama(client *common.HTTPClient, baseURL, model string) *Ollama {
	if baseURL == "" {
		baseURL = config.DefaultOllamaURL
	}
	if model == "" {
		model = config.DefaultOllamaModel
	}
	return &Ollama{client: client, baseURL: strings.TrimRight(baseURL, "/"), model: model}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (o *Ollama) Summarize(ctx context.Context, text string) (string, error) {
	var out generateResponse
	req := generateRequest{Model: o.model, Prompt: buildPrompt(text)}
	if err := o.client.DoJSON(ctx, http.MethodPost, o.baseURL+"/api/generate", 0, req, &out); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	summary := strings.TrimSpace(out.Response)
	if summary == "" {
		return "", fmt.Errorf("ollama returned an empty response")
	}
	return summary, nil
}
