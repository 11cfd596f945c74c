package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 2048
)

// AnthropicClient is the secondary provider used when Gemini keys are exhausted.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

func NewAnthropicClient(apiKey, model string, maxTokens int) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is empty")
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (a *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := a.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if system := systemFor(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("anthropic: empty text in response")
	}
	return text.String(), nil
}
