package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicProvider implements Completer over the Anthropic Messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicProvider builds a client from s. Extra request options are appended after the
// key and base URL, which lets tests swap the HTTP transport.
func NewAnthropicProvider(s Settings, extra ...anthropicopt.RequestOption) *AnthropicProvider {
	opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(s.APIKey), anthropicopt.WithMaxRetries(0)}
	if s.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(s.BaseURL))
	}
	opts = append(opts, extra...)

	model := s.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: int64(maxTokens),
	}
}

// Complete sends prompt as a single user message and concatenates the text blocks of the reply.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(tb.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("anthropic: no text blocks: %w", ErrEmptyResponse)
	}
	return out.String(), nil
}
