package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

// ChatGPTProvider implements Completer over the OpenAI chat completions API.
type ChatGPTProvider struct {
	client    openai.Client
	model     openai.ChatModel
	maxTokens int64
}

// NewChatGPTProvider builds a client from s. BaseURL, when set, replaces the default
// "https://api.openai.com/v1/" and so must include the version path.
func NewChatGPTProvider(s Settings, extra ...openaiopt.RequestOption) *ChatGPTProvider {
	opts := []openaiopt.RequestOption{openaiopt.WithAPIKey(s.APIKey), openaiopt.WithMaxRetries(0)}
	if s.BaseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(s.BaseURL))
	}
	opts = append(opts, extra...)

	model := s.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ChatGPTProvider{
		client:    openai.NewClient(opts...),
		model:     openai.ChatModel(model),
		maxTokens: int64(maxTokens),
	}
}

// Complete sends prompt as a single user message and returns the first choice's text.
func (p *ChatGPTProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     p.model,
		MaxTokens: openai.Int(p.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chatgpt: chat.completions.new: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("chatgpt: empty choices: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
