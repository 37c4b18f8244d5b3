// README: Provider selection and settings shared by all completion backends.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"

	// DefaultMaxTokens matches the budget the chat UI has always requested.
	DefaultMaxTokens = 1000
)

var (
	ErrUnknownProvider = errors.New("unknown llm provider")
	ErrMissingAPIKey   = errors.New("missing api key")
	// ErrEmptyResponse means the upstream answered but no generated text was found where expected.
	ErrEmptyResponse = errors.New("upstream response carried no text")
)

// Settings selects and configures a completion backend.
type Settings struct {
	Provider  string
	APIKey    string
	Model     string // empty = provider default
	MaxTokens int    // <= 0 = DefaultMaxTokens
	BaseURL   string // optional endpoint override (tests, proxies)
}

// DefaultModel returns the model used when Settings.Model is empty.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return defaultAnthropicModel
	case ProviderGemini:
		return defaultGeminiModel
	case ProviderOpenAI:
		return defaultOpenAIModel
	default:
		return ""
	}
}

// NewCompleter builds the backend named by s.Provider. The returned close func releases
// client resources and is never nil.
func NewCompleter(ctx context.Context, s Settings) (Completer, func(), error) {
	provider := strings.ToLower(strings.TrimSpace(s.Provider))
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, func() {}, fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
	}
	if s.Model == "" {
		s.Model = DefaultModel(provider)
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}

	switch provider {
	case ProviderAnthropic:
		return NewAnthropicProvider(s), func() {}, nil
	case ProviderGemini:
		p, err := NewGeminiProvider(ctx, s)
		if err != nil {
			return nil, func() {}, err
		}
		return p, p.Close, nil
	case ProviderOpenAI:
		return NewChatGPTProvider(s), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("%w: %q", ErrUnknownProvider, s.Provider)
	}
}
