package ai

import (
	"context"
)

// Completer is the single request/response exchange with a hosted model.
// Implementations return the generated text, or an error for network failures,
// upstream API errors, and responses that carry no text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a plain function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
