package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	openaiopt "github.com/openai/openai-go/option"
)

func newTestChatGPT(rt roundTripFunc) *ChatGPTProvider {
	return NewChatGPTProvider(
		Settings{APIKey: "sk-test"},
		openaiopt.WithHTTPClient(&http.Client{Transport: rt}),
	)
}

func TestChatGPTComplete(t *testing.T) {
	var captured struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	p := newTestChatGPT(func(r *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		return jsonResponse(http.StatusOK, `{
			"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"pong"}}]}`), nil
	})

	got, err := p.Complete(context.Background(), "ping")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "pong" {
		t.Fatalf("got %q", got)
	}
	if captured.Model != defaultOpenAIModel || captured.MaxTokens != DefaultMaxTokens {
		t.Errorf("model/max_tokens = %q/%d", captured.Model, captured.MaxTokens)
	}
	if len(captured.Messages) != 1 || captured.Messages[0].Role != "user" || captured.Messages[0].Content != "ping" {
		t.Fatalf("unexpected request messages: %+v", captured.Messages)
	}
}

func TestChatGPTFailures(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		wantEmpty bool
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, false},
		{"server error", http.StatusInternalServerError, `{}`, false},
		{"empty choices", http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`, true},
		{"different shape", http.StatusOK, `{"content":[{"text":"hi"}]}`, true},
		{"blank content", http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"  "}}]}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestChatGPT(func(r *http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			})
			_, err := p.Complete(context.Background(), "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrEmptyResponse) != tc.wantEmpty {
				t.Fatalf("errors.Is(ErrEmptyResponse) = %v for %v", !tc.wantEmpty, err)
			}
		})
	}
}

func TestChatGPTTransportError(t *testing.T) {
	p := newTestChatGPT(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	if _, err := p.Complete(context.Background(), "hi"); err == nil {
		t.Fatal("expected error when transport fails")
	}
}
