// Package upstream defines the polymorphic interface fronting the three
// supported completion providers (OpenAI Responses API, OpenRouter, Gemini)
// and the request/result types shared across them.
package upstream

import (
	"context"

	"github.com/driftcode/fimproxy/internal/prompt"
)

// Request carries everything a provider call needs beyond the rendered
// message sequence.
type Request struct {
	Messages []prompt.ChatMessage
	Options  prompt.ModelOptions
}

// Client is implemented by each provider variant. Query performs a
// non-streaming call and returns the full completion text. Stream performs
// a streaming call, delivering incremental text chunks on the returned
// channel; the channel is closed when the stream ends, and any terminal
// error is delivered on the error channel before it closes. CheckConfig
// validates provider-specific configuration (API key and model name
// presence) without making a network call, returning one message per
// problem found.
type Client interface {
	Query(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) (<-chan string, <-chan error)
	CheckConfig() []string
	Name() string
}

// Result pairs Query's return values so callers that need to pass a
// completed call around (e.g. into the suggestion cache) can do so as a
// single value.
type Result struct {
	Text string
	Err  error
}
