package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/driftcode/fimproxy/internal/stream"
)

// OpenRouterConfig holds the fields needed to talk to OpenRouter's
// OpenAI-compatible chat completions endpoint.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenRouterClient implements Client against OpenRouter's chat completions
// API. No official SDK is used; requests and SSE responses are handled
// directly over net/http.
type OpenRouterClient struct {
	cfg    OpenRouterConfig
	client *http.Client
}

// NewOpenRouterClient constructs an OpenRouterClient.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterClient{cfg: cfg, client: newPooledHTTPClient()}
}

func (c *OpenRouterClient) Name() string { return "openrouter" }

func (c *OpenRouterClient) CheckConfig() []string {
	var problems []string
	if c.cfg.APIKey == "" {
		problems = append(problems, "openrouter: api_key is not set")
	}
	if c.cfg.Model == "" {
		problems = append(problems, "openrouter: model is not set")
	}
	return problems
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Stream           bool          `json:"stream"`
	Temperature      float64       `json:"temperature,omitempty"`
	TopP             float64       `json:"top_p,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *OpenRouterClient) buildRequest(req Request, streaming bool) chatCompletionRequest {
	messages := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	return chatCompletionRequest{
		Model:            c.cfg.Model,
		Messages:         messages,
		Stream:           streaming,
		Temperature:      req.Options.Temperature,
		TopP:             req.Options.TopP,
		FrequencyPenalty: req.Options.FrequencyPenalty,
		PresencePenalty:  req.Options.PresencePenalty,
		MaxTokens:        req.Options.MaxTokens,
	}
}

func (c *OpenRouterClient) newHTTPRequest(ctx context.Context, body chatCompletionRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openrouter: encoding request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openrouter: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	return httpReq, nil
}

func (c *OpenRouterClient) Query(ctx context.Context, req Request) (string, error) {
	httpReq, err := c.newHTTPRequest(ctx, c.buildRequest(req, false))
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openrouter: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError("openrouter", resp)
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("openrouter: decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openrouter: response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *OpenRouterClient) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	httpReq, err := c.newHTTPRequest(ctx, c.buildRequest(req, true))
	if err != nil {
		go func() {
			errs <- err
			close(chunks)
			close(errs)
		}()
		return chunks, errs
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	go func() {
		defer close(chunks)
		defer close(errs)

		resp, err := c.client.Do(httpReq)
		if err != nil {
			errs <- fmt.Errorf("openrouter: request failed: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errs <- statusError("openrouter", resp)
			return
		}

		reader := stream.NewReader(resp.Body)
		for {
			evt, err := reader.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- fmt.Errorf("openrouter: reading stream: %w", err)
				return
			}
			if evt.Data == "[DONE]" {
				return
			}

			var chunk chatCompletionChunk
			if err := json.Unmarshal([]byte(evt.Data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case chunks <- chunk.Choices[0].Delta.Content:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errs
}

func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	kind := "error"
	if isRetryableStatus(resp.StatusCode) {
		kind = "retryable error"
	}
	return fmt.Errorf("%s: %s %d: %s", provider, kind, resp.StatusCode, msg)
}

var _ Client = (*OpenRouterClient)(nil)
