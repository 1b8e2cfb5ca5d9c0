package upstream

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

// OpenAIConfig holds the fields needed to talk to the OpenAI Responses API
// (or any Responses-API-compatible endpoint reached via BaseURL).
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
}

// OpenAIClient implements Client against the OpenAI Responses API.
type OpenAIClient struct {
	cfg    OpenAIConfig
	client openai.Client
}

// NewOpenAIClient constructs an OpenAIClient, reusing a pooled HTTP
// transport across requests.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(newPooledHTTPClient()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	return &OpenAIClient{cfg: cfg, client: openai.NewClient(opts...)}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) CheckConfig() []string {
	var problems []string
	if c.cfg.APIKey == "" {
		problems = append(problems, "openai: api_key is not set")
	}
	if c.cfg.Model == "" {
		problems = append(problems, "openai: model is not set")
	}
	return problems
}

func (c *OpenAIClient) Query(ctx context.Context, req Request) (string, error) {
	params := c.buildParams(req)
	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: responses.new: %w", err)
	}
	return resp.OutputText(), nil
}

func (c *OpenAIClient) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	params := c.buildParams(req)

	go func() {
		defer close(chunks)
		defer close(errs)

		stream := c.client.Responses.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			if event.Type != "response.output_text.delta" {
				continue
			}
			delta := event.AsResponseOutputTextDelta()
			if delta.Delta == "" {
				continue
			}
			select {
			case chunks <- delta.Delta:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := stream.Err(); err != nil {
			errs <- fmt.Errorf("openai: streaming: %w", err)
		}
	}()

	return chunks, errs
}

func (c *OpenAIClient) buildParams(req Request) responses.ResponseNewParams {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		msg := responses.EasyInputMessageParam{
			Role:    responses.EasyInputMessageParamRole(m.Role),
			Content: responses.EasyInputMessageParamContentUnion{OfString: param.NewOpt(m.Content)},
		}
		items = append(items, responses.ResponseInputItemUnionParam{OfMessage: &msg})
	}

	params := responses.ResponseNewParams{
		Model: c.cfg.Model,
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
	}
	if req.Options.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Options.Temperature)
	}
	if req.Options.TopP > 0 {
		params.TopP = param.NewOpt(req.Options.TopP)
	}
	if req.Options.MaxTokens > 0 {
		params.MaxOutputTokens = param.NewOpt(int64(req.Options.MaxTokens))
	}
	return params
}

var _ Client = (*OpenAIClient)(nil)
