package upstream

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiConfig holds the fields needed to talk to the Gemini API.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiClient implements Client against Gemini's GenerateContent API.
// Gemini has no separate "system" message slot in the content list, so
// the system message is threaded through genai.GenerateContentConfig's
// SystemInstruction instead. For FIM prompts, StopSequences are derived
// from the head of the suffix (see geminiStopSequences).
type GeminiClient struct {
	cfg    GeminiConfig
	client *genai.Client
}

// NewGeminiClient constructs a GeminiClient.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		HTTPClient: newPooledHTTPClient(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return &GeminiClient{cfg: cfg, client: client}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) CheckConfig() []string {
	var problems []string
	if c.cfg.APIKey == "" {
		problems = append(problems, "gemini: api_key is not set")
	}
	if c.cfg.Model == "" {
		problems = append(problems, "gemini: model is not set")
	}
	return problems
}

// toContents splits the rendered message sequence into a system
// instruction plus a turn-by-turn content list, since Gemini does not
// accept a "system" role within the conversational content array.
func toContents(req Request) (system string, contents []*genai.Content) {
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			if system == "" {
				system = m.Content
			} else {
				system += "\n\n" + m.Content
			}
		case "assistant":
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return system, contents
}

// geminiMaxOutputCap is the flat max_output_tokens ceiling applied to every
// Gemini call, FIM or not.
const geminiMaxOutputCap = 128

// geminiMaxTemperature is Gemini's temperature ceiling: editor insertions
// run hotter models off the rails more easily than open-ended chat.
const geminiMaxTemperature = 0.4

// extractFIMSuffix pulls the rendered suffix out of the last user message,
// mirroring the two template shapes a FIM prompt may take: the explicit
// <prefix/>/<suffix/> marker pair, or a bare <mask/> splitting prefix from
// suffix. ok is false when the message carries neither shape.
func extractFIMSuffix(userContent string) (suffix string, ok bool) {
	if strings.Contains(userContent, "<prefix/>") && strings.Contains(userContent, "</prefix/>") &&
		strings.Contains(userContent, "<suffix/>") && strings.Contains(userContent, "</suffix/>") {
		idx := strings.Index(userContent, "<suffix/>\n")
		if idx < 0 {
			return "", false
		}
		rest := userContent[idx+len("<suffix/>\n"):]
		end := strings.Index(rest, "\n</suffix/>")
		if end < 0 {
			return "", false
		}
		return rest[:end], true
	}
	if strings.Contains(userContent, "<mask/>") {
		parts := strings.SplitN(userContent, "<mask/>", 2)
		if len(parts) == 2 {
			return parts[1], true
		}
		return "", true
	}
	return "", false
}

// geminiTargetTokens approximates the token budget an insertion needs from
// the length of the text it must lead into: roughly 4 characters per
// token, plus a fixed bias to reach the suffix boundary, floored so a very
// short or empty suffix still gets enough room to produce a real answer.
func geminiTargetTokens(suffix string, baseCap int) int {
	need := min(len(suffix), 200)/4 + 24
	floor := 48
	if len(suffix) == 0 {
		floor = 64
	}
	return min(baseCap, max(floor, need))
}

// geminiStopSequences builds the stop-sequence list from the head of the
// suffix (so generation halts once it reaches text already present) plus a
// few generic structural boundaries, only when there is a suffix to anchor
// on at all.
func geminiStopSequences(suffix string) []string {
	trimmed := strings.TrimSpace(suffix)
	if trimmed == "" {
		return nil
	}

	var stops []string
	runes := []rune(suffix)
	head16 := strings.TrimSpace(string(runes[:min(16, len(runes))]))
	head8 := strings.TrimSpace(string(runes[:min(8, len(runes))]))
	for _, h := range []string{head16, head8} {
		if len([]rune(h)) >= 2 {
			stops = append(stops, h)
		}
	}
	return append(stops, "\n\n", "\n- ", "\n1. ")
}

func (c *GeminiClient) buildConfig(req Request, system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	temperature := req.Options.Temperature
	if temperature > geminiMaxTemperature {
		temperature = geminiMaxTemperature
	}
	if temperature > 0 {
		t := float32(temperature)
		cfg.Temperature = &t
	}
	if req.Options.TopP > 0 {
		p := float32(req.Options.TopP)
		cfg.TopP = &p
	}

	baseCap := req.Options.MaxTokens
	if baseCap <= 0 || baseCap > geminiMaxOutputCap {
		baseCap = geminiMaxOutputCap
	}
	maxTokens := baseCap

	if len(req.Messages) > 0 {
		if suffix, ok := extractFIMSuffix(req.Messages[len(req.Messages)-1].Content); ok {
			maxTokens = geminiTargetTokens(suffix, baseCap)
			cfg.StopSequences = geminiStopSequences(suffix)
		}
	}
	cfg.MaxOutputTokens = int32(maxTokens)

	return cfg
}

func (c *GeminiClient) Query(ctx context.Context, req Request) (string, error) {
	system, contents := toContents(req)
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, contents, c.buildConfig(req, system))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	return resp.Text(), nil
}

func (c *GeminiClient) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	system, contents := toContents(req)
	config := c.buildConfig(req, system)

	go func() {
		defer close(chunks)
		defer close(errs)

		for resp, err := range c.client.Models.GenerateContentStream(ctx, c.cfg.Model, contents, config) {
			if err != nil {
				errs <- fmt.Errorf("gemini: streaming: %w", err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case chunks <- text:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return chunks, errs
}

var _ Client = (*GeminiClient)(nil)
