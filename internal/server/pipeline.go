package server

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/driftcode/fimproxy/internal/classify"
	"github.com/driftcode/fimproxy/internal/coalesce"
	"github.com/driftcode/fimproxy/internal/config"
	"github.com/driftcode/fimproxy/internal/fingerprint"
	"github.com/driftcode/fimproxy/internal/prompt"
	"github.com/driftcode/fimproxy/internal/ratelimit"
	"github.com/driftcode/fimproxy/internal/stream"
	"github.com/driftcode/fimproxy/internal/suggestcache"
	"github.com/driftcode/fimproxy/internal/upstream"
)

// upstreamTimeout is the hard per-call ceiling; on expiry the call resolves
// as an error and produces an empty completion that is never cached.
const upstreamTimeout = 12 * time.Second

// completionRequest is the unit of work dispatched through LatestOnly and
// SingleFlight.
type completionRequest struct {
	providerName string
	model        string
	prefix       string
	suffix       string
	class        prompt.ContextClass
}

// Predictor wires the full request-coalescing and prompt-shaping pipeline:
// RateLimiter -> SuggestionCache -> LatestOnly -> SingleFlight -> prompt
// pipeline -> UpstreamClient -> postprocessors.
type Predictor struct {
	limiter        *ratelimit.Limiter
	cache          *suggestcache.Cache
	latest         *coalesce.LatestOnly
	dedup          *coalesce.Dedup
	preprocessors  []prompt.Preprocessor
	postprocessors []prompt.Postprocessor
	builder        *prompt.Builder
	client         upstream.Client
	providerName   string
	model          string
	options        prompt.ModelOptions
	emitterCfg     stream.Config
	debugMode      bool
}

// NewPredictor assembles a Predictor from a loaded Config and an already
// constructed upstream client.
func NewPredictor(cfg *config.Config, client upstream.Client) (*Predictor, error) {
	limiter := ratelimit.New(cfg.RateLimit.Rate, cfg.RateLimit.Burst)

	cache, err := suggestcache.New(cfg.Cache.Capacity, time.Duration(cfg.Cache.TTLSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("creating suggestion cache: %w", err)
	}

	fewShot := make([]prompt.FewShotExample, 0, len(cfg.Prompt.FewShotExamples))
	for _, ex := range cfg.Prompt.FewShotExamples {
		fewShot = append(fewShot, prompt.FewShotExample{
			Context: prompt.ContextClass(ex.Context),
			Input:   ex.Input,
			Answer:  ex.Answer,
		})
	}

	builder, err := prompt.NewBuilder(cfg.Prompt.SystemMessage, cfg.Prompt.UserMessageTemplate, fewShot)
	if err != nil {
		return nil, fmt.Errorf("creating prompt builder: %w", err)
	}

	preprocessors := []prompt.Preprocessor{
		prompt.LengthLimiter{MaxPrefix: cfg.Preprocess.MaxPrefixCharLimit, MaxSuffix: cfg.Preprocess.MaxSuffixCharLimit},
	}
	if cfg.Preprocess.DontIncludeDataviews {
		preprocessors = append([]prompt.Preprocessor{prompt.DataviewRemover{}}, preprocessors...)
	}

	postprocessors := []prompt.Postprocessor{}
	if cfg.Prompt.ChainOfThoughtRegex != "" {
		re, err := regexp.Compile(cfg.Prompt.ChainOfThoughtRegex)
		if err != nil {
			return nil, fmt.Errorf("compiling chain_of_thought_removal_regex: %w", err)
		}
		postprocessors = append(postprocessors, prompt.ChainOfThoughtStripper{Regex: re})
	}
	if cfg.Postprocess.RemoveDuplicateMathBlockIndicator {
		postprocessors = append(postprocessors, prompt.RemoveMathIndicators{})
	}
	if cfg.Postprocess.RemoveDuplicateCodeBlockIndicator {
		postprocessors = append(postprocessors, prompt.RemoveCodeIndicators{})
	}
	postprocessors = append(postprocessors, prompt.RemoveOverlap{}, prompt.RemoveWhitespace{}, prompt.Guardrails{})

	model := modelFor(cfg)

	p := &Predictor{
		limiter:        limiter,
		cache:          cache,
		preprocessors:  preprocessors,
		postprocessors: postprocessors,
		builder:        builder,
		client:         client,
		providerName:   cfg.Provider.APIProvider,
		model:          model,
		options: prompt.ModelOptions{
			Temperature:      cfg.ModelOpts.Temperature,
			TopP:             cfg.ModelOpts.TopP,
			FrequencyPenalty: cfg.ModelOpts.FrequencyPenalty,
			PresencePenalty:  cfg.ModelOpts.PresencePenalty,
			MaxTokens:        cfg.ModelOpts.MaxTokens,
		},
		emitterCfg: stream.Config{
			MinCharsBeforeEmit: cfg.Stream.MinCharsBeforeEmit,
			EmitOnBoundary:     cfg.Stream.EmitOnBoundary,
			ThrottleInterval:   time.Duration(cfg.Stream.ThrottleMs) * time.Millisecond,
		},
		debugMode: cfg.Debug.DebugMode,
	}
	p.dedup = coalesce.NewDedup()
	p.latest = coalesce.New(func(ctx context.Context, arg any) (any, error) {
		return p.runOnce(ctx, arg.(completionRequest))
	})
	return p, nil
}

// StartCachePurger runs the suggestion cache's background TTL sweep until
// ctx is canceled, returning a channel closed when the sweep goroutine
// exits.
func (p *Predictor) StartCachePurger(ctx context.Context, interval time.Duration) <-chan struct{} {
	return p.cache.StartPurger(ctx, interval)
}

// Reconfigure applies a hot-reloaded rate limit and debug mode to the
// running Predictor. The cache, prompt builder, preprocessors and
// postprocessors keep the configuration they were built with; a reload
// does not rebuild them.
func (p *Predictor) Reconfigure(cfg *config.Config) {
	p.limiter.Reconfigure(cfg.RateLimit.Rate, cfg.RateLimit.Burst)
	p.debugMode = cfg.Debug.DebugMode
}

func modelFor(cfg *config.Config) string {
	switch cfg.Provider.APIProvider {
	case "openai":
		return cfg.Provider.OpenAI.Model
	case "openrouter":
		return cfg.Provider.OpenRouter.Model
	case "gemini":
		return cfg.Provider.Gemini.Model
	default:
		return ""
	}
}

// Predict runs the full pipeline for a single (prefix, suffix) request and
// returns the shaped completion. An empty string with a nil error means a
// short-circuit or guardrail rejection, not a failure.
func (p *Predictor) Predict(ctx context.Context, userID, prefix, suffix string) (string, error) {
	if err := p.limiter.Acquire(ctx, userID); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	class := classify.Classify(prefix, suffix)
	prefix, suffix, shortCircuit := p.preprocess(prefix, suffix, class)
	if shortCircuit {
		return "", nil
	}

	fp := fingerprint.Compute(p.providerName, p.model, prefix, suffix)
	if cached, ok := p.cache.Get(fp); ok {
		return cached, nil
	}

	result, err := p.latest.Run(ctx, userID, completionRequest{
		providerName: p.providerName,
		model:        p.model,
		prefix:       prefix,
		suffix:       suffix,
		class:        class,
	})
	if err != nil {
		if errors.Is(err, prompt.ErrEmptyCompletion) || errors.Is(err, prompt.ErrMaskInCompletion) {
			return "", nil
		}
		return "", err
	}

	completion := result.(string)
	p.cache.Set(fp, completion)
	return completion, nil
}

// preprocess runs the configured Preprocessor chain and reports whether a
// preprocessor short-circuited the request (cursor inside an excluded
// region).
func (p *Predictor) preprocess(prefix, suffix string, class prompt.ContextClass) (string, string, bool) {
	for _, pp := range p.preprocessors {
		if pp.RemovesCursor(prefix, suffix) {
			return "", "", true
		}
		prefix, suffix = pp.Process(prefix, suffix, class)
	}
	return prefix, suffix, false
}

// runOnce is the work function dispatched by LatestOnly: build the prompt,
// deduplicate identical concurrent calls via SingleFlight, call the
// upstream provider, and postprocess the result.
func (p *Predictor) runOnce(ctx context.Context, req completionRequest) (string, error) {
	messages, err := p.builder.Build(req.prefix, req.suffix, req.class)
	if err != nil {
		return "", fmt.Errorf("building prompt: %w", err)
	}

	fp := fingerprint.Compute(req.providerName, req.model, req.prefix, req.suffix)

	if p.debugMode {
		for _, m := range messages {
			log.Debug().Str("fingerprint", fp).Str("role", m.Role).Str("content", m.Content).Msg("rendered prompt message")
		}
	}

	text, _, err := p.dedup.Do(ctx, fp, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, upstreamTimeout)
		defer cancel()
		return p.client.Query(callCtx, upstream.Request{Messages: messages, Options: p.options})
	})
	if err != nil {
		log.Error().Err(err).Str("provider", req.providerName).Msg("upstream call failed, returning empty completion")
		return "", nil
	}

	if p.debugMode {
		log.Debug().Str("fingerprint", fp).Str("raw_response", text).Msg("raw upstream response")
	}

	return p.postprocess(req.prefix, req.suffix, text, req.class)
}

func (p *Predictor) postprocess(prefix, suffix, completion string, class prompt.ContextClass) (string, error) {
	var err error
	for _, pp := range p.postprocessors {
		completion, err = pp.Process(prefix, suffix, completion, class)
		if err != nil {
			return "", err
		}
	}
	return completion, nil
}

// PredictStream runs the same coalescing pipeline as Predict, then re-emits
// the shaped completion to the client through a StreamEmitter so the
// client-visible pacing still follows the boundary/time/length flush
// policy, even though postprocessing requires the complete text before it
// can run.
func (p *Predictor) PredictStream(ctx context.Context, userID, prefix, suffix string) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		completion, err := p.Predict(ctx, userID, prefix, suffix)
		if err != nil {
			errs <- err
			return
		}
		if completion == "" {
			return
		}

		emitter := stream.NewEmitter(p.emitterCfg)
		if text, ok := emitter.Push(completion, time.Now()); ok {
			select {
			case chunks <- text:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if text, ok := emitter.Flush(time.Now()); ok {
			select {
			case chunks <- text:
			case <-ctx.Done():
				errs <- ctx.Err()
			}
		}
	}()

	return chunks, errs
}

// logPipelineError is a small helper used by handlers to log pipeline
// failures uniformly without leaking raw errors to clients.
func logPipelineError(logger zerolog.Logger, requestID, userID string, err error) {
	logger.Error().Err(err).Str("request_id", requestID).Str("user", userID).Msg("prediction pipeline error")
}
