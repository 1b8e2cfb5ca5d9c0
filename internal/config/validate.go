package config

import (
	"fmt"
	"regexp"
	"strings"
)

// validate checks the Config for invalid or out-of-range values. It
// returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be non-negative, got %d", cfg.Server.ReadTimeout))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.write_timeout must be non-negative, got %d", cfg.Server.WriteTimeout))
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.idle_timeout must be non-negative, got %d", cfg.Server.IdleTimeout))
	}
	if cfg.Server.MaxBodySize <= 0 {
		errs = append(errs, fmt.Sprintf("server.max_body_size must be positive, got %d", cfg.Server.MaxBodySize))
	}

	if !isValidEnum(cfg.Provider.APIProvider, ValidAPIProviders) {
		errs = append(errs, fmt.Sprintf("provider.api_provider must be one of %v, got %q", ValidAPIProviders, cfg.Provider.APIProvider))
	}
	switch cfg.Provider.APIProvider {
	case "openai":
		if cfg.Provider.OpenAI.Model == "" {
			errs = append(errs, "provider.openai.model must not be empty")
		}
	case "openrouter":
		if cfg.Provider.OpenRouter.Model == "" {
			errs = append(errs, "provider.openrouter.model must not be empty")
		}
	case "gemini":
		if cfg.Provider.Gemini.Model == "" {
			errs = append(errs, "provider.gemini.model must not be empty")
		}
	}

	if cfg.ModelOpts.Temperature < 0 || cfg.ModelOpts.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("model_options.temperature must be between 0 and 2, got %f", cfg.ModelOpts.Temperature))
	}
	if cfg.ModelOpts.TopP < 0 || cfg.ModelOpts.TopP > 1 {
		errs = append(errs, fmt.Sprintf("model_options.top_p must be between 0 and 1, got %f", cfg.ModelOpts.TopP))
	}
	if cfg.ModelOpts.MaxTokens < 0 {
		errs = append(errs, fmt.Sprintf("model_options.max_tokens must be non-negative, got %d", cfg.ModelOpts.MaxTokens))
	}

	if cfg.Prompt.UserMessageTemplate == "" {
		errs = append(errs, "prompt.user_message_template must not be empty")
	}
	if cfg.Prompt.ChainOfThoughtRegex != "" {
		if _, err := regexp.Compile(cfg.Prompt.ChainOfThoughtRegex); err != nil {
			errs = append(errs, fmt.Sprintf("prompt.chain_of_thought_removal_regex is not a valid regex: %v", err))
		}
	}
	for i, ex := range cfg.Prompt.FewShotExamples {
		if ex.Input == "" || ex.Answer == "" {
			errs = append(errs, fmt.Sprintf("prompt.few_shot_examples[%d] must set both input and answer", i))
		}
	}

	if cfg.Preprocess.MaxPrefixCharLimit < 0 {
		errs = append(errs, fmt.Sprintf("preprocess.max_prefix_char_limit must be non-negative, got %d", cfg.Preprocess.MaxPrefixCharLimit))
	}
	if cfg.Preprocess.MaxSuffixCharLimit < 0 {
		errs = append(errs, fmt.Sprintf("preprocess.max_suffix_char_limit must be non-negative, got %d", cfg.Preprocess.MaxSuffixCharLimit))
	}

	if cfg.Stream.MinCharsBeforeEmit < 0 {
		errs = append(errs, fmt.Sprintf("stream.min_chars_before_emit must be non-negative, got %d", cfg.Stream.MinCharsBeforeEmit))
	}
	if cfg.Stream.ThrottleMs < 0 {
		errs = append(errs, fmt.Sprintf("stream.throttle_ms must be non-negative, got %d", cfg.Stream.ThrottleMs))
	}

	if cfg.Cache.TTLSeconds < 0 {
		errs = append(errs, fmt.Sprintf("cache.ttl_seconds must be non-negative, got %d", cfg.Cache.TTLSeconds))
	}
	if cfg.Cache.Capacity < 0 {
		errs = append(errs, fmt.Sprintf("cache.capacity must be non-negative, got %d", cfg.Cache.Capacity))
	}

	if cfg.RateLimit.Rate <= 0 {
		errs = append(errs, fmt.Sprintf("ratelimit.rate must be positive, got %f", cfg.RateLimit.Rate))
	}
	if cfg.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Sprintf("ratelimit.burst must be at least 1, got %d", cfg.RateLimit.Burst))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}

// CheckConfig runs startup validation beyond structural correctness,
// surfacing problems (missing keys, unreachable endpoints are NOT checked
// here) the way the original implementation's check_config() does: a
// plain list of human-readable messages, never an error.
func CheckConfig(cfg *Config) []string {
	var problems []string
	if err := validate(cfg); err != nil {
		problems = append(problems, err.Error())
	}
	return problems
}
