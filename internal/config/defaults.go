package config

import "github.com/driftcode/fimproxy/internal/prompt"

// DefaultBindAddress is the default bind address (localhost only for security).
const DefaultBindAddress = "127.0.0.1"

// DefaultPort is the default port the HTTP server listens on.
const DefaultPort = 8420

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "fimproxy.toml"

// DefaultReadTimeout is the default HTTP server read timeout in seconds.
const DefaultReadTimeout = 10

// DefaultWriteTimeout is the default HTTP server write timeout in seconds,
// set high to accommodate streamed completions.
const DefaultWriteTimeout = 120

// DefaultIdleTimeout is the default HTTP server idle timeout in seconds.
const DefaultIdleTimeout = 120

// DefaultMaxBodySize is the default maximum request body size in bytes (1 MB).
const DefaultMaxBodySize = 1 << 20

// DefaultDataDir is the default directory for PID/log/config files, relative
// to the user's home directory.
const DefaultDataDir = "~/.fimproxy"

// DefaultMaxPrefixCharLimit is the default cap on prefix context length.
const DefaultMaxPrefixCharLimit = 4000

// DefaultMaxSuffixCharLimit is the default cap on suffix context length.
const DefaultMaxSuffixCharLimit = 2000

// DefaultCacheTTLSeconds is the default suggestion cache entry lifetime.
const DefaultCacheTTLSeconds = 20

// DefaultCacheCapacity is the default number of suggestion cache entries.
const DefaultCacheCapacity = 512

// DefaultRateLimitRate is the default per-user request rate, in requests
// per second.
const DefaultRateLimitRate = 3.0

// DefaultRateLimitBurst is the default per-user token bucket burst size.
const DefaultRateLimitBurst = 3

// DefaultStreamMinCharsBeforeEmit is the default minimum buffered length
// before the stream emitter flushes.
const DefaultStreamMinCharsBeforeEmit = 8

// DefaultStreamThrottleMs is the default minimum interval between flushes.
const DefaultStreamThrottleMs = 40

// ValidLogLevels lists the allowed log level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// ValidAPIProviders lists the allowed provider selector values.
var ValidAPIProviders = []string{"openai", "openrouter", "gemini"}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:  DefaultBindAddress,
			Port:         DefaultPort,
			LogLevel:     DefaultLogLevel,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			MaxBodySize:  DefaultMaxBodySize,
			DataDir:      DefaultDataDir,
		},
		Provider: ProviderConfig{
			APIProvider: "openai",
			OpenAI: OpenAIProviderConfig{
				KeyRef: "keyring://fimproxy/openai",
				URL:    "",
				Model:  "gpt-4o-mini",
			},
			OpenRouter: OpenRouterProviderConfig{
				KeyRef: "keyring://fimproxy/openrouter",
				URL:    "https://openrouter.ai/api/v1",
				Model:  "openai/gpt-4o-mini",
			},
			Gemini: GeminiProviderConfig{
				KeyRef: "keyring://fimproxy/gemini",
				Model:  "gemini-2.0-flash",
			},
		},
		ModelOpts: ModelOptionsConfig{
			Temperature:      0.2,
			TopP:             1.0,
			FrequencyPenalty: 0,
			PresencePenalty:  0,
			MaxTokens:        256,
		},
		Prompt: PromptConfig{
			SystemMessage:       prompt.DefaultSystemMessage,
			UserMessageTemplate: prompt.DefaultUserMessageTemplate,
			ChainOfThoughtRegex: prompt.DefaultChainOfThoughtRegex,
			FewShotExamples:     defaultFewShotConfigs(),
		},
		Preprocess: PreprocessConfig{
			DontIncludeDataviews: true,
			MaxPrefixCharLimit:   DefaultMaxPrefixCharLimit,
			MaxSuffixCharLimit:   DefaultMaxSuffixCharLimit,
		},
		Postprocess: PostprocessConfig{
			RemoveDuplicateMathBlockIndicator: true,
			RemoveDuplicateCodeBlockIndicator: true,
		},
		Stream: StreamConfig{
			EnableStreaming:    true,
			MinCharsBeforeEmit: DefaultStreamMinCharsBeforeEmit,
			EmitOnBoundary:     true,
			ThrottleMs:         DefaultStreamThrottleMs,
		},
		Debug: DebugConfig{
			DebugMode: false,
		},
		Cache: CacheConfig{
			TTLSeconds: DefaultCacheTTLSeconds,
			Capacity:   DefaultCacheCapacity,
		},
		RateLimit: RateLimitConfig{
			Rate:  DefaultRateLimitRate,
			Burst: DefaultRateLimitBurst,
		},
	}
}

// defaultFewShotConfigs mirrors prompt.DefaultFewShotExamples in the
// config-file-representable shape.
func defaultFewShotConfigs() []FewShotConfig {
	var out []FewShotConfig
	for _, ex := range prompt.DefaultFewShotExamples() {
		out = append(out, FewShotConfig{
			Context: string(ex.Context),
			Input:   ex.Input,
			Answer:  ex.Answer,
		})
	}
	return out
}
