package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use. If no
// config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level configuration for the completion proxy.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      toml:"server" json:"server"`
	Provider    ProviderConfig    `mapstructure:"provider"    toml:"provider" json:"provider"`
	ModelOpts   ModelOptionsConfig `mapstructure:"model_options" toml:"model_options" json:"model_options"`
	Prompt      PromptConfig      `mapstructure:"prompt"      toml:"prompt" json:"prompt"`
	Preprocess  PreprocessConfig  `mapstructure:"preprocess"  toml:"preprocess" json:"preprocess"`
	Postprocess PostprocessConfig `mapstructure:"postprocess" toml:"postprocess" json:"postprocess"`
	Stream      StreamConfig      `mapstructure:"stream"      toml:"stream" json:"stream"`
	Debug       DebugConfig       `mapstructure:"debug"       toml:"debug" json:"debug"`
	Cache       CacheConfig       `mapstructure:"cache"       toml:"cache" json:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"   toml:"ratelimit" json:"ratelimit"`
}

// ServerConfig holds the core HTTP server settings.
type ServerConfig struct {
	BindAddress  string `mapstructure:"bind_address" toml:"bind_address" json:"bind_address"`
	Port         int    `mapstructure:"port"         toml:"port" json:"port"`
	LogLevel     string `mapstructure:"log_level"    toml:"log_level" json:"log_level"`
	ReadTimeout  int    `mapstructure:"read_timeout"  toml:"read_timeout" json:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" toml:"write_timeout" json:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"  toml:"idle_timeout" json:"idle_timeout"`
	MaxBodySize  int64  `mapstructure:"max_body_size" toml:"max_body_size" json:"max_body_size"`
	// DataDir holds the PID file, log files, and config file when running
	// as a daemon. May start with "~/" to mean the user's home directory.
	DataDir string `mapstructure:"data_dir" toml:"data_dir" json:"data_dir"`
	// TLSCertFile and TLSKeyFile, when both set, make the server listen
	// with TLS instead of plaintext HTTP.
	TLSCertFile string `mapstructure:"tls_cert_file" toml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"  toml:"tls_key_file" json:"tls_key_file"`
}

// ProviderConfig selects and configures the upstream completion provider.
type ProviderConfig struct {
	APIProvider string                 `mapstructure:"api_provider" toml:"api_provider" json:"api_provider"`
	OpenAI      OpenAIProviderConfig   `mapstructure:"openai"       toml:"openai" json:"openai"`
	OpenRouter  OpenRouterProviderConfig `mapstructure:"openrouter" toml:"openrouter" json:"openrouter"`
	Gemini      GeminiProviderConfig   `mapstructure:"gemini"       toml:"gemini" json:"gemini"`
}

// OpenAIProviderConfig holds OpenAI Responses API settings.
type OpenAIProviderConfig struct {
	KeyRef string `mapstructure:"key_ref" toml:"key_ref" json:"key_ref"`
	URL    string `mapstructure:"url"     toml:"url" json:"url"`
	Model  string `mapstructure:"model"   toml:"model" json:"model"`
}

// OpenRouterProviderConfig holds OpenRouter settings.
type OpenRouterProviderConfig struct {
	KeyRef   string `mapstructure:"key_ref"   toml:"key_ref" json:"key_ref"`
	URL      string `mapstructure:"url"       toml:"url" json:"url"`
	Model    string `mapstructure:"model"     toml:"model" json:"model"`
	SiteURL  string `mapstructure:"site_url"  toml:"site_url" json:"site_url"`
	AppTitle string `mapstructure:"app_title" toml:"app_title" json:"app_title"`
}

// GeminiProviderConfig holds Gemini settings.
type GeminiProviderConfig struct {
	KeyRef string `mapstructure:"key_ref" toml:"key_ref" json:"key_ref"`
	Model  string `mapstructure:"model"   toml:"model" json:"model"`
}

// ModelOptionsConfig controls sampling parameters sent to the provider.
type ModelOptionsConfig struct {
	Temperature      float64 `mapstructure:"temperature"       toml:"temperature" json:"temperature"`
	TopP             float64 `mapstructure:"top_p"             toml:"top_p" json:"top_p"`
	FrequencyPenalty float64 `mapstructure:"frequency_penalty" toml:"frequency_penalty" json:"frequency_penalty"`
	PresencePenalty  float64 `mapstructure:"presence_penalty"  toml:"presence_penalty" json:"presence_penalty"`
	MaxTokens        int     `mapstructure:"max_tokens"        toml:"max_tokens" json:"max_tokens"`
}

// PromptConfig controls prompt assembly.
type PromptConfig struct {
	SystemMessage        string   `mapstructure:"system_message"           toml:"system_message" json:"system_message"`
	UserMessageTemplate   string   `mapstructure:"user_message_template"    toml:"user_message_template" json:"user_message_template"`
	ChainOfThoughtRegex   string   `mapstructure:"chain_of_thought_removal_regex" toml:"chain_of_thought_removal_regex" json:"chain_of_thought_removal_regex"`
	FewShotExamples       []FewShotConfig `mapstructure:"few_shot_examples" toml:"few_shot_examples" json:"few_shot_examples"`
}

// FewShotConfig is one configured few-shot example.
type FewShotConfig struct {
	Context string `mapstructure:"context" toml:"context" json:"context"`
	Input   string `mapstructure:"input"   toml:"input" json:"input"`
	Answer  string `mapstructure:"answer"  toml:"answer" json:"answer"`
}

// PreprocessConfig controls cursor-context preprocessing.
type PreprocessConfig struct {
	DontIncludeDataviews bool `mapstructure:"dont_include_dataviews" toml:"dont_include_dataviews" json:"dont_include_dataviews"`
	MaxPrefixCharLimit   int  `mapstructure:"max_prefix_char_limit"  toml:"max_prefix_char_limit" json:"max_prefix_char_limit"`
	MaxSuffixCharLimit   int  `mapstructure:"max_suffix_char_limit"  toml:"max_suffix_char_limit" json:"max_suffix_char_limit"`
}

// PostprocessConfig controls completion postprocessing.
type PostprocessConfig struct {
	RemoveDuplicateMathBlockIndicator bool `mapstructure:"remove_duplicate_math_block_indicator" toml:"remove_duplicate_math_block_indicator" json:"remove_duplicate_math_block_indicator"`
	RemoveDuplicateCodeBlockIndicator bool `mapstructure:"remove_duplicate_code_block_indicator" toml:"remove_duplicate_code_block_indicator" json:"remove_duplicate_code_block_indicator"`
}

// StreamConfig controls the client-facing streaming emitter.
type StreamConfig struct {
	EnableStreaming    bool `mapstructure:"enable_streaming"         toml:"enable_streaming" json:"enable_streaming"`
	MinCharsBeforeEmit int  `mapstructure:"min_chars_before_emit"    toml:"min_chars_before_emit" json:"min_chars_before_emit"`
	EmitOnBoundary     bool `mapstructure:"emit_on_boundary"         toml:"emit_on_boundary" json:"emit_on_boundary"`
	ThrottleMs         int  `mapstructure:"throttle_ms"              toml:"throttle_ms" json:"throttle_ms"`
}

// DebugConfig controls verbose request/response logging.
type DebugConfig struct {
	DebugMode bool `mapstructure:"debug_mode" toml:"debug_mode" json:"debug_mode"`
}

// CacheConfig controls the suggestion cache.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds" toml:"ttl_seconds" json:"ttl_seconds"`
	Capacity   int `mapstructure:"capacity"    toml:"capacity" json:"capacity"`
}

// RateLimitConfig controls the per-user token bucket.
type RateLimitConfig struct {
	Rate  float64 `mapstructure:"rate"  toml:"rate" json:"rate"`
	Burst int     `mapstructure:"burst" toml:"burst" json:"burst"`
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (INLINECOMPLETE_ prefix, _ as separator)
//  2. The file at explicitPath if non-empty
//  3. ~/.fimproxy/fimproxy.toml
//  4. ./fimproxy.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	setViperDefaults(v)

	v.SetEnvPrefix("INLINECOMPLETE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".fimproxy"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("fimproxy")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if cf := v.ConfigFileUsed(); cf != "" {
		loadedConfigFile.Store(cf)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	resolveGeminiKeyFallback(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// resolveGeminiKeyFallback fills provider.gemini.key_ref from GOOGLE_API_KEY
// when the config leaves it unset, matching the original implementation's
// environment fallback.
func resolveGeminiKeyFallback(cfg *Config) {
	if cfg.Provider.Gemini.KeyRef != "" {
		return
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		cfg.Provider.Gemini.KeyRef = "env:GOOGLE_API_KEY"
	}
}

// InitConfig writes the default configuration file to ~/.fimproxy/fimproxy.toml.
// If the file already exists it is not overwritten.
func InitConfig() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("determining home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".fimproxy")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, DefaultConfigFilename)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return nil
	}

	cfg := DefaultConfig()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Config written to %s\n", path)
	return nil
}

// ExportConfig writes the current config to the given path in TOML format.
func ExportConfig(path string) error {
	cfg := Get()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ImportConfig reads a TOML config file and merges it into the current
// config, persisting it to the active config file so changes survive
// restart.
func ImportConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return err
	}
	set(cfg)

	if dest := ConfigFilePath(); dest != "" {
		out, err := toml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshalling config for persistence: %w", err)
		}
		if err := os.WriteFile(dest, out, 0o600); err != nil {
			return fmt.Errorf("persisting imported config: %w", err)
		}
	}

	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every known key with viper so that env var
// binding works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)

	v.SetDefault("provider.api_provider", d.Provider.APIProvider)
	v.SetDefault("provider.openai.key_ref", d.Provider.OpenAI.KeyRef)
	v.SetDefault("provider.openai.url", d.Provider.OpenAI.URL)
	v.SetDefault("provider.openai.model", d.Provider.OpenAI.Model)
	v.SetDefault("provider.openrouter.key_ref", d.Provider.OpenRouter.KeyRef)
	v.SetDefault("provider.openrouter.url", d.Provider.OpenRouter.URL)
	v.SetDefault("provider.openrouter.model", d.Provider.OpenRouter.Model)
	v.SetDefault("provider.openrouter.site_url", d.Provider.OpenRouter.SiteURL)
	v.SetDefault("provider.openrouter.app_title", d.Provider.OpenRouter.AppTitle)
	v.SetDefault("provider.gemini.key_ref", d.Provider.Gemini.KeyRef)
	v.SetDefault("provider.gemini.model", d.Provider.Gemini.Model)

	v.SetDefault("model_options.temperature", d.ModelOpts.Temperature)
	v.SetDefault("model_options.top_p", d.ModelOpts.TopP)
	v.SetDefault("model_options.frequency_penalty", d.ModelOpts.FrequencyPenalty)
	v.SetDefault("model_options.presence_penalty", d.ModelOpts.PresencePenalty)
	v.SetDefault("model_options.max_tokens", d.ModelOpts.MaxTokens)

	v.SetDefault("prompt.system_message", d.Prompt.SystemMessage)
	v.SetDefault("prompt.user_message_template", d.Prompt.UserMessageTemplate)
	v.SetDefault("prompt.chain_of_thought_removal_regex", d.Prompt.ChainOfThoughtRegex)

	v.SetDefault("preprocess.dont_include_dataviews", d.Preprocess.DontIncludeDataviews)
	v.SetDefault("preprocess.max_prefix_char_limit", d.Preprocess.MaxPrefixCharLimit)
	v.SetDefault("preprocess.max_suffix_char_limit", d.Preprocess.MaxSuffixCharLimit)

	v.SetDefault("postprocess.remove_duplicate_math_block_indicator", d.Postprocess.RemoveDuplicateMathBlockIndicator)
	v.SetDefault("postprocess.remove_duplicate_code_block_indicator", d.Postprocess.RemoveDuplicateCodeBlockIndicator)

	v.SetDefault("stream.enable_streaming", d.Stream.EnableStreaming)
	v.SetDefault("stream.min_chars_before_emit", d.Stream.MinCharsBeforeEmit)
	v.SetDefault("stream.emit_on_boundary", d.Stream.EmitOnBoundary)
	v.SetDefault("stream.throttle_ms", d.Stream.ThrottleMs)

	v.SetDefault("debug.debug_mode", d.Debug.DebugMode)

	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)
	v.SetDefault("cache.capacity", d.Cache.Capacity)

	v.SetDefault("ratelimit.rate", d.RateLimit.Rate)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
}
