package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := validate(DefaultConfig()); err != nil {
		t.Fatalf("validate default config: %v", err)
	}
}

func TestValidate_BadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 70000

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for port 70000")
	}
	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("error should mention server.port: %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.LogLevel = "verbose"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level: %v", err)
	}
}

func TestValidate_UnknownAPIProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.APIProvider = "claude"

	if err := validate(cfg); err == nil {
		t.Fatal("expected error for unknown api_provider")
	}
}

func TestValidate_MissingModelForSelectedProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.APIProvider = "gemini"
	cfg.Provider.Gemini.Model = ""

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing gemini model")
	}
	if !strings.Contains(err.Error(), "provider.gemini.model") {
		t.Errorf("error should mention provider.gemini.model: %v", err)
	}
}

func TestValidate_TemperatureOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelOpts.Temperature = 5

	if err := validate(cfg); err == nil {
		t.Fatal("expected error for out-of-range temperature")
	}
}

func TestValidate_EmptyUserMessageTemplate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Prompt.UserMessageTemplate = ""

	if err := validate(cfg); err == nil {
		t.Fatal("expected error for empty user_message_template")
	}
}

func TestValidate_InvalidChainOfThoughtRegex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Prompt.ChainOfThoughtRegex = "(unclosed"

	err := validate(cfg)
	if err == nil {
		t.Fatal("expected error for invalid regex")
	}
	if !strings.Contains(err.Error(), "chain_of_thought_removal_regex") {
		t.Errorf("error should mention chain_of_thought_removal_regex: %v", err)
	}
}

func TestValidate_IncompleteFewShotExample(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Prompt.FewShotExamples = append(cfg.Prompt.FewShotExamples, FewShotConfig{Context: "text", Input: "only input"})

	if err := validate(cfg); err == nil {
		t.Fatal("expected error for incomplete few-shot example")
	}
}

func TestValidate_BadRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.Rate = 0

	if err := validate(cfg); err == nil {
		t.Fatal("expected error for zero rate limit")
	}
}

func TestCheckConfig_ReturnsMessagesNotError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = -1

	problems := CheckConfig(cfg)
	if len(problems) == 0 {
		t.Fatal("expected at least one problem reported")
	}
}

func TestCheckConfig_CleanConfigHasNoProblems(t *testing.T) {
	if problems := CheckConfig(DefaultConfig()); len(problems) != 0 {
		t.Fatalf("expected no problems, got %v", problems)
	}
}
