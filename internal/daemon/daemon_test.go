package daemon

import (
	"testing"

	"github.com/driftcode/fimproxy/internal/config"
)

func TestBuildUpstreamClientSelectsConfiguredProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.APIProvider = "openai"
	cfg.Provider.OpenAI.KeyRef = "env:FIMPROXY_TEST_OPENAI_KEY"
	t.Setenv("FIMPROXY_TEST_OPENAI_KEY", "test-key")

	client, err := buildUpstreamClient(cfg)
	if err != nil {
		t.Fatalf("buildUpstreamClient: %v", err)
	}
	if client.Name() != "openai" {
		t.Fatalf("got provider %q, want openai", client.Name())
	}
}

func TestBuildUpstreamClientOpenRouter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.APIProvider = "openrouter"
	cfg.Provider.OpenRouter.KeyRef = "env:FIMPROXY_TEST_OPENROUTER_KEY"
	t.Setenv("FIMPROXY_TEST_OPENROUTER_KEY", "test-key")

	client, err := buildUpstreamClient(cfg)
	if err != nil {
		t.Fatalf("buildUpstreamClient: %v", err)
	}
	if client.Name() != "openrouter" {
		t.Fatalf("got provider %q, want openrouter", client.Name())
	}
}

func TestBuildUpstreamClientRejectsUnresolvableKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.APIProvider = "openai"
	cfg.Provider.OpenAI.KeyRef = "env:FIMPROXY_TEST_MISSING_KEY"

	if _, err := buildUpstreamClient(cfg); err == nil {
		t.Fatal("expected an error when the key reference cannot be resolved")
	}
}

func TestBuildUpstreamClientRejectsUnknownProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.APIProvider = "unknown"

	if _, err := buildUpstreamClient(cfg); err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}
