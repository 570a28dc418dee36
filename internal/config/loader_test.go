package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/fablecast/fablecast/internal/config"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
textgen:
  provider:
    name: openai
    model: gpt-4o-mini
    api_key: sk-test
  max_tokens: 2048
  temperature: 0.8
voice:
  providers:
    - name: elevenlabs
      api_key: el-test
    - name: deterministic
  default: elevenlabs
  fallback: [deterministic]
retry:
  max_retries: 3
  base_delay: 1s
  growth: exponential
  max_delay: 30s
storage:
  postgres_dsn: "postgres://localhost/fablecast"
`

func TestLoadFromReader_ValidConfig(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.TextGen.Provider.Model != "gpt-4o-mini" {
		t.Errorf("textgen model: got %q, want %q", cfg.TextGen.Provider.Model, "gpt-4o-mini")
	}
	if len(cfg.Voice.Providers) != 2 {
		t.Fatalf("voice providers: got %d, want 2", len(cfg.Voice.Providers))
	}
	if cfg.Voice.Default != "elevenlabs" {
		t.Errorf("voice default: got %q, want %q", cfg.Voice.Default, "elevenlabs")
	}
	if cfg.Retry.BaseDelay != time.Second {
		t.Errorf("base_delay: got %s, want 1s", cfg.Retry.BaseDelay)
	}
}

func TestLoadFromReader_UnknownFieldsRejected(t *testing.T) {
	yaml := `
textgen:
  provider:
    name: openai
  sampling_mode: nucleus
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: verbose
textgen:
  provider:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_MissingTextGenProvider(t *testing.T) {
	yaml := `
voice:
  providers:
    - name: deterministic
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing textgen provider, got nil")
	}
	if !strings.Contains(err.Error(), "textgen.provider.name") {
		t.Errorf("error should mention textgen.provider.name, got: %v", err)
	}
}

func TestValidate_DuplicateVoiceProviders(t *testing.T) {
	yaml := `
textgen:
  provider:
    name: openai
voice:
  providers:
    - name: elevenlabs
    - name: elevenlabs
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate voice providers, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_DefaultMustBeDeclared(t *testing.T) {
	yaml := `
textgen:
  provider:
    name: openai
voice:
  providers:
    - name: deterministic
  default: elevenlabs
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for undeclared default provider, got nil")
	}
	if !strings.Contains(err.Error(), "voice.default") {
		t.Errorf("error should mention voice.default, got: %v", err)
	}
}

func TestValidate_FallbackMustBeDeclared(t *testing.T) {
	yaml := `
textgen:
  provider:
    name: openai
voice:
  providers:
    - name: deterministic
  fallback: [elevenlabs, deterministic]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for undeclared fallback provider, got nil")
	}
	if !strings.Contains(err.Error(), "voice.fallback[0]") {
		t.Errorf("error should mention voice.fallback[0], got: %v", err)
	}
}

func TestValidate_RetryBounds(t *testing.T) {
	yaml := `
textgen:
  provider:
    name: openai
retry:
  growth: quadratic
  base_delay: 10s
  max_delay: 1s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid retry config, got nil")
	}
	if !strings.Contains(err.Error(), "retry.growth") {
		t.Errorf("error should mention retry.growth, got: %v", err)
	}
	if !strings.Contains(err.Error(), "retry.max_delay") {
		t.Errorf("error should mention retry.max_delay, got: %v", err)
	}
}

func TestValidate_TemperatureRange(t *testing.T) {
	yaml := `
textgen:
  provider:
    name: openai
  temperature: 3.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range temperature, got nil")
	}
	if !strings.Contains(err.Error(), "temperature") {
		t.Errorf("error should mention temperature, got: %v", err)
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv(config.EnvDefaultVoiceProvider, "deterministic")
	t.Setenv(config.EnvVoiceFallback, " elevenlabs , deterministic ")
	t.Setenv(config.EnvMaxRetries, "5")
	t.Setenv(config.EnvElevenLabsAPIKey, "el-from-env")

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Voice.Default != "deterministic" {
		t.Errorf("default: got %q, want %q", cfg.Voice.Default, "deterministic")
	}
	wantChain := []string{"elevenlabs", "deterministic"}
	if len(cfg.Voice.Fallback) != len(wantChain) {
		t.Fatalf("fallback: got %v, want %v", cfg.Voice.Fallback, wantChain)
	}
	for i, name := range wantChain {
		if cfg.Voice.Fallback[i] != name {
			t.Errorf("fallback[%d]: got %q, want %q", i, cfg.Voice.Fallback[i], name)
		}
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("max_retries: got %d, want 5", cfg.Retry.MaxRetries)
	}
	if cfg.Voice.Providers[0].APIKey != "el-from-env" {
		t.Errorf("elevenlabs api key: got %q, want %q", cfg.Voice.Providers[0].APIKey, "el-from-env")
	}
}

func TestApplyEnv_InvalidMaxRetriesIgnored(t *testing.T) {
	t.Setenv(config.EnvMaxRetries, "zero")

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("max_retries: got %d, want file value 3", cfg.Retry.MaxRetries)
	}
}
