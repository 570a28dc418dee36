package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"textgen": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"voice":   {"elevenlabs", "deterministic", "mock"},
}

// Environment variables recognised by [ApplyEnv].
const (
	EnvDefaultVoiceProvider = "DEFAULT_VOICE_PROVIDER"
	EnvVoiceFallback        = "VOICE_PROVIDER_FALLBACK"
	EnvMaxRetries           = "MAX_RETRIES"
	EnvElevenLabsAPIKey     = "ELEVENLABS_API_KEY"
	EnvTextGenAPIKey        = "TEXTGEN_API_KEY"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with environment overrides applied. It is a convenience wrapper
// around [LoadFromReader], [ApplyEnv], and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment overrides,
// and validates the result. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays recognised environment variables onto cfg. Environment
// values take precedence over the file so deployments can retarget providers
// without editing YAML.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvDefaultVoiceProvider); v != "" {
		cfg.Voice.Default = strings.TrimSpace(v)
	}
	if v := os.Getenv(EnvVoiceFallback); v != "" {
		var chain []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				chain = append(chain, p)
			}
		}
		cfg.Voice.Fallback = chain
	}
	if v := os.Getenv(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			slog.Warn("ignoring invalid MAX_RETRIES value", "value", v)
		} else {
			cfg.Retry.MaxRetries = n
		}
	}
	if v := os.Getenv(EnvElevenLabsAPIKey); v != "" {
		for i := range cfg.Voice.Providers {
			if cfg.Voice.Providers[i].Name == "elevenlabs" {
				cfg.Voice.Providers[i].APIKey = v
			}
		}
	}
	if v := os.Getenv(EnvTextGenAPIKey); v != "" {
		cfg.TextGen.Provider.APIKey = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("textgen", cfg.TextGen.Provider.Name)
	for _, p := range cfg.Voice.Providers {
		validateProviderName("voice", p.Name)
	}

	if cfg.TextGen.Provider.Name == "" {
		errs = append(errs, errors.New("textgen.provider.name is required"))
	}
	if cfg.TextGen.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("textgen.max_tokens %d must not be negative", cfg.TextGen.MaxTokens))
	}
	if cfg.TextGen.Temperature < 0 || cfg.TextGen.Temperature > 2 {
		errs = append(errs, fmt.Errorf("textgen.temperature %.2f is out of range [0, 2]", cfg.TextGen.Temperature))
	}

	// Voice provider duplicate name detection.
	voiceSeen := make(map[string]int, len(cfg.Voice.Providers))
	for i, p := range cfg.Voice.Providers {
		prefix := fmt.Sprintf("voice.providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := voiceSeen[p.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of voice.providers[%d]", prefix, p.Name, prev))
		}
		voiceSeen[p.Name] = i
	}

	// Default and fallback must reference declared providers.
	if cfg.Voice.Default != "" {
		if _, ok := voiceSeen[cfg.Voice.Default]; !ok {
			errs = append(errs, fmt.Errorf("voice.default %q does not match any declared voice provider", cfg.Voice.Default))
		}
	}
	for i, name := range cfg.Voice.Fallback {
		if _, ok := voiceSeen[name]; !ok {
			errs = append(errs, fmt.Errorf("voice.fallback[%d] %q does not match any declared voice provider", i, name))
		}
	}

	if len(cfg.Voice.Providers) == 0 {
		slog.Warn("no voice providers configured; stories will be generated without audio")
	}

	// Retry
	if cfg.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries %d must not be negative", cfg.Retry.MaxRetries))
	}
	if cfg.Retry.Growth != "" && cfg.Retry.Growth != "linear" && cfg.Retry.Growth != "exponential" {
		errs = append(errs, fmt.Errorf("retry.growth %q is invalid; valid values: linear, exponential", cfg.Retry.Growth))
	}
	if cfg.Retry.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry.base_delay %s must not be negative", cfg.Retry.BaseDelay))
	}
	if cfg.Retry.MaxDelay != 0 && cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		errs = append(errs, fmt.Errorf("retry.max_delay %s is smaller than retry.base_delay %s", cfg.Retry.MaxDelay, cfg.Retry.BaseDelay))
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; generation outcomes will not be persisted")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
