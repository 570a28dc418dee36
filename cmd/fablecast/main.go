// Command fablecast is the main entry point for the Fablecast story
// generation service. It runs either as a long-lived HTTP server (-serve) or
// as a one-shot CLI that generates a single story and prints the outcome.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/fablecast/fablecast/internal/config"
	"github.com/fablecast/fablecast/internal/observe"
	"github.com/fablecast/fablecast/internal/outcomestore"
	"github.com/fablecast/fablecast/internal/registry"
	"github.com/fablecast/fablecast/internal/resilience"
	"github.com/fablecast/fablecast/internal/story"
	"github.com/fablecast/fablecast/pkg/provider/textgen"
	"github.com/fablecast/fablecast/pkg/provider/textgen/anyllm"
	oatextgen "github.com/fablecast/fablecast/pkg/provider/textgen/openai"
	"github.com/fablecast/fablecast/pkg/provider/voice"
	"github.com/fablecast/fablecast/pkg/provider/voice/deterministic"
	"github.com/fablecast/fablecast/pkg/provider/voice/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	serve := flag.Bool("serve", false, "run the HTTP server instead of a one-shot generation")
	theme := flag.String("theme", "", "story theme for one-shot mode (e.g., \"a lost dragon\")")
	length := flag.Int("length", 5, "story length in minutes for one-shot mode")
	language := flag.String("language", "en", "story language (ISO 639-1) for one-shot mode")
	childName := flag.String("child", "", "child's name for one-shot mode")
	childAge := flag.Int("age", 0, "child's age for one-shot mode")
	voiceName := flag.String("voice-provider", "", "preferred voice provider for one-shot mode")
	voiceID := flag.String("voice-id", "", "pinned voice ID on the preferred provider")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "fablecast: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "fablecast: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("fablecast starting",
		"config", *configPath,
		"serve", *serve,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "fablecast",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider factories ────────────────────────────────────────────────────
	factories := config.NewRegistry()
	registerBuiltinProviders(factories)

	textProvider, err := factories.CreateTextGen(cfg.TextGen.Provider)
	if err != nil {
		slog.Error("failed to create textgen provider",
			"name", cfg.TextGen.Provider.Name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "textgen", "name", cfg.TextGen.Provider.Name)

	voiceReg := buildVoiceRegistry(cfg, factories)

	// ── Generation pipeline ───────────────────────────────────────────────────
	client := story.NewClient(textProvider, story.ClientConfig{
		MaxRetries: cfg.Retry.MaxRetries,
		Backoff: resilience.Backoff{
			Base:   cfg.Retry.BaseDelay,
			Growth: resilience.Growth(cfg.Retry.Growth),
			Max:    cfg.Retry.MaxDelay,
		},
		AttemptTimeout: cfg.Retry.AttemptTimeout,
		Metrics:        metrics,
	})
	orch := story.NewOrchestrator(client, voiceReg, nil, story.OrchestratorConfig{
		Metrics: metrics,
	})

	// ── Persistence ───────────────────────────────────────────────────────────
	store, pool, objects, err := buildStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise storage", "err", err)
		return 1
	}
	if pool != nil {
		defer pool.Close()
	}

	sink := &outcomeSink{store: store, objects: objects}

	if *serve {
		// Hot-reload what can change without a restart: log level and the
		// default voice provider. Everything else is logged as needing one.
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			applyConfigChange(logLevel, voiceReg, config.Diff(old, new))
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
		return serveHTTP(ctx, cfg, orch, sink, voiceReg, pool, metrics)
	}

	req := story.Request{
		Profile:       story.Profile{Name: *childName, Age: *childAge},
		Theme:         *theme,
		LengthMinutes: *length,
		Language:      *language,
		VoiceProvider: *voiceName,
		VoiceID:       *voiceID,
		TextModel:     cfg.TextGen.Provider.Model,
		MaxTokens:     cfg.TextGen.MaxTokens,
		Temperature:   cfg.TextGen.Temperature,
	}
	return generateOnce(ctx, orch, sink, req)
}

// version is stamped at build time via -ldflags.
var version = "dev"

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends lists the text-generation backends served through the
// any-llm multiplexer. OpenAI gets its own native provider below.
var anyllmBackends = []string{"anthropic", "gemini", "deepseek", "mistral", "groq"}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Text generation ───────────────────────────────────────────────────────

	reg.RegisterTextGen("openai", func(entry config.ProviderEntry) (textgen.Provider, error) {
		var opts []oatextgen.Option
		if entry.BaseURL != "" {
			opts = append(opts, oatextgen.WithBaseURL(entry.BaseURL))
		}
		return oatextgen.New(entry.APIKey, entry.Model, opts...)
	})

	for _, backend := range anyllmBackends {
		backend := backend
		reg.RegisterTextGen(backend, func(entry config.ProviderEntry) (textgen.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterTextGen("ollama", func(entry config.ProviderEntry) (textgen.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	// ── Voice ─────────────────────────────────────────────────────────────────

	reg.RegisterVoice("elevenlabs", func(entry config.ProviderEntry) (voice.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, opts...), nil
	})

	reg.RegisterVoice("deterministic", func(_ config.ProviderEntry) (voice.Provider, error) {
		return deterministic.New(), nil
	})
}

// buildVoiceRegistry constructs every configured voice provider and registers
// it. Providers without a wired factory are skipped with a log line rather
// than failing startup, matching the best-effort nature of the audio path.
func buildVoiceRegistry(cfg *config.Config, factories *config.Registry) *registry.Registry {
	reg := registry.New(registry.Config{
		DefaultProvider: cfg.Voice.Default,
		FallbackChain:   cfg.Voice.Fallback,
	})
	for _, entry := range cfg.Voice.Providers {
		p, err := factories.CreateVoice(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("voice provider not wired — skipping", "name", entry.Name)
			continue
		}
		if err != nil {
			slog.Warn("failed to create voice provider — skipping",
				"name", entry.Name, "err", err)
			continue
		}
		reg.Register(p)
	}
	return reg
}

// ── Storage wiring ────────────────────────────────────────────────────────────

// buildStores selects the outcome store (Postgres when a DSN is configured,
// in-memory otherwise) and the optional audio object store.
func buildStores(ctx context.Context, cfg *config.Config) (outcomestore.Store, *pgxpool.Pool, outcomestore.ObjectStore, error) {
	var store outcomestore.Store
	var pool *pgxpool.Pool

	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		var err error
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := outcomestore.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("migrate outcome store: %w", err)
		}
		store = pg
		slog.Info("outcome store ready", "backend", "postgres")
	} else {
		store = outcomestore.NewMemoryStore()
		slog.Info("outcome store ready", "backend", "memory")
	}

	var objects outcomestore.ObjectStore
	if dir := cfg.Storage.AudioDir; dir != "" {
		fs, err := outcomestore.NewFSObjectStore(dir)
		if err != nil {
			if pool != nil {
				pool.Close()
			}
			return nil, nil, nil, fmt.Errorf("audio dir: %w", err)
		}
		objects = fs
		slog.Info("audio object store ready", "dir", dir)
	}

	return store, pool, objects, nil
}

// ── One-shot mode ─────────────────────────────────────────────────────────────

func generateOnce(ctx context.Context, orch *story.Orchestrator, sink *outcomeSink, req story.Request) int {
	out := orch.Generate(ctx, req)
	if err := sink.persist(ctx, out); err != nil {
		slog.Warn("failed to persist outcome", "request_id", out.RequestID, "err", err)
	}

	if !out.Success {
		fmt.Fprintf(os.Stderr, "fablecast: generation failed: %s\n", out.ErrorMessage)
		return 1
	}

	fmt.Println(out.TextContent)
	if out.AudioPresent() {
		slog.Info("audio generated",
			"provider", out.AudioProvider,
			"bytes", len(out.AudioBytes),
			"attempts", len(out.Attempts))
	} else {
		slog.Warn("no audio generated", "attempts", len(out.Attempts))
	}
	return 0
}

// ── Config hot-reload ─────────────────────────────────────────────────────────

// applyConfigChange applies the reloadable parts of a config diff. Provider
// and retry changes require reconstruction of the pipeline, so they only log.
func applyConfigChange(logLevel *slog.LevelVar, voiceReg *registry.Registry, d config.ConfigDiff) {
	if d.LogLevelChanged {
		logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level updated", "level", d.NewLogLevel)
	}
	if d.VoiceRoutingChanged {
		if d.NewDefault != "" && !voiceReg.SetDefault(d.NewDefault) {
			slog.Warn("new default voice provider is not registered — keeping old",
				"default", d.NewDefault)
		}
		voiceReg.SetFallback(d.NewFallback)
		slog.Info("voice routing updated",
			"default", d.NewDefault, "fallback", d.NewFallback)
	}
	if d.RetryChanged {
		slog.Warn("retry settings changed in config — restart required to apply")
	}
	if len(d.ProviderChanges) > 0 {
		slog.Warn("provider configuration changed — restart required to apply",
			"changes", len(d.ProviderChanges))
	}
}

// ── Logger ────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// audioExt derives a file extension from the format recorded in the audio
// provenance metadata.
func audioExt(metadata map[string]any) string {
	format, _ := metadata["format"].(string)
	switch {
	case strings.HasPrefix(format, "mp3"):
		return ".mp3"
	case strings.HasPrefix(format, "pcm"):
		return ".pcm"
	case format != "":
		return "." + format
	default:
		return ".audio"
	}
}
