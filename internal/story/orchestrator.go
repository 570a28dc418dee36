// Package story contains the generation use case: the retrying text client,
// the orchestrator that pairs generated text with best-effort narrated
// audio, and the outcome/provenance model handed to persistence.
package story

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fablecast/fablecast/internal/observe"
	"github.com/fablecast/fablecast/internal/registry"
	"github.com/fablecast/fablecast/internal/resilience"
	"github.com/fablecast/fablecast/pkg/provider/textgen"
	"github.com/fablecast/fablecast/pkg/provider/voice"
)

// defaultSpeechTimeout bounds one synthesis call against one provider.
const defaultSpeechTimeout = 2 * time.Minute

// Request carries everything needed to generate one story.
type Request struct {
	// ID correlates logs, traces and the stored outcome. Assigned when empty.
	ID string

	// Profile, Theme, LengthMinutes and Language feed the prompt builder.
	Profile       Profile
	Theme         string
	LengthMinutes int
	Language      string

	// VoiceProvider optionally names the preferred voice provider. Empty
	// means the registry default.
	VoiceProvider string

	// VoiceID optionally pins a voice on the requested provider. It is not
	// carried over to fallback providers — voice identifiers are
	// provider-specific.
	VoiceID string

	// TextModel, MaxTokens and Temperature tune text generation. Zero values
	// mean client defaults.
	TextModel   string
	MaxTokens   int
	Temperature float64
}

// OrchestratorConfig tunes the [Orchestrator]. The zero value is usable.
type OrchestratorConfig struct {
	// SpeechTimeout bounds each synthesis call. Default: 2m.
	SpeechTimeout time.Duration

	// Breaker configures the per-provider circuit breakers. The Name field
	// is overwritten per provider.
	Breaker resilience.CircuitBreakerConfig

	// Metrics receives instrumentation. May be nil.
	Metrics *observe.Metrics
}

// Orchestrator turns a [Request] into one [Outcome]: it generates the story
// text (mandatory — a text failure fails the request), then walks the
// registry's resolution order trying voice providers until one delivers
// audio (best-effort — exhausting all providers still yields a successful,
// text-only outcome). Every provider try lands in the outcome's attempts
// trail.
//
// Orchestrator is safe for concurrent use; requests are independent.
type Orchestrator struct {
	text    *Client
	reg     *registry.Registry
	prompts PromptBuilder

	speechTimeout time.Duration
	breakerCfg    resilience.CircuitBreakerConfig
	metrics       *observe.Metrics

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewOrchestrator creates an Orchestrator over the given collaborators.
// prompts may be nil, in which case [StoryPromptBuilder] is used.
func NewOrchestrator(text *Client, reg *registry.Registry, prompts PromptBuilder, cfg OrchestratorConfig) *Orchestrator {
	if prompts == nil {
		prompts = StoryPromptBuilder{}
	}
	if cfg.SpeechTimeout <= 0 {
		cfg.SpeechTimeout = defaultSpeechTimeout
	}
	return &Orchestrator{
		text:          text,
		reg:           reg,
		prompts:       prompts,
		speechTimeout: cfg.SpeechTimeout,
		breakerCfg:    cfg.Breaker,
		metrics:       cfg.Metrics,
		breakers:      make(map[string]*resilience.CircuitBreaker),
	}
}

// Generate runs the full pipeline and always returns a structured outcome:
// callers inspect Success, AudioBytes and the attempts trail rather than
// handling errors. The returned outcome always satisfies [Outcome.Validate].
func (o *Orchestrator) Generate(ctx context.Context, req Request) *Outcome {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx, span := observe.StartSpan(ctx, "story.generate")
	defer span.End()
	log := observe.Logger(ctx).With("request_id", req.ID)

	if o.metrics != nil {
		o.metrics.ActiveGenerations.Add(ctx, 1)
		defer o.metrics.ActiveGenerations.Add(ctx, -1)
	}

	// Text first: the mandatory deliverable.
	prompt := o.prompts.Build(req.Profile, req.Theme, req.LengthMinutes, req.Language)
	textRes, err := o.text.Generate(ctx, textgen.Request{
		Prompt:      prompt,
		Model:       req.TextModel,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		out := &Outcome{
			RequestID:    req.ID,
			Success:      false,
			ErrorMessage: err.Error(),
		}
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			out.TextAttempts = genErr.Attempts
		}
		log.Error("story generation failed", "error", err)
		return o.finish(out)
	}

	out := &Outcome{
		RequestID:    req.ID,
		TextContent:  textRes.Content,
		TextModel:    textRes.Model,
		TextUsage:    textRes.UsageMetadata,
		TextAttempts: textRes.Attempts,
		Success:      true,
	}

	// Audio second: best-effort. Walk the registry's resolution order,
	// skipping unavailable providers without recording an attempt for them.
	for _, name := range o.reg.ResolutionOrder(req.VoiceProvider) {
		p, ok := o.reg.Get(name)
		if !ok {
			continue
		}

		opts := voice.SynthesisOptions{}
		if name == req.VoiceProvider {
			opts.VoiceID = req.VoiceID
		}

		res, latency, serr := o.speak(ctx, name, p, textRes.Content, req.Language, opts)
		o.recordSpeech(ctx, name, latency, serr)
		if serr != nil {
			out.Attempts = append(out.Attempts, Attempt{
				Provider:  name,
				Succeeded: false,
				ErrorKind: audioErrorKind(serr),
				LatencyMs: latency.Milliseconds(),
			})
			log.Warn("voice provider failed, trying next",
				"provider", name, "error", serr)
			continue
		}

		out.Attempts = append(out.Attempts, Attempt{
			Provider:  name,
			Succeeded: true,
			LatencyMs: latency.Milliseconds(),
		})
		out.AudioBytes = res.Audio
		out.AudioProvider = name
		out.AudioMetadata = res.Metadata
		break
	}

	if !out.AudioPresent() {
		log.Warn("no voice provider delivered audio; returning text-only outcome",
			"attempts", len(out.Attempts))
	}
	return o.finish(out)
}

// speak runs one synthesis call through the provider's circuit breaker with
// the per-call timeout applied.
func (o *Orchestrator) speak(ctx context.Context, name string, p voice.Provider, text, language string, opts voice.SynthesisOptions) (*voice.SpeechResult, time.Duration, error) {
	var res *voice.SpeechResult
	start := time.Now()
	err := o.breaker(name).Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.speechTimeout)
		defer cancel()
		r, err := p.GenerateSpeech(callCtx, text, language, opts)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, time.Since(start), err
}

// breaker returns the circuit breaker for a provider, creating it on first
// use.
func (o *Orchestrator) breaker(name string) *resilience.CircuitBreaker {
	o.mu.Lock()
	defer o.mu.Unlock()
	cb, ok := o.breakers[name]
	if !ok {
		cfg := o.breakerCfg
		cfg.Name = name
		cb = resilience.NewCircuitBreaker(cfg)
		o.breakers[name] = cb
	}
	return cb
}

// finish validates the assembled outcome. A validation failure is a bug in
// outcome assembly, so it is logged loudly but the outcome is still
// returned.
func (o *Orchestrator) finish(out *Outcome) *Outcome {
	if err := out.Validate(); err != nil {
		observe.Logger(context.Background()).Error("assembled outcome violates invariants",
			"request_id", out.RequestID, "error", err)
	}
	return out
}

// recordSpeech emits per-attempt synthesis metrics when a meter is wired.
func (o *Orchestrator) recordSpeech(ctx context.Context, provider string, latency time.Duration, err error) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = audioErrorKind(err)
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	o.metrics.SpeechDuration.Record(ctx, latency.Seconds(), attrs)
	o.metrics.ProviderRequests.Add(ctx, 1, attrs)
	if err != nil {
		o.metrics.ProviderErrors.Add(ctx, 1, attrs)
	}
}

// audioErrorKind classifies a synthesis failure for the attempts trail.
func audioErrorKind(err error) string {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "provider_error"
	}
}
