package story

import (
	"context"
	"errors"
	"testing"

	"github.com/fablecast/fablecast/internal/registry"
	"github.com/fablecast/fablecast/internal/resilience"
	textmock "github.com/fablecast/fablecast/pkg/provider/textgen/mock"
	"github.com/fablecast/fablecast/pkg/provider/voice"
	voicemock "github.com/fablecast/fablecast/pkg/provider/voice/mock"
)

func newTestOrchestrator(t *testing.T, text *textmock.Provider, reg *registry.Registry) *Orchestrator {
	t.Helper()
	client := NewClient(text, ClientConfig{MaxRetries: 2, Backoff: fastBackoff})
	return NewOrchestrator(client, reg, nil, OrchestratorConfig{})
}

func speechResult(audio string) *voice.SpeechResult {
	return &voice.SpeechResult{
		Audio:    []byte(audio),
		VoiceID:  "v1",
		Format:   "mp3_44100_128",
		Metadata: map[string]any{"language": "en"},
	}
}

func TestOrchestrator_TextAndAudioSucceed(t *testing.T) {
	t.Parallel()
	reg := registry.New(registry.Config{})
	vp := &voicemock.Provider{
		Desc:   voice.Descriptor{Name: "mock"},
		Result: speechResult("mp3 bytes"),
	}
	reg.Register(vp)

	o := newTestOrchestrator(t, &textmock.Provider{}, reg)
	out := o.Generate(context.Background(), Request{Theme: "dragons", Language: "en"})

	if !out.Success {
		t.Fatalf("outcome not successful: %s", out.ErrorMessage)
	}
	if out.RequestID == "" {
		t.Error("request id should be assigned")
	}
	if out.TextContent == "" {
		t.Error("text content missing")
	}
	if !out.AudioPresent() || out.AudioProvider != "mock" {
		t.Errorf("audio provider = %q, audio present = %t", out.AudioProvider, out.AudioPresent())
	}
	if len(out.Attempts) != 1 || !out.Attempts[0].Succeeded {
		t.Errorf("attempts = %+v, want one successful entry", out.Attempts)
	}
	if err := out.Validate(); err != nil {
		t.Errorf("outcome invalid: %v", err)
	}
}

func TestOrchestrator_TextFailureIsFatal(t *testing.T) {
	t.Parallel()
	reg := registry.New(registry.Config{})
	vp := &voicemock.Provider{Desc: voice.Descriptor{Name: "mock"}, Result: speechResult("x")}
	reg.Register(vp)

	text := &textmock.Provider{Script: []textmock.Step{{Err: transientErr("down")}}}
	o := newTestOrchestrator(t, text, reg)

	out := o.Generate(context.Background(), Request{Theme: "dragons"})

	if out.Success {
		t.Fatal("outcome should not be successful")
	}
	if out.ErrorMessage == "" {
		t.Error("failed outcome must carry an error message")
	}
	if out.TextContent != "" || out.AudioPresent() {
		t.Error("failed outcome must carry neither text nor audio")
	}
	if len(out.TextAttempts) != 2 {
		t.Errorf("text attempt trail = %d entries, want 2 (max retries)", len(out.TextAttempts))
	}
	if len(vp.GenerateSpeechCalls) != 0 {
		t.Error("voice providers must not be dialled when text generation fails")
	}
	if err := out.Validate(); err != nil {
		t.Errorf("outcome invalid: %v", err)
	}
}

func TestOrchestrator_AudioFallsBackToNextProvider(t *testing.T) {
	t.Parallel()
	reg := registry.New(registry.Config{DefaultProvider: "primary", FallbackChain: []string{"backup"}})
	primary := &voicemock.Provider{
		Desc: voice.Descriptor{Name: "primary"},
		Err:  errors.New("synthesis failed"),
	}
	backup := &voicemock.Provider{
		Desc:   voice.Descriptor{Name: "backup"},
		Result: speechResult("backup audio"),
	}
	reg.Register(primary)
	reg.Register(backup)

	o := newTestOrchestrator(t, &textmock.Provider{}, reg)
	out := o.Generate(context.Background(), Request{Theme: "stars"})

	if !out.Success {
		t.Fatalf("outcome not successful: %s", out.ErrorMessage)
	}
	if out.AudioProvider != "backup" {
		t.Errorf("audio provider = %q, want backup", out.AudioProvider)
	}
	if len(out.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(out.Attempts))
	}
	if out.Attempts[0].Provider != "primary" || out.Attempts[0].Succeeded {
		t.Errorf("first attempt = %+v, want failed primary", out.Attempts[0])
	}
	if out.Attempts[0].ErrorKind != "provider_error" {
		t.Errorf("first attempt kind = %q, want provider_error", out.Attempts[0].ErrorKind)
	}
	if out.Attempts[1].Provider != "backup" || !out.Attempts[1].Succeeded {
		t.Errorf("second attempt = %+v, want successful backup", out.Attempts[1])
	}
}

func TestOrchestrator_AllVoiceProvidersFailYieldsTextOnly(t *testing.T) {
	t.Parallel()
	reg := registry.New(registry.Config{})
	for _, name := range []string{"one", "two"} {
		reg.Register(&voicemock.Provider{
			Desc: voice.Descriptor{Name: name},
			Err:  errors.New("synthesis failed"),
		})
	}

	o := newTestOrchestrator(t, &textmock.Provider{}, reg)
	out := o.Generate(context.Background(), Request{Theme: "the sea"})

	if !out.Success {
		t.Fatal("text-only outcome must still be successful")
	}
	if out.AudioPresent() || out.AudioProvider != "" {
		t.Error("no audio should be present")
	}
	if len(out.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2 (both providers tried)", len(out.Attempts))
	}
	if err := out.Validate(); err != nil {
		t.Errorf("outcome invalid: %v", err)
	}
}

func TestOrchestrator_EmptyRegistryYieldsTextOnly(t *testing.T) {
	t.Parallel()
	reg := registry.New(registry.Config{})

	o := newTestOrchestrator(t, &textmock.Provider{}, reg)
	out := o.Generate(context.Background(), Request{Theme: "rain"})

	if !out.Success {
		t.Fatal("outcome should be successful")
	}
	if out.AudioPresent() || len(out.Attempts) != 0 {
		t.Errorf("expected no audio and no attempts, got %+v", out.Attempts)
	}
}

func TestOrchestrator_UnavailableProviderSkippedSilently(t *testing.T) {
	t.Parallel()
	reg := registry.New(registry.Config{})
	broken := &voicemock.Provider{
		Desc:    voice.Descriptor{Name: "broken"},
		Invalid: true,
	}
	working := &voicemock.Provider{
		Desc:   voice.Descriptor{Name: "working"},
		Result: speechResult("audio"),
	}
	reg.Register(broken)
	reg.Register(working)

	o := newTestOrchestrator(t, &textmock.Provider{}, reg)
	out := o.Generate(context.Background(), Request{})

	if out.AudioProvider != "working" {
		t.Errorf("audio provider = %q, want working", out.AudioProvider)
	}
	// The unavailable provider is skipped, not tried: no attempt recorded.
	if len(out.Attempts) != 1 {
		t.Fatalf("attempts = %+v, want only the working provider", out.Attempts)
	}
	if len(broken.GenerateSpeechCalls) != 0 {
		t.Error("unavailable provider must not be dialled")
	}
}

func TestOrchestrator_VoiceIDOnlyForRequestedProvider(t *testing.T) {
	t.Parallel()
	reg := registry.New(registry.Config{FallbackChain: []string{"backup"}})
	requested := &voicemock.Provider{
		Desc: voice.Descriptor{Name: "requested"},
		Err:  errors.New("synthesis failed"),
	}
	backup := &voicemock.Provider{
		Desc:   voice.Descriptor{Name: "backup"},
		Result: speechResult("audio"),
	}
	reg.Register(requested)
	reg.Register(backup)

	o := newTestOrchestrator(t, &textmock.Provider{}, reg)
	out := o.Generate(context.Background(), Request{
		VoiceProvider: "requested",
		VoiceID:       "voice-123",
	})

	if out.AudioProvider != "backup" {
		t.Fatalf("audio provider = %q, want backup", out.AudioProvider)
	}
	if len(requested.GenerateSpeechCalls) != 1 {
		t.Fatalf("requested provider calls = %d, want 1", len(requested.GenerateSpeechCalls))
	}
	if got := requested.GenerateSpeechCalls[0].Opts.VoiceID; got != "voice-123" {
		t.Errorf("requested provider voice id = %q, want voice-123", got)
	}
	// Voice IDs are provider-specific; the fallback must not inherit it.
	if got := backup.GenerateSpeechCalls[0].Opts.VoiceID; got != "" {
		t.Errorf("fallback provider voice id = %q, want empty", got)
	}
}

func TestOrchestrator_CircuitOpenRecordedAsAttempt(t *testing.T) {
	t.Parallel()
	reg := registry.New(registry.Config{})
	flaky := &voicemock.Provider{
		Desc: voice.Descriptor{Name: "flaky"},
		Err:  errors.New("synthesis failed"),
	}
	reg.Register(flaky)

	client := NewClient(&textmock.Provider{}, ClientConfig{MaxRetries: 1, Backoff: fastBackoff})
	o := NewOrchestrator(client, reg, nil, OrchestratorConfig{
		Breaker: resilience.CircuitBreakerConfig{MaxFailures: 2},
	})

	ctx := context.Background()
	// Two failing generations trip the breaker.
	o.Generate(ctx, Request{})
	o.Generate(ctx, Request{})

	// Third generation hits the open breaker: no provider call, but the
	// attempt trail still explains why there is no audio.
	before := len(flaky.GenerateSpeechCalls)
	out := o.Generate(ctx, Request{})
	if len(flaky.GenerateSpeechCalls) != before {
		t.Error("open breaker should prevent the provider call")
	}
	if len(out.Attempts) != 1 || out.Attempts[0].ErrorKind != "circuit_open" {
		t.Errorf("attempts = %+v, want one circuit_open entry", out.Attempts)
	}
	if !out.Success {
		t.Error("text-only outcome should still be successful")
	}
}
