// Package mock provides a test double for the voice.Provider interface.
//
// Use Provider to feed controlled synthesis results to consumers and to
// verify which text, language and options reach the backend.
//
// Example:
//
//	p := &mock.Provider{
//	    Desc:   voice.Descriptor{Name: "mock", MaxTextLength: 100, SupportedFormats: []string{"raw"}},
//	    Result: &voice.SpeechResult{Audio: []byte("audio"), VoiceID: "v1"},
//	}
//	res, err := p.GenerateSpeech(ctx, "hello", "en", voice.SynthesisOptions{})
package mock

import (
	"context"
	"sync"

	"github.com/fablecast/fablecast/pkg/provider/voice"
)

// GenerateSpeechCall records a single invocation of GenerateSpeech.
type GenerateSpeechCall struct {
	// Text is the text passed to GenerateSpeech.
	Text string
	// Language is the language passed to GenerateSpeech.
	Language string
	// Opts is the options value passed to GenerateSpeech.
	Opts voice.SynthesisOptions
}

// Provider is a mock implementation of voice.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Desc is returned by Descriptor. A zero Name defaults to "mock".
	Desc voice.Descriptor

	// Valid is returned by ValidateConfiguration unless Invalid is set.
	Invalid bool

	// Languages is returned by SupportedLanguages.
	Languages []string

	// Voices and VoicesErr are returned by ListVoices.
	Voices    []voice.Voice
	VoicesErr error

	// Result and Err are returned by GenerateSpeech. When Err is non-nil the
	// result is nil. When both are nil a minimal result is fabricated.
	Result *voice.SpeechResult
	Err    error

	// --- Call records ---

	// GenerateSpeechCalls records every call to GenerateSpeech in order.
	GenerateSpeechCalls []GenerateSpeechCall

	// ValidateCalls counts calls to ValidateConfiguration.
	ValidateCalls int
}

// Compile-time interface assertion.
var _ voice.Provider = (*Provider)(nil)

// Descriptor implements voice.Provider.
func (p *Provider) Descriptor() voice.Descriptor {
	d := p.Desc
	if d.Name == "" {
		d.Name = "mock"
	}
	if d.MaxTextLength == 0 {
		d.MaxTextLength = 10000
	}
	if len(d.SupportedFormats) == 0 {
		d.SupportedFormats = []string{"raw"}
	}
	return d
}

// ValidateConfiguration implements voice.Provider.
func (p *Provider) ValidateConfiguration() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ValidateCalls++
	return !p.Invalid
}

// SetValid flips the validation result. Thread-safe.
func (p *Provider) SetValid(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Invalid = !v
}

// SupportedLanguages implements voice.Provider.
func (p *Provider) SupportedLanguages() []string {
	if p.Languages == nil {
		return []string{"en"}
	}
	return p.Languages
}

// ListVoices implements voice.Provider.
func (p *Provider) ListVoices(_ context.Context) ([]voice.Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, p.VoicesErr
}

// GenerateSpeech records the call and returns the configured result.
func (p *Provider) GenerateSpeech(_ context.Context, text, language string, opts voice.SynthesisOptions) (*voice.SpeechResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateSpeechCalls = append(p.GenerateSpeechCalls, GenerateSpeechCall{
		Text:     text,
		Language: language,
		Opts:     opts,
	})
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result != nil {
		return p.Result, nil
	}
	return &voice.SpeechResult{
		Audio:   []byte("mock-audio"),
		VoiceID: "mock-voice",
		Format:  "raw",
		Metadata: map[string]any{
			"text_length": len(text),
			"language":    language,
			"provider":    p.Descriptor().Name,
		},
	}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateSpeechCalls = nil
	p.ValidateCalls = 0
}
