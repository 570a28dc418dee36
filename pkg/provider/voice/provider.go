// Package voice defines the Provider interface for voice-synthesis backends.
//
// A voice provider wraps a text-to-speech service (e.g., ElevenLabs, or the
// deterministic in-process synthesiser used in tests) and presents a uniform
// batch interface: text in, a contiguous audio byte buffer out. Providers are
// registered in a registry (see internal/registry) under their descriptor
// name and are selected at request time with automatic fallback.
//
// Implementations must be safe for concurrent use.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider is the abstraction over any voice-synthesis backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel.
type Provider interface {
	// Descriptor returns the static capability metadata for this provider.
	// The returned value must be identical across calls; the registry uses
	// Descriptor().Name as the registration key.
	Descriptor() Descriptor

	// ValidateConfiguration reports whether the provider is currently usable:
	// credentials are present and the underlying client can be constructed.
	// It must never panic and must not perform a full synthesis call — it is
	// a cheap availability probe, distinct from whether any one GenerateSpeech
	// call will succeed.
	ValidateConfiguration() bool

	// SupportedLanguages returns the fixed catalogue of ISO 639-1 language
	// codes this provider can narrate. The list is static metadata and does
	// not require a network round trip.
	SupportedLanguages() []string

	// ListVoices returns the voices currently available from this provider.
	// The catalogue may change between calls if the underlying service adds
	// or removes voices.
	ListVoices(ctx context.Context) ([]Voice, error)

	// GenerateSpeech synthesises text in the given language and returns the
	// complete audio buffer. opts may pin a specific voice; otherwise the
	// provider selects one matching language, falling back to a provider
	// default so the call never fails purely for missing language coverage.
	//
	// A non-nil error means no audio was produced. Callers treat the error as
	// the failure signal for fallback purposes but should preserve it in
	// their attempt records rather than discard it.
	GenerateSpeech(ctx context.Context, text, language string, opts SynthesisOptions) (*SpeechResult, error)
}

// ValidateDescriptor checks the invariants every registered descriptor must
// hold. The registry rejects nothing at registration time, but constructors
// use this to fail fast on programmer error.
func ValidateDescriptor(d Descriptor) error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("voice: descriptor name must not be empty"))
	}
	if d.Name != strings.ToLower(d.Name) || strings.ContainsAny(d.Name, " \t") {
		errs = append(errs, fmt.Errorf("voice: descriptor name %q must be a lowercase token", d.Name))
	}
	if d.MaxTextLength <= 0 {
		errs = append(errs, fmt.Errorf("voice: descriptor max text length %d must be positive", d.MaxTextLength))
	}
	if len(d.SupportedFormats) == 0 {
		errs = append(errs, errors.New("voice: descriptor must list at least one output format"))
	}
	return errors.Join(errs...)
}
