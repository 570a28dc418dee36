// Package deterministic provides an in-process voice provider whose output is
// a pure function of its input. It never touches the network: GenerateSpeech
// derives a short fixed-format byte sequence from a hash of the text plus
// embedded length and language markers, so identical inputs always produce
// identical audio and different inputs are distinguishable.
//
// The provider exists for tests and local development — registry fallback
// walks, orchestrator provenance and outcome persistence can all be exercised
// without credentials. It is not an audio synthesiser.
package deterministic

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/fablecast/fablecast/pkg/provider/voice"
)

// Name is the registry key for this provider.
const Name = "deterministic"

// payloadMagic prefixes every generated buffer so consumers can recognise
// deterministic output in stored artefacts.
var payloadMagic = []byte("FCDET1")

// defaultVoices is the fixed catalogue returned by ListVoices.
var defaultVoices = []voice.Voice{
	{ID: "det-narrator", Name: "Narrator", Labels: map[string]string{"language": "en"}},
	{ID: "det-cuentista", Name: "Cuentista", Labels: map[string]string{"language": "es"}},
}

var languages = []string{"en", "es", "fr", "de", "it", "pt", "pl", "hi", "ar", "zh", "ja", "ko", "nl"}

// Provider implements [voice.Provider] deterministically.
//
// The zero value is not usable; construct with [New]. All methods are safe
// for concurrent use.
type Provider struct {
	valid atomic.Bool
}

// Compile-time interface assertion.
var _ voice.Provider = (*Provider)(nil)

// New creates a deterministic Provider that reports itself as configured.
func New() *Provider {
	p := &Provider{}
	p.valid.Store(true)
	return p
}

// SetValid flips the result of [Provider.ValidateConfiguration]. Tests use
// this to simulate a misconfigured provider without touching credentials.
func (p *Provider) SetValid(v bool) {
	p.valid.Store(v)
}

// Descriptor implements voice.Provider.
func (p *Provider) Descriptor() voice.Descriptor {
	return voice.Descriptor{
		Name:              Name,
		DisplayName:       "Deterministic (test)",
		SupportsStreaming: false,
		MaxTextLength:     10000,
		SupportedFormats:  []string{"fcdet_v1"},
	}
}

// ValidateConfiguration implements voice.Provider. It returns the settable
// flag, true unless [Provider.SetValid] has been called with false.
func (p *Provider) ValidateConfiguration() bool {
	return p.valid.Load()
}

// SupportedLanguages implements voice.Provider.
func (p *Provider) SupportedLanguages() []string {
	out := make([]string, len(languages))
	copy(out, languages)
	return out
}

// ListVoices implements voice.Provider. The catalogue is fixed.
func (p *Provider) ListVoices(_ context.Context) ([]voice.Voice, error) {
	out := make([]voice.Voice, len(defaultVoices))
	copy(out, defaultVoices)
	return out, nil
}

// GenerateSpeech implements voice.Provider. The produced buffer is
//
//	"FCDET1" | uint16 text length | language bytes | 0x00 | sha256(voice|language|text)
//
// so equal (text, language, voice) triples yield byte-identical output and any
// difference in input changes the digest.
func (p *Provider) GenerateSpeech(ctx context.Context, text, language string, opts voice.SynthesisOptions) (*voice.SpeechResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("deterministic: %w", err)
	}
	if text == "" {
		return nil, fmt.Errorf("deterministic: text must not be empty")
	}

	voiceID := opts.VoiceID
	if voiceID == "" {
		voiceID = defaultVoices[0].ID
	}

	h := sha256.New()
	h.Write([]byte(voiceID))
	h.Write([]byte{0})
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(text))

	buf := make([]byte, 0, len(payloadMagic)+2+len(language)+1+sha256.Size)
	buf = append(buf, payloadMagic...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(min(len(text), 0xffff)))
	buf = append(buf, language...)
	buf = append(buf, 0)
	buf = h.Sum(buf)

	return &voice.SpeechResult{
		Audio:   buf,
		VoiceID: voiceID,
		Format:  "fcdet_v1",
		Metadata: map[string]any{
			"text_length": len(text),
			"language":    language,
			"provider":    Name,
			"format":      "fcdet_v1",
		},
	}, nil
}
