package voice

// Descriptor is the static capability metadata for one voice-synthesis
// backend. It is an immutable value: providers return the same descriptor for
// their whole lifetime.
type Descriptor struct {
	// Name is the unique registry key, a lowercase token (e.g. "elevenlabs").
	Name string

	// DisplayName is the human-readable provider name.
	DisplayName string

	// SupportsStreaming indicates the backend can stream audio incrementally.
	// The orchestrator only consumes complete buffers, but the flag is kept
	// for capability inspection.
	SupportsStreaming bool

	// MaxTextLength is the maximum input length in characters. Always > 0.
	MaxTextLength int

	// SupportedFormats lists the audio output formats the backend can
	// produce (e.g. "mp3_44100_128", "pcm_16000"). Never empty.
	SupportedFormats []string
}

// Voice is a single entry in a provider's voice catalogue.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Labels holds provider-assigned attributes (language, gender, accent, …).
	Labels map[string]string

	// Settings holds provider-specific voice settings, which may embed a
	// language code depending on the backend.
	Settings map[string]string
}

// SynthesisOptions carries optional per-call tuning for GenerateSpeech.
// The zero value requests provider defaults.
type SynthesisOptions struct {
	// VoiceID pins a specific voice, bypassing language-based selection.
	VoiceID string

	// OutputFormat overrides the provider's default output format. Must be
	// one of Descriptor().SupportedFormats when set.
	OutputFormat string
}

// SpeechResult is the outcome of a successful synthesis call.
type SpeechResult struct {
	// Audio is the complete synthesised audio buffer.
	Audio []byte

	// VoiceID is the voice that was actually used (selected or pinned).
	VoiceID string

	// Format is the audio format of Audio.
	Format string

	// Metadata carries provenance recorded alongside the audio: text length
	// sent, language, and provider-specific fields. Persisted as a free-form
	// JSON blob by the outcome store.
	Metadata map[string]any
}
