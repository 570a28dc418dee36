package story

import (
	"errors"
	"fmt"
)

// Attempt records one provider try — text model attempt or voice synthesis
// attempt — for the provenance trail persisted with the outcome.
type Attempt struct {
	// Provider is the provider (or model) that was tried.
	Provider string `json:"provider"`

	// Succeeded reports whether this try produced a result.
	Succeeded bool `json:"succeeded"`

	// ErrorKind classifies the failure. Present iff Succeeded is false.
	ErrorKind string `json:"error_kind,omitempty"`

	// LatencyMs is how long the try took.
	LatencyMs int64 `json:"latency_ms"`
}

// Outcome is the orchestrator's single, uniform result: the generated text,
// the narrated audio when any voice provider delivered, and the full
// provenance of what ran, what it cost and what failed before it. It is
// handed to the persistence sink as-is.
type Outcome struct {
	// RequestID correlates the outcome with the originating request.
	RequestID string `json:"request_id"`

	// TextContent is the generated story. Empty iff Success is false.
	TextContent string `json:"text_content"`

	// TextModel is the model that produced TextContent.
	TextModel string `json:"text_model"`

	// TextUsage carries token counts and cost (see PriceTable.UsageMetadata).
	TextUsage map[string]any `json:"text_usage,omitempty"`

	// TextAttempts is the trail of text-generation tries. Kept separate from
	// Attempts: a text failure aborts the request before any voice provider
	// is dialled.
	TextAttempts []Attempt `json:"text_attempts,omitempty"`

	// AudioBytes is the narrated audio. Nil when every voice provider failed
	// or none was available — audio is best-effort.
	AudioBytes []byte `json:"-"`

	// AudioProvider names the provider that produced AudioBytes.
	// Set if and only if AudioBytes is present.
	AudioProvider string `json:"audio_provider,omitempty"`

	// AudioMetadata carries synthesis provenance (text length sent, language,
	// voice, provider-specific fields).
	AudioMetadata map[string]any `json:"audio_metadata,omitempty"`

	// Attempts is the ordered voice-provider trail, one entry per provider
	// tried, successes and failures alike.
	Attempts []Attempt `json:"attempts"`

	// Success reports whether text generation succeeded. Audio failures do
	// not flip it: text is the mandatory deliverable, audio an enhancement.
	Success bool `json:"success"`

	// ErrorMessage describes the fatal failure. Set iff Success is false.
	ErrorMessage string `json:"error_message,omitempty"`
}

// AudioPresent reports whether the outcome carries narrated audio.
func (o *Outcome) AudioPresent() bool {
	return len(o.AudioBytes) > 0
}

// Validate checks the outcome's structural invariants. The orchestrator
// validates every outcome before returning it; a failure here is a bug, not
// a runtime condition.
func (o *Outcome) Validate() error {
	var errs []error
	if o.AudioPresent() != (o.AudioProvider != "") {
		errs = append(errs, fmt.Errorf(
			"story: audio provider %q set does not match audio presence %t",
			o.AudioProvider, o.AudioPresent()))
	}
	if !o.Success {
		if o.TextContent != "" || o.AudioPresent() {
			errs = append(errs, errors.New("story: failed outcome must carry neither text nor audio"))
		}
		if o.ErrorMessage == "" {
			errs = append(errs, errors.New("story: failed outcome must carry an error message"))
		}
	}
	for i, a := range o.Attempts {
		if a.Succeeded && a.ErrorKind != "" {
			errs = append(errs, fmt.Errorf("story: attempt %d succeeded but has error kind %q", i, a.ErrorKind))
		}
		if !a.Succeeded && a.ErrorKind == "" {
			errs = append(errs, fmt.Errorf("story: attempt %d failed without an error kind", i))
		}
	}
	return errors.Join(errs...)
}
