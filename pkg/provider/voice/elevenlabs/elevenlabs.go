// Package elevenlabs provides an ElevenLabs-backed voice provider using the
// ElevenLabs streaming WebSocket API for synthesis and the REST API for the
// voice catalogue. It implements the voice.Provider interface.
//
// The network client is constructed lazily on first use rather than at
// registration, so registering the provider without credentials does not
// trigger any network or credential validation at startup.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/sync/singleflight"

	"github.com/fablecast/fablecast/pkg/provider/voice"
)

// Name is the registry key for this provider.
const Name = "elevenlabs"

const (
	wsEndpointFmt  = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	voicesEndpoint = "https://api.elevenlabs.io/v1/voices"
	defaultModel   = "eleven_multilingual_v2"
	defaultFormat  = "mp3_44100_128"

	// maxTextLength mirrors the ElevenLabs per-request character limit.
	maxTextLength = 5000

	// defaultCallTimeout bounds each remote call (catalogue fetch or full
	// synthesis stream). A timed-out call is a normal failure to the caller.
	defaultCallTimeout = 60 * time.Second

	// voicesCacheTTL is how long a fetched voice catalogue is reused before
	// the next ListVoices triggers a fresh fetch.
	voicesCacheTTL = 5 * time.Minute
)

// fallbackVoiceID is used when no catalogue voice matches the requested
// language, so synthesis never fails purely for missing language coverage.
// It is the ElevenLabs "Rachel" narration voice.
const fallbackVoiceID = "21m00Tcm4TlvDq8ikWAM"

// Narration settings tuned for children's story content: high stability and
// similarity for a calm, consistent read with a little expressiveness.
const (
	narrationStability  = 0.65
	narrationSimilarity = 0.80
	narrationStyle      = 0.25
)

// supportedLanguages is the fixed catalogue of languages the multilingual
// model narrates. It is static metadata, independent of any runtime call.
var supportedLanguages = []string{
	"en", "es", "fr", "de", "it", "pt", "pl", "hi", "ar",
	"zh", "ja", "ko", "nl", "tr", "sv", "cs", "ro", "uk",
}

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_multilingual_v2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "mp3_44100_128",
// "pcm_16000").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithCallTimeout sets the per-remote-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.callTimeout = d
	}
}

// Provider implements voice.Provider backed by the ElevenLabs API.
//
// All methods are safe for concurrent use.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	callTimeout  time.Duration

	// The HTTP client is built on first use, not at construction.
	clientOnce sync.Mutex
	httpClient *http.Client

	// Voice catalogue cache; concurrent fetches are collapsed.
	voicesGroup singleflight.Group
	voicesMu    sync.Mutex
	voices      []voice.Voice
	voicesAt    time.Time
}

// Compile-time interface assertion.
var _ voice.Provider = (*Provider)(nil)

// New creates an ElevenLabs Provider. An empty apiKey is accepted: the
// provider registers fine but reports itself unavailable via
// ValidateConfiguration until a key is present.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultFormat,
		callTimeout:  defaultCallTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Descriptor implements voice.Provider.
func (p *Provider) Descriptor() voice.Descriptor {
	return voice.Descriptor{
		Name:              Name,
		DisplayName:       "ElevenLabs",
		SupportsStreaming: true,
		MaxTextLength:     maxTextLength,
		SupportedFormats:  []string{"mp3_44100_128", "mp3_22050_32", "pcm_16000", "pcm_24000"},
	}
}

// ValidateConfiguration implements voice.Provider. It reports true only when
// an API key is present and the network client can be constructed. It never
// panics; construction failures are reported as false.
func (p *Provider) ValidateConfiguration() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if p.apiKey == "" {
		return false
	}
	return p.client() != nil
}

// client returns the lazily constructed HTTP client.
func (p *Provider) client() *http.Client {
	p.clientOnce.Lock()
	defer p.clientOnce.Unlock()
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: p.callTimeout}
	}
	return p.httpClient
}

// SupportedLanguages implements voice.Provider.
func (p *Provider) SupportedLanguages() []string {
	out := make([]string, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// ---- voice catalogue ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []apiVoice `json:"voices"`
}

// apiVoice is a single voice entry from the ElevenLabs API.
type apiVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
	Settings map[string]string `json:"fine_tuning_state,omitempty"`
}

// ListVoices implements voice.Provider. Results are cached briefly and
// concurrent fetches are collapsed into a single upstream request.
func (p *Provider) ListVoices(ctx context.Context) ([]voice.Voice, error) {
	p.voicesMu.Lock()
	if p.voices != nil && time.Since(p.voicesAt) < voicesCacheTTL {
		cached := make([]voice.Voice, len(p.voices))
		copy(cached, p.voices)
		p.voicesMu.Unlock()
		return cached, nil
	}
	p.voicesMu.Unlock()

	v, err, _ := p.voicesGroup.Do("voices", func() (any, error) {
		fetched, err := p.fetchVoices(ctx)
		if err != nil {
			return nil, err
		}
		p.voicesMu.Lock()
		p.voices = fetched
		p.voicesAt = time.Now()
		p.voicesMu.Unlock()
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	fetched := v.([]voice.Voice)
	out := make([]voice.Voice, len(fetched))
	copy(out, fetched)
	return out, nil
}

// fetchVoices performs the REST catalogue request.
func (p *Provider) fetchVoices(ctx context.Context) ([]voice.Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return convertVoices(vr.Voices), nil
}

// convertVoices maps API voice entries onto the provider-neutral type.
func convertVoices(in []apiVoice) []voice.Voice {
	out := make([]voice.Voice, 0, len(in))
	for _, v := range in {
		labels := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			labels[k] = val
		}
		if v.Category != "" {
			labels["category"] = v.Category
		}
		out = append(out, voice.Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Labels:   labels,
			Settings: v.Settings,
		})
	}
	return out
}

// ---- synthesis ----

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// narrationSettings returns the fixed tuning used for every synthesis call.
func narrationSettings() *voiceSettings {
	return &voiceSettings{
		Stability:       narrationStability,
		SimilarityBoost: narrationSimilarity,
		Style:           narrationStyle,
		UseSpeakerBoost: true,
	}
}

// boiMessage is the initial "begin of input" handshake payload.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// textMessage is the JSON payload for each text fragment. An empty Text
// flushes the stream.
type textMessage struct {
	Text string `json:"text"`
}

// audioResponse is a message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded audio chunk
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// GenerateSpeech implements voice.Provider. The voice is chosen as follows:
// an explicitly pinned opts.VoiceID wins; otherwise the catalogue is scanned
// for a language match (see selectVoice); otherwise the hardcoded fallback
// voice is used. Synthesis streams over the WebSocket API and the chunks are
// accumulated into one contiguous buffer.
func (p *Provider) GenerateSpeech(ctx context.Context, text, language string, opts voice.SynthesisOptions) (*voice.SpeechResult, error) {
	if text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}
	if len(text) > maxTextLength {
		return nil, fmt.Errorf("elevenlabs: text length %d exceeds limit %d", len(text), maxTextLength)
	}
	if p.apiKey == "" {
		return nil, errors.New("elevenlabs: api key not configured")
	}

	voiceID := opts.VoiceID
	selection := "explicit"
	if voiceID == "" {
		voiceID, selection = p.resolveVoice(ctx, language)
	}

	format := p.outputFormat
	if opts.OutputFormat != "" {
		format = opts.OutputFormat
	}

	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	audio, err := p.synthesize(ctx, text, voiceID, format)
	if err != nil {
		return nil, err
	}

	return &voice.SpeechResult{
		Audio:   audio,
		VoiceID: voiceID,
		Format:  format,
		Metadata: map[string]any{
			"text_length":     len(text),
			"language":        language,
			"provider":        Name,
			"format":          format,
			"model_id":        p.model,
			"voice_id":        voiceID,
			"voice_selection": selection,
		},
	}, nil
}

// resolveVoice scans the catalogue for a language match and reports how the
// voice was chosen. Catalogue errors degrade to the fallback voice rather
// than failing the synthesis.
func (p *Provider) resolveVoice(ctx context.Context, language string) (voiceID, selection string) {
	voices, err := p.ListVoices(ctx)
	if err != nil {
		return fallbackVoiceID, "fallback"
	}
	if id, how, ok := selectVoice(voices, language); ok {
		return id, how
	}
	return fallbackVoiceID, "fallback"
}

// synthesize opens the stream-input WebSocket, sends the whole text, flushes,
// and drains all audio chunks into a single buffer.
func (p *Provider) synthesize(ctx context.Context, text, voiceID, format string) ([]byte, error) {
	wsURL := fmt.Sprintf(wsEndpointFmt, voiceID, p.model, format)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: p.client(),
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// BOI: authenticate and pin the narration tuning for the whole stream.
	boi := boiMessage{
		Text:          " ", // the API requires a non-empty first text value
		VoiceSettings: narrationSettings(),
		XiAPIKey:      p.apiKey,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	msgBytes, _ := json.Marshal(textMessage{Text: text})
	if err := conn.Write(ctx, websocket.MessageText, msgBytes); err != nil {
		return nil, fmt.Errorf("elevenlabs: send text: %w", err)
	}
	flushBytes, _ := json.Marshal(textMessage{Text: ""})
	if err := conn.Write(ctx, websocket.MessageText, flushBytes); err != nil {
		return nil, fmt.Errorf("elevenlabs: send flush: %w", err)
	}

	var buf []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			// A normal closure after audio has arrived ends the stream.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && len(buf) > 0 {
				return buf, nil
			}
			return nil, fmt.Errorf("elevenlabs: read stream: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return nil, fmt.Errorf("elevenlabs: decode audio chunk: %w", err)
			}
			buf = append(buf, chunk...)
		}
		if resp.IsFinal {
			if len(buf) == 0 {
				return nil, fmt.Errorf("elevenlabs: stream produced no audio: %s", resp.Message)
			}
			return buf, nil
		}
	}
}
