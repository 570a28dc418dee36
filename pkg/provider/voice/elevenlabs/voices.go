package elevenlabs

import (
	"strings"

	"github.com/fablecast/fablecast/pkg/provider/voice"
)

// languageNames maps ISO 639-1 codes to the English language names that
// appear in ElevenLabs voice labels and display names.
var languageNames = map[string]string{
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"de": "german",
	"it": "italian",
	"pt": "portuguese",
	"pl": "polish",
	"hi": "hindi",
	"ar": "arabic",
	"zh": "chinese",
	"ja": "japanese",
	"ko": "korean",
	"nl": "dutch",
	"tr": "turkish",
	"sv": "swedish",
	"cs": "czech",
	"ro": "romanian",
	"uk": "ukrainian",
}

// selectVoice scans the catalogue for a voice matching language, checking in
// order: explicit language labels, language tokens embedded in the display
// name, then any language code recorded in the voice settings. The returned
// selection string names which rule matched.
//
// The precedence is a heuristic inherited from the original service: a label
// or name-token hit is trusted without verifying the voice actually narrates
// that language well, so a wrong-language voice can win before the hardcoded
// default applies. Kept as-is for compatibility.
func selectVoice(voices []voice.Voice, language string) (id, selection string, ok bool) {
	lang := strings.ToLower(strings.TrimSpace(language))
	if lang == "" {
		return "", "", false
	}
	name := languageNames[lang]

	// 1. Explicit language labels.
	for _, v := range voices {
		for key, val := range v.Labels {
			if !strings.Contains(strings.ToLower(key), "language") {
				continue
			}
			val = strings.ToLower(val)
			if val == lang || (name != "" && val == name) {
				return v.ID, "label", true
			}
		}
	}

	// 2. Language tokens in the display name.
	for _, v := range voices {
		for _, tok := range strings.FieldsFunc(strings.ToLower(v.Name), isNameSeparator) {
			if tok == lang || (name != "" && tok == name) {
				return v.ID, "name", true
			}
		}
	}

	// 3. Language code recorded in voice settings.
	for _, v := range voices {
		for key, val := range v.Settings {
			key = strings.ToLower(key)
			if key != "language" && key != "language_code" {
				continue
			}
			if strings.EqualFold(val, lang) {
				return v.ID, "settings", true
			}
		}
	}

	return "", "", false
}

// isNameSeparator splits display names like "Mia (Spanish storyteller)".
func isNameSeparator(r rune) bool {
	switch r {
	case ' ', '-', '_', '(', ')', ',', '.', '/':
		return true
	}
	return false
}
