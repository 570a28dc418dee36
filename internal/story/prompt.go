package story

import (
	"fmt"
	"strings"
)

// Profile describes the child the story is narrated for. Only the fields
// that shape the prompt are carried here; account data lives elsewhere.
type Profile struct {
	// Name is the child's first name, woven into the story.
	Name string

	// Age in years steers vocabulary and sentence length.
	Age int

	// Interests lists things the child likes (animals, space, pirates, …).
	Interests []string
}

// PromptBuilder turns request parameters into the full model prompt.
// Implementations must be safe for concurrent use.
type PromptBuilder interface {
	Build(profile Profile, theme string, lengthMinutes int, language string) string
}

// StoryPromptBuilder is the default [PromptBuilder]: a bedtime-story prompt
// with an approximate word budget derived from the requested narration
// length.
type StoryPromptBuilder struct{}

// Compile-time interface assertion.
var _ PromptBuilder = StoryPromptBuilder{}

// wordsPerMinute approximates a calm narration pace.
const wordsPerMinute = 130

// Build implements PromptBuilder.
func (StoryPromptBuilder) Build(profile Profile, theme string, lengthMinutes int, language string) string {
	if lengthMinutes <= 0 {
		lengthMinutes = 5
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a bedtime story of roughly %d words", lengthMinutes*wordsPerMinute)
	if theme != "" {
		fmt.Fprintf(&b, " about %s", theme)
	}
	b.WriteString(".")

	if profile.Name != "" {
		fmt.Fprintf(&b, " The hero of the story is a child called %s", profile.Name)
		if profile.Age > 0 {
			fmt.Fprintf(&b, ", aged %d", profile.Age)
		}
		b.WriteString(".")
	}
	if len(profile.Interests) > 0 {
		fmt.Fprintf(&b, " Weave in things they love: %s.", strings.Join(profile.Interests, ", "))
	}
	if language != "" {
		fmt.Fprintf(&b, " Write the whole story in the language with ISO code %q.", language)
	}
	b.WriteString(" Use warm, simple language suitable for reading aloud," +
		" end gently, and do not include a title or headings.")
	return b.String()
}
