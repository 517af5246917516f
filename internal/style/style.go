// Package style provides the static catalogue of music video styles and the
// prompt builder used to record a descriptive prompt on each generated video.
// Everything here is a pure lookup: no I/O, no failure modes beyond
// "unknown key returns a default value".
package style

import "strings"

// Style describes one entry in the style catalogue.
type Style struct {
	// Key is the stable machine identifier for the style.
	Key string `json:"key"`
	// Label is the human-readable name shown in pickers.
	Label string `json:"label"`
	// DefaultPrompt is the prompt text used when a video does not
	// provide its own style description.
	DefaultPrompt string `json:"default_prompt"`
}

// Placeholder values recorded when a video carries no lyrics or extra
// instructions. Kept stable so PromptUsed stays deterministic.
const (
	NoLyricsPlaceholder = "No lyrics provided."
	NoExtraPlaceholder  = "No additional instructions."
)

// catalogue is the ordered list of supported styles.
var catalogue = []Style{
	{
		Key:           "lyric_simple",
		Label:         "Simple Lyric Video",
		DefaultPrompt: "Generate a video where the lyrics of the song appear centered on screen over a clean background. Use smooth fade transitions for each line. Music must be synced to text duration.",
	},
	{
		Key:           "karaoke",
		Label:         "Karaoke Style",
		DefaultPrompt: "Create a karaoke-style video where lyrics appear word-by-word and highlight in yellow while singing. Add a bouncing ball effect if possible.",
	},
	{
		Key:           "motion_graphic",
		Label:         "Abstract Motion Graphics",
		DefaultPrompt: "Generate a music video with animated abstract shapes reacting to the beat. Use pulsing neon colors that match the frequency peaks of the music.",
	},
	{
		Key:           "dark_emotional",
		Label:         "Dark Emotional",
		DefaultPrompt: "Make a music video with slow camera motion, dark tones, deep shadows, rain ambiance, glitch text transitions and emotional mood.",
	},
	{
		Key:           "romantic",
		Label:         "Romantic",
		DefaultPrompt: "Generate a romantic lyric video with soft pink tones, bokeh lights, smooth slow zooms and handwritten-style typography animations.",
	},
	{
		Key:           "rap_hiphop",
		Label:         "Rap / Hip-Hop",
		DefaultPrompt: "Create a fast-cut hip-hop music video with graffiti-style motion graphics, bass-reactive typography, camera shake and high BPM sync.",
	},
	{
		Key:           "cyberpunk",
		Label:         "Cyberpunk / Neon City",
		DefaultPrompt: "Build a music video with neon city visuals, rainy streets, hologram-like lyrics, purple-blue color scheme and techno beat pulsing lights.",
	},
	{
		Key:           "ai_surreal",
		Label:         "AI Surreal / Abstract",
		DefaultPrompt: "Generate a music video using AI surreal visuals: abstract, dream-like, hallucination-style motion synced with the song.",
	},
	{
		Key:           "cinematic",
		Label:         "Epic Cinematic",
		DefaultPrompt: "Create a cinematic music video with dramatic lighting, slow motion shots, deep bass hits, gold typography and light flare effects.",
	},
	{
		Key:           "landscape",
		Label:         "Nature Landscape",
		DefaultPrompt: "Use landscape footage (mountains, oceans, forests) with soft dissolves and poetic typography. Calm and atmospheric background.",
	},
	{
		Key:           "party_edm",
		Label:         "EDM / Party",
		DefaultPrompt: "Generate an energetic EDM party video with multi-color strobe lights, strong beat flashes, rotating text, zoom transitions and glitch effects.",
	},
	{
		Key:           "ai_avatar",
		Label:         "AI Avatar Performance",
		DefaultPrompt: "Generate a video with an AI avatar performing the song, approximate lip-sync, dynamic camera movements and soft bloom highlights.",
	},
}

// All returns the full style catalogue in declaration order.
func All() []Style {
	out := make([]Style, len(catalogue))
	copy(out, catalogue)
	return out
}

// ByKey returns the style for the given key and whether it exists.
func ByKey(key string) (Style, bool) {
	for _, s := range catalogue {
		if s.Key == key {
			return s, true
		}
	}
	return Style{}, false
}

// Label returns the human-readable label for a style key.
// Unknown keys return the key itself so cosmetic metadata never fails.
func Label(key string) string {
	if s, ok := ByKey(key); ok {
		return s.Label
	}
	return key
}

// DefaultPrompt returns the default prompt text for a style key,
// or an empty string for unknown keys.
func DefaultPrompt(key string) string {
	if s, ok := ByKey(key); ok {
		return s.DefaultPrompt
	}
	return ""
}

// PromptInput carries the fields combined into the final recorded prompt.
type PromptInput struct {
	// StyleKey selects the style label and default description.
	StyleKey string
	// StylePrompt overrides the style's default prompt when non-empty.
	StylePrompt string
	// Lyrics is the song text, possibly empty.
	Lyrics string
	// Extra holds free-text instructions, possibly empty.
	Extra string
}

// BuildFinalPrompt produces the descriptive prompt recorded alongside a
// generated video. The output is a deterministic concatenation: identical
// inputs always yield byte-identical output. No generative model is invoked.
func BuildFinalPrompt(in PromptInput) string {
	desc := in.StylePrompt
	if desc == "" {
		desc = DefaultPrompt(in.StyleKey)
	}
	lyrics := in.Lyrics
	if lyrics == "" {
		lyrics = NoLyricsPlaceholder
	}
	extra := in.Extra
	if extra == "" {
		extra = NoExtraPlaceholder
	}

	parts := []string{
		"Music video style: " + Label(in.StyleKey),
		"",
		"Style description:",
		desc,
		"",
		"Lyrics:",
		lyrics,
		"",
		"Extra instructions:",
		extra,
	}
	return strings.Join(parts, "\n")
}
