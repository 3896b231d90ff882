package songmeta

import (
	"fmt"
	"strings"

	"songflow/internal/language"
)

const systemPrompt = `You are a songwriter and music producer writing one original song at a time.
Respond with a single JSON object and nothing else, using exactly these keys:
  "title": short song title
  "artist": a fictional artist name that fits the style
  "genre": primary genre
  "subgenre": more specific style
  "lyrics": full lyrics with section tags on their own lines ([verse], [chorus], [bridge], [outro]); "[instrumental]" for songs without vocals
  "caption": comma-separated production tags for an audio model (instruments, mood, vocal type, tempo feel)
  "cover_prompt": one-sentence description of album cover art, no text or lettering in the image
  "bpm": integer tempo
  "key_scale": key and mode, e.g. "A minor"
  "time_signature": e.g. "4/4"
  "duration": length in seconds
Respect every constraint the user gives. Never reuse a title from the list of recent songs.`

// BuildUserPrompt renders the per-song request sent alongside the system
// prompt.
func BuildUserPrompt(req Request) string {
	var b strings.Builder
	if req.Interrupt {
		fmt.Fprintf(&b, "The listener asked for this next song: %s\n", strings.TrimSpace(req.Prompt))
	} else {
		fmt.Fprintf(&b, "Session theme: %s\n", strings.TrimSpace(req.Prompt))
	}

	var constraints []string
	p := req.Params
	if p.BPM > 0 {
		constraints = append(constraints, fmt.Sprintf("tempo %d BPM", p.BPM))
	}
	if p.KeyScale != "" {
		constraints = append(constraints, "key "+p.KeyScale)
	}
	if p.TimeSignature != "" {
		constraints = append(constraints, "time signature "+p.TimeSignature)
	}
	if p.AudioDurationSeconds > 0 {
		constraints = append(constraints, fmt.Sprintf("about %d seconds long", p.AudioDurationSeconds))
	}
	if lang := strings.TrimSpace(p.LyricsLanguage); lang != "" {
		if language.IsInstrumental(lang) {
			constraints = append(constraints, "instrumental, no vocals")
		} else {
			constraints = append(constraints, "lyrics in "+language.DisplayName(lang))
		}
	}
	if len(constraints) > 0 {
		fmt.Fprintf(&b, "Constraints: %s\n", strings.Join(constraints, "; "))
	}

	if len(req.Recent) > 0 {
		b.WriteString("Recent songs in this session (make this one feel fresh):\n")
		for _, song := range req.Recent {
			fmt.Fprintf(&b, "- %q", song.Title)
			if song.Genre != "" {
				fmt.Fprintf(&b, " (%s)", song.Genre)
			}
			b.WriteByte('\n')
		}
	}
	if req.avoid != "" {
		fmt.Fprintf(&b, "Your previous draft repeated the lyrics of %q. Write clearly different lyrics and a different title.\n", req.avoid)
	}
	return strings.TrimSpace(b.String())
}
