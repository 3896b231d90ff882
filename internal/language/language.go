package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Instrumental is the sentinel lyrics language for songs without vocals.
const Instrumental = "instrumental"

// Lyrics languages recognized by name in addition to BCP 47 / ISO 639 codes.
var named = []xlang.Tag{
	xlang.English, xlang.Spanish, xlang.French, xlang.German, xlang.Italian,
	xlang.Portuguese, xlang.Japanese, xlang.Korean, xlang.Chinese, xlang.Russian,
	xlang.Arabic, xlang.Hindi, xlang.Dutch, xlang.Polish, xlang.Swedish,
	xlang.Danish, xlang.Norwegian, xlang.Finnish, xlang.Turkish, xlang.Greek,
}

// ISO 639-2/B codes that differ from the terminology codes.
var bibliographic = map[string]string{
	"fre": "fr", "ger": "de", "dut": "nl", "chi": "zh", "gre": "el",
	"cze": "cs", "per": "fa", "rum": "ro", "slo": "sk", "wel": "cy",
}

var byName map[string]xlang.Tag

func init() {
	byName = make(map[string]xlang.Tag, len(named)*2)
	english := display.English.Tags()
	for _, tag := range named {
		byName[strings.ToLower(english.Name(tag))] = tag
		if self := display.Self.Name(tag); self != "" {
			byName[strings.ToLower(self)] = tag
		}
	}
}

// Parse resolves input to a language tag. It accepts BCP 47 tags, ISO 639-1
// and 639-2 codes (including bibliographic forms like "fre"), and English or
// native language names. ok is false for empty or unrecognized input.
func Parse(input string) (xlang.Tag, bool) {
	value := strings.ToLower(strings.TrimSpace(input))
	if value == "" {
		return xlang.Und, false
	}
	if tag, found := byName[value]; found {
		return tag, true
	}
	if code, found := bibliographic[value]; found {
		value = code
	}
	tag, err := xlang.Parse(value)
	if err != nil || tag == xlang.Und {
		return xlang.Und, false
	}
	return tag, true
}

// Normalize returns the canonical tag string for input ("english" -> "en",
// "PT_br" -> "pt-BR"). Instrumental passes through. Unrecognized input
// yields "".
func Normalize(input string) string {
	if IsInstrumental(input) {
		return Instrumental
	}
	tag, ok := Parse(strings.ReplaceAll(input, "_", "-"))
	if !ok {
		return ""
	}
	return tag.String()
}

// IsInstrumental reports whether input asks for a song without vocals.
func IsInstrumental(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case Instrumental, "none", "no vocals":
		return true
	}
	return false
}

// DisplayName returns the English name of input's language, e.g. "French"
// for "fr" or "Brazilian Portuguese" for "pt-BR". Unrecognized input is
// returned trimmed.
func DisplayName(input string) string {
	if IsInstrumental(input) {
		return "Instrumental"
	}
	tag, ok := Parse(strings.ReplaceAll(input, "_", "-"))
	if !ok {
		return strings.TrimSpace(input)
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}
