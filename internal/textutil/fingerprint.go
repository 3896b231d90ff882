package textutil

import (
	"math"
	"strings"
	"unicode"
)

// Fingerprint is a term-frequency vector over a text's tokens.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint builds a fingerprint from text. Returns nil when the text has
// no usable tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var sum float64
	for _, count := range counts {
		sum += count * count
	}
	return &Fingerprint{tokens: counts, norm: math.Sqrt(sum)}
}

// Tokenize lowercases text and splits it on anything that is not a letter or
// digit. Tokens shorter than three runes and song-structure tags such as
// [verse] are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(stripSectionTags(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := fields[:0]
	for _, token := range fields {
		if len([]rune(token)) >= 3 {
			terms = append(terms, token)
		}
	}
	return terms
}

func stripSectionTags(text string) string {
	var b strings.Builder
	depth := 0
	for _, r := range text {
		switch {
		case r == '[':
			depth++
		case r == ']' && depth > 0:
			depth--
			b.WriteByte(' ')
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TokenCount returns the number of distinct tokens.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// CosineSimilarity compares two fingerprints. Returns 0 when either is nil.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		dot += count * b.tokens[token]
	}
	return dot / (a.norm * b.norm)
}

// MaxSimilarity returns the highest similarity between text and any of
// others, along with the index of that entry (-1 when none compare).
func MaxSimilarity(text string, others []string) (float64, int) {
	fp := NewFingerprint(text)
	best, at := 0.0, -1
	for i, other := range others {
		if score := CosineSimilarity(fp, NewFingerprint(other)); score > best {
			best, at = score, i
		}
	}
	return best, at
}
