// Package transcript holds text utilities for spoken answers: word counting,
// tokenisation, and local detection of filler words.
//
// Speech-to-text engines spell hesitations inconsistently ("ummm", "uhh",
// "ehm"), so filler detection normalises elongated letters and falls back to
// Jaro-Winkler similarity for short hesitation-like tokens.
package transcript

import (
	"strings"
	"unicode"
)

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// Tokens lowercases text and splits it into word tokens. Anything that is not
// a letter, digit, or inner apostrophe separates tokens.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'’")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// squeeze collapses runs of the same rune: "ummmm" becomes "um".
func squeeze(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		if r != prev {
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}
