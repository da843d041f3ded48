// Package phonetic matches misheard words against a list of known keywords
// using Double Metaphone encoding combined with Jaro-Winkler similarity.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     the input and for each keyword. If any code from the input overlaps
//     with any code from a keyword, the keyword becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the keyword with the
//     highest Jaro-Winkler similarity (case-insensitive) is selected,
//     provided its score reaches the phonetic threshold.
//
//     When no phonetic candidate is found, a secondary pass tests pure
//     Jaro-Winkler similarity against all keywords using a higher fuzzy
//     threshold (default 0.85).
//
// Speech engines often split an unfamiliar term into several words
// ("post gress" for "Postgres"), so inputs and keywords are also compared
// with their spaces removed.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched keyword to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the matcher falls back to pure string
// similarity. Default: 0.85. A value above 1 disables the fallback.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is a phonetic keyword matcher. It is read-only after construction
// and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the keyword most similar to word.
//
// word may be a single word or a space-separated phrase. Multi-word inputs
// are also scored word by word, so "tower of wispers" matches a keyword that
// shares only one strong word. Use [Matcher.MatchPhrase] when the whole
// input must correspond to the keyword.
//
// When matched is false, corrected equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string, keywords []string) (corrected string, confidence float64, matched bool) {
	return m.match(word, keywords, true)
}

// MatchPhrase is like [Matcher.Match] but scores only the phrase as a whole,
// with and without spaces. A keyword never matches a phrase merely because
// one of the phrase's words resembles it, and keywords whose letter count
// differs from the phrase's by more than a third are skipped.
func (m *Matcher) MatchPhrase(phrase string, keywords []string) (corrected string, confidence float64, matched bool) {
	return m.match(phrase, keywords, false)
}

func (m *Matcher) match(word string, keywords []string, pairwise bool) (string, float64, bool) {
	if len(keywords) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)
	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		keyword  string
		score    float64
		phonetic bool
	}
	var best candidate

	for _, kw := range keywords {
		kwLower := strings.ToLower(strings.TrimSpace(kw))
		if kwLower == "" {
			continue
		}
		kwTokens := strings.Fields(kwLower)
		if !pairwise && !similarLength(wordTokens, kwTokens) {
			continue
		}

		phoneticMatch := codesOverlap(inputCodes, codesForTokens(kwTokens))
		score := bestJWScore(wordTokens, kwTokens, wordLower, kwLower, pairwise)

		if phoneticMatch {
			if score >= m.phoneticThreshold && (!best.phonetic || score > best.score) {
				best = candidate{keyword: kw, score: score, phonetic: true}
			}
		} else if !best.phonetic {
			if score >= m.fuzzyThreshold && score > best.score {
				best = candidate{keyword: kw, score: score}
			}
		}
	}

	if best.keyword != "" {
		return best.keyword, best.score, true
	}
	return word, 0, false
}

// similarLength reports whether the two token lists have letter counts
// within a third of each other.
func similarLength(a, b []string) bool {
	la, lb := len(strings.Join(a, "")), len(strings.Join(b, ""))
	if la > lb {
		la, lb = lb, la
	}
	return la*4 >= lb*3
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens and for their concatenation. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2+2)
	add := func(t string) {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	for _, t := range tokens {
		add(t)
	}
	if len(tokens) > 1 {
		add(strings.Join(tokens, ""))
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between input and
// keyword using up to three strategies:
//
//  1. Full-string comparison ("kuber netes" vs "kubernetes").
//  2. Space-stripped comparison ("kubernetes" from "kuber netes").
//  3. With pairwise set, the best score between any input word and any
//     keyword word.
func bestJWScore(inputTokens, kwTokens []string, inputFull, kwFull string, pairwise bool) float64 {
	score := matchr.JaroWinkler(inputFull, kwFull, false)

	if len(inputTokens) > 1 || len(kwTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(kwTokens, ""), false); s > score {
			score = s
		}
	}

	if pairwise {
		for _, it := range inputTokens {
			for _, kt := range kwTokens {
				if s := matchr.JaroWinkler(it, kt, false); s > score {
					score = s
				}
			}
		}
	}
	return score
}
