package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/interviewcoach/internal/transcript/phonetic"
)

// defaultCorrectionThreshold is the minimum phonetic score for replacing
// spoken words with a keyword.
const defaultCorrectionThreshold = 0.80

// Correction captures a single substitution made by a [Corrector].
type Correction struct {
	// Original is the text as produced by the speech engine.
	Original string

	// Corrected is the keyword that replaced it.
	Corrected string

	// Confidence is the similarity score of the substitution (0.0–1.0).
	Confidence float64
}

// PhraseMatcher resolves a spoken phrase to a known keyword. It must be safe
// for concurrent use.
type PhraseMatcher interface {
	// MatchPhrase returns the keyword the whole phrase most likely stands
	// for. When matched is false, corrected equals phrase.
	MatchPhrase(phrase string, keywords []string) (corrected string, confidence float64, matched bool)
}

var _ PhraseMatcher = (*phonetic.Matcher)(nil)

// CorrectorOption configures a [Corrector].
type CorrectorOption func(*Corrector)

// WithPhraseMatcher replaces the default phonetic matcher.
func WithPhraseMatcher(m PhraseMatcher) CorrectorOption {
	return func(c *Corrector) {
		c.matcher = m
	}
}

// Corrector fixes speech-to-text misspellings of domain keywords such as
// product names and technologies. The recogniser is already biased towards
// the keywords, but unfamiliar terms still come back split or misspelled
// ("post gress", "kubernetis"). Corrector is read-only after construction
// and safe for concurrent use.
type Corrector struct {
	keywords []string
	maxWords int
	matcher  PhraseMatcher
}

// NewCorrector returns a Corrector for keywords. Blank keywords are ignored.
// By default only phonetically similar phrases are replaced; plain spelling
// similarity is not enough ("doctor" never becomes "Docker").
func NewCorrector(keywords []string, opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		matcher: phonetic.New(
			phonetic.WithPhoneticThreshold(defaultCorrectionThreshold),
			phonetic.WithFuzzyThreshold(2),
		),
	}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		c.keywords = append(c.keywords, k)
		if n := len(strings.Fields(k)); n > c.maxWords {
			c.maxWords = n
		}
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Keywords returns the keywords the corrector restores.
func (c *Corrector) Keywords() []string {
	return c.keywords
}

// Correct replaces misheard keywords in text and reports each substitution.
//
// At each word position, phrases from one word longer than the longest
// keyword down to a single word are tried, so a keyword split into extra
// words by the recogniser is still found and longer matches take precedence.
// A phrase is only replaced when it stops matching after dropping its first
// or last word, which keeps neighbouring words out of the substitution.
// Punctuation around a replaced phrase is preserved. Text without
// substitutions is returned unchanged.
func (c *Corrector) Correct(text string) (string, []Correction) {
	if len(c.keywords) == 0 {
		return text, nil
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	var (
		out         []string
		corrections []Correction
	)
	for i := 0; i < len(tokens); {
		maxN := min(c.maxWords+1, len(tokens)-i)
		matched := false
		for n := maxN; n >= 1; n-- {
			window := tokens[i : i+n]
			lead, phrase, trail := stripPunct(window)
			kw, conf, ok := c.match(phrase)
			if !ok {
				continue
			}
			if n > 1 && (c.matchesAs(window[:n-1], kw) || c.matchesAs(window[1:], kw)) {
				continue
			}
			if phrase != kw {
				corrections = append(corrections, Correction{Original: phrase, Corrected: kw, Confidence: conf})
			}
			out = append(out, lead+kw+trail)
			i += n
			matched = true
			break
		}
		if !matched {
			out = append(out, tokens[i])
			i++
		}
	}
	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(out, " "), corrections
}

func (c *Corrector) match(phrase string) (string, float64, bool) {
	if phrase == "" {
		return "", 0, false
	}
	return c.matcher.MatchPhrase(phrase, c.keywords)
}

// matchesAs reports whether window on its own matches keyword.
func (c *Corrector) matchesAs(window []string, keyword string) bool {
	_, phrase, _ := stripPunct(window)
	kw, _, ok := c.match(phrase)
	return ok && kw == keyword
}

// stripPunct joins window with spaces and splits off punctuation before the
// first letter or digit and after the last one.
func stripPunct(window []string) (lead, phrase, trail string) {
	s := strings.Join(window, " ")
	isWord := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
	start := strings.IndexFunc(s, isWord)
	if start < 0 {
		return s, "", ""
	}
	end := strings.LastIndexFunc(s, isWord)
	_, size := utf8.DecodeRuneInString(s[end:])
	end += size
	return s[:start], s[start:end], s[end:]
}
