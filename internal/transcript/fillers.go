package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const defaultHesitationThreshold = 0.78

// hesitations are canonical hesitation markers in squeezed form.
var hesitations = []string{"um", "uh", "er", "ah", "eh", "erm", "uhm", "hm", "mhm"}

// discourseFillers are multi-purpose words and phrases commonly used as
// verbal padding. Each entry is a token sequence.
var discourseFillers = [][]string{
	{"you", "know"},
	{"y'know"},
	{"i", "mean"},
	{"kind", "of"},
	{"sort", "of"},
	{"basically"},
	{"literally"},
	{"actually"},
}

// hesitationLetters bounds the alphabet of fuzzy hesitation candidates.
const hesitationLetters = "uhmera"

// realWords are short words spelled only with hesitation letters.
var realWords = map[string]struct{}{
	"a": {}, "am": {}, "are": {}, "ear": {}, "era": {}, "her": {}, "he": {}, "me": {},
	"ham": {}, "hem": {}, "arm": {}, "rue": {}, "hue": {}, "ha": {}, "ma": {}, "re": {},
	"ra": {}, "mar": {}, "ram": {}, "rum": {}, "hum": {}, "emu": {}, "mae": {}, "ur": {},
	"mu": {}, "em": {},
}

// FillerOption configures a FillerDetector.
type FillerOption func(*FillerDetector)

// WithHesitationThreshold sets the minimum Jaro-Winkler score for a short
// unknown token to count as a hesitation. Default: 0.78.
func WithHesitationThreshold(threshold float64) FillerOption {
	return func(d *FillerDetector) {
		d.threshold = threshold
	}
}

// WithExtraFillers adds phrases (space separated) to the discourse lexicon.
func WithExtraFillers(phrases ...string) FillerOption {
	return func(d *FillerDetector) {
		for _, p := range phrases {
			if toks := Tokens(p); len(toks) > 0 {
				d.phrases = append(d.phrases, toks)
			}
		}
	}
}

// FillerDetector finds filler words in transcribed speech. It is read-only
// after construction and safe for concurrent use.
type FillerDetector struct {
	threshold float64
	hes       map[string]struct{}
	phrases   [][]string
}

// NewFillerDetector returns a detector with the built-in lexicon.
func NewFillerDetector(opts ...FillerOption) *FillerDetector {
	d := &FillerDetector{
		threshold: defaultHesitationThreshold,
		hes:       make(map[string]struct{}, len(hesitations)),
		phrases:   append([][]string(nil), discourseFillers...),
	}
	for _, h := range hesitations {
		d.hes[h] = struct{}{}
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Find returns every filler occurrence in text, in order of appearance.
// Hesitations are reported in canonical form ("ummm" is reported as "um");
// phrases are reported as written in the lexicon.
func (d *FillerDetector) Find(text string) []string {
	tokens := Tokens(text)
	var found []string
	for i := 0; i < len(tokens); {
		if h, ok := d.hesitation(tokens[i]); ok {
			found = append(found, h)
			i++
			continue
		}
		if n := d.phraseAt(tokens, i); n > 0 {
			found = append(found, strings.Join(tokens[i:i+n], " "))
			i += n
			continue
		}
		i++
	}
	return found
}

// hesitation reports whether token is a hesitation marker and returns its
// canonical spelling.
func (d *FillerDetector) hesitation(token string) (string, bool) {
	s := squeeze(token)
	if _, ok := d.hes[s]; ok {
		return s, true
	}
	if len(s) < 2 || len(s) > 3 || strings.Trim(s, hesitationLetters) != "" {
		return "", false
	}
	if _, ok := realWords[s]; ok {
		return "", false
	}
	best, score := "", 0.0
	for _, h := range hesitations {
		if jw := matchr.JaroWinkler(s, h, false); jw > score {
			best, score = h, jw
		}
	}
	if score >= d.threshold {
		return best, true
	}
	return "", false
}

// phraseAt returns the length of the longest lexicon phrase starting at
// tokens[i], or 0.
func (d *FillerDetector) phraseAt(tokens []string, i int) int {
	longest := 0
	for _, p := range d.phrases {
		if len(p) <= longest || i+len(p) > len(tokens) {
			continue
		}
		match := true
		for j, w := range p {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			longest = len(p)
		}
	}
	return longest
}
