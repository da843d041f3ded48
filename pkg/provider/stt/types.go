package stt

import (
	"strings"
	"time"
)

// Transcript is one recognition result. Partials and finals share the type;
// IsFinal tells them apart.
type Transcript struct {
	Text    string
	IsFinal bool

	// Confidence is in [0, 1]; zero when the engine does not report one.
	Confidence float64

	// Words carries per-word timing when the engine reports it.
	Words []WordDetail

	// Timestamp is the offset of the utterance from the start of the stream.
	Timestamp time.Duration
	Duration  time.Duration
}

// WordDetail is the timing of a single recognised word.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost biases recognition towards a term the engine would otherwise
// mishear, such as a technology named in the job description.
type KeywordBoost struct {
	Keyword string

	// Boost is engine specific. Deepgram treats it as an intensifier.
	Boost float64
}

// Boosts returns a unit boost for each non-blank keyword.
func Boosts(keywords []string) []KeywordBoost {
	out := make([]KeywordBoost, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, KeywordBoost{Keyword: k, Boost: 1})
		}
	}
	return out
}
