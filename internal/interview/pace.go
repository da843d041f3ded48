package interview

import (
	"math"
	"time"

	"github.com/MrWong99/interviewcoach/internal/transcript"
)

// DefaultWordsPerMinute is the neutral speaking rate used when an answer's
// rate cannot be measured.
const DefaultWordsPerMinute = 150

// WordsPerMinute returns round(words / minutes) for answer spoken over d. When
// the answer is empty or d is not positive it returns fallback instead.
func WordsPerMinute(answer string, d time.Duration, fallback int) int {
	words := transcript.WordCount(answer)
	if words == 0 || d <= 0 {
		return fallback
	}
	return int(math.Round(float64(words) / d.Minutes()))
}
