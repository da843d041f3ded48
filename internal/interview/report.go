package interview

import "math"

// Report summarises a reviewed session.
type Report struct {
	SessionID string `json:"sessionId"`

	// Questions is the number of questions asked.
	Questions int `json:"questions"`

	// Answered counts questions with a non-empty answer.
	Answered int `json:"answered"`

	// FeedbackReady, FeedbackFailed and FeedbackNone count questions by
	// feedback status. FeedbackNone covers questions that were never sent for
	// analysis, as opposed to FeedbackFailed.
	FeedbackReady  int `json:"feedbackReady"`
	FeedbackFailed int `json:"feedbackFailed"`
	FeedbackNone   int `json:"feedbackNone"`

	// Averages over questions with feedback. Zero when none have feedback.
	AverageRelevance         float64 `json:"averageRelevance"`
	AverageStarMethod        float64 `json:"averageStarMethod"`
	AverageClarityConfidence float64 `json:"averageClarityConfidence"`
	AverageWordsPerMinute    float64 `json:"averageWordsPerMinute"`

	// TotalFillerWords sums the filler counts reported in feedback.
	TotalFillerWords int `json:"totalFillerWords"`

	// TotalSpeakingSeconds sums the capture windows of all answers.
	TotalSpeakingSeconds float64 `json:"totalSpeakingSeconds"`
}

// BuildReport computes the report for s, which must be in REVIEWING.
func BuildReport(s Snapshot) (Report, error) {
	if s.Phase != PhaseReviewing {
		return Report{}, &TransitionError{Action: "view report", Phase: s.Phase}
	}

	r := Report{SessionID: s.SessionID, Questions: len(s.Questions)}
	var rel, star, clarity, wpm int
	for _, q := range s.Questions {
		if q.Answer != nil {
			r.TotalSpeakingSeconds += q.Answer.Duration.Seconds()
			if q.Answer.Text != "" {
				r.Answered++
			}
		}
		switch q.FeedbackStatus {
		case FeedbackReady:
			r.FeedbackReady++
		case FeedbackFailed:
			r.FeedbackFailed++
		default:
			r.FeedbackNone++
		}
		if fb := q.Feedback; fb != nil {
			rel += fb.Relevance.Score
			star += fb.StarMethod.Score
			clarity += fb.ClarityConfidence.Score
			wpm += fb.Pace.WordsPerMinute
			r.TotalFillerWords += fb.FillerWords.Count
		}
	}
	if n := r.FeedbackReady; n > 0 {
		r.AverageRelevance = average(rel, n)
		r.AverageStarMethod = average(star, n)
		r.AverageClarityConfidence = average(clarity, n)
		r.AverageWordsPerMinute = average(wpm, n)
	}
	return r, nil
}

// average returns sum/n rounded to two decimals.
func average(sum, n int) float64 {
	return math.Round(float64(sum)/float64(n)*100) / 100
}
