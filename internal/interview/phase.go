package interview

import "fmt"

// Phase is the discrete lifecycle stage of an interview session.
type Phase int

const (
	// PhaseNotStarted is the initial phase and the target of every reset.
	PhaseNotStarted Phase = iota

	// PhaseGettingJobDesc waits for the user to type a job description.
	PhaseGettingJobDesc

	// PhaseGeneratingQuestions waits for the question list.
	PhaseGeneratingQuestions

	// PhaseInterviewing presents one question at a time and captures answers.
	PhaseInterviewing

	// PhaseAwaitingFeedback runs the feedback pipeline over the answers.
	PhaseAwaitingFeedback

	// PhaseReviewing shows the finished feedback.
	PhaseReviewing
)

var phaseNames = [...]string{
	PhaseNotStarted:          "NOT_STARTED",
	PhaseGettingJobDesc:      "GETTING_JOB_DESC",
	PhaseGeneratingQuestions: "GENERATING_QUESTIONS",
	PhaseInterviewing:        "INTERVIEWING",
	PhaseAwaitingFeedback:    "AWAITING_FEEDBACK",
	PhaseReviewing:           "REVIEWING",
}

// String returns the upper-snake name of p.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalText implements [encoding.TextMarshaler].
func (p Phase) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(phaseNames) {
		return nil, fmt.Errorf("interview: unknown phase %d", int(p))
	}
	return []byte(phaseNames[p]), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("interview: unknown phase %q", text)
}
