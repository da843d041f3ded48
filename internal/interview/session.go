package interview

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/interviewcoach/internal/analysis"
)

var (
	// ErrInvalidTransition is matched by every [*TransitionError].
	ErrInvalidTransition = errors.New("interview: invalid transition")

	// ErrSpeaking rejects starting capture while a question is being read out.
	ErrSpeaking = errors.New("interview: question playback in progress")

	// ErrStopped is returned by intents submitted after the orchestrator's
	// Run loop has exited.
	ErrStopped = errors.New("interview: orchestrator stopped")
)

// TransitionError reports an action that is not valid in the current phase.
type TransitionError struct {
	Action string
	Phase  Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("interview: cannot %s in phase %s", e.Action, e.Phase)
}

// Unwrap makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// FeedbackStatus tracks whether feedback was requested for a question and
// how that went.
type FeedbackStatus string

const (
	// FeedbackNone means feedback was never requested (no answer yet, or an
	// empty answer).
	FeedbackNone FeedbackStatus = "none"

	// FeedbackPending means the question is queued in the pipeline.
	FeedbackPending FeedbackStatus = "pending"

	// FeedbackReady means feedback is attached.
	FeedbackReady FeedbackStatus = "ready"

	// FeedbackFailed means the analysis call failed and feedback is absent.
	FeedbackFailed FeedbackStatus = "failed"
)

// Answer is the finalised transcript of one question together with the length
// of its capture window. Holding both in one value keeps them atomic.
type Answer struct {
	Text     string
	Duration time.Duration
}

// MarshalJSON renders the duration in seconds.
func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Text          string  `json:"text"`
		AudioDuration float64 `json:"audioDuration"`
	}{a.Text, a.Duration.Seconds()})
}

// Question is one prompt plus its answer and feedback lifecycle. Answer and
// Feedback are set at most once and never mutated afterwards.
type Question struct {
	ID             int                `json:"id"`
	Text           string             `json:"text"`
	Answer         *Answer            `json:"answer,omitempty"`
	Feedback       *analysis.Feedback `json:"feedback,omitempty"`
	FeedbackStatus FeedbackStatus     `json:"feedbackStatus"`
}

// Session is the root aggregate of one interview. Values are treated as
// immutable: every transition returns a new Session and never writes to the
// receiver's Questions backing array.
type Session struct {
	ID             uuid.UUID
	Phase          Phase
	JobDescription string
	Questions      []Question
	CurrentIndex   int

	// Notice is a one-time message for the user, set when question
	// generation fell back to the built-in list.
	Notice string
}

// newSession returns an empty session with a fresh ID.
func newSession() Session {
	return Session{ID: uuid.New(), Phase: PhaseNotStarted}
}

func (s Session) invalid(action string) error {
	return &TransitionError{Action: action, Phase: s.Phase}
}

// beginWithJobDescription moves NOT_STARTED to GETTING_JOB_DESC.
func (s Session) beginWithJobDescription() (Session, error) {
	if s.Phase != PhaseNotStarted {
		return s, s.invalid("begin with job description")
	}
	s.Phase = PhaseGettingJobDesc
	return s, nil
}

// withJobDescription replaces the job description while it is still being
// collected.
func (s Session) withJobDescription(text string) (Session, error) {
	if s.Phase != PhaseGettingJobDesc {
		return s, s.invalid("set job description")
	}
	s.JobDescription = strings.TrimSpace(text)
	return s, nil
}

// startGenerating moves NOT_STARTED or GETTING_JOB_DESC to
// GENERATING_QUESTIONS.
func (s Session) startGenerating() (Session, error) {
	if s.Phase != PhaseNotStarted && s.Phase != PhaseGettingJobDesc {
		return s, s.invalid("start interview")
	}
	s.Phase = PhaseGeneratingQuestions
	return s, nil
}

// withQuestions populates the question list with sequential IDs from 0 and
// enters INTERVIEWING at the first question.
func (s Session) withQuestions(texts []string, notice string) (Session, error) {
	if s.Phase != PhaseGeneratingQuestions {
		return s, s.invalid("set questions")
	}
	if len(texts) == 0 {
		return s, errors.New("interview: empty question list")
	}
	qs := make([]Question, len(texts))
	for i, t := range texts {
		qs[i] = Question{ID: i, Text: t, FeedbackStatus: FeedbackNone}
	}
	s.Questions = qs
	s.CurrentIndex = 0
	s.Notice = notice
	s.Phase = PhaseInterviewing
	return s, nil
}

// withAnswer records the answer to the current question, then advances to
// the next question or, after the last one, to AWAITING_FEEDBACK.
func (s Session) withAnswer(text string, d time.Duration) (Session, error) {
	if s.Phase != PhaseInterviewing {
		return s, s.invalid("answer a question")
	}
	if s.Questions[s.CurrentIndex].Answer != nil {
		return s, fmt.Errorf("interview: question %d already answered", s.CurrentIndex)
	}
	if d < 0 {
		d = 0
	}
	qs := slices.Clone(s.Questions)
	qs[s.CurrentIndex].Answer = &Answer{Text: strings.TrimSpace(text), Duration: d}
	s.Questions = qs
	s.Notice = ""
	if s.CurrentIndex+1 < len(qs) {
		s.CurrentIndex++
	} else {
		s.Phase = PhaseAwaitingFeedback
	}
	return s, nil
}

// feedbackTargets returns the IDs of answered questions with non-blank
// answers, in ascending order.
func (s Session) feedbackTargets() []int {
	var ids []int
	for _, q := range s.Questions {
		if q.Answer != nil && strings.TrimSpace(q.Answer.Text) != "" {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// withFeedbackStatus sets the status of question id while feedback is being
// collected.
func (s Session) withFeedbackStatus(id int, status FeedbackStatus) (Session, error) {
	if s.Phase != PhaseAwaitingFeedback {
		return s, s.invalid("record feedback")
	}
	if id < 0 || id >= len(s.Questions) {
		return s, fmt.Errorf("interview: unknown question %d", id)
	}
	qs := slices.Clone(s.Questions)
	qs[id].FeedbackStatus = status
	s.Questions = qs
	return s, nil
}

// withFeedback attaches feedback to question id. Feedback may only be attached
// to an answered question, and only once.
func (s Session) withFeedback(id int, fb *analysis.Feedback) (Session, error) {
	next, err := s.withFeedbackStatus(id, FeedbackReady)
	if err != nil {
		return s, err
	}
	q := &next.Questions[id]
	if q.Answer == nil {
		return s, fmt.Errorf("interview: feedback for unanswered question %d", id)
	}
	if q.Feedback != nil {
		return s, fmt.Errorf("interview: question %d already has feedback", id)
	}
	q.Feedback = fb
	return next, nil
}

// withFeedbackFailure marks question id as failed; its feedback stays absent.
func (s Session) withFeedbackFailure(id int) (Session, error) {
	return s.withFeedbackStatus(id, FeedbackFailed)
}

// finishReview moves AWAITING_FEEDBACK to REVIEWING.
func (s Session) finishReview() (Session, error) {
	if s.Phase != PhaseAwaitingFeedback {
		return s, s.invalid("finish review")
	}
	s.Phase = PhaseReviewing
	return s, nil
}
