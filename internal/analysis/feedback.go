package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/interviewcoach/internal/observe"
	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
)

// Feedback is the structured assessment of one answered question.
type Feedback struct {
	Relevance         Relevance         `json:"relevance"`
	StarMethod        StarMethod        `json:"starMethod"`
	ClarityConfidence ClarityConfidence `json:"clarityConfidence"`
	Pace              Pace              `json:"pace"`
	FillerWords       FillerWords       `json:"fillerWords"`
	OverallFeedback   string            `json:"overallFeedback"`
}

// Relevance grades how well the answer addresses the question.
type Relevance struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// StarMethod grades the Situation/Task/Action/Result structure of the answer.
type StarMethod struct {
	Score     int    `json:"score"`
	Feedback  string `json:"feedback"`
	Situation bool   `json:"situation"`
	Task      bool   `json:"task"`
	Action    bool   `json:"action"`
	Result    bool   `json:"result"`
}

// ClarityConfidence grades delivery and word choice.
type ClarityConfidence struct {
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	PowerWords   []string `json:"powerWords"`
	PassiveWords []string `json:"passiveWords"`
}

// Pace comments on the speaking rate.
type Pace struct {
	WordsPerMinute int    `json:"wordsPerMinute"`
	Feedback       string `json:"feedback"`
}

// FillerWords reports disfluencies found in the answer.
type FillerWords struct {
	Count    int      `json:"count"`
	Found    []string `json:"found"`
	Feedback string   `json:"feedback"`
}

// Validate checks the ranges and required narratives of f. It returns every
// problem found, joined.
func (f *Feedback) Validate() error {
	var errs []error
	score := func(name string, s int) {
		if s < 1 || s > 5 {
			errs = append(errs, fmt.Errorf("%s.score %d out of range 1-5", name, s))
		}
	}
	text := func(name, s string) {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Errorf("%s is empty", name))
		}
	}

	score("relevance", f.Relevance.Score)
	text("relevance.feedback", f.Relevance.Feedback)
	score("starMethod", f.StarMethod.Score)
	text("starMethod.feedback", f.StarMethod.Feedback)
	score("clarityConfidence", f.ClarityConfidence.Score)
	text("clarityConfidence.feedback", f.ClarityConfidence.Feedback)
	if f.Pace.WordsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("pace.wordsPerMinute %d is negative", f.Pace.WordsPerMinute))
	}
	text("pace.feedback", f.Pace.Feedback)
	if f.FillerWords.Count < 0 {
		errs = append(errs, fmt.Errorf("fillerWords.count %d is negative", f.FillerWords.Count))
	}
	text("fillerWords.feedback", f.FillerWords.Feedback)
	text("overallFeedback", f.OverallFeedback)

	return errors.Join(errs...)
}

// FeedbackRequest is the input for [Client.GetFeedback].
type FeedbackRequest struct {
	Question       string
	Answer         string
	WordsPerMinute int
}

const feedbackPrompt = `You are an interview coach reviewing one answer from a spoken mock interview.
The answer was transcribed from speech, so ignore punctuation and capitalisation.
Assess it on:
- relevance to the question (score 1-5)
- use of the STAR method: flag whether a situation, task, action, and result are present (score 1-5)
- clarity and confidence: list strong action verbs as power words and passive or hedging phrases as passive words (score 1-5)
- pace: comment on the measured speaking rate given by the user
- filler words: count the disfluencies and list the ones found
Finish with one short, actionable piece of overall advice.
Address the candidate directly. Reply with JSON only.`

func scored(extra map[string]any) map[string]any {
	props := map[string]any{
		"score":    map[string]any{"type": "integer", "minimum": 1, "maximum": 5},
		"feedback": map[string]any{"type": "string"},
	}
	required := []string{"score", "feedback"}
	for k, v := range extra {
		props[k] = v
		required = append(required, k)
	}
	return object(props, required)
}

func object(props map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

var (
	boolType    = map[string]any{"type": "boolean"}
	stringType  = map[string]any{"type": "string"}
	stringArray = map[string]any{"type": "array", "items": stringType}
)

// feedbackSchema describes [Feedback] as a strict JSON Schema.
var feedbackSchema = &llm.Schema{
	Name:        "answer_feedback",
	Description: "Structured feedback for one interview answer.",
	Definition: object(map[string]any{
		"relevance": scored(nil),
		"starMethod": scored(map[string]any{
			"situation": boolType,
			"task":      boolType,
			"action":    boolType,
			"result":    boolType,
		}),
		"clarityConfidence": scored(map[string]any{
			"powerWords":   stringArray,
			"passiveWords": stringArray,
		}),
		"pace": object(map[string]any{
			"wordsPerMinute": map[string]any{"type": "integer", "minimum": 0},
			"feedback":       stringType,
		}, []string{"wordsPerMinute", "feedback"}),
		"fillerWords": object(map[string]any{
			"count":    map[string]any{"type": "integer", "minimum": 0},
			"found":    stringArray,
			"feedback": stringType,
		}, []string{"count", "found", "feedback"}),
		"overallFeedback": stringType,
	}, []string{"relevance", "starMethod", "clarityConfidence", "pace", "fillerWords", "overallFeedback"}),
}

// GetFeedback grades one answer.
//
// An empty answer is a caller bug and fails with [ErrPrecondition] without
// contacting the model. The measured req.WordsPerMinute always replaces
// whatever rate the model echoes back.
func (c *Client) GetFeedback(ctx context.Context, req FeedbackRequest) (*Feedback, error) {
	if strings.TrimSpace(req.Answer) == "" {
		return nil, fmt.Errorf("analysis: get feedback: empty answer: %w", ErrPrecondition)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", strings.TrimSpace(req.Question))
	fmt.Fprintf(&b, "Answer: %s\n\n", strings.TrimSpace(req.Answer))
	fmt.Fprintf(&b, "Measured speaking rate: %d words per minute.\n", req.WordsPerMinute)
	if found := c.fillers.Find(req.Answer); len(found) > 0 {
		fmt.Fprintf(&b, "A local detector flagged these filler words: %s.\n", strings.Join(found, ", "))
	}

	var fb Feedback
	err := c.complete(ctx, observe.KindFeedback, "analysis.GetFeedback", llm.CompletionRequest{
		SystemPrompt: feedbackPrompt,
		Messages:     []llm.Message{llm.UserMessage(b.String())},
		Schema:       feedbackSchema,
	}, &fb)
	if err != nil {
		return nil, fmt.Errorf("analysis: get feedback: %w", err)
	}
	fb.Pace.WordsPerMinute = req.WordsPerMinute
	if err := fb.Validate(); err != nil {
		return nil, fmt.Errorf("analysis: get feedback: %w: %w", ErrAnalysisFailure, err)
	}
	return &fb, nil
}
