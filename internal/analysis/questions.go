package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/interviewcoach/internal/observe"
	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
)

const questionsPrompt = `You are an experienced hiring manager preparing a mock job interview.
Write interview questions tailored to the job description the user provides.
Mix behavioural, situational, and technical questions. Each question must be a
single self-contained sentence that can be read aloud. Do not number them.
Reply with JSON only.`

// questionsReply is the JSON document requested from the model.
type questionsReply struct {
	Questions []string `json:"questions"`
}

// questionsSchema describes questionsReply for a reply of exactly n items.
func questionsSchema(n int) *llm.Schema {
	return &llm.Schema{
		Name:        "interview_questions",
		Description: "Interview questions tailored to a job description.",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"questions": map[string]any{
					"type":     "array",
					"items":    map[string]any{"type": "string"},
					"minItems": n,
					"maxItems": n,
				},
			},
			"required":             []string{"questions"},
			"additionalProperties": false,
		},
	}
}

// GenerateQuestions asks the model for exactly count interview questions
// tailored to jobDescription.
//
// Surplus questions are dropped. A reply with fewer than count non-blank
// questions fails with [ErrAnalysisFailure]. A blank job description or a
// non-positive count is a caller bug and fails with [ErrPrecondition].
func (c *Client) GenerateQuestions(ctx context.Context, jobDescription string, count int) ([]string, error) {
	jobDescription = strings.TrimSpace(jobDescription)
	if jobDescription == "" || count < 1 {
		return nil, fmt.Errorf("analysis: generate questions: %w", ErrPrecondition)
	}

	req := llm.CompletionRequest{
		SystemPrompt: questionsPrompt,
		Messages: []llm.Message{
			llm.UserMessage(fmt.Sprintf("Write exactly %d questions.\n\nJob description:\n%s", count, jobDescription)),
		},
		Schema: questionsSchema(count),
	}

	var reply questionsReply
	if err := c.complete(ctx, observe.KindQuestions, "analysis.GenerateQuestions", req, &reply); err != nil {
		return nil, fmt.Errorf("analysis: generate questions: %w", err)
	}

	questions := make([]string, 0, count)
	for _, q := range reply.Questions {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
		if len(questions) == count {
			break
		}
	}
	if len(questions) < count {
		return nil, fmt.Errorf("analysis: generate questions: %w: got %d usable questions, want %d",
			ErrAnalysisFailure, len(questions), count)
	}
	return questions, nil
}
