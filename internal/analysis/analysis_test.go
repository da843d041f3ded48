package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/interviewcoach/internal/analysis"
	"github.com/MrWong99/interviewcoach/internal/observe"
	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
	llmmock "github.com/MrWong99/interviewcoach/pkg/provider/llm/mock"
)

const validFeedback = `{
  "relevance": {"score": 4, "feedback": "On topic."},
  "starMethod": {"score": 3, "feedback": "Result is vague.", "situation": true, "task": true, "action": true, "result": false},
  "clarityConfidence": {"score": 4, "feedback": "Clear.", "powerWords": ["led", "built"], "passiveWords": ["was asked"]},
  "pace": {"wordsPerMinute": 999, "feedback": "Good pace."},
  "fillerWords": {"count": 2, "found": ["um", "you know"], "feedback": "A few fillers."},
  "overallFeedback": "Quantify the result."
}`

func TestGenerateQuestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		reply   llmmock.Response
		count   int
		want    []string
		wantErr error
	}{
		{
			name:  "exact count",
			reply: llmmock.Response{Content: `{"questions":["Q1?","Q2?","Q3?"]}`},
			count: 3,
			want:  []string{"Q1?", "Q2?", "Q3?"},
		},
		{
			name:  "surplus truncated and blanks skipped",
			reply: llmmock.Response{Content: `{"questions":["  Q1? ","","Q2?","Q3?","Q4?"]}`},
			count: 2,
			want:  []string{"Q1?", "Q2?"},
		},
		{
			name:  "prose around json",
			reply: llmmock.Response{Content: "Sure! Here you go:\n{\"questions\":[\"Q1?\"]}\nGood luck."},
			count: 1,
			want:  []string{"Q1?"},
		},
		{
			name:    "too few",
			reply:   llmmock.Response{Content: `{"questions":["Q1?"," "]}`},
			count:   2,
			wantErr: analysis.ErrAnalysisFailure,
		},
		{
			name:    "malformed",
			reply:   llmmock.Response{Content: `{"questions": [`},
			count:   1,
			wantErr: analysis.ErrAnalysisFailure,
		},
		{
			name:    "no json",
			reply:   llmmock.Response{Content: "I cannot help with that."},
			count:   1,
			wantErr: analysis.ErrAnalysisFailure,
		},
		{
			name:    "upstream error",
			reply:   llmmock.Response{Err: errors.New("503")},
			count:   1,
			wantErr: analysis.ErrAnalysisFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &llmmock.Provider{Responses: []llmmock.Response{tt.reply}}
			c := analysis.New(p)

			got, err := c.GenerateQuestions(context.Background(), "Senior Go engineer", tt.count)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("questions = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateQuestions_Request(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Responses: []llmmock.Response{{Content: `{"questions":["a","b","c","d","e"]}`}}}
	c := analysis.New(p, analysis.WithTemperature(0.9))

	if _, err := c.GenerateQuestions(context.Background(), "Data analyst at a bank", 5); err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}

	calls := p.Requests()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	req := calls[0]
	if req.Schema == nil || req.Schema.Name != "interview_questions" {
		t.Fatalf("schema = %+v, want interview_questions", req.Schema)
	}
	if req.Temperature != 0.9 {
		t.Errorf("temperature = %v, want 0.9", req.Temperature)
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "Data analyst at a bank") {
		t.Errorf("user message does not carry the job description: %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "exactly 5") {
		t.Errorf("user message does not state the count: %q", req.Messages[0].Content)
	}
}

func TestGenerateQuestions_Preconditions(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{}
	c := analysis.New(p)

	if _, err := c.GenerateQuestions(context.Background(), "  ", 5); !errors.Is(err, analysis.ErrPrecondition) {
		t.Errorf("blank job description: err = %v, want ErrPrecondition", err)
	}
	if _, err := c.GenerateQuestions(context.Background(), "job", 0); !errors.Is(err, analysis.ErrPrecondition) {
		t.Errorf("zero count: err = %v, want ErrPrecondition", err)
	}
	if n := len(p.Requests()); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestGetFeedback(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{Responses: []llmmock.Response{{Content: validFeedback}}}
	c := analysis.New(p)

	fb, err := c.GetFeedback(context.Background(), analysis.FeedbackRequest{
		Question:       "Tell me about a conflict.",
		Answer:         "Um, I led the team through a, you know, migration.",
		WordsPerMinute: 132,
	})
	if err != nil {
		t.Fatalf("GetFeedback: %v", err)
	}
	if fb.Relevance.Score != 4 || fb.StarMethod.Result || !fb.StarMethod.Action {
		t.Errorf("unexpected decoded feedback: %+v", fb)
	}
	if fb.Pace.WordsPerMinute != 132 {
		t.Errorf("pace wpm = %d, want measured 132", fb.Pace.WordsPerMinute)
	}
	if !slices.Equal(fb.ClarityConfidence.PowerWords, []string{"led", "built"}) {
		t.Errorf("power words = %q", fb.ClarityConfidence.PowerWords)
	}

	req := p.Requests()[0]
	if req.Schema == nil || req.Schema.Name != "answer_feedback" {
		t.Fatalf("schema = %+v, want answer_feedback", req.Schema)
	}
	msg := req.Messages[0].Content
	for _, want := range []string{"Tell me about a conflict.", "132 words per minute", "um, you know"} {
		if !strings.Contains(msg, want) {
			t.Errorf("user message missing %q:\n%s", want, msg)
		}
	}
}

func TestGetFeedback_EmptyAnswerIsPrecondition(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{}
	c := analysis.New(p)

	_, err := c.GetFeedback(context.Background(), analysis.FeedbackRequest{Question: "Q", Answer: " \n"})
	if !errors.Is(err, analysis.ErrPrecondition) {
		t.Fatalf("err = %v, want ErrPrecondition", err)
	}
	if errors.Is(err, analysis.ErrAnalysisFailure) {
		t.Error("precondition violation must not be reported as an analysis failure")
	}
	if n := len(p.Requests()); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestGetFeedback_Failures(t *testing.T) {
	t.Parallel()

	outOfRange := strings.Replace(validFeedback, `"score": 4, "feedback": "On topic."`, `"score": 7, "feedback": "On topic."`, 1)
	missingOverall := strings.Replace(validFeedback, `"Quantify the result."`, `""`, 1)

	tests := []struct {
		name string
		resp *llm.CompletionResponse
		err  error
	}{
		{name: "upstream error", err: errors.New("timeout")},
		{name: "score out of range", resp: &llm.CompletionResponse{Content: outOfRange}},
		{name: "empty overall feedback", resp: &llm.CompletionResponse{Content: missingOverall}},
		{name: "empty object", resp: &llm.CompletionResponse{Content: `{}`}},
		{name: "wrong types", resp: &llm.CompletionResponse{Content: `{"relevance": "great"}`}},
		{name: "truncated", resp: &llm.CompletionResponse{Content: validFeedback, FinishReason: "length"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &llmmock.Provider{CompleteResponse: tt.resp, CompleteErr: tt.err}
			c := analysis.New(p)

			fb, err := c.GetFeedback(context.Background(), analysis.FeedbackRequest{Question: "Q", Answer: "A"})
			if !errors.Is(err, analysis.ErrAnalysisFailure) {
				t.Fatalf("err = %v, want ErrAnalysisFailure", err)
			}
			if fb != nil {
				t.Errorf("feedback = %+v, want nil", fb)
			}
		})
	}
}

func TestClient_NoProvider(t *testing.T) {
	t.Parallel()

	c := analysis.New(nil)
	if c.Available() {
		t.Error("Available() = true without a provider")
	}
	if _, err := c.GenerateQuestions(context.Background(), "job", 5); !errors.Is(err, analysis.ErrAnalysisFailure) {
		t.Errorf("GenerateQuestions err = %v, want ErrAnalysisFailure", err)
	}
	if _, err := c.GetFeedback(context.Background(), analysis.FeedbackRequest{Question: "Q", Answer: "A"}); !errors.Is(err, analysis.ErrAnalysisFailure) {
		t.Errorf("GetFeedback err = %v, want ErrAnalysisFailure", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c := analysis.New(p, analysis.WithTimeout(20*time.Millisecond))

	_, err := c.GetFeedback(context.Background(), analysis.FeedbackRequest{Question: "Q", Answer: "A"})
	if !errors.Is(err, analysis.ErrAnalysisFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want ErrAnalysisFailure wrapping DeadlineExceeded", err)
	}
}

func TestClient_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	p := &llmmock.Provider{Responses: []llmmock.Response{
		{Content: validFeedback},
		{Err: errors.New("boom")},
	}}
	c := analysis.New(p, analysis.WithMetrics(m))
	req := analysis.FeedbackRequest{Question: "Q", Answer: "A", WordsPerMinute: 100}
	_, _ = c.GetFeedback(context.Background(), req)
	_, _ = c.GetFeedback(context.Background(), req)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	statuses := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "interviewcoach.analysis.requests" {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				v, _ := dp.Attributes.Value("status")
				statuses[v.AsString()] += dp.Value
			}
		}
	}
	if statuses[observe.StatusOK] != 1 || statuses[observe.StatusFailed] != 1 {
		t.Errorf("request statuses = %v, want 1 ok and 1 failed", statuses)
	}
}

func TestFeedback_JSONShape(t *testing.T) {
	t.Parallel()

	var fb analysis.Feedback
	if err := json.Unmarshal([]byte(validFeedback), &fb); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := json.Marshal(fb)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{`"starMethod"`, `"clarityConfidence"`, `"powerWords"`, `"wordsPerMinute"`, `"overallFeedback"`} {
		if !strings.Contains(string(out), key) {
			t.Errorf("marshalled feedback missing key %s", key)
		}
	}
}

func TestFeedback_ValidateJoinsErrors(t *testing.T) {
	t.Parallel()

	fb := analysis.Feedback{Pace: analysis.Pace{WordsPerMinute: -1}, FillerWords: analysis.FillerWords{Count: -2}}
	err := fb.Validate()
	if err == nil {
		t.Fatal("Validate() = nil for zero feedback")
	}
	for _, want := range []string{"relevance.score", "starMethod.score", "pace.wordsPerMinute", "fillerWords.count", "overallFeedback"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}
