// Package analysis is the interview coach's reasoning client. It turns a job
// description into interview questions and grades a single spoken answer into
// structured [Feedback].
//
// Both calls are stateless request/response exchanges with an [llm.Provider].
// Replies are requested as JSON constrained by a schema, then decoded and
// validated locally; anything that fails along the way is reported as an
// error wrapping [ErrAnalysisFailure].
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/interviewcoach/internal/observe"
	"github.com/MrWong99/interviewcoach/internal/transcript"
	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
)

var (
	// ErrAnalysisFailure wraps every upstream, parse, or validation failure.
	ErrAnalysisFailure = errors.New("analysis failure")

	// ErrPrecondition reports a call the caller must never make, such as
	// requesting feedback for an empty answer.
	ErrPrecondition = errors.New("analysis precondition violated")
)

// defaultTemperature keeps grading reasonably deterministic.
const defaultTemperature = 0.4

// Option configures a [Client].
type Option func(*Client)

// WithMetrics records call latency and outcome on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithFillerDetector sets the detector whose findings are passed to the model
// as a hint when grading answers.
func WithFillerDetector(d *transcript.FillerDetector) Option {
	return func(c *Client) {
		c.fillers = d
	}
}

// WithTemperature overrides the sampling temperature. Default: 0.4.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithTimeout bounds each call. Zero (the default) leaves only the caller's
// context in charge.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client talks to an LLM on behalf of the interview session. It holds no
// per-call state and is safe for concurrent use.
type Client struct {
	llm         llm.Provider
	metrics     *observe.Metrics
	fillers     *transcript.FillerDetector
	temperature float64
	timeout     time.Duration
}

// New returns a Client backed by p. A nil p is allowed: every call then fails
// with [ErrAnalysisFailure], which lets the session run on built-in questions
// without any model configured.
func New(p llm.Provider, opts ...Option) *Client {
	c := &Client{
		llm:         p,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(c)
	}
	if c.fillers == nil {
		c.fillers = transcript.NewFillerDetector()
	}
	return c
}

// Available reports whether a model is configured.
func (c *Client) Available() bool {
	return c.llm != nil
}

// complete runs one schema-constrained completion and decodes the JSON reply
// into out. kind labels metrics; span names the trace span.
func (c *Client) complete(ctx context.Context, kind, span string, req llm.CompletionRequest, out any) (err error) {
	ctx, sp := observe.StartSpan(ctx, span, trace.WithAttributes(observe.Attr("analysis.kind", kind)))
	start := time.Now()
	defer func() {
		observe.EndSpan(sp, err)
		if c.metrics != nil {
			c.metrics.RecordAnalysis(ctx, kind, time.Since(start), err)
		}
	}()

	if c.llm == nil {
		return fmt.Errorf("%w: no language model configured", ErrAnalysisFailure)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req.Temperature = c.temperature
	resp, err := c.llm.Complete(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAnalysisFailure, err)
	}
	if resp.FinishReason == "length" {
		return fmt.Errorf("%w: reply truncated", ErrAnalysisFailure)
	}
	if err := decodeJSON(resp.Content, out); err != nil {
		return fmt.Errorf("%w: %w", ErrAnalysisFailure, err)
	}

	observe.Logger(ctx).Debug("analysis completed",
		"kind", kind,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(start),
	)
	return nil
}

// decodeJSON decodes the first JSON object found in content. Models without
// native structured output sometimes wrap the document in prose.
func decodeJSON(content string, out any) error {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return errors.New("reply contains no JSON object")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}
