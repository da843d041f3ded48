// Package mock provides test doubles for the collaborators of
// interview.Orchestrator: Analyzer, Capturer, and Speaker.
//
// Each mock records its calls under a mutex and exposes helpers that let a
// test play the part of the external engine (emit recognition updates, finish
// an utterance).
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/interviewcoach/internal/analysis"
	"github.com/MrWong99/interviewcoach/internal/speech"
)

// ─── Analyzer ───────────────────────────────────────────────────────────────

// FeedbackCall records a single invocation of Analyzer.GetFeedback.
type FeedbackCall struct {
	Req analysis.FeedbackRequest
}

// Analyzer is a mock implementation of interview.Analyzer.
type Analyzer struct {
	mu sync.Mutex

	// Questions is returned by GenerateQuestions.
	Questions []string

	// QuestionsErr, if non-nil, is returned by GenerateQuestions.
	QuestionsErr error

	// QuestionsGate, if non-nil, blocks GenerateQuestions until it is closed
	// or ctx is cancelled.
	QuestionsGate chan struct{}

	// FeedbackFunc, if set, answers GetFeedback. It runs without the lock.
	FeedbackFunc func(ctx context.Context, req analysis.FeedbackRequest) (*analysis.Feedback, error)

	// Feedback is returned by GetFeedback when FeedbackFunc is nil.
	Feedback *analysis.Feedback

	// FeedbackErr, if non-nil, is returned by GetFeedback when FeedbackFunc is nil.
	FeedbackErr error

	// --- Call records ---

	// GenerateCalls records the job description of every GenerateQuestions call.
	GenerateCalls []string

	// GenerateCounts records the count of every GenerateQuestions call.
	GenerateCounts []int

	// FeedbackCalls records every GetFeedback call in order.
	FeedbackCalls []FeedbackCall
}

// GenerateQuestions records the call and returns Questions, QuestionsErr.
func (a *Analyzer) GenerateQuestions(ctx context.Context, jobDescription string, count int) ([]string, error) {
	a.mu.Lock()
	a.GenerateCalls = append(a.GenerateCalls, jobDescription)
	a.GenerateCounts = append(a.GenerateCounts, count)
	gate := a.QuestionsGate
	qs, err := a.Questions, a.QuestionsErr
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return append([]string(nil), qs...), nil
}

// GetFeedback records the call and returns the configured result.
func (a *Analyzer) GetFeedback(ctx context.Context, req analysis.FeedbackRequest) (*analysis.Feedback, error) {
	a.mu.Lock()
	a.FeedbackCalls = append(a.FeedbackCalls, FeedbackCall{Req: req})
	fn := a.FeedbackFunc
	fb, err := a.Feedback, a.FeedbackErr
	a.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// Feedbacks returns a copy of FeedbackCalls. Thread-safe.
func (a *Analyzer) Feedbacks() []FeedbackCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]FeedbackCall(nil), a.FeedbackCalls...)
}

// Generates returns a copy of GenerateCalls. Thread-safe.
func (a *Analyzer) Generates() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.GenerateCalls...)
}

// ─── Capturer ───────────────────────────────────────────────────────────────

// Capturer is a mock implementation of interview.Capturer.
//
// Start stores the update callback; tests drive recognition with Emit.
type Capturer struct {
	mu sync.Mutex

	// Unavailable makes Available report false and Start fail with
	// speech.ErrUnavailable.
	Unavailable bool

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// StopErr, if non-nil, is returned by Stop.
	StopErr error

	// Flush is returned by every Stop that closes a stream, as fragments an
	// engine settles while closing.
	Flush []string

	// --- Call records ---

	// StartCallCount is the number of Start calls that opened a stream.
	StartCallCount int

	// StopCallCount is the number of Stop calls that closed a stream.
	StopCallCount int

	active   bool
	token    speech.Token
	closed   speech.Token
	last     speech.Token
	onUpdate func(speech.Update)
}

// Available reports !Unavailable.
func (c *Capturer) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.Unavailable
}

// Start opens a fake stream. It is idempotent while a stream is open.
func (c *Capturer) Start(_ context.Context, onUpdate func(speech.Update)) (speech.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Unavailable {
		return 0, speech.ErrUnavailable
	}
	if c.StartErr != nil {
		return 0, c.StartErr
	}
	if c.active {
		return c.token, nil
	}
	c.StartCallCount++
	c.last++
	c.active, c.token, c.onUpdate = true, c.last, onUpdate
	return c.token, nil
}

// Stop closes the fake stream and returns Flush. It is a no-op when idle.
func (c *Capturer) Stop() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil, nil
	}
	c.StopCallCount++
	c.active, c.closed = false, c.token
	return slices.Clone(c.Flush), c.StopErr
}

// Active reports whether a stream is open. Thread-safe.
func (c *Capturer) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Emit delivers an update for the open stream. It reports false when no
// stream is open.
func (c *Capturer) Emit(finals []string, interim string) bool {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return false
	}
	fn, tok := c.onUpdate, c.token
	c.mu.Unlock()
	fn(speech.Update{Token: tok, Finals: finals, Interim: interim})
	return true
}

// EmitStale delivers an update carrying the token of the most recently
// closed stream, as a real engine may after Stop.
func (c *Capturer) EmitStale(finals []string, interim string) {
	c.mu.Lock()
	fn, tok := c.onUpdate, c.closed
	c.mu.Unlock()
	if fn != nil && tok != 0 {
		fn(speech.Update{Token: tok, Finals: finals, Interim: interim})
	}
}

// Starts returns StartCallCount. Thread-safe.
func (c *Capturer) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.StartCallCount
}

// Stops returns StopCallCount. Thread-safe.
func (c *Capturer) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.StopCallCount
}

// ─── Speaker ────────────────────────────────────────────────────────────────

// Speaker is a mock implementation of interview.Speaker.
//
// Utterances stay "playing" until the test calls Finish, unless AutoFinish is
// set. Cancel and a new Speak interrupt the current utterance.
type Speaker struct {
	mu sync.Mutex

	// Unavailable makes Available report false and Speak fail with
	// speech.ErrUnavailable.
	Unavailable bool

	// AutoFinish ends every utterance right after it starts.
	AutoFinish bool

	// --- Call records ---

	// Texts records the text of every Speak call in order.
	Texts []string

	// CancelCallCount is the number of Cancel calls.
	CancelCallCount int

	last    speech.Token
	current speech.Token
	cb      speech.Callbacks
}

// Available reports !Unavailable.
func (s *Speaker) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.Unavailable
}

// Speak records text, interrupts any current utterance, and starts a new one.
// Callbacks fire on separate goroutines, as they do with a real engine.
func (s *Speaker) Speak(_ context.Context, text string, cb speech.Callbacks) (speech.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return 0, speech.ErrUnavailable
	}
	s.interruptLocked()
	s.Texts = append(s.Texts, text)
	s.last++
	tok := s.last
	s.current, s.cb = tok, cb

	go func() {
		if cb.OnStart != nil {
			cb.OnStart(tok)
		}
	}()
	if s.AutoFinish {
		s.current = 0
		go func() {
			if cb.OnEnd != nil {
				cb.OnEnd(tok, false)
			}
		}()
	}
	return tok, nil
}

// Cancel interrupts the current utterance.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CancelCallCount++
	s.interruptLocked()
}

func (s *Speaker) interruptLocked() {
	if s.current == 0 {
		return
	}
	tok, cb := s.current, s.cb
	s.current = 0
	go func() {
		if cb.OnEnd != nil {
			cb.OnEnd(tok, true)
		}
	}()
}

// Finish ends the current utterance normally. It reports false when nothing
// is playing.
func (s *Speaker) Finish() bool {
	s.mu.Lock()
	tok, cb := s.current, s.cb
	s.current = 0
	s.mu.Unlock()
	if tok == 0 {
		return false
	}
	if cb.OnEnd != nil {
		cb.OnEnd(tok, false)
	}
	return true
}

// Spoken returns a copy of Texts. Thread-safe.
func (s *Speaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Texts...)
}
