// Package interview implements the mock-interview session: its phase machine,
// the orchestrator that drives speech capture, playback, and analysis in the
// right order, and the sequential feedback pipeline.
//
// The [Orchestrator] owns one [Session] and mutates it from a single goroutine
// ([Orchestrator.Run]). User intents, capture updates, playback signals, and
// analysis results all arrive as closures on one event channel and are applied
// in order, so session state needs no locking. Readers get immutable
// [Snapshot]s.
//
// Asynchronous work is tagged with the session epoch at launch. A reset bumps
// the epoch, and results carrying an older epoch are dropped on arrival.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/interviewcoach/internal/analysis"
	"github.com/MrWong99/interviewcoach/internal/observe"
	"github.com/MrWong99/interviewcoach/internal/speech"
)

// Analyzer generates questions and grades answers.
type Analyzer interface {
	GenerateQuestions(ctx context.Context, jobDescription string, count int) ([]string, error)
	GetFeedback(ctx context.Context, req analysis.FeedbackRequest) (*analysis.Feedback, error)
}

// Capturer is the speech capture adapter.
type Capturer interface {
	Available() bool
	Start(ctx context.Context, onUpdate func(speech.Update)) (speech.Token, error)
	Stop() ([]string, error)
}

// Speaker is the speech playback adapter.
type Speaker interface {
	Available() bool
	Speak(ctx context.Context, text string, cb speech.Callbacks) (speech.Token, error)
	Cancel()
}

// Compile-time checks that the speech adapters satisfy the consumer
// interfaces.
var (
	_ Capturer = (*speech.Capture)(nil)
	_ Speaker  = (*speech.Player)(nil)
	_ Analyzer = (*analysis.Client)(nil)
)

// eventBuffer bounds the number of queued events from async work.
const eventBuffer = 64

// Option configures an [Orchestrator] during construction.
type Option func(*Orchestrator)

// WithCapturer sets the speech capture adapter. Without one, listening is a
// silent no-op.
func WithCapturer(c Capturer) Option {
	return func(o *Orchestrator) {
		o.capture = c
	}
}

// WithSpeaker sets the speech playback adapter used to read questions aloud.
func WithSpeaker(s Speaker) Option {
	return func(o *Orchestrator) {
		o.speaker = s
	}
}

// WithMetrics records phase transitions, answers, and feedback outcomes on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock replaces time.Now for capture timing.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithDefaultQuestions replaces [DefaultQuestions]. The number of questions
// also becomes the number requested from the analyzer.
func WithDefaultQuestions(qs []string) Option {
	return func(o *Orchestrator) {
		o.defaults = append([]string(nil), qs...)
	}
}

// WithDefaultWPM replaces [DefaultWordsPerMinute].
func WithDefaultWPM(wpm int) Option {
	return func(o *Orchestrator) {
		o.defaultWPM = wpm
	}
}

// WithSpeakQuestions reads each question aloud when it becomes current.
func WithSpeakQuestions(on bool) Option {
	return func(o *Orchestrator) {
		o.speakQuestions = on
	}
}

// Orchestrator drives one interview session. All exported methods are safe
// for concurrent use; intents block until the Run loop has applied them.
type Orchestrator struct {
	analyzer       Analyzer
	capture        Capturer
	speaker        Speaker
	metrics        *observe.Metrics
	now            func() time.Time
	defaults       []string
	defaultWPM     int
	speakQuestions bool

	events  chan func()
	stopped chan struct{}
	bc      *broadcaster
	workers sync.WaitGroup // generation and grading goroutines

	// Everything below is owned by the Run goroutine.
	runCtx         context.Context
	session        Session
	epoch          uint64
	listening      bool
	captureToken   speech.Token
	captureStart   time.Time
	finalText      string
	interimText    string
	speaking       bool
	speakToken     speech.Token
	cancelGenerate context.CancelFunc
	cancelPipeline context.CancelFunc
}

// New returns an Orchestrator that uses a for questions and feedback. Call
// [Orchestrator.Run] to start it.
func New(a Analyzer, opts ...Option) (*Orchestrator, error) {
	if a == nil {
		return nil, errors.New("interview: analyzer is required")
	}
	o := &Orchestrator{
		analyzer:   a,
		now:        time.Now,
		defaults:   DefaultQuestions,
		defaultWPM: DefaultWordsPerMinute,
		events:     make(chan func(), eventBuffer),
		stopped:    make(chan struct{}),
		session:    newSession(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.defaults) == 0 {
		return nil, errors.New("interview: default question list is empty")
	}
	for i, q := range o.defaults {
		if strings.TrimSpace(q) == "" {
			return nil, fmt.Errorf("interview: default question %d is blank", i)
		}
	}
	if o.defaultWPM <= 0 {
		return nil, fmt.Errorf("interview: default words per minute must be positive, got %d", o.defaultWPM)
	}
	o.bc = newBroadcaster(o.snapshot())
	return o, nil
}

// Run applies events until ctx is cancelled, then stops capture, playback,
// and any in-flight analysis. It returns once the analysis goroutines have
// exited. It must be called exactly once.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.runCtx = ctx
	defer o.workers.Wait()
	defer close(o.stopped)
	defer o.bc.closeAll()

	for {
		select {
		case fn := <-o.events:
			fn()
		case <-ctx.Done():
			o.abandonWork()
			return nil
		}
	}
}

// Snapshot returns the latest published state.
func (o *Orchestrator) Snapshot() Snapshot {
	return o.bc.current()
}

// Subscribe returns a channel that receives the current snapshot immediately
// and then every subsequent one. A slow reader only sees the latest snapshot.
// The channel is closed by the returned cancel function or when Run exits.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	return o.bc.subscribe()
}

// BeginWithJobDescription moves from NOT_STARTED to GETTING_JOB_DESC.
func (o *Orchestrator) BeginWithJobDescription(ctx context.Context) error {
	return o.submit(ctx, func() error {
		next, err := o.session.beginWithJobDescription()
		if err != nil {
			return err
		}
		o.apply(next)
		return nil
	})
}

// SetJobDescription replaces the job description while it is being collected.
func (o *Orchestrator) SetJobDescription(ctx context.Context, text string) error {
	return o.submit(ctx, func() error {
		next, err := o.session.withJobDescription(text)
		if err != nil {
			return err
		}
		o.apply(next)
		return nil
	})
}

// StartInterview enters GENERATING_QUESTIONS. With a job description the
// questions are generated asynchronously; otherwise the built-in list is used
// immediately. Generation failures fall back to the built-in list and set a
// one-time notice.
func (o *Orchestrator) StartInterview(ctx context.Context) error {
	return o.submit(ctx, func() error {
		next, err := o.session.startGenerating()
		if err != nil {
			return err
		}
		o.apply(next)

		if o.session.JobDescription == "" {
			o.onQuestions(o.epoch, nil, nil)
			return nil
		}
		o.generate()
		return nil
	})
}

// StartListening opens speech capture for the current question and starts
// timing the answer. It returns [ErrSpeaking] while a question is being read
// out. Without a capture engine, or when already listening, it does nothing.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	return o.submit(ctx, func() error {
		if o.session.Phase != PhaseInterviewing {
			return o.session.invalid("start listening")
		}
		if o.speaking {
			return ErrSpeaking
		}
		if o.listening || o.capture == nil || !o.capture.Available() {
			return nil
		}

		tok, err := o.capture.Start(o.runCtx, func(u speech.Update) {
			o.post(func() { o.onCaptureUpdate(u) })
		})
		if errors.Is(err, speech.ErrUnavailable) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("interview: start listening: %w", err)
		}

		o.listening = true
		o.captureToken = tok
		o.captureStart = o.now()
		o.finalText, o.interimText = "", ""
		o.publish()
		return nil
	})
}

// StopListening closes capture, stores the accumulated final transcript and
// elapsed time as the current question's answer, and advances to the next
// question or to AWAITING_FEEDBACK. Interim text is discarded. When not
// listening it does nothing.
func (o *Orchestrator) StopListening(ctx context.Context) error {
	return o.submit(ctx, func() error {
		if o.session.Phase != PhaseInterviewing {
			return o.session.invalid("stop listening")
		}
		if !o.listening {
			return nil
		}

		elapsed := o.now().Sub(o.captureStart)
		o.stopCapture()
		answer := strings.TrimSpace(o.finalText)
		o.interimText = ""

		next, err := o.session.withAnswer(answer, elapsed)
		if err != nil {
			return err
		}
		if o.metrics != nil {
			o.metrics.RecordAnswer(o.runCtx, elapsed, WordsPerMinute(answer, elapsed, o.defaultWPM))
		}
		slog.Info("answer captured",
			"question_id", o.session.CurrentIndex,
			"words", len(strings.Fields(answer)),
			"duration", elapsed,
		)
		o.apply(next)

		if o.session.Phase == PhaseAwaitingFeedback {
			o.startPipeline()
		} else {
			o.askCurrent()
		}
		return nil
	})
}

// Reset discards the session from any phase: capture is stopped, playback and
// in-flight analysis are cancelled, and a fresh empty session takes its place.
func (o *Orchestrator) Reset(ctx context.Context) error {
	return o.submit(ctx, func() error {
		o.abandonWork()
		o.epoch++
		o.finalText, o.interimText = "", ""
		prev := o.session.Phase
		o.session = newSession()
		o.recordTransition(prev, o.session.Phase)
		slog.Info("interview reset", "session_id", o.session.ID)
		o.publish()
		return nil
	})
}

// Report summarises the finished session. It fails with a [*TransitionError]
// unless the session is in REVIEWING.
func (o *Orchestrator) Report() (Report, error) {
	return BuildReport(o.Snapshot())
}

// submit runs fn on the event loop and waits for its result.
func (o *Orchestrator) submit(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	select {
	case o.events <- func() { done <- fn() }:
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn on the event loop without waiting. It is used by async work
// and drops fn once the loop has exited.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.events <- fn:
	case <-o.stopped:
	}
}

// apply installs next as the current session and publishes a snapshot.
func (o *Orchestrator) apply(next Session) {
	prev := o.session.Phase
	o.session = next
	if prev != next.Phase {
		o.recordTransition(prev, next.Phase)
	}
	o.publish()
}

func (o *Orchestrator) recordTransition(from, to Phase) {
	slog.Info("interview phase changed",
		"session_id", o.session.ID,
		"from", from,
		"to", to,
	)
	if o.metrics != nil && o.runCtx != nil {
		o.metrics.RecordPhaseTransition(o.runCtx, from.String(), to.String())
	}
}

func (o *Orchestrator) publish() {
	o.bc.publish(o.snapshot())
}

func (o *Orchestrator) snapshot() Snapshot {
	return Snapshot{
		SessionID:         o.session.ID.String(),
		Phase:             o.session.Phase,
		JobDescription:    o.session.JobDescription,
		Questions:         cloneQuestions(o.session.Questions),
		CurrentIndex:      o.session.CurrentIndex,
		IsListening:       o.listening,
		IsSpeaking:        o.speaking,
		Transcripts:       Transcripts{Final: strings.TrimSpace(o.finalText), Interim: o.interimText},
		Notice:            o.session.Notice,
		CaptureAvailable:  o.capture != nil && o.capture.Available(),
		PlaybackAvailable: o.speaker != nil && o.speaker.Available(),
	}
}

// abandonWork stops everything the session has running.
func (o *Orchestrator) abandonWork() {
	if o.cancelGenerate != nil {
		o.cancelGenerate()
		o.cancelGenerate = nil
	}
	if o.cancelPipeline != nil {
		o.cancelPipeline()
		o.cancelPipeline = nil
	}
	o.stopCapture()
	if o.speaking {
		o.speaker.Cancel()
		o.speaking, o.speakToken = false, 0
	}
}

// stopCapture closes capture. Fragments flushed on close join the final
// transcript.
func (o *Orchestrator) stopCapture() {
	if !o.listening {
		return
	}
	flushed, err := o.capture.Stop()
	if err != nil {
		slog.Warn("failed to stop speech capture", "err", err)
	}
	for _, f := range flushed {
		o.finalText = appendFinal(o.finalText, f)
	}
	o.listening, o.captureToken = false, 0
}

// generate requests tailored questions off the loop.
func (o *Orchestrator) generate() {
	ctx, cancel := context.WithCancel(o.runCtx)
	o.cancelGenerate = cancel
	epoch, jd, count := o.epoch, o.session.JobDescription, len(o.defaults)

	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		defer cancel()
		qs, err := o.analyzer.GenerateQuestions(ctx, jd, count)
		o.post(func() { o.onQuestions(epoch, qs, err) })
	}()
}

// onQuestions enters INTERVIEWING with generated questions, or with the
// built-in list when qs is nil.
func (o *Orchestrator) onQuestions(epoch uint64, qs []string, err error) {
	if epoch != o.epoch || o.session.Phase != PhaseGeneratingQuestions {
		return
	}
	o.cancelGenerate = nil

	notice := ""
	if err != nil {
		slog.Warn("question generation failed, using built-in questions", "err", err)
		notice = fallbackNotice
		qs = nil
	} else if len(qs) != len(o.defaults) {
		if qs != nil {
			slog.Warn("question generation returned wrong count, using built-in questions",
				"got", len(qs), "want", len(o.defaults))
			notice = fallbackNotice
		}
		qs = nil
	}
	if qs == nil {
		qs = o.defaults
	}

	next, werr := o.session.withQuestions(qs, notice)
	if werr != nil {
		slog.Error("failed to install questions", "err", werr)
		return
	}
	o.apply(next)
	o.askCurrent()
}

// onCaptureUpdate folds one recognition event into the transcript buffers.
func (o *Orchestrator) onCaptureUpdate(u speech.Update) {
	if !o.listening || u.Token != o.captureToken {
		return
	}
	for _, f := range u.Finals {
		o.finalText = appendFinal(o.finalText, f)
	}
	o.interimText = u.Interim
	o.publish()
}

// appendFinal appends fragment to buf, terminated by a sentence delimiter.
func appendFinal(buf, fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return buf
	}
	if !strings.HasSuffix(fragment, ".") && !strings.HasSuffix(fragment, "!") && !strings.HasSuffix(fragment, "?") {
		fragment += "."
	}
	return buf + fragment + " "
}

// askCurrent reads the current question aloud when configured to.
func (o *Orchestrator) askCurrent() {
	q, ok := o.snapshot().CurrentQuestion()
	if !ok || !o.speakQuestions || o.speaker == nil || !o.speaker.Available() {
		return
	}
	tok, err := o.speaker.Speak(o.runCtx, q.Text, speech.Callbacks{
		OnStart: func(t speech.Token) { o.post(func() { o.onSpeakStart(t) }) },
		OnEnd:   func(t speech.Token, interrupted bool) { o.post(func() { o.onSpeakEnd(t, interrupted) }) },
	})
	if err != nil {
		if !errors.Is(err, speech.ErrUnavailable) {
			slog.Warn("failed to speak question", "question_id", q.ID, "err", err)
		}
		return
	}
	o.speaking, o.speakToken = true, tok
	o.publish()
}

func (o *Orchestrator) onSpeakStart(tok speech.Token) {
	if tok != o.speakToken || o.speaking {
		return
	}
	o.speaking = true
	o.publish()
}

func (o *Orchestrator) onSpeakEnd(tok speech.Token, interrupted bool) {
	if tok != o.speakToken {
		return
	}
	slog.Debug("question playback ended", "token", tok, "interrupted", interrupted)
	o.speaking, o.speakToken = false, 0
	o.publish()
}
