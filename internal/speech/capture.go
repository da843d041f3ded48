// Package speech adapts streaming speech engines to the interview session.
//
// [Capture] wraps a speech-to-text provider behind binary start/stop control
// and turns its partial and final transcripts into incremental [Update]s.
// [Player] wraps a text-to-speech provider behind speak/cancel with start and
// end signals.
//
// Stopping a capture waits a bounded time for the engine to flush its last
// final fragments and hands them back to the caller. Cancelling an utterance
// never blocks on its worker. Every capture and utterance carries a [Token];
// callbacks from work that has since been stopped carry the old token so
// callers can discard them.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/interviewcoach/internal/observe"
	"github.com/MrWong99/interviewcoach/internal/transcript"
	"github.com/MrWong99/interviewcoach/pkg/provider/stt"
)

// drainTimeout bounds how long Stop waits for fragments the engine flushes
// after its stream is closed.
const drainTimeout = time.Second

// ErrUnavailable is returned when no engine is configured. Callers treat it
// as a missing capability, not a runtime failure.
var ErrUnavailable = errors.New("speech: engine unavailable")

// Token identifies one capture stream or one utterance. The zero Token is
// never issued.
type Token uint64

var lastToken atomic.Uint64

func nextToken() Token {
	return Token(lastToken.Add(1))
}

// Update is one incremental recognition event.
type Update struct {
	// Token identifies the capture stream that produced the update.
	Token Token

	// Finals are settled fragments, in order. Each is non-blank.
	Finals []string

	// Interim is the unsettled text recognised since the last final fragment.
	// It replaces any previous interim text; empty after a final.
	Interim string
}

// CaptureOption configures a [Capture].
type CaptureOption func(*Capture)

// WithCaptureMetrics tracks open streams on m.
func WithCaptureMetrics(m *observe.Metrics) CaptureOption {
	return func(c *Capture) {
		c.metrics = m
	}
}

// WithCorrector restores misheard keywords in recognised text before it is
// delivered.
func WithCorrector(k *transcript.Corrector) CaptureOption {
	return func(c *Capture) {
		c.corrector = k
	}
}

// Capture is the speech capture adapter. At most one stream is open at a
// time. All methods are safe for concurrent use.
type Capture struct {
	provider  stt.Provider
	cfg       stt.StreamConfig
	metrics   *observe.Metrics
	corrector *transcript.Corrector

	mu      sync.Mutex
	session stt.SessionHandle
	cancel  context.CancelFunc
	token   Token
	closing chan struct{}
	tail    chan []string
}

// NewCapture returns a Capture that opens streams on p with cfg. A nil p
// yields an adapter whose [Capture.Available] is false.
func NewCapture(p stt.Provider, cfg stt.StreamConfig, opts ...CaptureOption) *Capture {
	c := &Capture{provider: p, cfg: cfg}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Available reports whether a speech-to-text engine is configured.
func (c *Capture) Available() bool {
	return c.provider != nil
}

// Config returns the stream configuration, which fixes the PCM format
// expected by [Capture.SendAudio].
func (c *Capture) Config() stt.StreamConfig {
	return c.cfg
}

// Active reports whether a stream is open.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Start opens a stream and delivers its recognition events to onUpdate from a
// dedicated goroutine. If a stream is already open Start returns its token and
// leaves it untouched. Without an engine it returns [ErrUnavailable].
//
// onUpdate must not call back into Capture synchronously.
func (c *Capture) Start(ctx context.Context, onUpdate func(Update)) (Token, error) {
	if !c.Available() {
		return 0, ErrUnavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.token, nil
	}

	sctx, cancel := context.WithCancel(ctx)
	session, err := c.provider.StartStream(sctx, c.cfg)
	if err != nil {
		cancel()
		return 0, fmt.Errorf("speech: start capture: %w", err)
	}

	tok := nextToken()
	closing, tail := make(chan struct{}), make(chan []string, 1)
	c.session, c.cancel, c.token = session, cancel, tok
	c.closing, c.tail = closing, tail
	if c.metrics != nil {
		c.metrics.CaptureActive.Add(ctx, 1)
	}
	go c.forward(sctx, tok, session, closing, tail, onUpdate)

	slog.Debug("speech capture started", "token", tok, "sample_rate", c.cfg.SampleRate)
	return tok, nil
}

// forward merges the partial and final channels of session into Updates
// until both channels close or ctx is cancelled. Once closing is closed,
// partials are dropped and finals are collected instead of delivered; the
// collection is sent on tail when forward returns.
func (c *Capture) forward(ctx context.Context, tok Token, session stt.SessionHandle, closing <-chan struct{}, tail chan<- []string, onUpdate func(Update)) {
	var rest []string
	defer func() { tail <- rest }()

	partials, finals := session.Partials(), session.Finals()
	for partials != nil || finals != nil {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			if isClosed(closing) {
				continue
			}
			onUpdate(Update{Token: tok, Interim: c.correct(tok, strings.TrimSpace(t.Text))})
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			text := strings.TrimSpace(t.Text)
			if text == "" {
				continue
			}
			text = c.correct(tok, text)
			if isClosed(closing) {
				rest = append(rest, text)
				continue
			}
			onUpdate(Update{Token: tok, Finals: []string{text}})
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// correct applies the keyword corrector, if any, to text.
func (c *Capture) correct(tok Token, text string) string {
	if c.corrector == nil || text == "" {
		return text
	}
	fixed, fixes := c.corrector.Correct(text)
	for _, f := range fixes {
		slog.Debug("corrected keyword", "token", tok, "heard", f.Original, "keyword", f.Corrected, "confidence", f.Confidence)
	}
	return fixed
}

// SendAudio forwards PCM to the open stream. Audio sent while no stream is
// open is dropped.
func (c *Capture) SendAudio(chunk []byte) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil
	}
	if err := session.SendAudio(chunk); err != nil {
		return fmt.Errorf("speech: send audio: %w", err)
	}
	return nil
}

// Stop closes the open stream and returns the final fragments the engine
// settled while closing, in order. Those fragments are not passed to the
// update callback. Stop waits for them at most drainTimeout after the session
// has closed. It is a no-op when no stream is open. Updates already in flight
// may still be delivered with the stopped stream's token.
func (c *Capture) Stop() ([]string, error) {
	c.mu.Lock()
	session, cancel, tok := c.session, c.cancel, c.token
	closing, tail := c.closing, c.tail
	c.session, c.cancel, c.closing, c.tail = nil, nil, nil, nil
	c.mu.Unlock()

	if session == nil {
		return nil, nil
	}
	defer cancel()
	if c.metrics != nil {
		c.metrics.CaptureActive.Add(context.Background(), -1)
	}

	close(closing)
	closeErr := session.Close()

	var rest []string
	timer := time.NewTimer(drainTimeout)
	defer timer.Stop()
	select {
	case rest = <-tail:
	case <-timer.C:
		slog.Warn("speech capture did not drain in time", "token", tok)
	}
	slog.Debug("speech capture stopped", "token", tok, "flushed", len(rest))

	if closeErr != nil {
		return rest, fmt.Errorf("speech: stop capture: %w", closeErr)
	}
	return rest, nil
}
