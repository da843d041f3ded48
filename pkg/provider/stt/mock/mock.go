// Package mock provides scriptable stand-ins for the stt interfaces.
//
// A test owns the transcript channels of a [Session] and plays the role of
// the recogniser by sending on them:
//
//	sess := mock.NewSession()
//	c := speech.NewCapture(&mock.Provider{Session: sess}, cfg)
//	sess.FinalsCh <- stt.Transcript{Text: "I led the migration", IsFinal: true}
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/interviewcoach/pkg/provider/stt"
)

// Provider is a recording [stt.Provider].
type Provider struct {
	// Session is handed out by every StartStream. Nil means a fresh
	// [NewSession] per call.
	Session stt.SessionHandle

	// NewSession, when set, builds the handle for each call and wins over
	// Session.
	NewSession func() stt.SessionHandle

	// StartStreamErr fails every StartStream.
	StartStreamErr error

	mu      sync.Mutex
	configs []stt.StreamConfig
}

var _ stt.Provider = (*Provider)(nil)

// StartStream records cfg and returns the configured session or error.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	p.configs = append(p.configs, cfg)
	p.mu.Unlock()

	switch {
	case p.StartStreamErr != nil:
		return nil, p.StartStreamErr
	case p.NewSession != nil:
		return p.NewSession(), nil
	case p.Session != nil:
		return p.Session, nil
	}
	return NewSession(), nil
}

// CallCount returns how often StartStream was called.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.configs)
}

// Configs returns the stream configurations received so far, oldest first.
func (p *Provider) Configs() []stt.StreamConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.configs)
}

// Session is a [stt.SessionHandle] whose transcript channels belong to the
// test. Close closes both channels once, as a real stream does on shutdown.
type Session struct {
	PartialsCh chan stt.Transcript
	FinalsCh   chan stt.Transcript

	// SendAudioErr fails every SendAudio.
	SendAudioErr error

	// CloseErr is returned by Close.
	CloseErr error

	// FlushOnClose is sent on FinalsCh by the first Close before the channels
	// close, as an engine flushes its last results when a stream ends.
	FlushOnClose []stt.Transcript

	mu     sync.Mutex
	once   sync.Once
	chunks [][]byte
	closed int
}

var _ stt.SessionHandle = (*Session)(nil)

// NewSession returns a Session with buffered transcript channels.
func NewSession() *Session {
	return &Session{
		PartialsCh: make(chan stt.Transcript, 16),
		FinalsCh:   make(chan stt.Transcript, 16),
	}
}

// SendAudio keeps a copy of chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, slices.Clone(chunk))
	return s.SendAudioErr
}

func (s *Session) Partials() <-chan stt.Transcript { return s.PartialsCh }
func (s *Session) Finals() <-chan stt.Transcript   { return s.FinalsCh }

// Close counts the call and, the first time, sends FlushOnClose and closes
// the transcript channels.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	s.once.Do(func() {
		for _, t := range s.FlushOnClose {
			s.FinalsCh <- t
		}
		close(s.PartialsCh)
		close(s.FinalsCh)
	})
	return s.CloseErr
}

// Chunks returns the audio received so far.
func (s *Session) Chunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.chunks)
}

// Closed returns how often Close was called.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
