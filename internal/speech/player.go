package speech

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/interviewcoach/internal/observe"
	"github.com/MrWong99/interviewcoach/pkg/audio"
	"github.com/MrWong99/interviewcoach/pkg/provider/tts"
)

// AudioSink receives synthesised PCM (16-bit little-endian mono at
// [Player.SampleRate]).
type AudioSink interface {
	WriteAudio(ctx context.Context, pcm []byte) error
}

// Callbacks observe the lifecycle of one utterance. Either may be nil. They
// run on the utterance's goroutine.
type Callbacks struct {
	// OnStart fires once synthesis begins.
	OnStart func(tok Token)

	// OnEnd fires exactly once per utterance. interrupted is true when the
	// utterance was cancelled or replaced before it finished.
	OnEnd func(tok Token, interrupted bool)
}

// PlayerOption configures a [Player].
type PlayerOption func(*Player)

// WithPlayerMetrics records utterance duration and activity on m.
func WithPlayerMetrics(m *observe.Metrics) PlayerOption {
	return func(p *Player) {
		p.metrics = m
	}
}

// Player is the speech playback adapter. At most one utterance plays at a
// time; a new one cancels its predecessor. All methods are safe for
// concurrent use.
type Player struct {
	provider tts.Provider
	voice    tts.VoiceProfile
	metrics  *observe.Metrics

	mu     sync.Mutex
	sink   AudioSink
	cancel context.CancelFunc
	token  Token
}

// NewPlayer returns a Player that speaks with voice on p. A nil p yields an
// adapter whose [Player.Available] is false.
func NewPlayer(p tts.Provider, voice tts.VoiceProfile, opts ...PlayerOption) *Player {
	pl := &Player{provider: p, voice: voice}
	for _, o := range opts {
		o(pl)
	}
	return pl
}

// Available reports whether a text-to-speech engine is configured.
func (p *Player) Available() bool {
	return p.provider != nil
}

// SampleRate returns the PCM rate of synthesised audio, or 0 when the engine
// does not report one.
func (p *Player) SampleRate() int {
	if sr, ok := p.provider.(tts.SampleRater); ok {
		return sr.SampleRate()
	}
	return 0
}

// SetSink routes synthesised audio to s. A nil s discards audio.
func (p *Player) SetSink(s AudioSink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = s
}

// Speak cancels any utterance in progress and starts speaking text. It returns
// immediately; progress is reported through cb. Without an engine it returns
// [ErrUnavailable] and no callback fires.
func (p *Player) Speak(ctx context.Context, text string, cb Callbacks) (Token, error) {
	if !p.Available() {
		return 0, ErrUnavailable
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	uctx, cancel := context.WithCancel(ctx)
	tok := nextToken()
	p.cancel, p.token = cancel, tok
	sink := p.sink
	p.mu.Unlock()

	go p.play(uctx, tok, text, sink, cb)
	return tok, nil
}

// Cancel interrupts the utterance in progress, if any.
func (p *Player) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Player) play(ctx context.Context, tok Token, text string, sink AudioSink, cb Callbacks) {
	start := time.Now()
	defer p.release(tok)

	if cb.OnStart != nil {
		cb.OnStart(tok)
	}
	if p.metrics != nil {
		p.metrics.PlaybackActive.Add(ctx, 1)
		defer p.metrics.PlaybackActive.Add(context.WithoutCancel(ctx), -1)
	}

	interrupted := p.synthesize(ctx, tok, text, sink)

	if p.metrics != nil {
		p.metrics.TTSDuration.Record(context.WithoutCancel(ctx), time.Since(start).Seconds())
	}
	if cb.OnEnd != nil {
		cb.OnEnd(tok, interrupted)
	}
}

// synthesize streams text through the engine into sink and reports whether
// the utterance was interrupted. When a sink is attached it also waits for
// the estimated playback time so that the end signal matches what the
// listener hears.
func (p *Player) synthesize(ctx context.Context, tok Token, text string, sink AudioSink) bool {
	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)

	chunks, err := p.provider.SynthesizeStream(ctx, textCh, p.voice)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		slog.Warn("speech synthesis failed", "token", tok, "err", err)
		return false
	}
	if sink == nil {
		audio.Drain(chunks)
		return ctx.Err() != nil
	}

	start := time.Now()
	var written int
	for chunk := range chunks {
		if err := sink.WriteAudio(ctx, chunk); err != nil {
			slog.Debug("audio sink write failed", "token", tok, "err", err)
			continue
		}
		written += len(chunk)
	}
	if ctx.Err() != nil {
		return true
	}

	if rate := p.SampleRate(); rate > 0 && written > 0 {
		playback := time.Duration(written/2) * time.Second / time.Duration(rate)
		if remaining := playback - time.Since(start); remaining > 0 {
			t := time.NewTimer(remaining)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return true
			case <-t.C:
			}
		}
	}
	return false
}

// release clears the current utterance if it is still tok.
func (p *Player) release(tok Token) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == tok && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
