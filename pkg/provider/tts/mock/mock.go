// Package mock provides a scriptable [tts.Provider].
//
// Each synthesis reads its text channel to the end, records the joined text,
// then emits SynthesizeChunks. A Gate holds the utterance open between those
// two steps so tests can observe a question while it is being spoken:
//
//	gate := make(chan struct{})
//	p := &mock.Provider{Gate: gate, SynthesizeChunks: [][]byte{pcm}}
//	// ... player is now speaking ...
//	close(gate)
package mock

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/interviewcoach/pkg/provider/tts"
)

// Provider is a recording [tts.Provider].
type Provider struct {
	// SynthesizeChunks is emitted by every synthesis after its text is read.
	SynthesizeChunks [][]byte

	// SynthesizeErr fails SynthesizeStream before any goroutine starts.
	SynthesizeErr error

	// Gate, when non-nil, delays the audio of every synthesis until it is
	// closed or the context ends.
	Gate chan struct{}

	// Rate is reported by SampleRate.
	Rate int

	ListVoicesResult []tts.VoiceProfile
	ListVoicesErr    error

	mu     sync.Mutex
	voices []tts.VoiceProfile
	texts  []string
}

var (
	_ tts.Provider    = (*Provider)(nil)
	_ tts.SampleRater = (*Provider)(nil)
)

// SynthesizeStream records voice and starts a synthesis. The returned channel
// closes after the last chunk or when ctx ends.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	p.voices = append(p.voices, voice)
	p.mu.Unlock()
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}

	out := make(chan []byte, len(p.SynthesizeChunks))
	go p.run(ctx, text, out)
	return out, nil
}

func (p *Provider) run(ctx context.Context, text <-chan string, out chan<- []byte) {
	defer close(out)

	var b strings.Builder
	for done := false; !done; {
		select {
		case frag, ok := <-text:
			if !ok {
				done = true
				break
			}
			b.WriteString(frag)
		case <-ctx.Done():
			return
		}
	}
	p.mu.Lock()
	p.texts = append(p.texts, b.String())
	p.mu.Unlock()

	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return
		}
	}
	for _, chunk := range p.SynthesizeChunks {
		select {
		case out <- chunk:
		case <-ctx.Done():
			return
		}
	}
}

// ListVoices returns ListVoicesResult and ListVoicesErr.
func (p *Provider) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	return p.ListVoicesResult, p.ListVoicesErr
}

// SampleRate returns Rate.
func (p *Provider) SampleRate() int { return p.Rate }

// SpokenTexts returns the full text of every synthesis whose text channel has
// been closed, in order.
func (p *Provider) SpokenTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.texts)
}

// Voices returns the voice passed to each SynthesizeStream call, in order.
func (p *Provider) Voices() []tts.VoiceProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.voices)
}
