package resilience

import (
	"context"

	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
	"github.com/MrWong99/interviewcoach/pkg/provider/stt"
	"github.com/MrWong99/interviewcoach/pkg/provider/tts"
)

// guarded is the part shared by the provider wrappers below: a fallback group
// plus the readiness and inspection hooks the health endpoint relies on.
type guarded[P any] struct {
	group *FallbackGroup[P]
}

// AddFallback registers another backend, tried after those already present.
func (g guarded[P]) AddFallback(name string, p P) {
	g.group.AddFallback(name, p)
}

// Check reports an error when every backend's circuit is open. It makes no
// network calls and is cheap enough for readiness probes.
func (g guarded[P]) Check(context.Context) error {
	return g.group.Healthy()
}

// States returns the circuit state of every backend keyed by name.
func (g guarded[P]) States() map[string]State {
	return g.group.States()
}

// ─── Language model ─────────────────────────────────────────────────────────

// LLMFallback is an [llm.Provider] that fails over across language models.
// Analysis calls are single request/response exchanges, so a failed call is
// simply retried against the next backend with the same request.
type LLMFallback struct {
	guarded[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback returns an [LLMFallback] preferring primary.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{guarded[llm.Provider]{NewFallbackGroup(primary, primaryName, cfg)}}
}

// Complete runs req on the first backend that answers.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities describes the primary model. Prompts are sized for it.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	return f.group.Primary().Capabilities()
}

// ─── Speech recognition ─────────────────────────────────────────────────────

// STTFallback is an [stt.Provider] that fails over across recognisers when a
// stream cannot be opened. A recogniser that keeps refusing connections trips
// its breaker and fails fast instead of stalling the start of every answer.
type STTFallback struct {
	guarded[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback returns an [STTFallback] preferring primary.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{guarded[stt.Provider]{NewFallbackGroup(primary, primaryName, cfg)}}
}

// StartStream opens a session on the first backend that accepts one. Errors
// after the session is open belong to the caller.
func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}

// ─── Speech synthesis ───────────────────────────────────────────────────────

// TTSFallback is a [tts.Provider] that fails over across synthesisers when a
// stream cannot be started. Fallbacks must emit PCM at the primary's rate
// because the browser is told that rate once per connection.
type TTSFallback struct {
	guarded[tts.Provider]
}

var (
	_ tts.Provider    = (*TTSFallback)(nil)
	_ tts.SampleRater = (*TTSFallback)(nil)
)

// NewTTSFallback returns a [TTSFallback] preferring primary.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{guarded[tts.Provider]{NewFallbackGroup(primary, primaryName, cfg)}}
}

// SynthesizeStream starts synthesis on the first backend that accepts it.
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (<-chan []byte, error) {
		return p.SynthesizeStream(ctx, text, voice)
	})
}

// ListVoices lists the voices of the first backend that answers.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

// SampleRate is the primary's output rate, or 0 when it does not declare one.
func (f *TTSFallback) SampleRate() int {
	if sr, ok := f.group.Primary().(tts.SampleRater); ok {
		return sr.SampleRate()
	}
	return 0
}
