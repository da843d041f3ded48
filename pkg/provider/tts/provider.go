// Package tts is the speech synthesis boundary of the coach. Providers turn
// question text into mono PCM16LE that the browser plays while the question
// is displayed.
package tts

import "context"

// Provider synthesises speech. It must be safe for concurrent use.
type Provider interface {
	// SynthesizeStream reads text fragments until text is closed and emits
	// audio as soon as it is produced. The audio channel closes when
	// synthesis ends, fails or ctx is cancelled, so callers compare
	// ctx.Err() to tell a cancelled stream from a failed one. An error is
	// returned only when the stream cannot be opened at all.
	//
	// Callers must drain the audio channel.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// ListVoices returns the voices the account can use.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

// SampleRater reports the rate of the PCM a provider emits, so audio frames
// sent to the browser can be labelled.
type SampleRater interface {
	SampleRate() int
}
