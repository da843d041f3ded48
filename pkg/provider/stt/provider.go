// Package stt is the speech recognition boundary of the coach. A provider
// opens a live session per answer; the session takes 16-bit PCM and reports
// interim hypotheses on one channel and committed text on another.
package stt

import "context"

// StreamConfig describes the audio a session will receive and the
// vocabulary it should listen for.
type StreamConfig struct {
	// SampleRate in Hz. Zero lets the provider use its default.
	SampleRate int

	// Channels of interleaved audio. The coach always sends mono.
	Channels int

	// Language is a BCP-47 tag such as "en-GB". Empty means provider default.
	Language string

	// Keywords bias recognition towards terms from the job description.
	Keywords []KeywordBoost
}

// SessionHandle is one open recognition stream. Its methods may be called
// from different goroutines.
type SessionHandle interface {
	// SendAudio queues PCM16LE audio in the format agreed in StreamConfig.
	// It fails once the session is closed.
	SendAudio(chunk []byte) error

	// Partials yields interim text for the phrase in progress. Each value
	// supersedes the previous one and is dropped once its phrase is final.
	Partials() <-chan Transcript

	// Finals yields committed phrases in order.
	Finals() <-chan Transcript

	// Close flushes the stream and closes both channels. Repeated calls
	// return nil.
	Close() error
}

// Provider opens recognition sessions. It must be safe for concurrent use.
type Provider interface {
	// StartStream connects a new session. The caller must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
