// Package audio converts browser microphone audio into the PCM format the
// speech-to-text backend expects.
//
// Browsers capture at the device rate (typically 44.1 or 48 kHz) and an
// AudioWorklet hands out float32 samples. STT providers want 16-bit mono PCM
// at a fixed rate. A Converter bridges the two, one per client connection.
package audio

import (
	"fmt"
	"strings"
)

// Encoding names the sample encoding of a raw PCM stream.
type Encoding string

const (
	// EncodingS16LE is signed 16-bit little-endian PCM.
	EncodingS16LE Encoding = "pcm_s16le"
	// EncodingF32LE is 32-bit IEEE float little-endian PCM in [-1, 1].
	EncodingF32LE Encoding = "pcm_f32le"
)

// ParseEncoding maps a client-supplied name onto an Encoding. The empty string
// selects EncodingS16LE.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "s16le", string(EncodingS16LE), "linear16":
		return EncodingS16LE, nil
	case "f32le", string(EncodingF32LE), "float32":
		return EncodingF32LE, nil
	default:
		return "", fmt.Errorf("audio: unsupported encoding %q", s)
	}
}

// bytesPerSample returns the width of one sample of e.
func (e Encoding) bytesPerSample() int {
	if e == EncodingF32LE {
		return 4
	}
	return 2
}

// Format describes the sample rate, channel count, and encoding of a stream.
type Format struct {
	SampleRate int
	Channels   int
	Encoding   Encoding
}

// Validate reports whether f describes something the Converter can handle.
func (f Format) Validate() error {
	if f.SampleRate < 8000 || f.SampleRate > 192000 {
		return fmt.Errorf("audio: sample rate %d out of range", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("audio: %d channels not supported", f.Channels)
	}
	if f.Encoding != EncodingS16LE && f.Encoding != EncodingF32LE {
		return fmt.Errorf("audio: unsupported encoding %q", f.Encoding)
	}
	return nil
}

// String returns a human-readable form, e.g. "48000Hz stereo pcm_f32le".
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	}
	return fmt.Sprintf("%dHz %s %s", f.SampleRate, ch, f.Encoding)
}
