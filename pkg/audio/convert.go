package audio

import (
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
)

// Converter turns frames in a source Format into 16-bit mono PCM at a target
// rate. Create one per stream; it is not safe for concurrent use.
type Converter struct {
	src     Format
	dstRate int

	warnedCorrupt sync.Once
}

// NewConverter returns a Converter from src to s16le mono at dstRate.
func NewConverter(src Format, dstRate int) (*Converter, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return &Converter{src: src, dstRate: dstRate}, nil
}

// Source returns the configured input format.
func (c *Converter) Source() Format { return c.src }

// Convert converts one frame. Frames whose length is not a whole number of
// sample frames are dropped (nil is returned) and logged once.
// Conversion order: decode, downmix, then resample.
func (c *Converter) Convert(data []byte) []byte {
	frameBytes := c.src.Encoding.bytesPerSample() * c.src.Channels
	if len(data)%frameBytes != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio converter: misaligned PCM frame, dropping",
				"bytes", len(data),
				"format", c.src.String(),
			)
		})
		return nil
	}

	// Fast path: already in the target format.
	if c.src.Encoding == EncodingS16LE && c.src.Channels == 1 && c.src.SampleRate == c.dstRate {
		return data
	}

	samples := decode(data, c.src.Encoding)
	if c.src.Channels == 2 {
		samples = downmix(samples)
	}
	samples = resample(samples, c.src.SampleRate, c.dstRate)
	return encodeS16(samples)
}

// decode unpacks raw PCM into int16 samples.
func decode(data []byte, enc Encoding) []int16 {
	if enc == EncodingF32LE {
		out := make([]int16, len(data)/4)
		for i := range out {
			f := math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
			out[i] = floatToS16(f)
		}
		return out
	}
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

// floatToS16 scales a [-1, 1] float sample, clamping out-of-range values.
func floatToS16(f float32) int16 {
	switch {
	case math.IsNaN(float64(f)):
		return 0
	case f >= 1:
		return math.MaxInt16
	case f <= -1:
		return math.MinInt16
	}
	return int16(f * math.MaxInt16)
}

// downmix averages interleaved L/R pairs. int32 arithmetic avoids overflow.
func downmix(stereo []int16) []int16 {
	out := make([]int16, len(stereo)/2)
	for i := range out {
		out[i] = int16((int32(stereo[2*i]) + int32(stereo[2*i+1])) / 2)
	}
	return out
}

// resample converts mono samples from srcRate to dstRate using linear
// interpolation. Invalid or equal rates return the input unchanged.
func resample(in []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(in) == 0 {
		return in
	}
	n := int(int64(len(in)) * int64(dstRate) / int64(srcRate))
	if n == 0 {
		return nil
	}
	out := make([]int16, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := in[idx]
		s1 := s0
		if idx+1 < len(in) {
			s1 = in[idx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}

// encodeS16 packs samples as little-endian int16.
func encodeS16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
