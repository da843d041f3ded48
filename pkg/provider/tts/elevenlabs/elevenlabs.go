// Package elevenlabs implements [tts.Provider] on ElevenLabs' stream-input
// WebSocket API. Questions are short, so the coach sends each one as a single
// fragment and reads raw PCM back until ElevenLabs marks the stream final.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/interviewcoach/pkg/provider/tts"
)

const (
	defaultWSBase    = "wss://api.elevenlabs.io"
	defaultHTTPBase  = "https://api.elevenlabs.io"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"

	defaultStability  = 0.5
	defaultSimilarity = 0.75
)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel selects the synthesis model, e.g. "eleven_flash_v2_5".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat selects the audio format. Only pcm_* formats can be
// played by the coach; anything else reports a zero sample rate.
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// WithVoiceSettings overrides the stability and similarity boost sent with
// every stream, both in [0,1].
func WithVoiceSettings(stability, similarity float64) Option {
	return func(p *Provider) {
		p.stability = stability
		p.similarity = similarity
	}
}

// WithBaseURLs points the provider at other WebSocket and REST hosts.
func WithBaseURLs(wsBase, httpBase string) Option {
	return func(p *Provider) {
		p.wsBase = strings.TrimSuffix(wsBase, "/")
		p.httpBase = strings.TrimSuffix(httpBase, "/")
	}
}

// Provider synthesises speech with ElevenLabs.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	stability    float64
	similarity   float64
	wsBase       string
	httpBase     string
	httpClient   *http.Client
}

var (
	_ tts.Provider    = (*Provider)(nil)
	_ tts.SampleRater = (*Provider)(nil)
)

// New returns a Provider authenticating with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		stability:    defaultStability,
		similarity:   defaultSimilarity,
		wsBase:       defaultWSBase,
		httpBase:     defaultHTTPBase,
		httpClient:   http.DefaultClient,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// SampleRate parses the rate out of a pcm_* output format. Other formats
// report 0.
func (p *Provider) SampleRate() int {
	if rate, ok := strings.CutPrefix(p.outputFormat, "pcm_"); ok {
		if n, err := strconv.Atoi(rate); err == nil {
			return n
		}
	}
	return 0
}

// ─── Streaming synthesis ────────────────────────────────────────────────────

// Frames exchanged on the stream-input socket.
type (
	voiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
		Speed           float64 `json:"speed,omitempty"`
	}
	openFrame struct {
		Text          string        `json:"text"`
		VoiceSettings voiceSettings `json:"voice_settings"`
	}
	textFrame struct {
		Text    string `json:"text"`
		Trigger bool   `json:"try_trigger_generation,omitempty"`
	}
	audioFrame struct {
		Audio   string `json:"audio"`
		IsFinal bool   `json:"isFinal"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
)

// SynthesizeStream streams text to ElevenLabs and returns the PCM it sends
// back. The audio channel closes once ElevenLabs reports the final chunk,
// the socket fails, or ctx is cancelled.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}
	conn, _, err := websocket.Dial(ctx, p.streamURL(voice.ID), &websocket.DialOptions{
		HTTPHeader: http.Header{"xi-api-key": []string{p.apiKey}},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	// The opening frame must carry a single space.
	open, _ := json.Marshal(openFrame{
		Text: " ",
		VoiceSettings: voiceSettings{
			Stability:       p.stability,
			SimilarityBoost: p.similarity,
			Speed:           voice.SpeedFactor,
		},
	})
	if err := conn.Write(ctx, websocket.MessageText, open); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("elevenlabs: open stream: %w", err)
	}

	audio := make(chan []byte, 256)
	received := make(chan struct{})
	go func() {
		defer close(received)
		receive(ctx, conn, audio)
	}()
	go func() {
		defer close(audio)
		defer conn.CloseNow()
		send(ctx, conn, text, received)
		<-received
	}()
	return audio, nil
}

// send forwards text fragments until text closes, then sends the empty
// end-of-input frame.
func send(ctx context.Context, conn *websocket.Conn, text <-chan string, received <-chan struct{}) {
	for {
		select {
		case fragment, ok := <-text:
			if !ok {
				_ = conn.Write(ctx, websocket.MessageText, encodeText("", false))
				return
			}
			if strings.TrimSpace(fragment) == "" {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, encodeText(withTrailingSpace(fragment), true)); err != nil {
				return
			}
		case <-received:
			return
		case <-ctx.Done():
			return
		}
	}
}

// receive decodes audio frames into out until the final one.
func receive(ctx context.Context, conn *websocket.Conn, out chan<- []byte) {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var f audioFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			continue
		}
		if f.Error != "" {
			slog.WarnContext(ctx, "elevenlabs: stream error", "error", f.Error, "message", f.Message)
			return
		}
		if f.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(f.Audio)
			if err != nil {
				continue
			}
			select {
			case out <- pcm:
			case <-ctx.Done():
				return
			}
		}
		if f.IsFinal {
			return
		}
	}
}

func (p *Provider) streamURL(voiceID string) string {
	q := url.Values{"model_id": {p.model}, "output_format": {p.outputFormat}}
	return p.wsBase + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input?" + q.Encode()
}

func encodeText(text string, trigger bool) []byte {
	b, _ := json.Marshal(textFrame{Text: text, Trigger: trigger})
	return b
}

// withTrailingSpace appends the word separator ElevenLabs expects at the end
// of every fragment.
func withTrailingSpace(s string) string {
	if strings.HasSuffix(s, " ") {
		return s
	}
	return s + " "
}

// ─── Voice catalogue ────────────────────────────────────────────────────────

// ListVoices returns the voices available to the API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.httpBase+"/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: status %s", resp.Status)
	}

	voices, err := decodeVoices(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	return voices, nil
}

// decodeVoices reads a /v1/voices body. Labels and the voice category end
// up in the profile's Metadata.
func decodeVoices(r io.Reader) ([]tts.VoiceProfile, error) {
	var body struct {
		Voices []struct {
			ID       string            `json:"voice_id"`
			Name     string            `json:"name"`
			Category string            `json:"category"`
			Labels   map[string]string `json:"labels"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	out := make([]tts.VoiceProfile, len(body.Voices))
	for i, v := range body.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		maps.Copy(meta, v.Labels)
		if v.Category != "" {
			meta["category"] = v.Category
		}
		out[i] = tts.VoiceProfile{ID: v.ID, Name: v.Name, Provider: "elevenlabs", Metadata: meta}
	}
	return out, nil
}
