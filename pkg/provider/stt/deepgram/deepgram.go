// Package deepgram implements [stt.Provider] on Deepgram's live transcription
// WebSocket API.
//
// Filler-word transcription is on by default: Deepgram normally drops "um"
// and "uh" from its output, and the coach needs them to grade delivery.
// Candidates also pause to think, so an idle stream is kept open with
// KeepAlive messages instead of letting Deepgram time it out.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/interviewcoach/pkg/provider/stt"
)

const (
	liveEndpoint      = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	defaultSampleRate = 16000

	// Deepgram closes a stream that receives nothing for about ten seconds.
	defaultKeepAlive = 5 * time.Second

	closeStreamTimeout = 2 * time.Second

	// flushTimeout bounds how long Close waits for Deepgram to send its last
	// results and end the stream after CloseStream.
	flushTimeout = 2 * time.Second
)

var (
	msgKeepAlive   = []byte(`{"type":"KeepAlive"}`)
	msgCloseStream = []byte(`{"type":"CloseStream"}`)
)

var errSessionClosed = errors.New("deepgram: session is closed")

// Option configures a [Provider].
type Option func(*Provider)

// WithModel selects the recognition model, e.g. "nova-3".
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default language. A stream's own language wins.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithSampleRate sets the default input rate. A stream's own rate wins.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithFillerWords toggles transcription of hesitations such as "um".
func WithFillerWords(enabled bool) Option {
	return func(p *Provider) { p.fillerWords = enabled }
}

// WithEndpointing sets how much trailing silence finalises a phrase. Zero
// keeps Deepgram's default.
func WithEndpointing(d time.Duration) Option {
	return func(p *Provider) { p.endpointing = d }
}

// WithKeepAlive sets how long the stream may go without audio before a
// KeepAlive message is sent. Zero or less disables keepalives.
func WithKeepAlive(d time.Duration) Option {
	return func(p *Provider) { p.keepAlive = d }
}

// WithEndpoint overrides the WebSocket URL.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider opens Deepgram live transcription streams.
type Provider struct {
	apiKey      string
	endpoint    string
	model       string
	language    string
	sampleRate  int
	fillerWords bool
	endpointing time.Duration
	keepAlive   time.Duration
}

var _ stt.Provider = (*Provider)(nil)

// New returns a Provider authenticating with apiKey.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:      apiKey,
		endpoint:    liveEndpoint,
		model:       defaultModel,
		language:    defaultLanguage,
		sampleRate:  defaultSampleRate,
		fillerWords: true,
		keepAlive:   defaultKeepAlive,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream dials Deepgram and returns the live session. The session ends
// when it is closed or ctx is cancelled.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	target, err := p.streamURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: stream url: %w", err)
	}
	conn, _, err := websocket.Dial(ctx, target, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Token " + p.apiKey}},
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	s := &session{
		conn:      conn,
		keepAlive: p.keepAlive,
		partials:  make(chan stt.Transcript, 64),
		finals:    make(chan stt.Transcript, 64),
		audio:     make(chan []byte, 256),
		done:      make(chan struct{}),
		pumped:    make(chan struct{}),
		received:  make(chan struct{}),
		abandoned: make(chan struct{}),
	}
	go s.pump(ctx)
	go s.receive(ctx)
	return s, nil
}

// streamURL encodes the recognition settings as query parameters.
func (p *Provider) streamURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	lang := orDefault(cfg.Language, p.language)
	rate := p.sampleRate
	if cfg.SampleRate > 0 {
		rate = cfg.SampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(rate))
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}
	if p.fillerWords {
		q.Set("filler_words", "true")
	}
	if p.endpointing > 0 {
		q.Set("endpointing", strconv.FormatInt(p.endpointing.Milliseconds(), 10))
	}
	for _, kw := range cfg.Keywords {
		q.Add("keywords", kw.Keyword+":"+strconv.FormatFloat(kw.Boost, 'g', -1, 64))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// ─── Session ────────────────────────────────────────────────────────────────

// session is one live stream. pump owns all writes except the close
// handshake; receive owns all reads and both transcript channels.
type session struct {
	conn      *websocket.Conn
	keepAlive time.Duration

	partials chan stt.Transcript
	finals   chan stt.Transcript
	audio    chan []byte

	done      chan struct{}
	pumped    chan struct{}
	received  chan struct{}
	abandoned chan struct{} // closed once Close stops waiting for results
	closeOnce sync.Once
}

// SendAudio queues a copy of a PCM16LE chunk.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}
	select {
	case s.audio <- bytes.Clone(chunk):
		return nil
	case <-s.done:
		return errSessionClosed
	}
}

func (s *session) Partials() <-chan stt.Transcript { return s.partials }
func (s *session) Finals() <-chan stt.Transcript   { return s.finals }

// Close asks Deepgram to flush the final transcript and waits up to
// flushTimeout for the results that follow, then tears the socket down. It
// is safe to call more than once.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		<-s.pumped

		timer := time.NewTimer(flushTimeout)
		select {
		case <-s.received:
		case <-timer.C:
		}
		timer.Stop()

		close(s.abandoned)
		_ = s.conn.Close(websocket.StatusNormalClosure, "stream closed")
		<-s.received
	})
	return nil
}

// pump forwards queued audio and keeps an idle stream alive. On Close it
// sends CloseStream before returning.
func (s *session) pump(ctx context.Context) {
	defer close(s.pumped)

	var tick <-chan time.Time
	if s.keepAlive > 0 {
		t := time.NewTicker(s.keepAlive)
		defer t.Stop()
		tick = t.C
	}
	idleSince := time.Now()

	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
			idleSince = time.Now()
		case <-tick:
			if time.Since(idleSince) < s.keepAlive {
				continue
			}
			if err := s.conn.Write(ctx, websocket.MessageText, msgKeepAlive); err != nil {
				return
			}
		case <-s.done:
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeStreamTimeout)
			_ = s.conn.Write(wctx, websocket.MessageText, msgCloseStream)
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// receive dispatches Results messages until the socket closes. Results that
// arrive after CloseStream are still delivered unless Close has given up on
// them.
func (s *session) receive(ctx context.Context) {
	defer close(s.received)
	defer close(s.partials)
	defer close(s.finals)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		t, ok := decodeResult(msg)
		if !ok {
			continue
		}
		out := s.partials
		if t.IsFinal {
			out = s.finals
		}
		select {
		case out <- t:
		case <-s.abandoned:
			return
		case <-ctx.Done():
			return
		}
	}
}

// result is the subset of a Deepgram Results message the coach uses.
type result struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// decodeResult turns a Results message into a transcript. Any other message
// type, or a result without alternatives, reports false.
func decodeResult(data []byte) (stt.Transcript, bool) {
	var r result
	if err := json.Unmarshal(data, &r); err != nil || r.Type != "Results" || len(r.Channel.Alternatives) == 0 {
		return stt.Transcript{}, false
	}
	best := r.Channel.Alternatives[0]

	t := stt.Transcript{
		Text:       best.Transcript,
		IsFinal:    r.IsFinal,
		Confidence: best.Confidence,
		Timestamp:  seconds(r.Start),
		Duration:   seconds(r.Duration),
	}
	if len(best.Words) > 0 {
		t.Words = make([]stt.WordDetail, len(best.Words))
		for i, w := range best.Words {
			t.Words[i] = stt.WordDetail{
				Word:       w.Word,
				Start:      seconds(w.Start),
				End:        seconds(w.End),
				Confidence: w.Confidence,
			}
		}
	}
	return t, true
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
