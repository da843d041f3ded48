package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"

	"github.com/MrWong99/interviewcoach/internal/speech"
	"github.com/MrWong99/interviewcoach/pkg/audio"
)

// maxAudioFrame bounds one inbound WebSocket message.
const maxAudioFrame = 1 << 20

// defaultClientRate is assumed when the client does not say what it records
// at. Browsers almost always capture at 48 kHz.
const defaultClientRate = 48000

// hello is the first message on every audio connection. It tells the client
// how outbound audio is encoded.
type hello struct {
	Type             string `json:"type"`
	Input            string `json:"input,omitempty"`
	OutputSampleRate int    `json:"outputSampleRate,omitempty"`
}

// audioClient is one connected browser. It is the [speech.AudioSink] for
// synthesised questions while it is the current client.
type audioClient struct {
	conn *websocket.Conn
}

var _ speech.AudioSink = (*audioClient)(nil)

// WriteAudio sends pcm as one binary frame.
func (c *audioClient) WriteAudio(ctx context.Context, pcm []byte) error {
	return c.conn.Write(ctx, websocket.MessageBinary, pcm)
}

// audioLink tracks the single current audio client. A new connection
// replaces the previous one. The current client is also the sink of out,
// when set; both change under mu.
type audioLink struct {
	out AudioOutput

	mu     sync.Mutex
	cur    *audioClient
	active int // handlers that have not finished teardown
}

// setSink points out at c. Must hold mu.
func (l *audioLink) setSink(c *audioClient) {
	if l.out == nil {
		return
	}
	if c == nil {
		l.out.SetSink(nil)
		return
	}
	l.out.SetSink(c)
}

// replace installs c as client and sink, then closes the previous client,
// if any. The close handshake runs in the background: a peer that stopped
// reading would otherwise hold the caller for the full handshake timeout.
func (l *audioLink) replace(c *audioClient) {
	l.mu.Lock()
	prev := l.cur
	l.cur = c
	l.setSink(c)
	if c != nil {
		l.active++
	}
	l.mu.Unlock()

	if prev != nil {
		reason := "replaced by a newer connection"
		if c == nil {
			reason = "server shutting down"
		}
		go prev.conn.Close(websocket.StatusGoingAway, reason)
	}
}

// release clears c and the sink if c is still current.
func (l *audioLink) release(c *audioClient) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cur != c {
		return
	}
	l.cur = nil
	l.setSink(nil)
}

// done records that a handler installed by replace has finished.
func (l *audioLink) done() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
}

// handlers reports how many audio connections are still being served.
func (l *audioLink) handlers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// parseFormat reads the client's recording format from the query string.
func parseFormat(q url.Values) (audio.Format, error) {
	f := audio.Format{SampleRate: defaultClientRate, Channels: 1}
	if v := q.Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return audio.Format{}, errors.New("rate must be an integer")
		}
		f.SampleRate = n
	}
	if v := q.Get("channels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return audio.Format{}, errors.New("channels must be an integer")
		}
		f.Channels = n
	}
	enc, err := audio.ParseEncoding(q.Get("encoding"))
	if err != nil {
		return audio.Format{}, err
	}
	f.Encoding = enc
	return f, f.Validate()
}

// acceptOptions derives the WebSocket origin policy from the CORS setting.
// Without one only same-origin clients are accepted.
func (s *Server) acceptOptions() *websocket.AcceptOptions {
	switch s.corsOrigin {
	case "":
		return nil
	case "*":
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	u, err := url.Parse(s.corsOrigin)
	if err != nil || u.Host == "" {
		return nil
	}
	return &websocket.AcceptOptions{OriginPatterns: []string{u.Host}}
}

// serveAudio upgrades to a WebSocket. Inbound binary frames are microphone
// PCM in the format named by the query (rate, channels, encoding); they are
// converted to the capture format and forwarded. Outbound binary frames are
// synthesised speech as 16-bit mono PCM at the rate announced in the hello
// message.
func (s *Server) serveAudio(w http.ResponseWriter, r *http.Request) {
	if s.audioIn == nil && s.audioOut == nil {
		respondError(w, http.StatusNotFound, "audio is not configured")
		return
	}

	var conv *audio.Converter
	if s.audioIn != nil {
		src, err := parseFormat(r.URL.Query())
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		conv, err = audio.NewConverter(src, s.audioIn.Config().SampleRate)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		slog.Warn("web: audio websocket upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(maxAudioFrame)

	client := &audioClient{conn: conn}
	s.audio.replace(client)
	defer func() {
		s.audio.release(client)
		conn.Close(websocket.StatusNormalClosure, "")
		s.audio.done()
	}()

	ctx := r.Context()
	h := hello{Type: "hello"}
	if conv != nil {
		h.Input = conv.Source().String()
	}
	if s.audioOut != nil {
		h.OutputSampleRate = s.audioOut.SampleRate()
	}
	data, _ := json.Marshal(h)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return
	}
	slog.Info("audio client connected", "remote", r.RemoteAddr, "input", h.Input, "connections", s.audio.handlers())

	s.pumpAudio(ctx, conn, conv)
}

// pumpAudio forwards inbound frames until the connection closes.
func (s *Server) pumpAudio(ctx context.Context, conn *websocket.Conn, conv *audio.Converter) {
	warned := false
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				slog.Info("audio client disconnected")
			default:
				slog.Debug("audio client read ended", "err", err)
			}
			return
		}
		if typ != websocket.MessageBinary || conv == nil || !s.audioIn.Active() {
			continue
		}
		pcm := conv.Convert(data)
		if len(pcm) == 0 {
			continue
		}
		if err := s.audioIn.SendAudio(pcm); err != nil && !warned {
			slog.Warn("web: forwarding microphone audio failed", "err", err)
			warned = true
		}
	}
}
