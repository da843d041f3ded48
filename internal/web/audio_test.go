package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/interviewcoach/internal/speech"
	"github.com/MrWong99/interviewcoach/pkg/audio"
	"github.com/MrWong99/interviewcoach/pkg/provider/stt"
)

// ── Fakes ────────────────────────────────────────────────────────────────────

type fakeInput struct {
	rate int
	idle bool

	mu     sync.Mutex
	chunks [][]byte
	checks int
}

func (f *fakeInput) Config() stt.StreamConfig {
	return stt.StreamConfig{SampleRate: f.rate, Channels: 1}
}

func (f *fakeInput) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return !f.idle
}

func (f *fakeInput) activeChecks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

func (f *fakeInput) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, append([]byte(nil), chunk...))
	return nil
}

func (f *fakeInput) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.chunks...)
}

type fakeOutput struct {
	rate int

	mu   sync.Mutex
	sink speech.AudioSink
}

func (f *fakeOutput) SetSink(s speech.AudioSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = s
}

func (f *fakeOutput) SampleRate() int { return f.rate }

func (f *fakeOutput) current() speech.AudioSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sink
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func startAudioServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	srv, _ := startAudio(t, opts...)
	return srv
}

// startAudio is startAudioServer that also returns the [Server] behind it.
func startAudio(t *testing.T, opts ...Option) (*httptest.Server, *Server) {
	t.Helper()
	s := New(newCoach(t), opts...)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, s
}

func dialAudio(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/audio"
	if query != "" {
		u += "?" + query
	}
	conn, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readHello(t *testing.T, conn *websocket.Conn) hello {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("hello frame type = %v, want text", typ)
	}
	var h hello
	if err := json.Unmarshal(data, &h); err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	return h
}

func eventually(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", desc)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestAudio_ForwardsMicrophone(t *testing.T) {
	t.Parallel()
	in := &fakeInput{rate: 16000}
	srv := startAudioServer(t, WithAudio(in, nil))
	conn := dialAudio(t, srv, "rate=16000&channels=1")

	h := readHello(t, conn)
	if h.Type != "hello" || h.Input != "16000Hz mono pcm_s16le" {
		t.Fatalf("hello = %+v", h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	frame := []byte{0x01, 0x00, 0xff, 0x7f}
	if err := conn.Write(ctx, websocket.MessageText, []byte("ignored")); err != nil {
		t.Fatal(err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		t.Fatal(err)
	}

	eventually(t, "audio forwarded", func() bool { return len(in.received()) == 1 })
	if got := in.received()[0]; string(got) != string(frame) {
		t.Errorf("forwarded %v, want %v unchanged", got, frame)
	}
}

func TestAudio_DropsMicrophoneWhileNotListening(t *testing.T) {
	t.Parallel()
	in := &fakeInput{rate: 16000, idle: true}
	srv := startAudioServer(t, WithAudio(in, nil))
	conn := dialAudio(t, srv, "rate=16000&channels=1")
	readHello(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, []byte{1, 0, 2, 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	eventually(t, "frame inspected", func() bool { return in.activeChecks() > 0 })
	if got := in.received(); len(got) != 0 {
		t.Errorf("forwarded %d chunks while capture was idle", len(got))
	}
}

func TestAudio_ConvertsToCaptureFormat(t *testing.T) {
	t.Parallel()
	in := &fakeInput{rate: 16000}
	srv := startAudioServer(t, WithAudio(in, nil))
	conn := dialAudio(t, srv, "rate=48000&channels=2")
	readHello(t, conn)

	// 48 stereo frames at 48 kHz become 16 mono samples at 16 kHz.
	frame := make([]byte, 48*2*2)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
		t.Fatal(err)
	}

	eventually(t, "audio forwarded", func() bool { return len(in.received()) == 1 })
	if got := len(in.received()[0]); got != 16*2 {
		t.Errorf("converted frame = %d bytes, want %d", got, 16*2)
	}
}

func TestAudio_PlaysSynthesisedSpeech(t *testing.T) {
	t.Parallel()
	out := &fakeOutput{rate: 22050}
	srv := startAudioServer(t, WithAudio(nil, out))
	conn := dialAudio(t, srv, "")

	if h := readHello(t, conn); h.OutputSampleRate != 22050 {
		t.Fatalf("hello = %+v, want output rate 22050", h)
	}
	eventually(t, "sink installed", func() bool { return out.current() != nil })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := out.current().WriteAudio(ctx, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.MessageBinary || len(data) != 4 {
		t.Fatalf("got %v frame of %d bytes", typ, len(data))
	}

	conn.Close(websocket.StatusNormalClosure, "bye")
	eventually(t, "sink cleared", func() bool { return out.current() == nil })
}

func TestAudio_NewConnectionReplacesOld(t *testing.T) {
	t.Parallel()
	out := &fakeOutput{rate: 16000}
	srv, s := startAudio(t, WithAudio(nil, out))

	first := dialAudio(t, srv, "")
	readHello(t, first)
	eventually(t, "first sink", func() bool { return out.current() != nil })
	firstSink := out.current()

	second := dialAudio(t, srv, "")
	readHello(t, second)
	eventually(t, "second sink", func() bool { return out.current() != firstSink })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, _, err := first.Read(ctx); websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Fatalf("first connection read err = %v, want going-away close", err)
	}

	// Once only one handler remains the replaced one has torn down, and that
	// must not have cleared the new sink.
	eventually(t, "replaced handler finished", func() bool { return s.audio.handlers() == 1 })
	if out.current() == nil {
		t.Fatal("sink cleared by the replaced connection")
	}

	if err := out.current().WriteAudio(ctx, []byte{5, 6}); err != nil {
		t.Fatalf("WriteAudio: %v", err)
	}
	if typ, data, err := second.Read(ctx); err != nil || typ != websocket.MessageBinary || len(data) != 2 {
		t.Fatalf("second connection read = %v, %d bytes, %v", typ, len(data), err)
	}
}

func TestAudio_StalledClientDoesNotDelayReplacement(t *testing.T) {
	t.Parallel()
	out := &fakeOutput{rate: 16000}
	srv := startAudioServer(t, WithAudio(nil, out))

	// The first client never reads again, so it never answers the close
	// handshake.
	stalled := dialAudio(t, srv, "")
	readHello(t, stalled)
	eventually(t, "first sink", func() bool { return out.current() != nil })

	start := time.Now()
	second := dialAudio(t, srv, "")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, _, err := second.Read(ctx); err != nil {
		t.Fatalf("hello on replacing connection: %v", err)
	}
	if d := time.Since(start); d >= time.Second {
		t.Errorf("replacement took %v", d)
	}
}

func TestAudio_CloseDropsClient(t *testing.T) {
	t.Parallel()
	out := &fakeOutput{rate: 16000}
	srv, s := startAudio(t, WithAudio(nil, out))

	conn := dialAudio(t, srv, "")
	readHello(t, conn)
	eventually(t, "sink installed", func() bool { return out.current() != nil })

	s.Close()
	if out.current() != nil {
		t.Error("sink still set after Close")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, _, err := conn.Read(ctx); websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Fatalf("read err = %v, want going-away close", err)
	}
	eventually(t, "handler finished", func() bool { return s.audio.handlers() == 0 })
}

func TestAudio_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()
		h := New(newCoach(t)).Handler()
		if rec := do(t, h, http.MethodGet, "/ws/audio", ""); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		t.Parallel()
		h := New(newCoach(t), WithAudio(&fakeInput{rate: 16000}, nil)).Handler()
		for _, q := range []string{"rate=abc", "channels=6", "encoding=mp3", "rate=100"} {
			if rec := do(t, h, http.MethodGet, "/ws/audio?"+q, ""); rec.Code != http.StatusBadRequest {
				t.Errorf("%s: status = %d, want 400", q, rec.Code)
			}
		}
	})
}

func TestParseFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		query string
		want  audio.Format
	}{
		{"", audio.Format{SampleRate: 48000, Channels: 1, Encoding: audio.EncodingS16LE}},
		{"rate=44100&channels=2&encoding=f32le", audio.Format{SampleRate: 44100, Channels: 2, Encoding: audio.EncodingF32LE}},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		got, err := parseFormat(q)
		if err != nil {
			t.Errorf("parseFormat(%q): %v", tt.query, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseFormat(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestAcceptOptions(t *testing.T) {
	t.Parallel()
	if o := (&Server{}).acceptOptions(); o != nil {
		t.Errorf("no origin: %+v, want nil", o)
	}
	if o := (&Server{corsOrigin: "*"}).acceptOptions(); o == nil || !o.InsecureSkipVerify {
		t.Errorf("wildcard: %+v", o)
	}
	o := (&Server{corsOrigin: "http://localhost:5173"}).acceptOptions()
	if o == nil || len(o.OriginPatterns) != 1 || o.OriginPatterns[0] != "localhost:5173" {
		t.Errorf("explicit origin: %+v", o)
	}
}
