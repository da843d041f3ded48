package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
	llmmock "github.com/MrWong99/interviewcoach/pkg/provider/llm/mock"
	"github.com/MrWong99/interviewcoach/pkg/provider/stt"
	sttmock "github.com/MrWong99/interviewcoach/pkg/provider/stt/mock"
	"github.com/MrWong99/interviewcoach/pkg/provider/tts"
	ttsmock "github.com/MrWong99/interviewcoach/pkg/provider/tts/mock"
)

// ── Language model ────────────────────────────────────────────────────────────

func newLLMFallback(primary, secondary llm.Provider) *LLMFallback {
	fb := NewLLMFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fb.AddFallback("secondary", secondary)
	return fb
}

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "hello from primary"}}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "hello from secondary"}}
	fb := newLLMFallback(primary, secondary)

	req := llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "grade this"}},
		Schema:   &llm.Schema{Name: "feedback"},
	}
	resp, err := fb.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello from primary" {
		t.Fatalf("content = %q, want 'hello from primary'", resp.Content)
	}
	calls := primary.Requests()
	if len(calls) != 1 || calls[0].Schema == nil || calls[0].Schema.Name != "feedback" {
		t.Fatalf("primary calls = %+v, want one call carrying the schema", calls)
	}
	if n := len(secondary.Requests()); n != 0 {
		t.Fatalf("secondary called %d times, want 0", n)
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{CompleteErr: errors.New("primary down")}
	secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "from secondary"}}
	fb := newLLMFallback(primary, secondary)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from secondary" {
		t.Fatalf("content = %q, want 'from secondary'", resp.Content)
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	t.Parallel()
	fb := newLLMFallback(
		&llmmock.Provider{CompleteErr: errors.New("primary down")},
		&llmmock.Provider{CompleteErr: errors.New("secondary down")},
	)

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallback_Complete_CancelledDoesNotFailOver(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	secondary := &llmmock.Provider{}
	fb := newLLMFallback(primary, secondary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := fb.Complete(ctx, llm.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n := len(secondary.Requests()); n != 0 {
		t.Errorf("secondary called %d times after cancellation", n)
	}
	if st := fb.States()["primary"]; st != StateClosed {
		t.Errorf("primary state = %v, cancellation must not count", st)
	}
}

func TestLLMFallback_Check(t *testing.T) {
	t.Parallel()
	fb := newLLMFallback(
		&llmmock.Provider{CompleteErr: errors.New("down")},
		&llmmock.Provider{CompleteErr: errors.New("down")},
	)
	if err := fb.Check(context.Background()); err != nil {
		t.Fatalf("Check before failures: %v", err)
	}
	for i := 0; i < 2; i++ {
		_, _ = fb.Complete(context.Background(), llm.CompletionRequest{})
	}
	if err := fb.Check(context.Background()); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Check = %v, want ErrCircuitOpen", err)
	}
}

func TestLLMFallback_Capabilities(t *testing.T) {
	t.Parallel()
	primary := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 128000, SupportsStructuredOutput: true}}
	secondary := &llmmock.Provider{ModelCapabilities: llm.ModelCapabilities{ContextWindow: 8000}}
	fb := newLLMFallback(primary, secondary)

	caps := fb.Capabilities()
	if caps.ContextWindow != 128000 || !caps.SupportsStructuredOutput {
		t.Fatalf("capabilities = %+v, want the primary's", caps)
	}
}

// ── Speech recognition ────────────────────────────────────────────────────────

func TestSTTFallback_StartStream_PrimarySuccess(t *testing.T) {
	t.Parallel()
	session := sttmock.NewSession()
	primary := &sttmock.Provider{Session: session}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	cfg := stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en-US"}
	handle, err := fb.StartStream(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle != session {
		t.Fatal("expected the primary's session")
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 0 {
		t.Fatalf("calls primary=%d secondary=%d, want 1/0", primary.CallCount(), secondary.CallCount())
	}
	if got := primary.Configs()[0]; got.SampleRate != 16000 || got.Language != "en-US" {
		t.Errorf("stream config = %+v, want it forwarded unchanged", got)
	}
}

func TestSTTFallback_StartStream_Failover(t *testing.T) {
	t.Parallel()
	session := sttmock.NewSession()
	primary := &sttmock.Provider{StartStreamErr: errors.New("connection refused")}
	secondary := &sttmock.Provider{Session: session}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	handle, err := fb.StartStream(context.Background(), stt.StreamConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle != session {
		t.Fatal("expected the secondary's session")
	}
}

func TestSTTFallback_StartStream_AllFail(t *testing.T) {
	t.Parallel()
	fb := NewSTTFallback(&sttmock.Provider{StartStreamErr: errors.New("down")}, "primary", FallbackConfig{})
	fb.AddFallback("secondary", &sttmock.Provider{StartStreamErr: errors.New("down")})

	if _, err := fb.StartStream(context.Background(), stt.StreamConfig{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallback_Check(t *testing.T) {
	t.Parallel()
	fb := NewSTTFallback(&sttmock.Provider{StartStreamErr: errors.New("down")}, "deepgram", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})

	if err := fb.Check(context.Background()); err != nil {
		t.Fatalf("Check before failures: %v", err)
	}
	_, _ = fb.StartStream(context.Background(), stt.StreamConfig{})
	if err := fb.Check(context.Background()); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Check = %v, want ErrCircuitOpen", err)
	}
}

// ── Speech synthesis ──────────────────────────────────────────────────────────

func drain(ch <-chan []byte) [][]byte {
	var out [][]byte
	for b := range ch {
		out = append(out, b)
	}
	return out
}

func textOf(s string) <-chan string {
	ch := make(chan string, 1)
	ch <- s
	close(ch)
	return ch
}

func TestTTSFallback_SynthesizeStream_PrimarySuccess(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Provider{SynthesizeChunks: [][]byte{{1, 2}, {3, 4}}}
	secondary := &ttsmock.Provider{SynthesizeChunks: [][]byte{{9}}}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	voice := tts.VoiceProfile{ID: "coach", Provider: "elevenlabs"}
	ch, err := fb.SynthesizeStream(context.Background(), textOf("Tell me about yourself."), voice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(ch); len(got) != 2 {
		t.Fatalf("got %d chunks, want 2", len(got))
	}
	if texts := primary.SpokenTexts(); len(texts) != 1 || texts[0] != "Tell me about yourself." {
		t.Errorf("spoken texts = %q", texts)
	}
	if len(secondary.Voices()) != 0 {
		t.Error("secondary should not be called")
	}
}

func TestTTSFallback_SynthesizeStream_Failover(t *testing.T) {
	t.Parallel()
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("quota exceeded")}
	secondary := &ttsmock.Provider{SynthesizeChunks: [][]byte{{9}}}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	ch, err := fb.SynthesizeStream(context.Background(), textOf("hi"), tts.VoiceProfile{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := drain(ch); len(got) != 1 || got[0][0] != 9 {
		t.Fatalf("chunks = %v, want the secondary's audio", got)
	}
}

func TestTTSFallback_SynthesizeStream_AllFail(t *testing.T) {
	t.Parallel()
	fb := NewTTSFallback(&ttsmock.Provider{SynthesizeErr: errors.New("down")}, "primary", FallbackConfig{})
	fb.AddFallback("secondary", &ttsmock.Provider{SynthesizeErr: errors.New("down")})

	if _, err := fb.SynthesizeStream(context.Background(), textOf("hi"), tts.VoiceProfile{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTTSFallback_ListVoices(t *testing.T) {
	t.Parallel()
	voices := []tts.VoiceProfile{{ID: "v1", Name: "Rachel"}}
	primary := &ttsmock.Provider{ListVoicesErr: errors.New("down")}
	secondary := &ttsmock.Provider{ListVoicesResult: voices}

	fb := NewTTSFallback(primary, "primary", FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	got, err := fb.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "v1" {
		t.Fatalf("voices = %+v", got)
	}
}

func TestTTSFallback_SampleRate(t *testing.T) {
	t.Parallel()
	fb := NewTTSFallback(&ttsmock.Provider{Rate: 22050}, "primary", FallbackConfig{})
	fb.AddFallback("secondary", &ttsmock.Provider{Rate: 16000})

	if got := fb.SampleRate(); got != 22050 {
		t.Errorf("SampleRate() = %d, want the primary's 22050", got)
	}
}
