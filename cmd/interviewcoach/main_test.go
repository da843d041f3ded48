package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/interviewcoach/internal/analysis"
	"github.com/MrWong99/interviewcoach/internal/config"
	"github.com/MrWong99/interviewcoach/internal/interview"
	"github.com/MrWong99/interviewcoach/pkg/provider/llm/mock"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func TestOptString(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"language": "de", "rate": 16000}
	tests := []struct {
		opts map[string]any
		key  string
		want string
	}{
		{nil, "language", ""},
		{opts, "language", "de"},
		{opts, "missing", ""},
		{opts, "rate", ""},
	}
	for _, tt := range tests {
		if got := optString(tt.opts, tt.key); got != tt.want {
			t.Errorf("optString(%v, %q) = %q, want %q", tt.opts, tt.key, got, tt.want)
		}
	}
}

func TestOptDuration(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"timeout": "30s", "bad": "soon"}
	if got := optDuration(opts, "timeout"); got != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", got)
	}
	if got := optDuration(opts, "bad"); got != 0 {
		t.Errorf("bad = %v, want 0", got)
	}
	if got := optDuration(nil, "timeout"); got != 0 {
		t.Errorf("nil = %v, want 0", got)
	}
}

func TestOptFloat(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"stability": 0.4, "whole": 1, "text": "0.5"}
	if v, ok := optFloat(opts, "stability"); !ok || v != 0.4 {
		t.Errorf("stability = %v, %v", v, ok)
	}
	if v, ok := optFloat(opts, "whole"); !ok || v != 1 {
		t.Errorf("whole = %v, %v", v, ok)
	}
	if _, ok := optFloat(opts, "text"); ok {
		t.Error("string accepted as number")
	}
	if _, ok := optFloat(nil, "stability"); ok {
		t.Error("nil options reported a value")
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level config.LogLevel
		want  slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	ctx := context.Background()
	for _, tt := range tests {
		l := newLogger(&bytes.Buffer{}, tt.level)
		if !l.Enabled(ctx, tt.want) {
			t.Errorf("%q: level %v disabled", tt.level, tt.want)
		}
		if l.Enabled(ctx, tt.want-1) {
			t.Errorf("%q: level %v enabled, want disabled", tt.level, tt.want-1)
		}
	}
}

func TestPrintStartupSummary(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Providers.LLM = config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini-2024-07-18"}

	var buf bytes.Buffer
	printStartupSummary(&buf, cfg)
	out := buf.String()
	for _, want := range []string{"openai / gpt-4o-mi", "(not configured)", ":8080"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

// ── Providers ────────────────────────────────────────────────────────────────

func TestBuildProviders(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	t.Run("all configured", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Providers: config.ProvidersConfig{
			LLM:          config.ProviderEntry{Name: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"},
			LLMFallbacks: []config.ProviderEntry{{Name: "ollama", Model: "llama3.2", BaseURL: "http://localhost:11434"}},
			STT:          config.ProviderEntry{Name: "deepgram", APIKey: "dg-test", Options: map[string]any{"language": "en-GB"}},
			TTS:          config.ProviderEntry{Name: "elevenlabs", APIKey: "el-test"},
		}}
		ps, err := buildProviders(cfg, reg)
		if err != nil {
			t.Fatalf("buildProviders: %v", err)
		}
		if ps.LLM == nil || ps.STT == nil || ps.TTS == nil {
			t.Fatalf("providers = %+v, want all set", ps)
		}
		if len(ps.LLMFallbacks) != 1 || ps.LLMFallbacks[0].Name != "ollama" {
			t.Errorf("fallbacks = %+v", ps.LLMFallbacks)
		}
	})

	t.Run("unregistered names are skipped", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Providers: config.ProvidersConfig{
			STT: config.ProviderEntry{Name: "whisper"},
			TTS: config.ProviderEntry{Name: "coqui"},
		}}
		ps, err := buildProviders(cfg, reg)
		if err != nil {
			t.Fatalf("buildProviders: %v", err)
		}
		if ps.LLM != nil || ps.STT != nil || ps.TTS != nil {
			t.Errorf("providers = %+v, want none", ps)
		}
	})

	t.Run("fallbacks need a primary", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Providers: config.ProvidersConfig{
			LLMFallbacks: []config.ProviderEntry{{Name: "ollama", Model: "llama3.2"}},
		}}
		ps, err := buildProviders(cfg, reg)
		if err != nil {
			t.Fatalf("buildProviders: %v", err)
		}
		if len(ps.LLMFallbacks) != 0 {
			t.Errorf("fallbacks = %+v, want none without a primary", ps.LLMFallbacks)
		}
	})

	t.Run("factory error is fatal", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Providers: config.ProvidersConfig{
			STT: config.ProviderEntry{Name: "deepgram"},
		}}
		_, err := buildProviders(cfg, reg)
		if err == nil || !strings.Contains(err.Error(), `create stt provider "deepgram"`) {
			t.Fatalf("err = %v, want wrapped deepgram error", err)
		}
	})
}

func TestRegisterBuiltinProviders(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	for kind, want := range config.ValidProviderNames {
		got := reg.Names(kind)
		for _, name := range want {
			found := false
			for _, g := range got {
				if g == name {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("%s provider %q not registered (have %v)", kind, name, got)
			}
		}
	}
}

// ── Questions ────────────────────────────────────────────────────────────────

func TestGenerateQuestionSet(t *testing.T) {
	t.Parallel()
	defaults := []string{"d1", "d2"}

	t.Run("generated", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{Responses: []mock.Response{{Content: `{"questions":["q1","q2"]}`}}}
		set := generateQuestionSet(context.Background(), analysis.New(p), "Go developer", defaults)
		if set.Notice != "" || len(set.Questions) != 2 || set.Questions[0] != "q1" {
			t.Errorf("set = %+v", set)
		}
	})

	t.Run("falls back", func(t *testing.T) {
		t.Parallel()
		p := &mock.Provider{CompleteErr: errors.New("rate limited")}
		set := generateQuestionSet(context.Background(), analysis.New(p), "Go developer", defaults)
		if set.Notice == "" || len(set.Questions) != 2 || set.Questions[1] != "d2" {
			t.Errorf("set = %+v", set)
		}
	})
}

func TestReadJobDescription(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "jd.txt")
	if err := os.WriteFile(path, []byte("  Senior Go engineer\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if jd, err := readJobDescription(path, nil); err != nil || jd != "Senior Go engineer" {
		t.Errorf("file: %q, %v", jd, err)
	}
	if jd, err := readJobDescription("-", strings.NewReader("SRE")); err != nil || jd != "SRE" {
		t.Errorf("stdin: %q, %v", jd, err)
	}
	if _, err := readJobDescription("-", strings.NewReader(" \n")); err == nil {
		t.Error("blank job description accepted")
	}
	if _, err := readJobDescription(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("missing file accepted")
	}
}

func TestWriteQuestionSet(t *testing.T) {
	t.Parallel()
	set := questionSet{Questions: []string{"a", "b"}, Notice: "fallback"}

	var text bytes.Buffer
	if err := writeQuestionSet(&text, set, false); err != nil {
		t.Fatal(err)
	}
	if want := "Note: fallback\n\n1. a\n2. b\n"; text.String() != want {
		t.Errorf("text = %q, want %q", text.String(), want)
	}

	var js bytes.Buffer
	if err := writeQuestionSet(&js, set, true); err != nil {
		t.Fatal(err)
	}
	var got questionSet
	if err := json.Unmarshal(js.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Notice != "fallback" || len(got.Questions) != 2 {
		t.Errorf("json = %+v", got)
	}
}

// ── Commands ─────────────────────────────────────────────────────────────────

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); got != "interviewcoach "+version+"\n" {
		t.Errorf("output = %q", got)
	}
}

// Not parallel: loadConfig installs the default slog logger.
func TestQuestionsCommand_WithoutLLMFallsBack(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("server:\n  log_level: error\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	jdPath := filepath.Join(dir, "jd.txt")
	if err := os.WriteFile(jdPath, []byte("Platform engineer"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil))) })

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{
		"questions",
		"--config", cfgPath,
		"--env-file", filepath.Join(dir, "missing.env"),
		"--job-description-file", jdPath,
		"--json",
	})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var set questionSet
	if err := json.Unmarshal(out.Bytes(), &set); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if set.Notice == "" {
		t.Error("notice missing on fallback")
	}
	if len(set.Questions) != len(interview.DefaultQuestions) || set.Questions[0] != interview.DefaultQuestions[0] {
		t.Errorf("questions = %v, want built-in list", set.Questions)
	}
}

func TestQuestionsCommand_RequiresJobDescription(t *testing.T) {
	t.Parallel()
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"questions"})
	if err := root.Execute(); err == nil {
		t.Fatal("questions without --job-description-file succeeded")
	}
}
