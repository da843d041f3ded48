package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	KindLLM: {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	KindSTT: {"deepgram"},
	KindTTS: {"elevenlabs"},
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped so a .env file stays optional.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load env file %q: %w", p, err)
		}
		slog.Debug("loaded env file", "path", p)
	}
	return nil
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. ${VAR} and $VAR references are expanded from the
// environment before decoding; unset variables expand to the empty string.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Call [ApplyDefaults] first; zero values are reported as invalid.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if r := cfg.Server.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("server.trace_sample_ratio %g is out of range [0, 1]", r))
	}

	// Provider name validation, warn only.
	validateProviderName(KindLLM, cfg.Providers.LLM.Name)
	validateProviderName(KindSTT, cfg.Providers.STT.Name)
	validateProviderName(KindTTS, cfg.Providers.TTS.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName(KindLLM, fb.Name)
	}
	if cfg.Providers.LLM.Name == "" && len(cfg.Providers.LLMFallbacks) > 0 {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; interviews will use the built-in questions and produce no feedback")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; voice answers will not be captured")
	}

	// Interview
	iv := cfg.Interview
	if iv.QuestionCount < 1 || iv.QuestionCount > MaxQuestionCount {
		errs = append(errs, fmt.Errorf("interview.question_count %d is out of range [1, %d]", iv.QuestionCount, MaxQuestionCount))
	}
	if iv.DefaultWPM <= 0 {
		errs = append(errs, fmt.Errorf("interview.default_wpm %d must be positive", iv.DefaultWPM))
	}
	if !slices.Contains(validSampleRates, iv.SampleRate) {
		errs = append(errs, fmt.Errorf("interview.sample_rate %d is invalid; valid values: 8000, 16000, 24000, 48000", iv.SampleRate))
	}
	if iv.AnalysisTimeout < 0 {
		errs = append(errs, fmt.Errorf("interview.analysis_timeout %s must not be negative", iv.AnalysisTimeout))
	}
	if t := iv.AnalysisTemperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("interview.analysis_temperature %g is out of range [0, 2]", *t))
	}
	if iv.HesitationThreshold < 0 || iv.HesitationThreshold > 1 {
		errs = append(errs, fmt.Errorf("interview.hesitation_threshold %g is out of range (0, 1]", iv.HesitationThreshold))
	}
	for i, f := range iv.ExtraFillers {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, fmt.Errorf("interview.extra_fillers[%d] is blank", i))
		}
	}
	switch n := len(iv.DefaultQuestions); {
	case n > 0 && n != iv.QuestionCount:
		errs = append(errs, fmt.Errorf("interview.default_questions has %d entries but question_count is %d", n, iv.QuestionCount))
	case n == 0 && iv.QuestionCount != DefaultQuestionCount:
		errs = append(errs, fmt.Errorf("interview.question_count %d requires interview.default_questions with %d entries", iv.QuestionCount, iv.QuestionCount))
	}
	for i, q := range iv.DefaultQuestions {
		if strings.TrimSpace(q) == "" {
			errs = append(errs, fmt.Errorf("interview.default_questions[%d] is blank", i))
		}
	}
	if iv.SpeakQuestions && cfg.Providers.TTS.Name != "" && iv.VoiceID == "" {
		errs = append(errs, errors.New("interview.voice_id is required when speak_questions is on and providers.tts is configured"))
	}

	// Resilience
	if cfg.Resilience.MaxFailures < 1 {
		errs = append(errs, fmt.Errorf("resilience.max_failures %d must be at least 1", cfg.Resilience.MaxFailures))
	}
	if cfg.Resilience.ResetTimeout <= 0 {
		errs = append(errs, fmt.Errorf("resilience.reset_timeout %s must be positive", cfg.Resilience.ResetTimeout))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
