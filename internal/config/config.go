// Package config provides the configuration schema, loader, and provider registry
// for the interview coach server.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults] to zero-valued fields.
const (
	DefaultListenAddr    = ":8080"
	DefaultQuestionCount = 5
	DefaultWPM           = 150
	DefaultSampleRate    = 16000
	DefaultLanguage      = "en-US"
	DefaultMaxFailures   = 5
	DefaultResetTimeout  = 30 * time.Second
)

// MaxQuestionCount bounds interview.question_count.
const MaxQuestionCount = 20

// validSampleRates lists the capture rates accepted for interview.sample_rate.
var validSampleRates = []int{8000, 16000, 24000, 48000}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Interview  InterviewConfig  `yaml:"interview"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// CORSOrigin, when set, is sent as Access-Control-Allow-Origin so a
	// front-end served from another origin can call the API.
	CORSOrigin string `yaml:"cors_origin"`

	// TraceSampleRatio is the share of new traces that are recorded, in
	// [0, 1]. Zero records every trace.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// stage. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when the primary LLM fails or its
	// circuit is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini", "nova-3").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// InterviewConfig tunes the interview session.
type InterviewConfig struct {
	// QuestionCount is the number of questions per interview.
	QuestionCount int `yaml:"question_count"`

	// DefaultWPM is the neutral speaking rate used when an answer's pace
	// cannot be measured.
	DefaultWPM int `yaml:"default_wpm"`

	// SpeakQuestions reads each question aloud when it is presented.
	SpeakQuestions bool `yaml:"speak_questions"`

	// VoiceID is the TTS voice used for questions.
	VoiceID string `yaml:"voice_id"`

	// Language is the BCP-47 tag used for recognition.
	Language string `yaml:"language"`

	// SampleRate is the PCM rate sent to the STT provider.
	SampleRate int `yaml:"sample_rate"`

	// Keywords boosts recognition of domain terms.
	Keywords []string `yaml:"keywords"`

	// DefaultQuestions overrides the built-in question list. When set, its
	// length must equal QuestionCount.
	DefaultQuestions []string `yaml:"default_questions"`

	// AnalysisTimeout bounds each analysis call. Zero means no timeout.
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`

	// AnalysisTemperature overrides the LLM sampling temperature used for
	// question generation and grading, in [0, 2]. Nil keeps the built-in value.
	AnalysisTemperature *float64 `yaml:"analysis_temperature"`

	// HesitationThreshold is the minimum similarity, in (0, 1], for an unknown
	// short token to count as a hesitation. Zero keeps the built-in value.
	HesitationThreshold float64 `yaml:"hesitation_threshold"`

	// ExtraFillers adds phrases to the filler lexicon, e.g. "at the end of the day".
	ExtraFillers []string `yaml:"extra_fillers"`
}

// ResilienceConfig tunes the circuit breakers around provider calls.
type ResilienceConfig struct {
	// MaxFailures is the number of consecutive failures that opens a circuit.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long an open circuit waits before probing again.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Interview.QuestionCount == 0 {
		cfg.Interview.QuestionCount = DefaultQuestionCount
		if n := len(cfg.Interview.DefaultQuestions); n > 0 {
			cfg.Interview.QuestionCount = n
		}
	}
	if cfg.Interview.DefaultWPM == 0 {
		cfg.Interview.DefaultWPM = DefaultWPM
	}
	if cfg.Interview.SampleRate == 0 {
		cfg.Interview.SampleRate = DefaultSampleRate
	}
	if cfg.Interview.Language == "" {
		cfg.Interview.Language = DefaultLanguage
	}
	if cfg.Resilience.MaxFailures == 0 {
		cfg.Resilience.MaxFailures = DefaultMaxFailures
	}
	if cfg.Resilience.ResetTimeout == 0 {
		cfg.Resilience.ResetTimeout = DefaultResetTimeout
	}
}
