// Package app wires the interview coach subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and drives the interview orchestrator, and
// Shutdown tears everything down in order.
//
// Providers come from main.go via the config registry. Each configured
// provider is wrapped in a resilience failover group so that readiness probes
// can report open circuits. For testing, inject mock providers and a listener
// via functional options.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/interviewcoach/internal/analysis"
	"github.com/MrWong99/interviewcoach/internal/config"
	"github.com/MrWong99/interviewcoach/internal/health"
	"github.com/MrWong99/interviewcoach/internal/interview"
	"github.com/MrWong99/interviewcoach/internal/observe"
	"github.com/MrWong99/interviewcoach/internal/resilience"
	"github.com/MrWong99/interviewcoach/internal/speech"
	"github.com/MrWong99/interviewcoach/internal/transcript"
	"github.com/MrWong99/interviewcoach/internal/web"
	"github.com/MrWong99/interviewcoach/pkg/provider/llm"
	"github.com/MrWong99/interviewcoach/pkg/provider/stt"
	"github.com/MrWong99/interviewcoach/pkg/provider/tts"
)

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 10 * time.Second

// NamedLLM is a fallback LLM together with the name it was registered under.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM          llm.Provider
	LLMFallbacks []NamedLLM
	STT          stt.Provider
	TTS          tts.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	listener  net.Listener

	// Subsystems, initialised in New.
	analyzer *analysis.Client
	capture  *speech.Capture
	player   *speech.Player
	orch     *interview.Orchestrator
	web      *web.Server
	server   *http.Server
	checkers []health.Checker

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records metrics on m instead of the global meter provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithListener serves on l instead of listening on the configured address.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. It makes no network
// calls; providers connect lazily.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Analysis client ──────────────────────────────────────────────
	a.analyzer = a.buildAnalyzer()

	// ── 2. Speech adapters ──────────────────────────────────────────────
	a.initSpeech()

	// ── 3. Orchestrator ─────────────────────────────────────────────────
	if err := a.initOrchestrator(); err != nil {
		return nil, fmt.Errorf("app: init orchestrator: %w", err)
	}

	// ── 4. HTTP ─────────────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// fallbackConfig builds the per-provider circuit breaker settings.
func (a *App) fallbackConfig() resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  a.cfg.Resilience.MaxFailures,
			ResetTimeout: a.cfg.Resilience.ResetTimeout,
		},
	}
}

// buildAnalyzer wraps the configured LLMs in a failover group and builds the
// analysis client on top.
func (a *App) buildAnalyzer() *analysis.Client {
	var provider llm.Provider
	if a.providers.LLM != nil {
		fb := resilience.NewLLMFallback(a.providers.LLM, a.cfg.Providers.LLM.Name, a.fallbackConfig())
		for _, f := range a.providers.LLMFallbacks {
			fb.AddFallback(f.Name, f.Provider)
		}
		provider = fb
		a.checkers = append(a.checkers, health.Probe("llm", fb, false))
	} else {
		slog.Warn("no LLM configured: built-in questions only, feedback disabled")
	}
	return NewAnalyzer(a.cfg, provider, a.metrics)
}

// NewAnalyzer builds the analysis client for cfg on top of p. It is shared
// with the one-shot CLI commands.
func NewAnalyzer(cfg *config.Config, p llm.Provider, m *observe.Metrics) *analysis.Client {
	iv := cfg.Interview
	fopts := []transcript.FillerOption{transcript.WithExtraFillers(iv.ExtraFillers...)}
	if iv.HesitationThreshold > 0 {
		fopts = append(fopts, transcript.WithHesitationThreshold(iv.HesitationThreshold))
	}
	opts := []analysis.Option{
		analysis.WithMetrics(m),
		analysis.WithFillerDetector(transcript.NewFillerDetector(fopts...)),
		analysis.WithTimeout(iv.AnalysisTimeout),
	}
	if iv.AnalysisTemperature != nil {
		opts = append(opts, analysis.WithTemperature(*iv.AnalysisTemperature))
	}
	return analysis.New(p, opts...)
}

// initSpeech creates the capture and playback adapters. Missing engines
// yield adapters that report themselves unavailable.
func (a *App) initSpeech() {
	ic := a.cfg.Interview

	var sttProvider stt.Provider
	if a.providers.STT != nil {
		fb := resilience.NewSTTFallback(a.providers.STT, a.cfg.Providers.STT.Name, a.fallbackConfig())
		sttProvider = fb
		a.checkers = append(a.checkers, health.Probe("stt", fb, true))
	}
	captureOpts := []speech.CaptureOption{speech.WithCaptureMetrics(a.metrics)}
	if len(ic.Keywords) > 0 {
		captureOpts = append(captureOpts, speech.WithCorrector(transcript.NewCorrector(ic.Keywords)))
	}
	a.capture = speech.NewCapture(sttProvider, stt.StreamConfig{
		SampleRate: ic.SampleRate,
		Channels:   1,
		Language:   ic.Language,
		Keywords:   stt.Boosts(ic.Keywords),
	}, captureOpts...)
	a.closers = append(a.closers, func() error {
		_, err := a.capture.Stop()
		return err
	})

	var ttsProvider tts.Provider
	if a.providers.TTS != nil {
		fb := resilience.NewTTSFallback(a.providers.TTS, a.cfg.Providers.TTS.Name, a.fallbackConfig())
		ttsProvider = fb
		a.checkers = append(a.checkers, health.Probe("tts", fb, true))
	}
	a.player = speech.NewPlayer(ttsProvider, tts.VoiceProfile{
		ID:       ic.VoiceID,
		Provider: a.cfg.Providers.TTS.Name,
	}, speech.WithPlayerMetrics(a.metrics))
	a.closers = append(a.closers, func() error {
		a.player.Cancel()
		return nil
	})

	slog.Info("speech engines",
		"capture", a.capture.Available(),
		"playback", a.player.Available(),
		"speak_questions", ic.SpeakQuestions,
	)
}

// initOrchestrator builds the interview orchestrator.
func (a *App) initOrchestrator() error {
	ic := a.cfg.Interview
	opts := []interview.Option{
		interview.WithCapturer(a.capture),
		interview.WithSpeaker(a.player),
		interview.WithMetrics(a.metrics),
		interview.WithDefaultWPM(ic.DefaultWPM),
		interview.WithSpeakQuestions(ic.SpeakQuestions),
	}
	if len(ic.DefaultQuestions) > 0 {
		opts = append(opts, interview.WithDefaultQuestions(ic.DefaultQuestions))
	}
	o, err := interview.New(a.analyzer, opts...)
	if err != nil {
		return err
	}
	a.orch = o
	return nil
}

// initHTTP builds the router and server.
func (a *App) initHTTP() {
	a.web = web.New(a.orch,
		web.WithAudio(a.capture, a.player),
		web.WithHealth(health.New(a.checkers...)),
		web.WithMetrics(a.metrics),
		web.WithCORSOrigin(a.cfg.Server.CORSOrigin),
	)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.web.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and runs the orchestrator until ctx is cancelled or either
// fails. A clean stop returns nil.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.orch.Run(gctx)
	})

	g.Go(func() error {
		err := a.serve()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve http: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.web.Close()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(sctx); err != nil {
			slog.Warn("http shutdown", "err", err)
		}
		return nil
	})

	slog.Info("interview coach running",
		"addr", a.Addr(),
		"tls", a.cfg.Server.TLS != nil,
		"analysis", a.analyzer.Available(),
	)
	return g.Wait()
}

// serve blocks serving HTTP on the injected listener or the configured
// address.
func (a *App) serve() error {
	tlsCfg := a.cfg.Server.TLS
	if a.listener != nil {
		if tlsCfg != nil {
			return a.server.ServeTLS(a.listener, tlsCfg.CertFile, tlsCfg.KeyFile)
		}
		return a.server.Serve(a.listener)
	}
	if tlsCfg != nil {
		return a.server.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
	}
	return a.server.ListenAndServe()
}

// Addr returns the address the server listens on.
func (a *App) Addr() string {
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.server.Addr
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server and releases the speech engines. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.web.Close()
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown", "err", err)
			shutdownErr = err
			return
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
