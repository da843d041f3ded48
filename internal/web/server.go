// Package web exposes the interview coach to a browser front-end.
//
// Intents are plain JSON endpoints under /api/session. State flows back as
// [interview.Snapshot] documents, either polled or streamed over Server-Sent
// Events. Microphone audio and synthesised speech share one WebSocket at
// /ws/audio.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/interviewcoach/internal/health"
	"github.com/MrWong99/interviewcoach/internal/interview"
	"github.com/MrWong99/interviewcoach/internal/observe"
	"github.com/MrWong99/interviewcoach/internal/speech"
	"github.com/MrWong99/interviewcoach/pkg/provider/stt"
)

// maxBodyBytes caps request bodies. Job descriptions are the largest input.
const maxBodyBytes = 1 << 20

// defaultKeepAlive is the SSE comment interval that keeps idle proxies from
// closing the stream.
const defaultKeepAlive = 15 * time.Second

// Coach is the interview orchestrator as seen by the HTTP layer.
type Coach interface {
	Snapshot() interview.Snapshot
	Subscribe() (<-chan interview.Snapshot, func())
	BeginWithJobDescription(ctx context.Context) error
	SetJobDescription(ctx context.Context, text string) error
	StartInterview(ctx context.Context) error
	StartListening(ctx context.Context) error
	StopListening(ctx context.Context) error
	Reset(ctx context.Context) error
	Report() (interview.Report, error)
}

// AudioInput receives microphone PCM for the capture engine. Frames that
// arrive while it is not Active are dropped unconverted.
type AudioInput interface {
	Config() stt.StreamConfig
	Active() bool
	SendAudio(chunk []byte) error
}

// AudioOutput routes synthesised speech to a connected client.
type AudioOutput interface {
	SetSink(s speech.AudioSink)
	SampleRate() int
}

var (
	_ Coach       = (*interview.Orchestrator)(nil)
	_ AudioInput  = (*speech.Capture)(nil)
	_ AudioOutput = (*speech.Player)(nil)
)

// Option configures a [Server].
type Option func(*Server)

// WithAudio enables the /ws/audio endpoint. Either side may be nil.
func WithAudio(in AudioInput, out AudioOutput) Option {
	return func(s *Server) {
		s.audioIn, s.audioOut = in, out
	}
}

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics records request metrics and traces every request.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMetricsHandler replaces the default Prometheus handler at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithCORSOrigin sets the Access-Control-Allow-Origin for API requests and
// the accepted Origin for the audio WebSocket. "*" allows any origin.
func WithCORSOrigin(origin string) Option {
	return func(s *Server) {
		s.corsOrigin = origin
	}
}

// WithKeepAlive sets the SSE keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// Server is the HTTP front of one coach.
type Server struct {
	coach          Coach
	audioIn        AudioInput
	audioOut       AudioOutput
	health         *health.Handler
	metrics        *observe.Metrics
	metricsHandler http.Handler
	corsOrigin     string
	keepAlive      time.Duration

	audio audioLink
	mux   chi.Router
}

// New builds the router for coach.
func New(coach Coach, opts ...Option) *Server {
	s := &Server{
		coach:          coach,
		metricsHandler: promhttp.Handler(),
		keepAlive:      defaultKeepAlive,
	}
	for _, o := range opts {
		o(s)
	}
	s.audio.out = s.audioOut
	s.mux = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Close drops the connected audio client, if any.
func (s *Server) Close() {
	s.audio.replace(nil)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(observe.Middleware(s.metrics))
	}

	if s.health != nil {
		s.health.Register(r)
	}
	r.Handle("/metrics", s.metricsHandler)

	r.Route("/api/session", func(r chi.Router) {
		r.Use(s.cors)
		r.Get("/", s.getSession)
		r.Get("/events", s.streamEvents)
		r.Get("/report", s.getReport)
		r.Post("/job-description", s.intent(s.coach.BeginWithJobDescription))
		r.Put("/job-description", s.putJobDescription)
		r.Post("/start", s.intent(s.coach.StartInterview))
		r.Post("/listening", s.intent(s.coach.StartListening))
		r.Delete("/listening", s.intent(s.coach.StopListening))
		r.Post("/reset", s.intent(s.coach.Reset))
	})
	r.Get("/ws/audio", s.serveAudio)
	return r
}

// cors answers preflight requests and stamps the configured origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin == "" {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.corsOrigin)
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Responses ───────────────────────────────────────────────────────────────

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps orchestrator errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, interview.ErrInvalidTransition), errors.Is(err, interview.ErrSpeaking):
		return http.StatusConflict
	case errors.Is(err, interview.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("web: failed to encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorBody{Error: msg})
}

func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("web: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
	}
	respondError(w, status, err.Error())
}
