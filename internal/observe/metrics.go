// Package observe provides application-wide observability primitives for
// interviewcoach: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/MrWong99/interviewcoach"

// Analysis kinds used as the "kind" attribute.
const (
	KindQuestions = "questions"
	KindFeedback  = "feedback"
)

// Request and item statuses used as the "status" attribute.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// AnalysisDuration tracks analysis call latency. Use with attribute:
	//   attribute.String("kind", ...)
	AnalysisDuration metric.Float64Histogram

	// TTSDuration tracks the time from speak request to end of playback audio.
	TTSDuration metric.Float64Histogram

	// --- Answer statistics ---

	// AnswerDuration tracks the length of each captured answer in seconds.
	AnswerDuration metric.Float64Histogram

	// AnswerWPM tracks the speaking rate of each captured answer.
	AnswerWPM metric.Float64Histogram

	// --- Counters ---

	// AnalysisRequests counts analysis calls. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	AnalysisRequests metric.Int64Counter

	// FeedbackItems counts feedback pipeline items. Use with attribute:
	//   attribute.String("status", ...)
	FeedbackItems metric.Int64Counter

	// PhaseTransitions counts interview phase changes. Use with attributes:
	//   attribute.String("from", ...), attribute.String("to", ...)
	PhaseTransitions metric.Int64Counter

	// --- Gauges ---

	// CaptureActive is 1 while a speech capture stream is open.
	CaptureActive metric.Int64UpDownCounter

	// PlaybackActive is 1 while an utterance is being synthesised.
	PlaybackActive metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// network-bound analysis and synthesis calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40,
}

// answerBuckets covers spoken answers from a few seconds to several minutes.
var answerBuckets = []float64{
	5, 15, 30, 60, 90, 120, 180, 300, 600,
}

// wpmBuckets brackets conversational speaking rates.
var wpmBuckets = []float64{
	60, 90, 110, 130, 150, 170, 190, 220, 260,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("interviewcoach.analysis.duration",
		metric.WithDescription("Latency of analysis calls by kind."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("interviewcoach.tts.duration",
		metric.WithDescription("Duration of text-to-speech utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnswerDuration, err = m.Float64Histogram("interviewcoach.answer.duration",
		metric.WithDescription("Length of captured answers."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(answerBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnswerWPM, err = m.Float64Histogram("interviewcoach.answer.wpm",
		metric.WithDescription("Speaking rate of captured answers in words per minute."),
		metric.WithUnit("{word}/min"),
		metric.WithExplicitBucketBoundaries(wpmBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AnalysisRequests, err = m.Int64Counter("interviewcoach.analysis.requests",
		metric.WithDescription("Total analysis calls by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.FeedbackItems, err = m.Int64Counter("interviewcoach.feedback.items",
		metric.WithDescription("Total feedback pipeline items by status."),
	); err != nil {
		return nil, err
	}
	if met.PhaseTransitions, err = m.Int64Counter("interviewcoach.phase.transitions",
		metric.WithDescription("Total interview phase transitions."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.CaptureActive, err = m.Int64UpDownCounter("interviewcoach.capture.active",
		metric.WithDescription("Number of open speech capture streams."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackActive, err = m.Int64UpDownCounter("interviewcoach.playback.active",
		metric.WithDescription("Number of utterances currently being synthesised."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("interviewcoach.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAnalysis records one analysis call: its latency and a request counter
// increment with the standard attribute set.
func (m *Metrics) RecordAnalysis(ctx context.Context, kind string, d time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = StatusFailed
	}
	m.AnalysisDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("kind", kind)),
	)
	m.AnalysisRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordFeedbackItem records the outcome of one feedback pipeline item.
func (m *Metrics) RecordFeedbackItem(ctx context.Context, status string) {
	m.FeedbackItems.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordPhaseTransition records a phase change.
func (m *Metrics) RecordPhaseTransition(ctx context.Context, from, to string) {
	m.PhaseTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordAnswer records the length and speaking rate of a captured answer.
func (m *Metrics) RecordAnswer(ctx context.Context, d time.Duration, wpm int) {
	m.AnswerDuration.Record(ctx, d.Seconds())
	m.AnswerWPM.Record(ctx, float64(wpm))
}
