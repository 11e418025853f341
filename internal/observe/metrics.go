// Package observe provides observability for parley: OpenTelemetry metrics
// and traces, a trace-aware logger, and HTTP middleware that ties them
// together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported
// through the Prometheus bridge set up by [InitProvider]; [Handler] serves
// them on /metrics. Tests should build their own [Metrics] with [NewMetrics]
// and a ManualReader to avoid cross-test pollution.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/parley/pkg/provider"
)

// meterName is the instrumentation scope name used for all parley metrics.
const meterName = "github.com/MrWong99/parley"

// Capability names used as the "capability" attribute.
const (
	CapabilitySTT = "stt"
	CapabilityTTS = "tts"
	CapabilityLLM = "llm"
)

// Metrics holds every metric instrument of the application.
type Metrics struct {
	// ProviderDuration tracks provider call latency. Attributes:
	// capability, provider, status (ok|error).
	ProviderDuration metric.Float64Histogram

	// ProviderErrors counts failed provider calls. Attributes: capability,
	// provider, class (connection|protocol|auth|model_unavailable|other).
	ProviderErrors metric.Int64Counter

	// Fallbacks counts alternate-provider attempts. Attributes: capability,
	// from, to.
	Fallbacks metric.Int64Counter

	// TurnDuration tracks the time from end of recording to reply ready.
	// Attribute: status.
	TurnDuration metric.Float64Histogram

	// StateTransitions counts conversation state changes. Attributes: from, to.
	StateTransitions metric.Int64Counter

	// SessionsEnded counts ended sessions. Attribute: reason.
	SessionsEnded metric.Int64Counter

	// ActiveSessions tracks sessions that have started and not yet ended.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request time. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, sized for remote
// speech and chat calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// NewMetrics creates every instrument on the given [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ProviderDuration, err = m.Float64Histogram("parley.provider.duration",
		metric.WithDescription("Latency of provider calls by capability and provider."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("parley.provider.errors",
		metric.WithDescription("Failed provider calls by capability, provider and error class."),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("parley.provider.fallbacks",
		metric.WithDescription("Alternate provider attempts after a primary failure."),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("parley.turn.duration",
		metric.WithDescription("Time from end of user speech to reply ready."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StateTransitions, err = m.Int64Counter("parley.conversation.transitions",
		metric.WithDescription("Conversation state machine transitions."),
	); err != nil {
		return nil, err
	}
	if met.SessionsEnded, err = m.Int64Counter("parley.sessions.ended",
		metric.WithDescription("Ended sessions by end reason."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("parley.sessions.active",
		metric.WithDescription("Sessions currently in progress."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("parley.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, created on
// first call from [otel.GetMeterProvider].
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

// ErrorClass maps an error onto the provider taxonomy label.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, provider.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, provider.ErrAuth):
		return "auth"
	case errors.Is(err, provider.ErrConnection):
		return "connection"
	case errors.Is(err, provider.ErrProtocol):
		return "protocol"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}

// RecordProviderCall records latency for one provider call and, on failure,
// increments the error counter.
func (m *Metrics) RecordProviderCall(ctx context.Context, capability, name string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("capability", capability),
			attribute.String("provider", name),
			attribute.String("class", ErrorClass(err)),
		))
	}
	m.ProviderDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("provider", name),
		attribute.String("status", status),
	))
}

// RecordFallback counts one alternate-provider attempt.
func (m *Metrics) RecordFallback(ctx context.Context, capability, from, to string) {
	m.Fallbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordTransition counts one state machine transition.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	m.StateTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordTurn records the latency of one completed or failed turn.
func (m *Metrics) RecordTurn(ctx context.Context, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TurnDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// RecordSessionEnded counts an ended session.
func (m *Metrics) RecordSessionEnded(ctx context.Context, reason string) {
	m.SessionsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
