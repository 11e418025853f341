package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/resilience"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

// ErrNoSpeech is returned when a transcription succeeds but contains no
// words, e.g. the user pressed record and said nothing.
var ErrNoSpeech = errors.New("gateway: no speech recognised")

// Transcription turns captured audio into text.
type Transcription struct {
	providers *resilience.STTFallback
	metrics   *observe.Metrics
}

// NewTranscription creates a Transcription gateway. m may be nil, in which
// case [observe.DefaultMetrics] is used.
func NewTranscription(providers *resilience.STTFallback, m *observe.Metrics) *Transcription {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Transcription{providers: providers, metrics: m}
}

// Transcribe returns the recognised text and its duration.
func (g *Transcription) Transcribe(ctx context.Context, clip audio.Clip) (*stt.Result, error) {
	ctx, span := observe.StartSpan(ctx, "stt.transcribe",
		trace.WithAttributes(
			attribute.String("provider.primary", g.providers.Group().PrimaryName()),
			attribute.Int("audio.bytes", len(clip.Data)),
		))
	start := time.Now()

	res, via, err := g.providers.TranscribeVia(ctx, clip)
	g.metrics.RecordProviderCall(ctx, observe.CapabilitySTT, via, time.Since(start), err)
	span.SetAttributes(attribute.String("provider", via))
	if err != nil {
		observe.EndSpan(span, err)
		return nil, fmt.Errorf("gateway: transcribe: %w", err)
	}
	observe.EndSpan(span, nil)

	res.Text = strings.TrimSpace(res.Text)
	observe.Logger(ctx).Debug("transcribed",
		"provider", via,
		"chars", len(res.Text),
		"audio_duration", res.Duration,
		"latency", time.Since(start))
	if res.Text == "" {
		return nil, ErrNoSpeech
	}
	return res, nil
}

// CheckConnection reports whether a transcription call could currently
// succeed.
func (g *Transcription) CheckConnection(ctx context.Context) error {
	return g.providers.CheckConnection(ctx)
}
