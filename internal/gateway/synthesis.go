package gateway

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/resilience"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/tts"
	"github.com/MrWong99/parley/pkg/types"
)

// Synthesis turns reply text into speech and plays it.
type Synthesis struct {
	providers *resilience.TTSFallback
	metrics   *observe.Metrics
}

// NewSynthesis creates a Synthesis gateway. m may be nil.
func NewSynthesis(providers *resilience.TTSFallback, m *observe.Metrics) *Synthesis {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Synthesis{providers: providers, metrics: m}
}

// Synthesize renders text with the given abstract voice and speed.
func (g *Synthesis) Synthesize(ctx context.Context, text string, voice types.VoiceRole, speed float64) (audio.Clip, error) {
	ctx, span := observe.StartSpan(ctx, "tts.synthesize",
		trace.WithAttributes(
			attribute.String("provider.primary", g.providers.Group().PrimaryName()),
			attribute.String("voice", string(voice)),
			attribute.Int("text.chars", len(text)),
		))
	start := time.Now()

	clip, via, err := g.providers.SynthesizeVia(ctx, tts.Request{
		Text:  text,
		Voice: voice,
		Speed: tts.ClampSpeed(speed),
	})
	g.metrics.RecordProviderCall(ctx, observe.CapabilityTTS, via, time.Since(start), err)
	span.SetAttributes(attribute.String("provider", via))
	observe.EndSpan(span, err)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("gateway: synthesize: %w", err)
	}
	observe.Logger(ctx).Debug("synthesized",
		"provider", via,
		"bytes", len(clip.Data),
		"latency", time.Since(start))
	return clip, nil
}

// Speak stops whatever out is playing, synthesizes text and plays it,
// blocking until playback ends. It returns [audio.ErrInterrupted] when the
// playback is stopped early.
func (g *Synthesis) Speak(ctx context.Context, out *audio.Output, text string, voice types.VoiceRole, speed float64) error {
	out.Stop()
	clip, err := g.Synthesize(ctx, text, voice, speed)
	if err != nil {
		return err
	}
	return out.Play(ctx, clip)
}

// CheckConnection reports whether a synthesis call could currently succeed.
func (g *Synthesis) CheckConnection(ctx context.Context) error {
	return g.providers.CheckConnection(ctx)
}
