package resilience

import (
	"context"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] over a primary and an optional
// alternate synthesis backend. Each backend keeps its own voice table, so the
// abstract voice role is resolved by whichever backend serves the call.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// SetAlternate registers the alternate backend.
func (f *TTSFallback) SetAlternate(name string, p tts.Provider) {
	f.group.SetAlternate(name, p)
}

// Group exposes the underlying group.
func (f *TTSFallback) Group() *FallbackGroup[tts.Provider] { return f.group }

// Synthesize implements [tts.Provider].
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.Request) (audio.Clip, error) {
	clip, _, err := f.SynthesizeVia(ctx, req)
	return clip, err
}

// SynthesizeVia is Synthesize that also reports which backend answered.
func (f *TTSFallback) SynthesizeVia(ctx context.Context, req tts.Request) (audio.Clip, string, error) {
	return Execute(ctx, f.group, func(p tts.Provider) (audio.Clip, error) {
		return p.Synthesize(ctx, req)
	})
}

// CheckConnection implements [tts.Provider].
func (f *TTSFallback) CheckConnection(ctx context.Context) error {
	return f.group.CheckConnection(ctx)
}
