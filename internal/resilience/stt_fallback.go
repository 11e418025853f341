package resilience

import (
	"context"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] over a primary and an optional
// alternate transcription backend.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// SetAlternate registers the alternate backend.
func (f *STTFallback) SetAlternate(name string, p stt.Provider) {
	f.group.SetAlternate(name, p)
}

// Group exposes the underlying group, e.g. for naming in metrics.
func (f *STTFallback) Group() *FallbackGroup[stt.Provider] { return f.group }

// Transcribe implements [stt.Provider].
func (f *STTFallback) Transcribe(ctx context.Context, clip audio.Clip) (*stt.Result, error) {
	res, _, err := f.TranscribeVia(ctx, clip)
	return res, err
}

// TranscribeVia is Transcribe that also reports which backend answered.
func (f *STTFallback) TranscribeVia(ctx context.Context, clip audio.Clip) (*stt.Result, string, error) {
	return Execute(ctx, f.group, func(p stt.Provider) (*stt.Result, error) {
		return p.Transcribe(ctx, clip)
	})
}

// CheckConnection implements [stt.Provider].
func (f *STTFallback) CheckConnection(ctx context.Context) error {
	return f.group.CheckConnection(ctx)
}
