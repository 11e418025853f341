// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider turns one complete reply into playable audio. Callers ask
// for an abstract voice role; every provider owns the table that maps roles
// to its concrete voice identifiers, so callers never see vendor voice names.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/types"
)

// Request describes one synthesis.
type Request struct {
	// Text is the full text to speak.
	Text string

	// Voice is the abstract voice role. Unknown roles fall back to the
	// provider's female voice.
	Voice types.VoiceRole

	// Speed is the playback speed multiplier; 1.0 is normal. Zero means 1.0.
	Speed float64
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders req into audio. Failures are classified with the
	// sentinel errors of package provider.
	Synthesize(ctx context.Context, req Request) (audio.Clip, error)

	// CheckConnection checks whether the backend is reachable and accepts
	// the configured credential. It returns nil when healthy.
	CheckConnection(ctx context.Context) error
}

// VoiceTable maps abstract voice roles to concrete provider voices.
type VoiceTable map[types.VoiceRole]string

// Lookup returns the voice for role, falling back to the female voice.
func (t VoiceTable) Lookup(role types.VoiceRole) string {
	if v, ok := t[role]; ok && v != "" {
		return v
	}
	return t[types.VoiceFemale]
}

// ClampSpeed maps zero to 1.0 and clamps s into [0.25, 4.0], the range the
// OpenAI-style speech endpoints accept.
func ClampSpeed(s float64) float64 {
	switch {
	case s == 0:
		return 1.0
	case s < 0.25:
		return 0.25
	case s > 4.0:
		return 4.0
	}
	return s
}
