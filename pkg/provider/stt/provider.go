// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider turns one complete recorded utterance into text. Backends
// range from an in-process whisper.cpp engine over a local whisper.cpp
// server to remote vendor APIs; all of them are batch engines here because
// a turn is only transcribed once the user has stopped speaking.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
)

// Result is the outcome of one transcription.
type Result struct {
	// Text is the recognized speech, trimmed of surrounding whitespace.
	Text string

	// Duration is the length of the transcribed audio as reported by the
	// backend, or computed from the clip when the backend does not report it.
	Duration time.Duration
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts clip to text. Failures are classified with the
	// sentinel errors of package provider (ErrConnection, ErrProtocol,
	// ErrAuth).
	Transcribe(ctx context.Context, clip audio.Clip) (*Result, error)

	// CheckConnection checks whether the backend is reachable and accepts
	// the configured credential. It returns nil when healthy.
	CheckConnection(ctx context.Context) error
}
