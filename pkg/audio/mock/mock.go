// Package mock provides in-memory mock implementations of [audio.Recorder]
// and [audio.Player] for use in unit tests.
//
// Both mocks are safe for concurrent use. They record every call so tests
// can assert on counts and arguments, and expose exported fields that
// control return values.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/parley/pkg/audio"
)

// ─── Recorder ─────────────────────────────────────────────────────────────────

// Recorder is a mock implementation of [audio.Recorder].
type Recorder struct {
	mu sync.Mutex

	// StartErr is returned by [Recorder.Start].
	StartErr error

	// Clip is returned by [Recorder.Stop].
	Clip audio.Clip

	// StopErr is returned by [Recorder.Stop].
	StopErr error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	// CallCountAbort records how many times Abort was called.
	CallCountAbort int
}

var _ audio.Recorder = (*Recorder)(nil)

// Start implements [audio.Recorder].
func (r *Recorder) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCountStart++
	return r.StartErr
}

// Stop implements [audio.Recorder].
func (r *Recorder) Stop(_ context.Context) (audio.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCountStop++
	return r.Clip, r.StopErr
}

// Abort implements [audio.Recorder].
func (r *Recorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCountAbort++
}

// Calls returns the Start, Stop and Abort call counts.
func (r *Recorder) Calls() (start, stop, abort int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.CallCountStart, r.CallCountStop, r.CallCountAbort
}

// ─── Player ───────────────────────────────────────────────────────────────────

// Player is a mock implementation of [audio.Player].
//
// When Hold is true, Play blocks until ctx is cancelled, Stop is called or
// Release is called; otherwise it returns immediately.
type Player struct {
	mu sync.Mutex

	// Hold makes Play block until released.
	Hold bool

	// PlayErr is returned by [Player.Play] when playback is not interrupted.
	PlayErr error

	// Played records every clip passed to Play, in order.
	Played []audio.Clip

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	release chan struct{}
	started chan struct{}
}

var _ audio.Player = (*Player)(nil)

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	p.Played = append(p.Played, clip)
	hold := p.Hold
	if p.release == nil {
		p.release = make(chan struct{})
	}
	release := p.release
	started := p.started
	p.started = nil
	err := p.PlayErr
	p.mu.Unlock()

	if started != nil {
		close(started)
	}
	if !hold {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-release:
		return err
	}
}

// Stop implements [audio.Player]. It releases a held playback.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountStop++
	p.releaseLocked()
}

// Release completes a held playback as if the clip had finished.
func (p *Player) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked()
}

// Started returns a channel that is closed when the next Play call begins.
func (p *Player) Started() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started == nil {
		p.started = make(chan struct{})
	}
	return p.started
}

// PlayedClips returns a copy of all clips played so far.
func (p *Player) PlayedClips() []audio.Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audio.Clip, len(p.Played))
	copy(out, p.Played)
	return out
}

func (p *Player) releaseLocked() {
	if p.release != nil {
		close(p.release)
		p.release = nil
	}
}
