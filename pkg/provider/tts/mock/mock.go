// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Clip is returned by Synthesize when Err is nil. When empty, a one-byte
	// MP3 placeholder is returned.
	Clip audio.Clip

	// Err, if non-nil, is returned by Synthesize.
	Err error

	// CheckErr is returned by CheckConnection.
	CheckErr error

	synthesizeCalls []tts.Request
	checkCalls      int
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize records the call and returns Clip, Err.
func (p *Provider) Synthesize(_ context.Context, req tts.Request) (audio.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synthesizeCalls = append(p.synthesizeCalls, req)
	if p.Err != nil {
		return audio.Clip{}, p.Err
	}
	if p.Clip.Empty() {
		return audio.Clip{Data: []byte{0}, MIMEType: audio.MIMEMP3}, nil
	}
	return p.Clip, nil
}

// CheckConnection records the call and returns CheckErr.
func (p *Provider) CheckConnection(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkCalls++
	return p.CheckErr
}

// SynthesizeCalls returns a copy of all recorded requests.
func (p *Provider) SynthesizeCalls() []tts.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tts.Request, len(p.synthesizeCalls))
	copy(out, p.synthesizeCalls)
	return out
}

// CheckCalls returns how many times CheckConnection was called.
func (p *Provider) CheckCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkCalls
}
