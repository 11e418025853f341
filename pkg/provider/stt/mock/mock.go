// Package mock provides a test double for the stt.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Result: &stt.Result{Text: "hello"}}
//	res, _ := p.Transcribe(ctx, clip)
//	calls := p.TranscribeCalls()
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result *stt.Result

	// Err, if non-nil, is returned by Transcribe.
	Err error

	// CheckErr is returned by CheckConnection.
	CheckErr error

	// TranscribeFunc, when set, overrides Result and Err.
	TranscribeFunc func(ctx context.Context, clip audio.Clip) (*stt.Result, error)

	transcribeCalls []audio.Clip
	checkCalls      int
}

var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip) (*stt.Result, error) {
	p.mu.Lock()
	p.transcribeCalls = append(p.transcribeCalls, clip)
	fn, res, err := p.TranscribeFunc, p.Result, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, clip)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &stt.Result{}, nil
	}
	out := *res
	return &out, nil
}

// CheckConnection records the call and returns CheckErr.
func (p *Provider) CheckConnection(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkCalls++
	return p.CheckErr
}

// TranscribeCalls returns a copy of the clips passed to Transcribe.
func (p *Provider) TranscribeCalls() []audio.Clip {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audio.Clip, len(p.transcribeCalls))
	copy(out, p.transcribeCalls)
	return out
}

// CheckCalls returns how many times CheckConnection was called.
func (p *Provider) CheckCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkCalls
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcribeCalls = nil
	p.checkCalls = 0
}
