// Package mock provides a test double for the llm.Provider interface.
//
// Set Responses to script a sequence of replies; each Generate call consumes
// the next one and the last entry repeats once the script is exhausted.
//
//	p := &mock.Provider{Responses: []llm.Response{{Text: "Hello!"}}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/parley/pkg/provider/llm"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	Ctx context.Context
	Req llm.Request
}

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Responses are returned in order. With none set, Generate returns an
	// empty Response.
	Responses []llm.Response

	// Err, if non-nil, is returned from Generate.
	Err error

	// CheckErr is returned from CheckConnection.
	CheckErr error

	// GenerateFunc, if set, overrides every other field.
	GenerateFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)

	calls      []GenerateCall
	checkCalls int
}

var _ llm.Provider = (*Provider)(nil)

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.calls = append(p.calls, GenerateCall{Ctx: ctx, Req: req})
	fn, err := p.GenerateFunc, p.Err
	var resp llm.Response
	if n := len(p.Responses); n > 0 {
		idx := len(p.calls) - 1
		if idx >= n {
			idx = n - 1
		}
		resp = p.Responses[idx]
	}
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckConnection implements llm.Provider.
func (p *Provider) CheckConnection(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkCalls++
	return p.CheckErr
}

// GenerateCalls returns a copy of every recorded Generate invocation.
func (p *Provider) GenerateCalls() []GenerateCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]GenerateCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// CheckCalls returns how often CheckConnection was called.
func (p *Provider) CheckCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkCalls
}

// SetErr replaces Err under the lock, for tests that flip a provider
// between healthy and failing while calls are in flight.
func (p *Provider) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
	p.checkCalls = 0
}
