// Package ollama provides a chat provider for Ollama servers and other
// loosely specified self-hosted endpoints.
//
// Because such servers expose different subsets of routes, Generate walks an
// ordered strategy chain and stops at the first strategy that yields text:
//
//  1. chat: POST /api/chat with the full message array
//  2. generate: POST /api/generate with a single prompt plus the continuity
//     token, which the server answers with an updated token
//  3. openai: the OpenAI-compatible /v1/chat/completions route
//
// When every strategy fails the model catalog (/api/tags) is queried and a
// [provider.ModelUnavailableError] is returned that lists the models the
// server actually has, along with the diagnostic error of each attempt.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/MrWong99/parley/pkg/provider"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/provider/llm/openai"
	"github.com/MrWong99/parley/pkg/types"
)

// DefaultBaseURL is where a local Ollama daemon listens.
const DefaultBaseURL = "http://localhost:11434"

var _ llm.Provider = (*Provider)(nil)

// strategy is one step of the chain.
type strategy struct {
	name string
	run  func(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Provider implements llm.Provider against an Ollama-style server.
type Provider struct {
	client *api.Client
	compat llm.Provider
	model  string
	chain  []strategy
}

type config struct {
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithAPIKey sets a bearer token sent on every request. Plain Ollama needs
// none; hosted gateways in front of it usually do.
func WithAPIKey(key string) Option {
	return func(c *config) { c.apiKey = key }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// New constructs a Provider for the server at baseURL. An empty baseURL
// selects DefaultBaseURL.
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, errors.New("ollama: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse base url: %w", err)
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}
	if cfg.apiKey != "" {
		authed := *hc
		authed.Transport = bearerTransport{key: cfg.apiKey, next: transportOf(hc)}
		hc = &authed
	}

	compatKey := cfg.apiKey
	if compatKey == "" {
		// The compat route ignores the key but the client refuses an empty one.
		compatKey = "ollama"
	}
	compat, err := openai.New(compatKey, model,
		openai.WithBaseURL(baseURL+"/v1/"),
		openai.WithHTTPClient(hc),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	p := &Provider{
		client: api.NewClient(u, hc),
		compat: compat,
		model:  model,
	}
	p.chain = []strategy{
		{name: "chat", run: p.chat},
		{name: "generate", run: p.generate},
		{name: "openai", run: p.compat.Generate},
	}
	return p, nil
}

// Generate implements llm.Provider by walking the strategy chain.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	var attempts []error
	for _, s := range p.chain {
		resp, err := s.run(ctx, req)
		if err == nil {
			return resp, nil
		}
		attempts = append(attempts, fmt.Errorf("%s: %w", s.name, err))
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ollama: %w", errors.Join(attempts...))
		}
	}

	mue := &provider.ModelUnavailableError{Model: p.model, Attempts: attempts}
	list, err := p.client.List(ctx)
	if err != nil {
		mue.Attempts = append(mue.Attempts, fmt.Errorf("catalog: %w", classify(err)))
		return nil, fmt.Errorf("ollama: %w", mue)
	}
	for _, m := range list.Models {
		mue.Available = append(mue.Available, m.Name)
	}
	return nil, fmt.Errorf("ollama: %w", mue)
}

// CheckConnection pings the server root.
func (p *Provider) CheckConnection(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama: heartbeat: %w", classify(err))
	}
	return nil
}

func (p *Provider) chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	msgs := make([]api.Message, 0, len(req.History)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, api.Message{Role: string(types.RoleSystem), Content: req.SystemPrompt})
	}
	for _, m := range req.History {
		msgs = append(msgs, api.Message{Role: string(m.Role), Content: m.Content})
	}
	stream := false
	var text strings.Builder
	err := p.client.Chat(ctx, &api.ChatRequest{
		Model:    p.model,
		Messages: msgs,
		Stream:   &stream,
		Options:  options(req),
	}, func(r api.ChatResponse) error {
		text.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, fmt.Errorf("%w: empty chat response", provider.ErrProtocol)
	}
	return &llm.Response{Text: out}, nil
}

func (p *Provider) generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	stream := false
	var (
		text  strings.Builder
		token []int
	)
	err := p.client.Generate(ctx, &api.GenerateRequest{
		Model:   p.model,
		Prompt:  generatePrompt(req),
		System:  req.SystemPrompt,
		Context: req.Continuity,
		Stream:  &stream,
		Options: options(req),
	}, func(r api.GenerateResponse) error {
		text.WriteString(r.Response)
		if r.Done {
			token = r.Context
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return nil, fmt.Errorf("%w: empty generate response", provider.ErrProtocol)
	}
	return &llm.Response{Text: out, Continuity: token}, nil
}

// generatePrompt picks what the single-prompt route receives. With a
// continuity token the server already holds the earlier turns, so only the
// latest user line is sent; without one the transcript is flattened.
func generatePrompt(req llm.Request) string {
	if len(req.Continuity) > 0 {
		if last := llm.LastUser(req.History); last != "" {
			return last
		}
	}
	var b strings.Builder
	for _, m := range req.History {
		switch m.Role {
		case types.RoleAssistant:
			b.WriteString("Assistant: ")
		case types.RoleSystem:
			b.WriteString("System: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}

func options(req llm.Request) map[string]any {
	opts := map[string]any{}
	if req.Temperature != nil {
		opts["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func classify(err error) error {
	var se api.StatusError
	if errors.As(err, &se) {
		msg := se.ErrorMessage
		if msg == "" {
			msg = se.Status
		}
		if se.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(msg), "not found") {
			return fmt.Errorf("%w: %s", provider.ErrModelUnavailable, msg)
		}
		return provider.StatusError(se.StatusCode, msg)
	}
	return provider.TransportError(err)
}

type bearerTransport struct {
	key  string
	next http.RoundTripper
}

func (t bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+t.key)
	return t.next.RoundTrip(r)
}

func transportOf(hc *http.Client) http.RoundTripper {
	if hc.Transport != nil {
		return hc.Transport
	}
	return http.DefaultTransport
}
