// Package anthropic provides a chat provider for the Anthropic Messages
// protocol. Unlike OpenAI-style servers the system prompt travels in its own
// field, the key is sent as x-api-key, and max_tokens is mandatory.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/MrWong99/parley/pkg/provider"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/types"
)

// defaultMaxTokens is sent when the request leaves MaxTokens at zero, since
// the protocol has no server-side default.
const defaultMaxTokens = 1024

var _ llm.Provider = (*Provider)(nil)

// Provider implements llm.Provider using the Anthropic Messages API.
type Provider struct {
	client anthropicsdk.Client
	model  string
}

type config struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// New constructs an Anthropic chat Provider.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("anthropic: model must not be empty")
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	switch {
	case cfg.httpClient != nil:
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	case cfg.timeout > 0:
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{client: anthropicsdk.NewClient(reqOpts...), model: model}, nil
}

// Generate implements llm.Provider.
func (p *Provider) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	msg, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages: %w", classify(err))
	}
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		if text := strings.TrimSpace(block.Text); text != "" {
			return &llm.Response{Text: text}, nil
		}
	}
	return nil, fmt.Errorf("anthropic: %w: no text content block", provider.ErrProtocol)
}

// CheckConnection lists models to verify reachability and the key.
func (p *Provider) CheckConnection(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx, anthropicsdk.ModelListParams{}); err != nil {
		return fmt.Errorf("anthropic: list models: %w", classify(err))
	}
	return nil
}

func (p *Provider) buildParams(req llm.Request) anthropicsdk.MessageNewParams {
	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(p.model),
		MaxTokens: maxTokens,
		Messages:  convertHistory(req.History),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*req.Temperature)
	}
	return params
}

// convertHistory maps history onto alternating user/assistant messages.
// System entries are folded into the user side since the protocol only
// accepts a system prompt at the top level. The conversation must open with
// a user turn, so a leading assistant greeting is preceded by a placeholder.
func convertHistory(history []llm.Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, 0, len(history)+1)
	for i, m := range history {
		block := anthropicsdk.NewTextBlock(m.Content)
		if m.Role == types.RoleAssistant {
			if i == 0 {
				out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock("(conversation start)")))
			}
			out = append(out, anthropicsdk.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropicsdk.NewUserMessage(block))
	}
	return out
}

func classify(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return provider.StatusError(apiErr.StatusCode, apiErr.Error())
	}
	return provider.TransportError(err)
}
