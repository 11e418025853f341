package gateway

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/types"
)

// ChatOptions are the per-session chat settings.
type ChatOptions struct {
	Mode        PromptMode
	StylePrompt string

	// Temperature is passed to the provider as is. Nil leaves the provider
	// default.
	Temperature *float64
	MaxTokens   int
}

// Chat produces the conversation partner's replies.
type Chat struct {
	provider llm.Provider
	name     string
	opts     ChatOptions
	metrics  *observe.Metrics
}

// NewChat creates a Chat gateway around p, labelled name in telemetry.
// m may be nil.
func NewChat(p llm.Provider, name string, opts ChatOptions, m *observe.Metrics) *Chat {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	if opts.Mode == "" {
		opts.Mode = PromptEnhance
	}
	return &Chat{provider: p, name: name, opts: opts, metrics: m}
}

// Generate asks the provider for the next assistant line given the
// transcript so far. token is the continuity token of the previous reply in
// this session, or nil.
func (c *Chat) Generate(ctx context.Context, transcript []types.ConversationMessage, scenarioPrompt string, token llm.ContinuityToken) (*llm.Response, error) {
	req := llm.Request{
		History:      History(transcript),
		SystemPrompt: ComposePrompt(c.opts.Mode, scenarioPrompt, c.opts.StylePrompt),
		Continuity:   token,
		Temperature:  c.opts.Temperature,
		MaxTokens:    c.opts.MaxTokens,
	}

	ctx, span := observe.StartSpan(ctx, "llm.generate",
		trace.WithAttributes(
			attribute.String("provider", c.name),
			attribute.Int("history.len", len(req.History)),
			attribute.Bool("continuity", len(token) > 0),
		))
	start := time.Now()
	resp, err := c.provider.Generate(ctx, req)
	c.metrics.RecordProviderCall(ctx, observe.CapabilityLLM, c.name, time.Since(start), err)
	observe.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("gateway: generate: %w", err)
	}
	observe.Logger(ctx).Debug("generated",
		"provider", c.name,
		"chars", len(resp.Text),
		"latency", time.Since(start))
	return resp, nil
}

// CheckConnection reports whether the chat provider is reachable.
func (c *Chat) CheckConnection(ctx context.Context) error {
	return c.provider.CheckConnection(ctx)
}

// History converts a transcript into provider history. System messages are
// dropped because instructions travel in the system prompt.
func History(transcript []types.ConversationMessage) []llm.Message {
	out := make([]llm.Message, 0, len(transcript))
	for _, m := range transcript {
		if m.Role == types.RoleSystem {
			continue
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
