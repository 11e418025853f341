// Package llm defines the Provider interface for chat-completion backends.
//
// A chat provider wraps one vendor wire protocol (OpenAI-style, Anthropic-style,
// Ollama-style probing, or a vendor behind any-llm-go) and exposes a single
// request/response call: given the conversation so far and a system prompt,
// produce the partner's next line.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/MrWong99/parley/pkg/types"
)

// Message is one prior turn of the conversation.
type Message struct {
	Role    types.Role
	Content string
}

// ContinuityToken is opaque provider state that lets a provider continue a
// conversation without the full history being re-sent. Callers thread the
// token of one response into the next request of the same session and never
// reuse it across providers or sessions.
type ContinuityToken []int

// Request carries everything a provider needs to produce the next reply.
type Request struct {
	// History is the ordered conversation, oldest first. The last entry is
	// normally the user's latest utterance. System messages are not included;
	// see SystemPrompt.
	History []Message

	// SystemPrompt is the composed instruction for the partner.
	SystemPrompt string

	// Continuity is the token returned by the previous response, if any.
	Continuity ContinuityToken

	// Temperature controls randomness. Nil leaves the provider default.
	Temperature *float64

	// MaxTokens caps the reply length. Zero leaves the provider default.
	MaxTokens int
}

// Response is a completed reply.
type Response struct {
	Text string

	// Continuity is the updated token, or nil when the provider does not use
	// continuity tokens.
	Continuity ContinuityToken
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// Generate produces the next assistant reply. Failures are classified
	// with the sentinel errors of package provider (ErrConnection,
	// ErrProtocol, ErrAuth, ErrModelUnavailable).
	Generate(ctx context.Context, req Request) (*Response, error)

	// CheckConnection checks whether the backend is reachable and accepts
	// the configured credential. It returns nil when healthy.
	CheckConnection(ctx context.Context) error
}

// LastUser returns the content of the latest user message in history.
func LastUser(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
