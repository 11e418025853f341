// Package api exposes Parley to its user interface.
//
// A single WebSocket at /ws carries the live conversation: JSON control
// messages in both directions, microphone audio from the client as binary
// frames and synthesized replies to the client as binary frames announced
// by an "audio" message. JSON endpoints under /api manage scenarios,
// sessions and preferences and compute session analyses on demand.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrWong99/parley/internal/conversation"
	"github.com/MrWong99/parley/internal/store"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/types"
)

// Sessions starts conversations and reports the running one.
type Sessions interface {
	Start(ctx context.Context, scenarioID string, in *audio.Input, out *audio.Output, onEvent func(conversation.Event)) (*conversation.Session, error)
	Active() *conversation.Session
}

// Server serves the WebSocket control channel and the JSON endpoints.
type Server struct {
	sessions       Sessions
	store          store.Store
	originPatterns []string
}

// Option configures a [Server].
type Option func(*Server)

// WithOriginPatterns allows WebSocket connections from the given origins in
// addition to the server's own host. Patterns use path.Match syntax.
func WithOriginPatterns(patterns []string) Option {
	return func(s *Server) { s.originPatterns = patterns }
}

// New creates a [Server].
func New(sessions Sessions, st store.Store, opts ...Option) *Server {
	s := &Server{sessions: sessions, store: st}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register installs all routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWS)
	s.registerREST(mux)
}

// loadSession returns the live snapshot when id is the running session and
// the stored record otherwise.
func (s *Server) loadSession(ctx context.Context, id string) (types.Session, error) {
	if active := s.sessions.Active(); active != nil && active.ID() == id {
		return active.Snapshot(), nil
	}
	return s.store.GetSession(ctx, id)
}

// errorCode classifies a failed client request.
func errorCode(err error) string {
	switch {
	case errors.Is(err, conversation.ErrBusy):
		return "busy"
	case errors.Is(err, conversation.ErrPaused):
		return "paused"
	case errors.Is(err, conversation.ErrNotStarted):
		return "not_started"
	case errors.Is(err, conversation.ErrEnded):
		return "ended"
	case errors.Is(err, conversation.ErrInvalidTransition):
		return "invalid_state"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, errNoSession):
		return "no_session"
	}
	var rec *conversation.RecordingError
	if errors.As(err, &rec) {
		return "recording"
	}
	return "failed"
}
