// Package store defines persistence for scenarios, sessions and key-value
// preferences.
//
// Two implementations exist: [MemStore] for single-process use and tests,
// and the PostgreSQL store in the postgres subpackage. Both return copies,
// so callers never share memory with the store.
package store

import (
	"context"
	"errors"

	"github.com/MrWong99/parley/pkg/types"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrExists is returned by create operations for an ID already in use.
var ErrExists = errors.New("store: already exists")

// ScenarioStore persists practice scenarios.
type ScenarioStore interface {
	GetScenario(ctx context.Context, id string) (types.Scenario, error)
	ListScenarios(ctx context.Context) ([]types.Scenario, error)
	CreateScenario(ctx context.Context, s types.Scenario) error
	UpdateScenario(ctx context.Context, id string, patch ScenarioPatch) (types.Scenario, error)
	DeleteScenario(ctx context.Context, id string) error
}

// SessionStore persists session records including their transcripts.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (types.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]types.Session, error)
	CreateSession(ctx context.Context, s types.Session) error

	// SaveSession inserts or replaces s. It is the checkpoint write.
	SaveSession(ctx context.Context, s types.Session) error

	UpdateSession(ctx context.Context, id string, patch SessionPatch) (types.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// PreferenceStore persists string preferences by key.
type PreferenceStore interface {
	GetPreference(ctx context.Context, key string) (string, error)
	ListPreferences(ctx context.Context) (map[string]string, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

// Store is the complete persistence surface.
type Store interface {
	ScenarioStore
	SessionStore
	PreferenceStore

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error

	Close()
}

// SessionFilter narrows [SessionStore.ListSessions]. Zero fields match
// everything. Results are ordered newest first.
type SessionFilter struct {
	ScenarioRef string
	Status      types.SessionStatus
	Limit       int
}

// Match reports whether s passes the filter, ignoring Limit.
func (f SessionFilter) Match(s types.Session) bool {
	if f.ScenarioRef != "" && s.ScenarioRef != f.ScenarioRef {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

// ScenarioPatch lists the scenario fields to change. Nil fields are kept.
type ScenarioPatch struct {
	Title            *string          `json:"title,omitempty"`
	SystemPrompt     *string          `json:"systemPrompt,omitempty"`
	InitialMessage   *string          `json:"initialMessage,omitempty"`
	VoiceRole        *types.VoiceRole `json:"voiceRole,omitempty"`
	Difficulty       *string          `json:"difficulty,omitempty"`
	EstimatedMinutes *int             `json:"estimatedMinutes,omitempty"`
}

// Apply writes the set fields onto s.
func (p ScenarioPatch) Apply(s *types.Scenario) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.SystemPrompt != nil {
		s.SystemPrompt = *p.SystemPrompt
	}
	if p.InitialMessage != nil {
		s.InitialMessage = *p.InitialMessage
	}
	if p.VoiceRole != nil {
		s.VoiceRole = *p.VoiceRole
	}
	if p.Difficulty != nil {
		s.Difficulty = *p.Difficulty
	}
	if p.EstimatedMinutes != nil {
		s.EstimatedMinutes = *p.EstimatedMinutes
	}
}

// SessionPatch lists the session fields to change. Nil fields are kept.
type SessionPatch struct {
	Status   *types.SessionStatus   `json:"status,omitempty"`
	Metadata *types.SessionMetadata `json:"metadata,omitempty"`
}

// Apply writes the set fields onto s.
func (p SessionPatch) Apply(s *types.Session) {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Metadata != nil {
		s.Metadata = *p.Metadata
	}
}

// ValidateScenario checks the fields a conversation needs.
func ValidateScenario(s types.Scenario) error {
	var errs []error
	if s.ID == "" {
		errs = append(errs, errors.New("store: scenario id is required"))
	}
	if s.SystemPrompt == "" {
		errs = append(errs, errors.New("store: scenario system prompt is required"))
	}
	if s.VoiceRole != "" && !s.VoiceRole.Valid() {
		errs = append(errs, errors.New("store: scenario voice role must be male or female"))
	}
	return errors.Join(errs...)
}
