// Package types defines the records shared across all Parley packages.
//
// These types form the lingua franca between the conversation loop, the
// analysis engine, the store and the API. Each package defines its own
// domain types; cross-cutting records live here to avoid circular imports.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a [ConversationMessage].
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// VoiceRole is the abstract voice a scenario asks for. Speech providers map
// it to one of their concrete voices.
type VoiceRole string

const (
	VoiceMale   VoiceRole = "male"
	VoiceFemale VoiceRole = "female"
)

// Valid reports whether v is a known voice role.
func (v VoiceRole) Valid() bool { return v == VoiceMale || v == VoiceFemale }

// ConversationMessage is one entry of a session transcript. Timestamps are
// non-decreasing within a transcript.
type ConversationMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// AudioRef optionally points at stored audio for this message.
	AudioRef string `json:"audioRef,omitempty"`
}

// NewMessage returns a message with a fresh ID.
func NewMessage(role Role, content string, at time.Time) ConversationMessage {
	return ConversationMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: at,
	}
}

// SessionStatus is the lifecycle status of a [Session]. Ended is terminal.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusActive     SessionStatus = "active"
	StatusPaused     SessionStatus = "paused"
	StatusEnded      SessionStatus = "ended"
)

// EndReason records why a session ended.
type EndReason string

const (
	EndNatural   EndReason = "natural"
	EndUserEnded EndReason = "user_ended"
	EndTimeout   EndReason = "timeout"
	EndError     EndReason = "error"
)

// SessionMetadata holds derived per-session facts.
type SessionMetadata struct {
	WordsSpoken   int       `json:"wordsSpoken"`
	EndReason     EndReason `json:"endReason,omitempty"`
	NaturalEnding bool      `json:"naturalEnding"`
}

// Session is one practice conversation.
type Session struct {
	ID          string                `json:"id"`
	ScenarioRef string                `json:"scenarioRef"`
	Status      SessionStatus         `json:"status"`
	StartTime   time.Time             `json:"startTime"`
	EndTime     time.Time             `json:"endTime,omitzero"`
	Duration    float64               `json:"duration"` // seconds
	Transcript  []ConversationMessage `json:"transcript"`
	Metadata    SessionMetadata       `json:"metadata"`
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := s
	out.Transcript = make([]ConversationMessage, len(s.Transcript))
	copy(out.Transcript, s.Transcript)
	return out
}

// Messages returns the transcript entries authored by role.
func (s Session) Messages(role Role) []ConversationMessage {
	var out []ConversationMessage
	for _, m := range s.Transcript {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// Scenario describes a practice situation. It is read-only to the
// conversation core.
type Scenario struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	SystemPrompt     string    `json:"systemPrompt"`
	InitialMessage   string    `json:"initialMessage,omitempty"`
	VoiceRole        VoiceRole `json:"voiceRole"`
	Difficulty       string    `json:"difficulty,omitempty"`
	EstimatedMinutes int       `json:"estimatedMinutes,omitempty"`
}
