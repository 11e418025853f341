package conversation

import "github.com/MrWong99/parley/pkg/types"

// EventKind names what an [Event] reports.
type EventKind string

const (
	EventState           EventKind = "state"
	EventStatus          EventKind = "status"
	EventMessage         EventKind = "message"
	EventNotice          EventKind = "notice"
	EventNoticeDismissed EventKind = "notice_dismissed"
	EventMute            EventKind = "mute"
	EventEnded           EventKind = "ended"
)

// Event is a change in a session pushed to the UI. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind      EventKind `json:"type"`
	SessionID string    `json:"sessionId"`

	State    State                      `json:"state"`
	Status   types.SessionStatus        `json:"status,omitempty"`
	Message  *types.ConversationMessage `json:"message,omitempty"`
	Notice   *Notice                    `json:"notice,omitempty"`
	NoticeID string                     `json:"noticeId,omitempty"`
	Muted    *bool                      `json:"muted,omitempty"`
	Session  *types.Session             `json:"session,omitempty"`
}
