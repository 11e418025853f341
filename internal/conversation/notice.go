package conversation

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// NoticeLevel grades a user-visible notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// DefaultNoticeTTL is how long a notice stays visible.
const DefaultNoticeTTL = 5 * time.Second

// Notice is a transient message shown to the user, e.g. after a failed turn.
type Notice struct {
	ID        string      `json:"id"`
	Level     NoticeLevel `json:"level"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// NoticeBoard holds the currently visible notices and dismisses each one
// after its TTL.
type NoticeBoard struct {
	ttl       time.Duration
	sched     *Scheduler
	now       func() time.Time
	onPost    func(Notice)
	onDismiss func(id string)

	mu     sync.Mutex
	active []Notice
}

// NewNoticeBoard creates a board. onPost and onDismiss may be nil.
func NewNoticeBoard(ttl time.Duration, sched *Scheduler, onPost func(Notice), onDismiss func(id string)) *NoticeBoard {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &NoticeBoard{
		ttl:       ttl,
		sched:     sched,
		now:       time.Now,
		onPost:    onPost,
		onDismiss: onDismiss,
	}
}

// Post shows a notice and schedules its dismissal.
func (b *NoticeBoard) Post(level NoticeLevel, text string) Notice {
	now := b.now()
	n := Notice{
		ID:        uuid.NewString(),
		Level:     level,
		Text:      text,
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
	}
	b.mu.Lock()
	b.active = append(b.active, n)
	b.mu.Unlock()

	b.sched.After("notice:"+n.ID, b.ttl, func() { b.Dismiss(n.ID) })
	if b.onPost != nil {
		b.onPost(n)
	}
	return n
}

// Dismiss removes a notice early. Unknown IDs are ignored.
func (b *NoticeBoard) Dismiss(id string) {
	b.mu.Lock()
	i := slices.IndexFunc(b.active, func(n Notice) bool { return n.ID == id })
	if i < 0 {
		b.mu.Unlock()
		return
	}
	b.active = slices.Delete(b.active, i, i+1)
	b.mu.Unlock()

	b.sched.Cancel("notice:" + id)
	if b.onDismiss != nil {
		b.onDismiss(id)
	}
}

// Active returns the visible notices, oldest first.
func (b *NoticeBoard) Active() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.active)
}
