package conversation

import (
	"sync"
	"testing"
	"time"
)

func TestNoticeBoard_AutoDismiss(t *testing.T) {
	t.Parallel()

	sched := NewScheduler()
	defer sched.Stop()

	dismissed := make(chan string, 1)
	var (
		mu     sync.Mutex
		posted []Notice
	)
	b := NewNoticeBoard(20*time.Millisecond, sched, func(n Notice) {
		mu.Lock()
		posted = append(posted, n)
		mu.Unlock()
	}, func(id string) { dismissed <- id })

	n := b.Post(NoticeError, "Transcription failed")
	if got := b.Active(); len(got) != 1 || got[0].ID != n.ID {
		t.Fatalf("Active = %+v", got)
	}
	if !n.ExpiresAt.After(n.CreatedAt) {
		t.Errorf("ExpiresAt %v not after CreatedAt %v", n.ExpiresAt, n.CreatedAt)
	}

	select {
	case id := <-dismissed:
		if id != n.ID {
			t.Errorf("dismissed %q, want %q", id, n.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notice was not dismissed")
	}
	if got := b.Active(); len(got) != 0 {
		t.Errorf("Active after dismiss = %+v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(posted) != 1 {
		t.Errorf("onPost called %d times", len(posted))
	}
}

func TestNoticeBoard_DismissEarly(t *testing.T) {
	t.Parallel()

	sched := NewScheduler()
	defer sched.Stop()

	var calls int
	b := NewNoticeBoard(time.Hour, sched, nil, func(string) { calls++ })
	a := b.Post(NoticeInfo, "first")
	second := b.Post(NoticeWarning, "second")

	b.Dismiss(a.ID)
	b.Dismiss(a.ID)
	b.Dismiss("unknown")

	if calls != 1 {
		t.Errorf("onDismiss called %d times, want 1", calls)
	}
	if got := b.Active(); len(got) != 1 || got[0].ID != second.ID {
		t.Errorf("Active = %+v", got)
	}
	if sched.Pending("notice:" + a.ID) {
		t.Error("dismissed notice still scheduled")
	}
}
