package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned for input before Start.
	ErrNotStarted = errors.New("conversation: session not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("conversation: session already started")

	// ErrEnded is returned for input after the session ended.
	ErrEnded = errors.New("conversation: session ended")

	// ErrPaused is returned for turn input while the session is paused.
	ErrPaused = errors.New("conversation: session paused")
)

// RecordingError reports that audio capture failed. It aborts only the
// current turn.
type RecordingError struct {
	Err error
}

func (e *RecordingError) Error() string { return fmt.Sprintf("recording: %v", e.Err) }

func (e *RecordingError) Unwrap() error { return e.Err }

// PersistenceError reports a failed checkpoint write. It is logged and
// never interrupts the conversation.
type PersistenceError struct {
	SessionID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist session %s: %v", e.SessionID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrBusy is returned for input the current turn state does not accept,
// e.g. a recording while a reply is being generated or played.
var ErrBusy = errors.New("conversation: session busy")
