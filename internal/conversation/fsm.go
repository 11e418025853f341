package conversation

import (
	"errors"
	"fmt"
)

// State is the turn-taking state of a session. The session status (active,
// paused, ended) is tracked separately and is orthogonal to State.
type State int

const (
	StateNotStarted State = iota
	StateIdle
	StateListening
	StateThinking
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name for JSON payloads.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Trigger is an input to the state machine.
type Trigger int

const (
	// TriggerStart starts a session without a spoken greeting.
	TriggerStart Trigger = iota
	// TriggerGreet starts a session by speaking the scenario greeting.
	TriggerGreet
	// TriggerRecordStart is the user beginning to speak.
	TriggerRecordStart
	// TriggerRecordStop is the user finishing; the turn goes to the providers.
	TriggerRecordStop
	// TriggerRecordCancel abandons a capture without starting a turn.
	TriggerRecordCancel
	// TriggerReplyReady is a reply that will be spoken.
	TriggerReplyReady
	// TriggerReplySilent is a reply shown as text only.
	TriggerReplySilent
	// TriggerPlaybackDone is the end (or interruption) of playback.
	TriggerPlaybackDone
	// TriggerTurnFailed aborts the current turn.
	TriggerTurnFailed
)

func (t Trigger) String() string {
	switch t {
	case TriggerStart:
		return "start"
	case TriggerGreet:
		return "greet"
	case TriggerRecordStart:
		return "record_start"
	case TriggerRecordStop:
		return "record_stop"
	case TriggerRecordCancel:
		return "record_cancel"
	case TriggerReplyReady:
		return "reply_ready"
	case TriggerReplySilent:
		return "reply_silent"
	case TriggerPlaybackDone:
		return "playback_done"
	case TriggerTurnFailed:
		return "turn_failed"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// ErrInvalidTransition is returned for a trigger the current state does not
// accept. Callers use it to reject input while the session is busy.
var ErrInvalidTransition = errors.New("conversation: invalid transition")

type edge struct {
	from State
	on   Trigger
}

var transitions = map[edge]State{
	{StateNotStarted, TriggerStart}: StateIdle,
	{StateNotStarted, TriggerGreet}: StateSpeaking,

	{StateIdle, TriggerRecordStart}: StateListening,

	{StateListening, TriggerRecordStop}:   StateThinking,
	{StateListening, TriggerRecordCancel}: StateIdle,
	{StateListening, TriggerTurnFailed}:   StateIdle,

	{StateThinking, TriggerReplyReady}:  StateSpeaking,
	{StateThinking, TriggerReplySilent}: StateIdle,
	{StateThinking, TriggerTurnFailed}:  StateIdle,

	{StateSpeaking, TriggerPlaybackDone}: StateIdle,
	{StateSpeaking, TriggerTurnFailed}:   StateIdle,
}

// Transition returns the state reached from from on t.
func Transition(from State, t Trigger) (State, error) {
	to, ok := transitions[edge{from, t}]
	if !ok {
		return from, fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, t, from)
	}
	return to, nil
}

// Busy reports whether s has a provider call or playback in flight.
func (s State) Busy() bool {
	return s == StateThinking || s == StateSpeaking
}
