package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/parley/internal/gateway"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/types"
)

// Transcriber turns a recorded utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip audio.Clip) (*stt.Result, error)
}

// Speaker synthesizes text and plays it on out, blocking until playback
// ends. An interrupted playback returns [audio.ErrInterrupted].
type Speaker interface {
	Speak(ctx context.Context, out *audio.Output, text string, voice types.VoiceRole, speed float64) error
}

// Generator produces the partner's next line.
type Generator interface {
	Generate(ctx context.Context, transcript []types.ConversationMessage, scenarioPrompt string, token llm.ContinuityToken) (*llm.Response, error)
}

// Checkpointer persists a session snapshot.
type Checkpointer interface {
	SaveSession(ctx context.Context, s types.Session) error
}

// Compile-time checks that the gateways satisfy the session interfaces.
var (
	_ Transcriber = (*gateway.Transcription)(nil)
	_ Speaker     = (*gateway.Synthesis)(nil)
	_ Generator   = (*gateway.Chat)(nil)
)

// Deps are the collaborators of a [Session]. Speaker and Output may be nil
// when audio is disabled; Checkpointer and Metrics are optional.
type Deps struct {
	Transcriber  Transcriber
	Speaker      Speaker
	Generator    Generator
	Input        *audio.Input
	Output       *audio.Output
	Checkpointer Checkpointer
	Metrics      *observe.Metrics
}

// Options tune a [Session]. They are fixed for the session's lifetime.
type Options struct {
	AudioEnabled bool
	SpeechSpeed  float64

	// MinMessages is the transcript length from which weak closing phrases
	// end the session. Zero means [DefaultMinMessages].
	MinMessages int

	// NoticeTTL is how long notices stay visible. Zero means
	// [DefaultNoticeTTL].
	NoticeTTL time.Duration

	// MaxDuration ends the session with [types.EndTimeout] after this much
	// active time. Zero disables the limit.
	MaxDuration time.Duration

	// MaxConsecutiveFailures ends the session with [types.EndError] after
	// this many failed turns in a row. Zero disables the limit.
	MaxConsecutiveFailures int

	// OnEvent receives session events in order. It must not call back into
	// the session synchronously.
	OnEvent func(Event)

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

const (
	timeoutKey        = "timeout"
	checkpointTimeout = 5 * time.Second
)

// Session drives one practice conversation. Input methods return at once;
// provider calls run on a background turn and their completion advances
// the state machine. All methods are safe for concurrent use.
type Session struct {
	scenario types.Scenario
	deps     Deps
	opts     Options
	detector EndingDetector
	now      func() time.Time
	metrics  *observe.Metrics
	sched    *Scheduler
	notices  *NoticeBoard
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// emitMu serialises event delivery. It is acquired before mu is released
	// so events reach OnEvent in the order they were produced.
	emitMu sync.Mutex

	mu          sync.Mutex
	rec         types.Session
	state       State
	muted       bool
	capture     *audio.Capture
	turn        uint64
	stopSpeech  context.CancelFunc
	token       llm.ContinuityToken
	failures    int
	pausedAt    time.Time
	pausedTotal time.Duration
	last        time.Time
}

// New prepares a session for scenario. The session does nothing until
// [Session.Start].
func New(scenario types.Scenario, deps Deps, opts Options) (*Session, error) {
	if deps.Transcriber == nil {
		return nil, errors.New("conversation: transcriber is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("conversation: generator is required")
	}
	if deps.Input == nil {
		return nil, errors.New("conversation: audio input is required")
	}
	if opts.AudioEnabled && (deps.Speaker == nil || deps.Output == nil) {
		return nil, errors.New("conversation: speaker and audio output are required when audio is enabled")
	}
	if opts.SpeechSpeed <= 0 {
		opts.SpeechSpeed = 1
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := deps.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}

	s := &Session{
		scenario: scenario,
		deps:     deps,
		opts:     opts,
		detector: EndingDetector{MinMessages: opts.MinMessages},
		now:      now,
		metrics:  m,
		sched:    NewScheduler(),
		rec: types.Session{
			ID:          uuid.NewString(),
			ScenarioRef: scenario.ID,
			Status:      types.StatusNotStarted,
		},
	}
	s.notices = NewNoticeBoard(opts.NoticeTTL, s.sched, nil, func(id string) {
		s.emit(Event{Kind: EventNoticeDismissed, SessionID: s.rec.ID, NoticeID: id})
	})
	s.notices.now = now
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.rec.ID }

// Scenario returns the scenario the session practises.
func (s *Session) Scenario() types.Scenario { return s.scenario }

// Start begins the conversation. When the scenario has an opening line it
// is added to the transcript and, with audio enabled, spoken before the
// user may record. ctx supplies values only; the session outlives it.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.rec.Status {
	case types.StatusEnded:
		s.mu.Unlock()
		return ErrEnded
	case types.StatusNotStarted:
	default:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.log = observe.Logger(ctx).With("session_id", s.rec.ID, "scenario", s.scenario.ID)
	start := s.stamp()
	s.rec.StartTime = start
	s.rec.Status = types.StatusActive
	s.metrics.ActiveSessions.Add(s.ctx, 1)

	evs := []Event{{Kind: EventStatus, SessionID: s.rec.ID, Status: types.StatusActive}}
	greeting := strings.TrimSpace(s.scenario.InitialMessage)
	speak := greeting != "" && s.speaking()
	if greeting != "" {
		evs = append(evs, s.appendMessage(types.RoleAssistant, greeting))
	}
	trigger := TriggerStart
	if speak {
		trigger = TriggerGreet
	}
	if ev, err := s.fire(trigger); err == nil {
		evs = append(evs, ev)
	}
	if s.opts.MaxDuration > 0 {
		s.sched.After(timeoutKey, s.opts.MaxDuration, func() { s.end(types.EndTimeout) })
	}
	id := s.turn
	snap := s.snapshotLocked()
	if speak {
		s.wg.Add(1)
	}
	s.unlockAndEmit(evs)

	s.log.Info("session started", "greeting", greeting != "", "audio", s.opts.AudioEnabled)
	s.checkpoint(snap)

	if speak {
		go func() {
			defer s.wg.Done()
			s.play(s.ctx, id, greeting, false)
		}()
	}
	return nil
}

// BeginRecording acquires the microphone and moves to LISTENING. It is
// rejected while a reply is being generated or played.
func (s *Session) BeginRecording(ctx context.Context) error {
	s.mu.Lock()
	if err := s.acceptInputLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if _, err := Transition(s.state, TriggerRecordStart); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}

	c, err := s.deps.Input.Acquire(ctx)
	if err != nil {
		rerr := &RecordingError{Err: err}
		evs := []Event{s.postNotice(NoticeError, "The microphone is not available.")}
		s.unlockAndEmit(evs)
		s.log.Warn("recording failed to start", "err", err)
		return rerr
	}
	s.capture = c
	ev, _ := s.fire(TriggerRecordStart)
	s.unlockAndEmit([]Event{ev})
	return nil
}

// EndRecording stops the microphone and hands the utterance to a
// background turn. A failed capture returns a [*RecordingError] and the
// session goes back to IDLE.
func (s *Session) EndRecording(ctx context.Context) error {
	s.mu.Lock()
	if s.rec.Status == types.StatusEnded {
		s.mu.Unlock()
		return ErrEnded
	}
	if s.state != StateListening || s.capture == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: not recording", ErrInvalidTransition)
	}

	c := s.capture
	s.capture = nil
	clip, err := c.Finish(ctx)
	if err != nil {
		var evs []Event
		if ev, ferr := s.fire(TriggerRecordCancel); ferr == nil {
			evs = append(evs, ev)
		}
		text := "Recording failed. Please try again."
		if errors.Is(err, audio.ErrEmptyCapture) {
			text = "No audio was captured."
		}
		evs = append(evs, s.postNotice(NoticeWarning, text))
		s.unlockAndEmit(evs)
		s.log.Warn("recording failed", "err", err)
		return &RecordingError{Err: err}
	}

	ev, _ := s.fire(TriggerRecordStop)
	s.turn++
	id := s.turn
	s.wg.Add(1)
	s.unlockAndEmit([]Event{ev})

	go s.runTurn(id, clip)
	return nil
}

// runTurn processes one user utterance: transcribe, generate, speak.
func (s *Session) runTurn(id uint64, clip audio.Clip) {
	defer s.wg.Done()

	ctx, span := observe.StartSpan(s.ctx, "conversation.turn",
		trace.WithAttributes(attribute.String("session.id", s.rec.ID)))
	start := time.Now()
	err := s.processTurn(ctx, id, clip)
	s.metrics.RecordTurn(ctx, time.Since(start), err)
	observe.EndSpan(span, err)
}

func (s *Session) processTurn(ctx context.Context, id uint64, clip audio.Clip) error {
	res, err := s.deps.Transcriber.Transcribe(ctx, clip)
	if err != nil {
		if errors.Is(err, gateway.ErrNoSpeech) {
			s.abortTurn(id, NoticeInfo, "No speech was detected.", false, err)
			return nil
		}
		s.abortTurn(id, NoticeError, "Transcription failed: "+describe(err), true, err)
		return err
	}

	s.mu.Lock()
	if s.staleLocked(id) {
		s.mu.Unlock()
		return nil
	}
	ev := s.appendMessage(types.RoleUser, res.Text)
	s.rec.Metadata.WordsSpoken += len(strings.Fields(res.Text))
	transcript := append([]types.ConversationMessage(nil), s.rec.Transcript...)
	token := s.token
	s.unlockAndEmit([]Event{ev})

	resp, err := s.deps.Generator.Generate(ctx, transcript, s.scenario.SystemPrompt, token)
	if err != nil {
		s.abortTurn(id, NoticeError, "No reply: "+describe(err), true, err)
		return err
	}
	reply := strings.TrimSpace(resp.Text)

	s.mu.Lock()
	if s.staleLocked(id) {
		s.mu.Unlock()
		return nil
	}
	evs := []Event{s.appendMessage(types.RoleAssistant, reply)}
	s.token = resp.Continuity
	s.failures = 0
	natural := s.detector.Match(reply, len(s.rec.Transcript))
	speak := s.speaking()
	trigger := TriggerReplySilent
	if speak {
		trigger = TriggerReplyReady
	}
	if ev, err := s.fire(trigger); err == nil {
		evs = append(evs, ev)
	}
	snap := s.snapshotLocked()
	s.unlockAndEmit(evs)

	s.checkpoint(snap)
	if speak {
		s.play(ctx, id, reply, natural)
		return nil
	}
	if natural {
		s.end(types.EndNatural)
	}
	return nil
}

// play speaks text and returns the session to IDLE. A synthesis failure is
// reported but does not count as a failed turn.
func (s *Session) play(ctx context.Context, id uint64, text string, natural bool) {
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Muting cancels pctx, so a reply still being synthesized never reaches
	// the output.
	s.mu.Lock()
	muted := !s.speaking()
	if !muted {
		s.stopSpeech = cancel
	}
	s.mu.Unlock()

	var err error
	if !muted {
		err = s.deps.Speaker.Speak(pctx, s.deps.Output, text, s.scenario.VoiceRole, s.opts.SpeechSpeed)
	}

	s.mu.Lock()
	if s.turn == id {
		s.stopSpeech = nil
	}
	if s.staleLocked(id) {
		s.mu.Unlock()
		return
	}
	if err != nil && pctx.Err() != nil && ctx.Err() == nil {
		err = audio.ErrInterrupted
	}
	var evs []Event
	trigger := TriggerPlaybackDone
	if err != nil && !errors.Is(err, audio.ErrInterrupted) {
		trigger = TriggerTurnFailed
		evs = append(evs, s.postNotice(NoticeWarning, "The reply could not be played: "+describe(err)))
		s.log.Warn("playback failed", "err", err)
	}
	if ev, ferr := s.fire(trigger); ferr == nil {
		evs = append(evs, ev)
	}
	s.unlockAndEmit(evs)

	if natural {
		s.end(types.EndNatural)
	}
}

// abortTurn returns a failed turn to IDLE and posts a notice. counted
// failures may end the session once MaxConsecutiveFailures is reached.
func (s *Session) abortTurn(id uint64, level NoticeLevel, text string, counted bool, cause error) {
	s.mu.Lock()
	if s.staleLocked(id) {
		s.mu.Unlock()
		return
	}
	var evs []Event
	if ev, err := s.fire(TriggerTurnFailed); err == nil {
		evs = append(evs, ev)
	}
	evs = append(evs, s.postNotice(level, text))
	giveUp := false
	if counted {
		s.failures++
		giveUp = s.opts.MaxConsecutiveFailures > 0 && s.failures >= s.opts.MaxConsecutiveFailures
	}
	failures := s.failures
	s.unlockAndEmit(evs)

	if counted {
		s.log.Warn("turn failed", "err", cause, "consecutive_failures", failures)
	} else {
		s.log.Debug("turn dropped", "err", cause)
	}
	if giveUp {
		s.end(types.EndError)
	}
}

// ToggleMute flips audio output and returns the new muted state. Muting
// during playback stops it, which returns the session to IDLE.
func (s *Session) ToggleMute() (bool, error) {
	s.mu.Lock()
	if s.rec.Status == types.StatusEnded {
		s.mu.Unlock()
		return false, ErrEnded
	}
	s.muted = !s.muted
	muted := s.muted
	if muted && s.state == StateSpeaking {
		if s.stopSpeech != nil {
			s.stopSpeech()
		}
		if s.deps.Output != nil {
			s.deps.Output.Stop()
		}
	}
	s.unlockAndEmit([]Event{{Kind: EventMute, SessionID: s.rec.ID, State: s.state, Muted: &muted}})
	return muted, nil
}

// Muted reports whether audio output is muted.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Pause toggles between active and paused and returns the new status.
// Paused time does not count towards the duration or the time limit. A
// capture in progress is discarded; pausing mid-reply returns [ErrBusy].
func (s *Session) Pause(ctx context.Context) (types.SessionStatus, error) {
	s.mu.Lock()
	switch s.rec.Status {
	case types.StatusEnded:
		s.mu.Unlock()
		return types.StatusEnded, ErrEnded
	case types.StatusNotStarted:
		s.mu.Unlock()
		return types.StatusNotStarted, ErrNotStarted
	}

	var evs []Event
	now := s.now()
	if s.rec.Status == types.StatusPaused {
		s.pausedTotal += now.Sub(s.pausedAt)
		s.pausedAt = time.Time{}
		s.rec.Status = types.StatusActive
		if s.opts.MaxDuration > 0 {
			remaining := s.opts.MaxDuration - s.activeLocked(now)
			s.sched.After(timeoutKey, max(remaining, 0), func() { s.end(types.EndTimeout) })
		}
	} else {
		if s.state.Busy() {
			s.mu.Unlock()
			return types.StatusActive, fmt.Errorf("%w: cannot pause while %s", ErrBusy, s.state)
		}
		if s.capture != nil {
			s.capture.Cancel()
			s.capture = nil
			if ev, err := s.fire(TriggerRecordCancel); err == nil {
				evs = append(evs, ev)
			}
		}
		s.rec.Status = types.StatusPaused
		s.pausedAt = now
		s.sched.Cancel(timeoutKey)
	}
	status := s.rec.Status
	evs = append(evs, Event{Kind: EventStatus, SessionID: s.rec.ID, State: s.state, Status: status})
	snap := s.snapshotLocked()
	s.unlockAndEmit(evs)

	s.log.Info("session status changed", "status", status)
	if err := s.save(ctx, snap); err != nil {
		s.log.Warn("checkpoint failed", "err", err)
	}
	return status, nil
}

// End finishes the session at the user's request.
func (s *Session) End(context.Context) error {
	if !s.end(types.EndUserEnded) {
		return ErrEnded
	}
	return nil
}

// end marks the session ended with reason, stops all in-flight work and
// writes the final checkpoint. It reports false if already ended.
func (s *Session) end(reason types.EndReason) bool {
	s.mu.Lock()
	if s.rec.Status == types.StatusEnded {
		s.mu.Unlock()
		return false
	}
	started := s.rec.Status != types.StatusNotStarted
	now := s.stamp()
	if s.rec.Status == types.StatusPaused {
		s.pausedTotal += now.Sub(s.pausedAt)
		s.pausedAt = time.Time{}
	}
	s.turn++
	if s.capture != nil {
		s.capture.Cancel()
		s.capture = nil
	}
	if s.deps.Output != nil {
		s.deps.Output.Stop()
	}
	if started {
		s.rec.EndTime = now
		s.rec.Duration = s.activeLocked(now).Seconds()
	}
	s.rec.Status = types.StatusEnded
	s.rec.Metadata.EndReason = reason
	s.rec.Metadata.NaturalEnding = reason == types.EndNatural
	s.sched.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	snap := s.rec.Clone()
	s.unlockAndEmit([]Event{{Kind: EventEnded, SessionID: snap.ID, State: s.state, Status: types.StatusEnded, Session: &snap}})

	ctx := context.Background()
	if s.ctx != nil {
		ctx = s.ctx
	}
	if started {
		s.metrics.ActiveSessions.Add(ctx, -1)
		s.metrics.RecordSessionEnded(ctx, string(reason))
	}
	s.logger().Info("session ended",
		"reason", reason,
		"duration_s", snap.Duration,
		"messages", len(snap.Transcript))
	s.checkpoint(snap)
	return true
}

// Checkpoint persists the current snapshot. It returns a
// [*PersistenceError] on failure and never changes the session.
func (s *Session) Checkpoint(ctx context.Context) error {
	return s.save(ctx, s.Snapshot())
}

// Wait blocks until background turns have finished.
func (s *Session) Wait() { s.wg.Wait() }

// Snapshot returns a copy of the session record with the duration so far.
func (s *Session) Snapshot() types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current turn state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the lifecycle status.
func (s *Session) Status() types.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Status
}

// Notices returns the visible notices.
func (s *Session) Notices() []Notice { return s.notices.Active() }

func (s *Session) acceptInputLocked() error {
	switch s.rec.Status {
	case types.StatusNotStarted:
		return ErrNotStarted
	case types.StatusEnded:
		return ErrEnded
	case types.StatusPaused:
		return ErrPaused
	}
	return nil
}

// fire applies t and returns the resulting state event.
func (s *Session) fire(t Trigger) (Event, error) {
	from := s.state
	to, err := Transition(from, t)
	if err != nil {
		return Event{}, err
	}
	s.state = to
	s.metrics.RecordTransition(s.ctx, from.String(), to.String())
	return Event{Kind: EventState, SessionID: s.rec.ID, State: to, Status: s.rec.Status}, nil
}

func (s *Session) appendMessage(role types.Role, text string) Event {
	m := types.NewMessage(role, text, s.stamp())
	s.rec.Transcript = append(s.rec.Transcript, m)
	return Event{Kind: EventMessage, SessionID: s.rec.ID, State: s.state, Message: &m}
}

func (s *Session) postNotice(level NoticeLevel, text string) Event {
	n := s.notices.Post(level, text)
	return Event{Kind: EventNotice, SessionID: s.rec.ID, State: s.state, Notice: &n}
}

// stamp returns the current time, never earlier than the previous stamp.
func (s *Session) stamp() time.Time {
	now := s.now()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	return now
}

// activeLocked is the time spent active, excluding pauses, up to now.
func (s *Session) activeLocked(now time.Time) time.Duration {
	if s.rec.StartTime.IsZero() {
		return 0
	}
	d := now.Sub(s.rec.StartTime) - s.pausedTotal
	if !s.pausedAt.IsZero() {
		d -= now.Sub(s.pausedAt)
	}
	return max(d, 0)
}

func (s *Session) snapshotLocked() types.Session {
	snap := s.rec.Clone()
	if snap.Status != types.StatusEnded {
		snap.Duration = s.activeLocked(s.now()).Seconds()
	}
	return snap
}

func (s *Session) staleLocked(id uint64) bool {
	return s.turn != id || s.rec.Status == types.StatusEnded
}

func (s *Session) speaking() bool {
	return s.opts.AudioEnabled && !s.muted
}

// checkpoint saves snap in the background of the conversation. Failures are
// logged and otherwise ignored.
func (s *Session) checkpoint(snap types.Session) {
	ctx := context.Background()
	if s.ctx != nil {
		ctx = context.WithoutCancel(s.ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, checkpointTimeout)
	defer cancel()
	if err := s.save(ctx, snap); err != nil {
		s.logger().Warn("checkpoint failed", "err", err)
	}
}

func (s *Session) save(ctx context.Context, snap types.Session) error {
	if s.deps.Checkpointer == nil {
		return nil
	}
	if err := s.deps.Checkpointer.SaveSession(ctx, snap); err != nil {
		return &PersistenceError{SessionID: snap.ID, Err: err}
	}
	return nil
}

func (s *Session) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default().With("session_id", s.rec.ID)
}

// unlockAndEmit releases mu and delivers evs in order.
func (s *Session) unlockAndEmit(evs []Event) {
	if s.opts.OnEvent == nil || len(evs) == 0 {
		s.mu.Unlock()
		return
	}
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	for _, ev := range evs {
		s.opts.OnEvent(ev)
	}
}

func (s *Session) emit(ev Event) {
	if s.opts.OnEvent == nil {
		return
	}
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.opts.OnEvent(ev)
}

// describe renders err for a notice, listing the available models when the
// configured one is missing.
func describe(err error) string {
	var mu *provider.ModelUnavailableError
	if errors.As(err, &mu) && len(mu.Available) > 0 {
		return fmt.Sprintf("model %q is not available (available: %s)", mu.Model, strings.Join(mu.Available, ", "))
	}
	switch {
	case errors.Is(err, provider.ErrAuth):
		return "the provider rejected the credentials"
	case errors.Is(err, provider.ErrConnection):
		return "the provider is unreachable"
	case errors.Is(err, provider.ErrModelUnavailable):
		return "the model is not available"
	}
	return "unexpected provider response"
}
