package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/conversation"
	"github.com/MrWong99/parley/internal/gateway"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/resilience"
	"github.com/MrWong99/parley/internal/store"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/tts"
	"github.com/MrWong99/parley/pkg/types"
)

var (
	// ErrSessionActive is returned by [SessionManager.Start] while another
	// session is running.
	ErrSessionActive = errors.New("app: a session is already active")

	// ErrNoSession is returned when an operation needs an active session.
	ErrNoSession = errors.New("app: no active session")
)

// SessionManager runs at most one conversation at a time. Each session gets
// a configuration snapshot and freshly assembled gateways at start, so a
// config reload or preference edit only affects later sessions.
// All exported methods are safe for concurrent use.
type SessionManager struct {
	current  func() *config.Config
	registry *config.Registry
	store    store.Store
	metrics  *observe.Metrics
	now      func() time.Time

	mu       sync.Mutex
	active   *conversation.Session
	starting bool

	// providers caches constructed providers by their config entry so a
	// local model is loaded once rather than per session.
	provMu    sync.Mutex
	providers map[string]any
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	// Config returns the current configuration.
	Config   func() *config.Config
	Registry *config.Registry
	Store    store.Store

	// Metrics may be nil, in which case [observe.DefaultMetrics] is used.
	Metrics *observe.Metrics

	// Now overrides the session clock. Tests only.
	Now func() time.Time
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &SessionManager{
		current:   cfg.Config,
		registry:  cfg.Registry,
		store:     cfg.Store,
		metrics:   m,
		now:       cfg.Now,
		providers: make(map[string]any),
	}
}

// Start begins a conversation for scenarioID on the given audio devices.
// onEvent receives every session event; it may be nil.
//
// Returns [ErrSessionActive] if a session is already running.
func (sm *SessionManager) Start(ctx context.Context, scenarioID string, in *audio.Input, out *audio.Output, onEvent func(conversation.Event)) (*conversation.Session, error) {
	sm.mu.Lock()
	if sm.starting {
		sm.mu.Unlock()
		return nil, ErrSessionActive
	}
	if sm.active != nil && sm.active.Status() != types.StatusEnded {
		id := sm.active.ID()
		sm.mu.Unlock()
		return nil, fmt.Errorf("%w (id=%s)", ErrSessionActive, id)
	}
	sm.starting = true
	sm.mu.Unlock()
	defer func() {
		sm.mu.Lock()
		sm.starting = false
		sm.mu.Unlock()
	}()

	scenario, err := sm.store.GetScenario(ctx, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("app: load scenario %q: %w", scenarioID, err)
	}
	prefs, err := sm.store.ListPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load preferences: %w", err)
	}
	snap, err := config.NewSnapshot(sm.current(), prefs)
	if err != nil {
		return nil, err
	}

	deps, err := sm.buildDeps(snap)
	if err != nil {
		return nil, err
	}
	deps.Input = in
	deps.Output = out
	deps.Checkpointer = sm.store
	deps.Metrics = sm.metrics

	maxFailures := snap.Conversation.MaxConsecutiveFailures
	if maxFailures < 0 {
		maxFailures = 0
	}

	var sess *conversation.Session
	sess, err = conversation.New(scenario, deps, conversation.Options{
		AudioEnabled:           snap.Conversation.Audio(),
		SpeechSpeed:            tts.ClampSpeed(snap.Conversation.SpeechSpeed),
		MinMessages:            snap.Conversation.NaturalEndingMinTurns,
		NoticeTTL:              snap.Conversation.NoticeTTL,
		MaxDuration:            snap.Conversation.MaxDuration,
		MaxConsecutiveFailures: maxFailures,
		OnEvent: func(ev conversation.Event) {
			if ev.Kind == conversation.EventEnded {
				sm.release(ev.SessionID)
			}
			if onEvent != nil {
				onEvent(ev)
			}
		},
		Now: sm.now,
	})
	if err != nil {
		return nil, fmt.Errorf("app: create session: %w", err)
	}

	sm.mu.Lock()
	sm.active = sess
	sm.mu.Unlock()
	if err := sess.Start(ctx); err != nil {
		sm.release(sess.ID())
		return nil, fmt.Errorf("app: start session: %w", err)
	}

	slog.Info("session started",
		"session_id", sess.ID(),
		"scenario", scenario.ID,
		"stt", describeEntry(snap.Providers.STT.Primary),
		"llm", describeEntry(snap.Providers.LLM),
		"audio", snap.Conversation.Audio(),
	)
	return sess, nil
}

// Active returns the running session, or nil.
func (sm *SessionManager) Active() *conversation.Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.active == nil || sm.active.Status() == types.StatusEnded {
		return nil
	}
	return sm.active
}

// Stop ends the running session as requested by the user, waits for its
// background work and returns [ErrNoSession] if none is running.
func (sm *SessionManager) Stop(ctx context.Context) error {
	sess := sm.Active()
	if sess == nil {
		return ErrNoSession
	}
	if err := sess.End(ctx); err != nil && !errors.Is(err, conversation.ErrEnded) {
		return err
	}
	sess.Wait()
	return nil
}

// release clears the active slot if it still holds id. It runs from the
// session's event callback, so it must not call into the session.
func (sm *SessionManager) release(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.active != nil && sm.active.ID() == id {
		sm.active = nil
	}
}

// CheckProvider checks that the configured primary provider of kind ("stt", "tts"
// or "llm") is reachable. Preference overrides are not applied.
func (sm *SessionManager) CheckProvider(ctx context.Context, kind string) error {
	p := sm.current().Providers
	switch kind {
	case observe.CapabilitySTT:
		prov, err := sm.stt(p.STT.Primary)
		if err != nil {
			return err
		}
		return prov.CheckConnection(ctx)
	case observe.CapabilityTTS:
		if !p.TTS.Primary.Configured() {
			return nil
		}
		prov, err := sm.tts(p.TTS.Primary)
		if err != nil {
			return err
		}
		return prov.CheckConnection(ctx)
	case observe.CapabilityLLM:
		prov, err := sm.llm(p.LLM)
		if err != nil {
			return err
		}
		return prov.CheckConnection(ctx)
	default:
		return fmt.Errorf("app: unknown provider kind %q", kind)
	}
}

// buildDeps assembles the session gateways for snap.
func (sm *SessionManager) buildDeps(snap config.Snapshot) (conversation.Deps, error) {
	fbCfg := func(capability string) resilience.FallbackConfig {
		return resilience.FallbackConfig{
			CircuitBreaker: resilience.CircuitBreakerConfig{
				MaxFailures:  snap.Resilience.MaxFailures,
				ResetTimeout: snap.Resilience.ResetTimeout,
				HalfOpenMax:  snap.Resilience.HalfOpenMax,
			},
			OnFallback: func(from, to string, cause error) {
				sm.metrics.RecordFallback(context.Background(), capability, from, to)
				slog.Warn("provider fallback", "capability", capability, "from", from, "to", to, "err", cause)
			},
		}
	}

	var deps conversation.Deps

	// Transcription
	sttPrimary, err := sm.stt(snap.Providers.STT.Primary)
	if err != nil {
		return deps, err
	}
	sttGroup := resilience.NewSTTFallback(sttPrimary, snap.Providers.STT.Primary.Name, fbCfg(observe.CapabilitySTT))
	if alt := snap.Providers.STT.Fallback; alt.Configured() {
		p, err := sm.stt(alt)
		if err != nil {
			return deps, err
		}
		sttGroup.SetAlternate(alt.Name, p)
	}
	deps.Transcriber = gateway.NewTranscription(sttGroup, sm.metrics)

	// Chat
	chat, err := sm.llm(snap.Providers.LLM)
	if err != nil {
		return deps, err
	}
	deps.Generator = gateway.NewChat(chat, snap.Providers.LLM.Name, snap.ChatOptions(), sm.metrics)

	// Synthesis
	if !snap.Providers.TTS.Primary.Configured() {
		return deps, nil
	}
	ttsPrimary, err := sm.tts(snap.Providers.TTS.Primary)
	if err != nil {
		return deps, err
	}
	ttsGroup := resilience.NewTTSFallback(ttsPrimary, snap.Providers.TTS.Primary.Name, fbCfg(observe.CapabilityTTS))
	if alt := snap.Providers.TTS.Fallback; alt.Configured() {
		p, err := sm.tts(alt)
		if err != nil {
			return deps, err
		}
		ttsGroup.SetAlternate(alt.Name, p)
	}
	deps.Speaker = gateway.NewSynthesis(ttsGroup, sm.metrics)
	return deps, nil
}

func (sm *SessionManager) stt(e config.ProviderEntry) (stt.Provider, error) {
	return cached(sm, "stt", e, sm.registry.CreateSTT)
}

func (sm *SessionManager) tts(e config.ProviderEntry) (tts.Provider, error) {
	return cached(sm, "tts", e, sm.registry.CreateTTS)
}

func (sm *SessionManager) llm(e config.ProviderEntry) (llm.Provider, error) {
	return cached(sm, "llm", e, sm.registry.CreateLLM)
}

// cached returns the provider built for e, constructing it on first use.
// fmt prints map keys sorted, so equal entries share a key.
func cached[T any](sm *SessionManager, kind string, e config.ProviderEntry, create func(config.ProviderEntry) (T, error)) (T, error) {
	key := fmt.Sprintf("%s|%+v", kind, e)

	sm.provMu.Lock()
	defer sm.provMu.Unlock()
	if p, ok := sm.providers[key].(T); ok {
		return p, nil
	}
	p, err := create(e)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("app: create %s provider %q: %w", kind, e.Name, err)
	}
	sm.providers[key] = p
	return p, nil
}
