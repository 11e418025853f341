package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/parley/pkg/types"
)

var _ Store = (*MemStore)(nil)

// MemStore keeps everything in process memory. It is safe for concurrent
// use and loses its contents on exit.
type MemStore struct {
	mu        sync.RWMutex
	scenarios map[string]types.Scenario
	sessions  map[string]types.Session
	prefs     map[string]string
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		scenarios: make(map[string]types.Scenario),
		sessions:  make(map[string]types.Session),
		prefs:     make(map[string]string),
	}
}

func (m *MemStore) GetScenario(_ context.Context, id string) (types.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenarios[id]
	if !ok {
		return types.Scenario{}, fmt.Errorf("scenario %q: %w", id, ErrNotFound)
	}
	return s, nil
}

func (m *MemStore) ListScenarios(context.Context) ([]types.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Collect(maps.Values(m.scenarios))
	slices.SortFunc(out, func(a, b types.Scenario) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemStore) CreateScenario(_ context.Context, s types.Scenario) error {
	if err := ValidateScenario(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenarios[s.ID]; ok {
		return fmt.Errorf("scenario %q: %w", s.ID, ErrExists)
	}
	m.scenarios[s.ID] = s
	return nil
}

func (m *MemStore) UpdateScenario(_ context.Context, id string, patch ScenarioPatch) (types.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenarios[id]
	if !ok {
		return types.Scenario{}, fmt.Errorf("scenario %q: %w", id, ErrNotFound)
	}
	patch.Apply(&s)
	if err := ValidateScenario(s); err != nil {
		return types.Scenario{}, err
	}
	m.scenarios[id] = s
	return s, nil
}

func (m *MemStore) DeleteScenario(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenarios[id]; !ok {
		return fmt.Errorf("scenario %q: %w", id, ErrNotFound)
	}
	delete(m.scenarios, id)
	return nil
}

func (m *MemStore) GetSession(_ context.Context, id string) (types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return types.Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *MemStore) ListSessions(_ context.Context, filter SessionFilter) ([]types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Session
	for _, s := range m.sessions {
		if filter.Match(s) {
			out = append(out, s.Clone())
		}
	}
	slices.SortFunc(out, func(a, b types.Session) int {
		if c := b.StartTime.Compare(a.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemStore) CreateSession(_ context.Context, s types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %q: %w", s.ID, ErrExists)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemStore) SaveSession(_ context.Context, s types.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemStore) UpdateSession(_ context.Context, id string, patch SessionPatch) (types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return types.Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	patch.Apply(&s)
	m.sessions[id] = s
	return s.Clone(), nil
}

func (m *MemStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemStore) GetPreference(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.prefs[key]
	if !ok {
		return "", fmt.Errorf("preference %q: %w", key, ErrNotFound)
	}
	return v, nil
}

func (m *MemStore) ListPreferences(context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.prefs), nil
}

func (m *MemStore) SetPreference(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[key] = value
	return nil
}

func (m *MemStore) DeletePreference(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prefs[key]; !ok {
		return fmt.Errorf("preference %q: %w", key, ErrNotFound)
	}
	delete(m.prefs, key)
	return nil
}

// Ping always succeeds.
func (m *MemStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemStore) Close() {}
