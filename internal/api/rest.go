package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MrWong99/parley/internal/analysis"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/store"
	"github.com/MrWong99/parley/pkg/types"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// registerREST installs the JSON endpoints.
func (s *Server) registerREST(mux *http.ServeMux) {
	// Scenarios
	mux.HandleFunc("GET /api/scenarios", s.handleListScenarios)
	mux.HandleFunc("POST /api/scenarios", s.handleCreateScenario)
	mux.HandleFunc("GET /api/scenarios/{id}", s.handleGetScenario)
	mux.HandleFunc("PATCH /api/scenarios/{id}", s.handleUpdateScenario)
	mux.HandleFunc("DELETE /api/scenarios/{id}", s.handleDeleteScenario)

	// Sessions
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/active", s.handleActiveSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/analysis", s.handleAnalysis)

	// Preferences
	mux.HandleFunc("GET /api/preferences", s.handleListPreferences)
	mux.HandleFunc("PUT /api/preferences/{key}", s.handleSetPreference)
	mux.HandleFunc("DELETE /api/preferences/{key}", s.handleDeletePreference)
}

// ─── Scenarios ───────────────────────────────────────────────────────────────

func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListScenarios(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateScenario(w http.ResponseWriter, r *http.Request) {
	var sc types.Scenario
	if !readJSON(w, r, &sc) {
		return
	}
	if err := store.ValidateScenario(sc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.CreateScenario(r.Context(), sc); err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScenario(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleUpdateScenario(w http.ResponseWriter, r *http.Request) {
	var patch store.ScenarioPatch
	if !readJSON(w, r, &patch) {
		return
	}
	sc, err := s.store.UpdateScenario(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleDeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteScenario(r.Context(), r.PathValue("id")); err != nil {
		s.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Sessions ────────────────────────────────────────────────────────────────

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SessionFilter{
		ScenarioRef: q.Get("scenario"),
		Status:      types.SessionStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	list, err := s.store.ListSessions(r.Context(), filter)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleActiveSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Active()
	if sess == nil {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, activeView{
		Session: sess.Snapshot(),
		State:   sess.State().String(),
		Muted:   sess.Muted(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var patch store.SessionPatch
	if !readJSON(w, r, &patch) {
		return
	}
	sess, err := s.store.UpdateSession(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if active := s.sessions.Active(); active != nil && active.ID() == id {
		writeError(w, http.StatusConflict, "session is running")
		return
	}
	if err := s.store.DeleteSession(r.Context(), id); err != nil {
		s.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	sess, err := s.loadSession(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.Analyze(sess, sess.Transcript))
}

// ─── Preferences ─────────────────────────────────────────────────────────────

func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.store.ListPreferences(r.Context())
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preferencesView{Values: prefs, Keys: config.PreferenceKeys()})
}

func (s *Server) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !config.IsPreferenceKey(key) {
		writeError(w, http.StatusBadRequest, "unknown preference "+strconv.Quote(key))
		return
	}
	var body struct {
		Value string `json:"value"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if err := s.store.SetPreference(r.Context(), key, body.Value); err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{key: body.Value})
}

func (s *Server) handleDeletePreference(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeletePreference(r.Context(), r.PathValue("key")); err != nil {
		s.storeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type activeView struct {
	Session types.Session `json:"session"`
	State   string        `json:"state"`
	Muted   bool          `json:"muted"`
}

type preferencesView struct {
	Values map[string]string `json:"values"`
	Keys   []string          `json:"keys"`
}

type errorBody struct {
	Error string `json:"error"`
}

// storeError maps store errors onto HTTP statuses.
func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Warn("api: store failure", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "storage failure")
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
