package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/parley/internal/store"
	"github.com/MrWong99/parley/pkg/types"
)

const sessionColumns = "id, scenario_ref, status, start_time, end_time, duration_s, transcript, metadata"

func (s *Store) GetSession(ctx context.Context, id string) (types.Session, error) {
	row := s.db.QueryRow(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = $1", id)
	sess, err := scanSession(row)
	if err != nil {
		return types.Session{}, fmt.Errorf("postgres store: get session: %w", notFound(err, "session", id))
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context, filter store.SessionFilter) ([]types.Session, error) {
	var (
		args       []any
		conditions []string
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ScenarioRef != "" {
		conditions = append(conditions, "scenario_ref = "+next(filter.ScenarioRef))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+next(string(filter.Status)))
	}

	q := "SELECT " + sessionColumns + "\nFROM   sessions"
	if len(conditions) > 0 {
		q += "\nWHERE  " + strings.Join(conditions, "\n  AND  ")
	}
	q += "\nORDER  BY start_time DESC NULLS LAST, id"
	if filter.Limit > 0 {
		q += "\nLIMIT " + next(filter.Limit)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list sessions: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Session, error) {
		return scanSession(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list sessions: %w", err)
	}
	return out, nil
}

func (s *Store) CreateSession(ctx context.Context, sess types.Session) error {
	args, err := sessionArgs(sess)
	if err != nil {
		return fmt.Errorf("postgres store: create session: %w", err)
	}
	const q = `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = s.db.Exec(ctx, q, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("postgres store: create session %q: %w", sess.ID, store.ErrExists)
	}
	if err != nil {
		return fmt.Errorf("postgres store: create session: %w", err)
	}
	return nil
}

// SaveSession upserts the full session record.
func (s *Store) SaveSession(ctx context.Context, sess types.Session) error {
	args, err := sessionArgs(sess)
	if err != nil {
		return fmt.Errorf("postgres store: save session: %w", err)
	}
	const q = `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET    scenario_ref = EXCLUDED.scenario_ref,
		       status       = EXCLUDED.status,
		       start_time   = EXCLUDED.start_time,
		       end_time     = EXCLUDED.end_time,
		       duration_s   = EXCLUDED.duration_s,
		       transcript   = EXCLUDED.transcript,
		       metadata     = EXCLUDED.metadata,
		       updated_at   = now()`
	if _, err := s.db.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("postgres store: save session: %w", err)
	}
	return nil
}

func (s *Store) UpdateSession(ctx context.Context, id string, patch store.SessionPatch) (types.Session, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return types.Session{}, err
	}
	patch.Apply(&sess)
	if err := s.SaveSession(ctx, sess); err != nil {
		return types.Session{}, err
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres store: delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: delete session %q: %w", id, store.ErrNotFound)
	}
	return nil
}

func sessionArgs(sess types.Session) ([]any, error) {
	transcript := sess.Transcript
	if transcript == nil {
		transcript = []types.ConversationMessage{}
	}
	tj, err := json.Marshal(transcript)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	mj, err := json.Marshal(sess.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return []any{
		sess.ID,
		sess.ScenarioRef,
		string(sess.Status),
		nullTime(sess.StartTime),
		nullTime(sess.EndTime),
		sess.Duration,
		tj,
		mj,
	}, nil
}

func scanSession(row pgx.Row) (types.Session, error) {
	var (
		sess       types.Session
		status     string
		start, end *time.Time
		tj, mj     []byte
	)
	if err := row.Scan(
		&sess.ID,
		&sess.ScenarioRef,
		&status,
		&start,
		&end,
		&sess.Duration,
		&tj,
		&mj,
	); err != nil {
		return types.Session{}, err
	}
	sess.Status = types.SessionStatus(status)
	if start != nil {
		sess.StartTime = *start
	}
	if end != nil {
		sess.EndTime = *end
	}
	if err := json.Unmarshal(tj, &sess.Transcript); err != nil {
		return types.Session{}, fmt.Errorf("decode transcript: %w", err)
	}
	if len(mj) > 0 {
		if err := json.Unmarshal(mj, &sess.Metadata); err != nil {
			return types.Session{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return sess, nil
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
