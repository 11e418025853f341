package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/parley/internal/store"
)

func (s *Store) GetPreference(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRow(ctx, "SELECT value FROM preferences WHERE key = $1", key).Scan(&v)
	if err != nil {
		return "", fmt.Errorf("postgres store: get preference: %w", notFound(err, "preference", key))
	}
	return v, nil
}

func (s *Store) ListPreferences(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, "SELECT key, value FROM preferences")
	if err != nil {
		return nil, fmt.Errorf("postgres store: list preferences: %w", err)
	}
	type kv struct{ k, v string }
	pairs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (kv, error) {
		var p kv
		err := row.Scan(&p.k, &p.v)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list preferences: %w", err)
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.k] = p.v
	}
	return out, nil
}

func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO preferences (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	if _, err := s.db.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("postgres store: set preference: %w", err)
	}
	return nil
}

func (s *Store) DeletePreference(ctx context.Context, key string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM preferences WHERE key = $1", key)
	if err != nil {
		return fmt.Errorf("postgres store: delete preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: delete preference %q: %w", key, store.ErrNotFound)
	}
	return nil
}
