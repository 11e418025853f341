package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/parley/internal/store"
	"github.com/MrWong99/parley/pkg/types"
)

const scenarioColumns = "id, title, system_prompt, initial_message, voice_role, difficulty, estimated_minutes"

func (s *Store) GetScenario(ctx context.Context, id string) (types.Scenario, error) {
	row := s.db.QueryRow(ctx, "SELECT "+scenarioColumns+" FROM scenarios WHERE id = $1", id)
	sc, err := scanScenario(row)
	if err != nil {
		return types.Scenario{}, fmt.Errorf("postgres store: get scenario: %w", notFound(err, "scenario", id))
	}
	return sc, nil
}

func (s *Store) ListScenarios(ctx context.Context) ([]types.Scenario, error) {
	rows, err := s.db.Query(ctx, "SELECT "+scenarioColumns+" FROM scenarios ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("postgres store: list scenarios: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Scenario, error) {
		return scanScenario(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list scenarios: %w", err)
	}
	return out, nil
}

func (s *Store) CreateScenario(ctx context.Context, sc types.Scenario) error {
	if err := store.ValidateScenario(sc); err != nil {
		return err
	}
	const q = `
		INSERT INTO scenarios (` + scenarioColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.Exec(ctx, q, scenarioArgs(sc)...)
	if isUniqueViolation(err) {
		return fmt.Errorf("postgres store: create scenario %q: %w", sc.ID, store.ErrExists)
	}
	if err != nil {
		return fmt.Errorf("postgres store: create scenario: %w", err)
	}
	return nil
}

// UpdateScenario reads, patches and writes the scenario back. Concurrent
// updates to one scenario resolve as last writer wins.
func (s *Store) UpdateScenario(ctx context.Context, id string, patch store.ScenarioPatch) (types.Scenario, error) {
	sc, err := s.GetScenario(ctx, id)
	if err != nil {
		return types.Scenario{}, err
	}
	patch.Apply(&sc)
	if err := store.ValidateScenario(sc); err != nil {
		return types.Scenario{}, err
	}
	const q = `
		UPDATE scenarios
		SET    title = $2, system_prompt = $3, initial_message = $4,
		       voice_role = $5, difficulty = $6, estimated_minutes = $7,
		       updated_at = now()
		WHERE  id = $1`
	tag, err := s.db.Exec(ctx, q, scenarioArgs(sc)...)
	if err != nil {
		return types.Scenario{}, fmt.Errorf("postgres store: update scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.Scenario{}, fmt.Errorf("postgres store: update scenario %q: %w", id, store.ErrNotFound)
	}
	return sc, nil
}

func (s *Store) DeleteScenario(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM scenarios WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres store: delete scenario: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: delete scenario %q: %w", id, store.ErrNotFound)
	}
	return nil
}

func scenarioArgs(sc types.Scenario) []any {
	return []any{
		sc.ID,
		sc.Title,
		sc.SystemPrompt,
		sc.InitialMessage,
		string(sc.VoiceRole),
		sc.Difficulty,
		sc.EstimatedMinutes,
	}
}

func scanScenario(row pgx.Row) (types.Scenario, error) {
	var (
		sc    types.Scenario
		voice string
	)
	if err := row.Scan(
		&sc.ID,
		&sc.Title,
		&sc.SystemPrompt,
		&sc.InitialMessage,
		&voice,
		&sc.Difficulty,
		&sc.EstimatedMinutes,
	); err != nil {
		return types.Scenario{}, err
	}
	sc.VoiceRole = types.VoiceRole(voice)
	return sc, nil
}
