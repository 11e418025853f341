package postgres

import (
	"context"
	"fmt"
)

const ddlScenarios = `
CREATE TABLE IF NOT EXISTS scenarios (
    id                TEXT         PRIMARY KEY,
    title             TEXT         NOT NULL DEFAULT '',
    system_prompt     TEXT         NOT NULL,
    initial_message   TEXT         NOT NULL DEFAULT '',
    voice_role        TEXT         NOT NULL DEFAULT '',
    difficulty        TEXT         NOT NULL DEFAULT '',
    estimated_minutes INTEGER      NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT              PRIMARY KEY,
    scenario_ref  TEXT              NOT NULL,
    status        TEXT              NOT NULL,
    start_time    TIMESTAMPTZ,
    end_time      TIMESTAMPTZ,
    duration_s    DOUBLE PRECISION  NOT NULL DEFAULT 0,
    transcript    JSONB             NOT NULL DEFAULT '[]',
    metadata      JSONB             NOT NULL DEFAULT '{}',
    updated_at    TIMESTAMPTZ       NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sessions_scenario_ref ON sessions (scenario_ref);
CREATE INDEX IF NOT EXISTS idx_sessions_start_time   ON sessions (start_time DESC);
`

const ddlPreferences = `
CREATE TABLE IF NOT EXISTS preferences (
    key         TEXT         PRIMARY KEY,
    value       TEXT         NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates the tables if they do not exist. It is idempotent and
// runs on every start.
func Migrate(ctx context.Context, db DB) error {
	for _, stmt := range []string{ddlScenarios, ddlSessions, ddlPreferences} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
