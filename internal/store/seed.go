package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/parley/pkg/types"
)

// BuiltinScenarios are installed on first start so a fresh deployment has
// something to practise.
var BuiltinScenarios = []types.Scenario{
	{
		ID:               "job-interview",
		Title:            "Job interview",
		SystemPrompt:     "You are a friendly but thorough hiring manager interviewing the user for a software engineering role. Ask one question at a time, follow up on vague answers and keep replies under three sentences. When the interview is complete, thank the candidate and say goodbye.",
		InitialMessage:   "Hi, thanks for coming in today. Could you start by telling me a little about yourself?",
		VoiceRole:        types.VoiceFemale,
		Difficulty:       "intermediate",
		EstimatedMinutes: 10,
	},
	{
		ID:               "coffee-order",
		Title:            "Ordering coffee",
		SystemPrompt:     "You are a barista at a busy café. Take the user's order, suggest a pastry once and confirm the total. Keep replies short and casual.",
		InitialMessage:   "Hey there! What can I get started for you?",
		VoiceRole:        types.VoiceMale,
		Difficulty:       "beginner",
		EstimatedMinutes: 3,
	},
	{
		ID:               "networking-event",
		Title:            "Networking event",
		SystemPrompt:     "You are a product manager at a tech meetup making small talk with the user. Share a little about yourself, ask about their work and keep the conversation light.",
		VoiceRole:        types.VoiceFemale,
		Difficulty:       "intermediate",
		EstimatedMinutes: 5,
	},
}

// Seed creates each scenario that does not exist yet and returns how many
// were created.
func Seed(ctx context.Context, s ScenarioStore, scenarios []types.Scenario) (int, error) {
	created := 0
	for _, sc := range scenarios {
		_, err := s.GetScenario(ctx, sc.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return created, fmt.Errorf("store: seed %q: %w", sc.ID, err)
		}
		if err := s.CreateScenario(ctx, sc); err != nil {
			return created, fmt.Errorf("store: seed %q: %w", sc.ID, err)
		}
		created++
	}
	return created, nil
}
