package gateway

import (
	"fmt"
	"strings"
)

// PromptMode selects how the system prompt is composed from the scenario
// prompt and the global style prompt.
type PromptMode string

const (
	// PromptEnhance appends the style prompt to the scenario prompt.
	PromptEnhance PromptMode = "enhance"

	// PromptOverride uses only the style prompt.
	PromptOverride PromptMode = "override"

	// PromptScenarioOnly uses only the scenario prompt.
	PromptScenarioOnly PromptMode = "scenario-only"
)

// ParsePromptMode validates s. The empty string selects [PromptEnhance].
func ParsePromptMode(s string) (PromptMode, error) {
	switch m := PromptMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return PromptEnhance, nil
	case PromptEnhance, PromptOverride, PromptScenarioOnly:
		return m, nil
	default:
		return "", fmt.Errorf("gateway: unknown prompt mode %q (want enhance, override or scenario-only)", s)
	}
}

// ComposePrompt builds the system prompt. An empty style prompt makes
// override and enhance behave like scenario-only, so a session never runs
// without instructions.
func ComposePrompt(mode PromptMode, scenarioPrompt, stylePrompt string) string {
	scenarioPrompt = strings.TrimSpace(scenarioPrompt)
	stylePrompt = strings.TrimSpace(stylePrompt)
	if stylePrompt == "" {
		return scenarioPrompt
	}
	switch mode {
	case PromptOverride:
		return stylePrompt
	case PromptScenarioOnly:
		return scenarioPrompt
	default:
		if scenarioPrompt == "" {
			return stylePrompt
		}
		return scenarioPrompt + "\n\n" + stylePrompt
	}
}
