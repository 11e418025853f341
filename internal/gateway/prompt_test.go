package gateway

import "testing"

func TestComposePrompt(t *testing.T) {
	const scenario = "You are a hiring manager interviewing a candidate."
	const style = "Keep replies under two sentences."

	tests := []struct {
		name     string
		mode     PromptMode
		scenario string
		style    string
		want     string
	}{
		{"enhance", PromptEnhance, scenario, style, scenario + "\n\n" + style},
		{"override", PromptOverride, scenario, style, style},
		{"scenario only", PromptScenarioOnly, scenario, style, scenario},
		{"enhance without style", PromptEnhance, scenario, "", scenario},
		{"override without style falls back", PromptOverride, scenario, "  ", scenario},
		{"enhance without scenario", PromptEnhance, "", style, style},
		{"unknown mode enhances", PromptMode("shout"), scenario, style, scenario + "\n\n" + style},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComposePrompt(tt.mode, tt.scenario, tt.style); got != tt.want {
				t.Errorf("ComposePrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePromptMode(t *testing.T) {
	for in, want := range map[string]PromptMode{
		"":              PromptEnhance,
		"enhance":       PromptEnhance,
		"Override":      PromptOverride,
		"scenario-only": PromptScenarioOnly,
	} {
		got, err := ParsePromptMode(in)
		if err != nil || got != want {
			t.Errorf("ParsePromptMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParsePromptMode("replace"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
