package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/parley/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := mustLoad(t, sampleYAML)
	new := mustLoad(t, sampleYAML)

	d := config.Diff(old, new)
	if d.Changed() {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := mustLoad(t, sampleYAML)
	new := mustLoad(t, sampleYAML)
	new.Server.LogLevel = config.LogWarn

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogWarn {
		t.Errorf("log level diff: got %+v", d)
	}
	if d.ProvidersChanged || d.ChatChanged || d.ConversationChanged {
		t.Errorf("unexpected extra changes: %+v", d)
	}
}

func TestDiff_ProviderOptionChanged(t *testing.T) {
	t.Parallel()
	old := mustLoad(t, sampleYAML)
	new := mustLoad(t, sampleYAML)
	new.Providers.STT.Primary.Options["language"] = "de"

	if d := config.Diff(old, new); !d.ProvidersChanged {
		t.Errorf("expected providers change, got %+v", d)
	}
}

func TestDiff_ChatAndConversation(t *testing.T) {
	t.Parallel()
	old := mustLoad(t, sampleYAML)
	new := mustLoad(t, sampleYAML)
	new.Chat.StylePrompt = "Be brief."
	on := true
	new.Conversation.AudioEnabled = &on

	d := config.Diff(old, new)
	if !d.ChatChanged {
		t.Error("expected chat change")
	}
	if !d.ConversationChanged {
		t.Error("expected conversation change")
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired: got %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := mustLoad(t, sampleYAML)
	new := mustLoad(t, sampleYAML)
	new.Server.ListenAddr = ":7070"
	new.Store.PostgresDSN = "postgres://other/parley"
	new.Resilience.MaxFailures = 9

	d := config.Diff(old, new)
	want := []string{"server.listen_addr", "store", "resilience"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired: got %v, want %v", d.RestartRequired, want)
	}
	if !d.Changed() {
		t.Error("Changed() should be true")
	}
}
