package anyllm

import (
	"strings"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/types"
)

func TestConvertMessage(t *testing.T) {
	tests := []struct {
		role types.Role
		want string
	}{
		{types.RoleUser, "user"},
		{types.RoleAssistant, "assistant"},
		{types.RoleSystem, "system"},
		{types.Role("narrator"), "user"},
	}
	for _, tt := range tests {
		got := convertMessage(llm.Message{Role: tt.role, Content: "Hello!"})
		if got.Role != tt.want {
			t.Errorf("role %q: got %q, want %q", tt.role, got.Role, tt.want)
		}
		if got.ContentString() != "Hello!" {
			t.Errorf("content = %q", got.ContentString())
		}
	}
}

func TestBuildParams(t *testing.T) {
	p := &Provider{model: "gemini-2.0-flash"}
	temp := 0.4
	params := p.buildParams(llm.Request{
		SystemPrompt: "You are a landlord.",
		History: []llm.Message{
			{Role: types.RoleAssistant, Content: "Hi, about the flat."},
			{Role: types.RoleUser, Content: "Is it still available?"},
		},
		Temperature: &temp,
		MaxTokens:   200,
	})
	if params.Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", params.Model)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(params.Messages))
	}
	if params.Messages[0].Role != anyllmlib.RoleSystem {
		t.Errorf("first role = %q, want system", params.Messages[0].Role)
	}
	if params.Temperature == nil || *params.Temperature != 0.4 {
		t.Errorf("temperature = %v", params.Temperature)
	}
	if params.MaxTokens == nil || *params.MaxTokens != 200 {
		t.Errorf("max tokens = %v", params.MaxTokens)
	}
}

func TestBuildParams_ZeroValuesOmitted(t *testing.T) {
	p := &Provider{model: "m"}
	params := p.buildParams(llm.Request{History: []llm.Message{{Role: types.RoleUser, Content: "hi"}}})
	if params.Temperature != nil || params.MaxTokens != nil {
		t.Error("unset temperature/max tokens must be left unset")
	}

	zero := 0.0
	params = p.buildParams(llm.Request{Temperature: &zero})
	if params.Temperature == nil || *params.Temperature != 0 {
		t.Errorf("explicit zero temperature = %v, want 0", params.Temperature)
	}
	if len(params.Messages) != 1 {
		t.Errorf("messages = %d, want 1 (no system prompt)", len(params.Messages))
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "m"); err == nil {
		t.Error("expected error for empty vendor")
	}
	if _, err := New("openai", ""); err == nil {
		t.Error("expected error for empty model")
	}
	_, err := New("watson", "m")
	if err == nil || !strings.Contains(err.Error(), "unsupported vendor") {
		t.Errorf("expected unsupported vendor error, got %v", err)
	}
}
