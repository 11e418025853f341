package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/parley/pkg/provider"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/types"
)

func TestGenerate_WireContract(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "key-1" {
			t.Errorf("x-api-key = %q", got)
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("anthropic-version header missing")
		}
		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			System    []struct {
				Text string `json:"text"`
			} `json:"system"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Model != "claude-test" || body.MaxTokens != defaultMaxTokens {
			t.Errorf("model/max_tokens = %s/%d", body.Model, body.MaxTokens)
		}
		if len(body.System) != 1 || body.System[0].Text != "Play a barista." {
			t.Errorf("system = %+v", body.System)
		}
		for _, m := range body.Messages {
			if m.Role == "system" {
				t.Error("system prompt must not be sent as a message")
			}
		}
		if len(body.Messages) == 0 || body.Messages[0].Role != "user" {
			t.Errorf("first message must be user: %+v", body.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"What can I get you?"}],
			"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":5}}`))
	}))
	defer srv.Close()

	p, err := New("key-1", "claude-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Generate(context.Background(), llm.Request{
		SystemPrompt: "Play a barista.",
		History: []llm.Message{
			{Role: types.RoleAssistant, Content: "Hi there!"},
			{Role: types.RoleUser, Content: "Hello."},
		},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "What can I get you?" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"auth", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, provider.ErrAuth},
		{"overloaded", http.StatusServiceUnavailable, `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`, provider.ErrConnection},
		{"no text", http.StatusOK, `{"id":"m","type":"message","role":"assistant","model":"c","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`, provider.ErrProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p, _ := New("key", "c", WithBaseURL(srv.URL))
			_, err := p.Generate(context.Background(), llm.Request{History: []llm.Message{{Role: types.RoleUser, Content: "hi"}}})
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConvertHistory_LeadingAssistant(t *testing.T) {
	got := convertHistory([]llm.Message{
		{Role: types.RoleAssistant, Content: "Welcome"},
		{Role: types.RoleUser, Content: "Thanks"},
	})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Role != "user" || got[1].Role != "assistant" || got[2].Role != "user" {
		t.Errorf("roles = %s,%s,%s", got[0].Role, got[1].Role, got[2].Role)
	}
}
