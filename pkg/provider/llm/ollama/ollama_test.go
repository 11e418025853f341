package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/MrWong99/parley/pkg/provider"
	"github.com/MrWong99/parley/pkg/provider/llm"
	"github.com/MrWong99/parley/pkg/types"
)

// recorder captures the order in which routes are hit.
type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) hit(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.paths)
}

func fail(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"route unavailable"}`))
}

var history = []llm.Message{
	{Role: types.RoleAssistant, Content: "Welcome to the interview."},
	{Role: types.RoleUser, Content: "Thank you for having me."},
}

func TestGenerate_ChatSucceedsFirst(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.hit(r.URL.Path)
		if r.URL.Path != "/api/chat" {
			fail(w, http.StatusInternalServerError)
			return
		}
		var body struct {
			Model    string `json:"model"`
			Stream   *bool  `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Stream == nil || *body.Stream {
			t.Error("expected stream=false")
		}
		if len(body.Messages) != 3 || body.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", body.Messages)
		}
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"Tell me about your last role."},"done":true}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, "llama3")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Generate(context.Background(), llm.Request{History: history, SystemPrompt: "Interview."})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "Tell me about your last role." {
		t.Errorf("text = %q", resp.Text)
	}
	if got := rec.get(); !slices.Equal(got, []string{"/api/chat"}) {
		t.Errorf("paths = %v", got)
	}
}

func TestGenerate_FallsBackToGenerateWithContinuity(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	var (
		mu         sync.Mutex
		gotPrompt  string
		gotContext []int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.hit(r.URL.Path)
		switch r.URL.Path {
		case "/api/chat":
			fail(w, http.StatusNotImplemented)
		case "/api/generate":
			var body struct {
				Prompt  string `json:"prompt"`
				System  string `json:"system"`
				Context []int  `json:"context"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode: %v", err)
			}
			mu.Lock()
			gotPrompt, gotContext = body.Prompt, body.Context
			mu.Unlock()
			_, _ = w.Write([]byte(`{"model":"llama3","response":"Great, let's begin.","done":true,"context":[4,5,6,7]}`))
		default:
			fail(w, http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	p, err := New(srv.URL, "llama3")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Generate(context.Background(), llm.Request{
		History:    history,
		Continuity: llm.ContinuityToken{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text != "Great, let's begin." {
		t.Errorf("text = %q", resp.Text)
	}
	if !slices.Equal(resp.Continuity, llm.ContinuityToken{4, 5, 6, 7}) {
		t.Errorf("continuity = %v", resp.Continuity)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotPrompt != "Thank you for having me." {
		t.Errorf("prompt = %q, want latest user line", gotPrompt)
	}
	if !slices.Equal(gotContext, []int{1, 2, 3}) {
		t.Errorf("context sent = %v", gotContext)
	}
	if got := rec.get(); !slices.Equal(got, []string{"/api/chat", "/api/generate"}) {
		t.Errorf("paths = %v", got)
	}
}

func TestGenerate_AllFailListsCatalog(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.hit(r.URL.Path)
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[{"name":"mistral:7b","model":"mistral:7b"},{"name":"phi3:mini","model":"phi3:mini"}]}`))
			return
		}
		fail(w, http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL, "llama3")
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Generate(context.Background(), llm.Request{History: history})
	if !errors.Is(err, provider.ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
	var mue *provider.ModelUnavailableError
	if !errors.As(err, &mue) {
		t.Fatalf("err %T is not a ModelUnavailableError", err)
	}
	if mue.Model != "llama3" {
		t.Errorf("model = %q", mue.Model)
	}
	if !slices.Equal(mue.Available, []string{"mistral:7b", "phi3:mini"}) {
		t.Errorf("available = %v", mue.Available)
	}
	if len(mue.Attempts) != 3 {
		t.Errorf("attempts = %d, want 3: %v", len(mue.Attempts), mue.Attempts)
	}
	want := []string{"/api/chat", "/api/generate", "/v1/chat/completions", "/api/tags"}
	if got := rec.get(); !slices.Equal(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestGenerate_BearerKeyForwarded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"ok"},"done":true}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, "m", WithAPIKey("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Generate(context.Background(), llm.Request{History: history}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestGeneratePrompt_FlattensWithoutToken(t *testing.T) {
	got := generatePrompt(llm.Request{History: history})
	want := "Assistant: Welcome to the interview.\nUser: Thank you for having me.\nAssistant:"
	if got != want {
		t.Errorf("prompt = %q, want %q", got, want)
	}
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	p, _ := New(srv.URL, "m")
	if err := p.CheckConnection(context.Background()); err != nil {
		t.Errorf("healthy server: %v", err)
	}
	srv.Close()
	if err := p.CheckConnection(context.Background()); !errors.Is(err, provider.ErrConnection) {
		t.Errorf("closed server: got %v, want ErrConnection", err)
	}
}
