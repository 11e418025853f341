package openai_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider"
	"github.com/MrWong99/parley/pkg/provider/stt/openai"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := openai.New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestTranscribe_WireContract(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q, want verbose_json", got)
		}
		if got := r.FormValue("language"); got != "de" {
			t.Errorf("language = %q, want de", got)
		}
		if _, hdr, err := r.FormFile("file"); err != nil || hdr.Filename != "audio.webm" {
			t.Errorf("file part missing or misnamed: %v", err)
		}
		_, _ = w.Write([]byte(`{"text":"I have five years of experience.","duration":3.25,"language":"english"}`))
	}))
	defer srv.Close()

	p, err := openai.New("sk-test", openai.WithBaseURL(srv.URL+"/v1/"), openai.WithModel("whisper-large-v3"), openai.WithLanguage("de"))
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Transcribe(context.Background(), audio.Clip{Data: []byte("webm"), MIMEType: "audio/webm"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "I have five years of experience." {
		t.Errorf("text = %q", res.Text)
	}
	if res.Duration.Seconds() != 3.25 {
		t.Errorf("duration = %v, want 3.25s", res.Duration)
	}
}

func TestTranscribe_AuthRejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"Incorrect API key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := openai.New("sk-bad", openai.WithBaseURL(srv.URL))
	clip := audio.Clip{Data: make([]byte, 320), MIMEType: audio.MIMEPCM, SampleRate: 16000, Channels: 1}
	if _, err := p.Transcribe(context.Background(), clip); !errors.Is(err, provider.ErrAuth) {
		t.Errorf("Transcribe: got %v, want ErrAuth", err)
	}
	if err := p.CheckConnection(context.Background()); !errors.Is(err, provider.ErrAuth) {
		t.Errorf("CheckConnection: got %v, want ErrAuth", err)
	}
}

func TestCheckConnection_ListsModels(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"whisper-1","object":"model","created":0,"owned_by":"openai"}]}`))
	}))
	defer srv.Close()

	p, _ := openai.New("sk-test", openai.WithBaseURL(srv.URL+"/v1/"))
	if err := p.CheckConnection(context.Background()); err != nil {
		t.Fatalf("CheckConnection: %v", err)
	}
	if gotPath != "/v1/models" {
		t.Errorf("path = %q, want /v1/models", gotPath)
	}
}

func TestTranscribe_PCMUploadedAsWAV(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file part: %v", err)
			return
		}
		defer f.Close()
		head := make([]byte, 4)
		_, _ = f.Read(head)
		if hdr.Filename != "audio.wav" || string(head) != "RIFF" {
			t.Errorf("file = %q starting %q, want a RIFF audio.wav", hdr.Filename, head)
		}
		_, _ = w.Write([]byte(`{"text":" hello "}`))
	}))
	defer srv.Close()

	p, _ := openai.New("sk-test", openai.WithBaseURL(srv.URL))
	clip := audio.Clip{Data: make([]byte, 32000), MIMEType: audio.MIMEPCM, SampleRate: 16000, Channels: 1}
	res, err := p.Transcribe(context.Background(), clip)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello" || res.Duration != time.Second {
		t.Errorf("result = %+v, want hello over 1s", res)
	}
}
