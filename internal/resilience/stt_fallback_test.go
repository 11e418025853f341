package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider"
	"github.com/MrWong99/parley/pkg/provider/stt"
	sttmock "github.com/MrWong99/parley/pkg/provider/stt/mock"
)

var clip = audio.Clip{Data: make([]byte, 3200), MIMEType: audio.MIMEPCM, SampleRate: 16000, Channels: 1}

func TestSTTFallback_FailingPrimaryHealthyAlternate(t *testing.T) {
	primary := &sttmock.Provider{Err: provider.ErrConnection}
	alternate := &sttmock.Provider{Result: &stt.Result{Text: "hello there"}}

	fb := NewSTTFallback(primary, "whisper", FallbackConfig{})
	fb.SetAlternate("openai", alternate)

	res, via, err := fb.TranscribeVia(context.Background(), clip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hello there" || via != "openai" {
		t.Errorf("got %q via %q", res.Text, via)
	}
	if n := len(primary.TranscribeCalls()); n != 1 {
		t.Errorf("primary calls = %d, want 1", n)
	}
	if n := len(alternate.TranscribeCalls()); n != 1 {
		t.Errorf("alternate calls = %d, want 1", n)
	}
	if alternate.CheckCalls() != 1 {
		t.Errorf("alternate health checks = %d, want 1", alternate.CheckCalls())
	}
}

func TestSTTFallback_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{Result: &stt.Result{Text: "hi"}}
	alternate := &sttmock.Provider{}
	fb := NewSTTFallback(primary, "whisper", FallbackConfig{})
	fb.SetAlternate("openai", alternate)

	res, err := fb.Transcribe(context.Background(), clip)
	if err != nil || res.Text != "hi" {
		t.Fatalf("got %+v, %v", res, err)
	}
	if len(alternate.TranscribeCalls()) != 0 {
		t.Error("alternate must not be called")
	}
}

func TestSTTFallback_BothFail(t *testing.T) {
	primary := &sttmock.Provider{Err: provider.ErrConnection}
	alternate := &sttmock.Provider{Err: provider.ErrProtocol}
	fb := NewSTTFallback(primary, "whisper", FallbackConfig{})
	fb.SetAlternate("openai", alternate)

	_, err := fb.Transcribe(context.Background(), clip)
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, provider.ErrProtocol) {
		t.Fatalf("err = %v", err)
	}
}
