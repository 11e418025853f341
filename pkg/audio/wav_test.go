package audio_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
)

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	pcm := samplesToBytes([]int16{1, -1, 300, -300})
	wav := audio.EncodeWAV(pcm, 16000, 1)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length: got %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE header")
	}

	got, rate, ch, err := audio.DecodeWAV(wav)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 16000 || ch != 1 {
		t.Errorf("format: got %d Hz %d ch, want 16000 Hz 1 ch", rate, ch)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm mismatch")
	}
}

func TestDecodeWAV_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not riff", []byte("OggS0000000000000000")},
		{"no data chunk", audio.EncodeWAV(nil, 16000, 1)[:36]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, _, _, err := audio.DecodeWAV(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestClipDuration(t *testing.T) {
	t.Parallel()

	// One second of 16 kHz mono PCM.
	pcm := make([]byte, 32000)
	clip := audio.Clip{Data: pcm, MIMEType: audio.MIMEPCM, SampleRate: 16000, Channels: 1}
	if d := clip.Duration(); d != time.Second {
		t.Errorf("pcm duration: got %v, want 1s", d)
	}

	wav := audio.Clip{Data: audio.EncodeWAV(pcm, 16000, 1), MIMEType: audio.MIMEWAV}
	if d := wav.Duration(); d != time.Second {
		t.Errorf("wav duration: got %v, want 1s", d)
	}

	mp3 := audio.Clip{Data: []byte{0xff, 0xfb}, MIMEType: audio.MIMEMP3}
	if d := mp3.Duration(); d != 0 {
		t.Errorf("mp3 duration: got %v, want 0", d)
	}
	if _, err := mp3.WAV(); !errors.Is(err, audio.ErrUnsupportedFormat) {
		t.Errorf("mp3 WAV(): got %v, want ErrUnsupportedFormat", err)
	}
}
