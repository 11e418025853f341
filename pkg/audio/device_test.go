package audio_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/audio/mock"
)

func TestInput_AcquirePreemptsPreviousHolder(t *testing.T) {
	t.Parallel()

	rec := &mock.Recorder{Clip: audio.Clip{Data: []byte{1, 2}}}
	in := audio.NewInput(rec)
	ctx := context.Background()

	first, err := in.Acquire(ctx)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	second, err := in.Acquire(ctx)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}

	if _, _, aborts := rec.Calls(); aborts != 1 {
		t.Errorf("expected previous capture to be aborted once, got %d", aborts)
	}
	if _, err := first.Finish(ctx); !errors.Is(err, audio.ErrPreempted) {
		t.Errorf("first.Finish: got %v, want ErrPreempted", err)
	}
	clip, err := second.Finish(ctx)
	if err != nil {
		t.Fatalf("second.Finish: %v", err)
	}
	if len(clip.Data) != 2 {
		t.Errorf("clip data: got %d bytes, want 2", len(clip.Data))
	}
	if in.Active() {
		t.Error("input should be idle after Finish")
	}
}

func TestInput_StartError(t *testing.T) {
	t.Parallel()

	in := audio.NewInput(&mock.Recorder{StartErr: audio.ErrNoDevice})
	if _, err := in.Acquire(context.Background()); !errors.Is(err, audio.ErrNoDevice) {
		t.Errorf("got %v, want ErrNoDevice", err)
	}
	if in.Active() {
		t.Error("failed acquire must not leave the input active")
	}
}

func TestInput_EmptyCapture(t *testing.T) {
	t.Parallel()

	in := audio.NewInput(&mock.Recorder{})
	c, err := in.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Finish(context.Background()); !errors.Is(err, audio.ErrEmptyCapture) {
		t.Errorf("got %v, want ErrEmptyCapture", err)
	}
}

func TestOutput_PlayPreemptsInFlight(t *testing.T) {
	t.Parallel()

	player := &mock.Player{Hold: true}
	out := audio.NewOutput(player)
	ctx := context.Background()

	started := player.Started()
	firstDone := make(chan error, 1)
	go func() { firstDone <- out.Play(ctx, audio.Clip{Data: []byte("one")}) }()
	<-started

	if !out.Playing() {
		t.Fatal("expected playback in flight")
	}

	secondDone := make(chan error, 1)
	started = player.Started()
	go func() { secondDone <- out.Play(ctx, audio.Clip{Data: []byte("two")}) }()

	select {
	case err := <-firstDone:
		if !errors.Is(err, audio.ErrInterrupted) {
			t.Errorf("first playback: got %v, want ErrInterrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first playback was not preempted")
	}

	<-started
	player.Release()
	select {
	case err := <-secondDone:
		if err != nil {
			t.Errorf("second playback: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second playback did not complete")
	}
	if got := len(player.PlayedClips()); got != 2 {
		t.Errorf("played clips: got %d, want 2", got)
	}
}

func TestOutput_Stop(t *testing.T) {
	t.Parallel()

	player := &mock.Player{Hold: true}
	out := audio.NewOutput(player)

	started := player.Started()
	done := make(chan error, 1)
	go func() { done <- out.Play(context.Background(), audio.Clip{Data: []byte("x")}) }()
	<-started

	out.Stop()
	select {
	case err := <-done:
		if !errors.Is(err, audio.ErrInterrupted) {
			t.Errorf("got %v, want ErrInterrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt playback")
	}
	if out.Playing() {
		t.Error("output still reports playing after Stop")
	}
}

func TestOutput_PlayCanceledContext(t *testing.T) {
	t.Parallel()

	player := &mock.Player{}
	out := audio.NewOutput(player)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := out.Play(ctx, audio.Clip{Data: []byte("x")}); !errors.Is(err, audio.ErrInterrupted) {
		t.Errorf("got %v, want ErrInterrupted", err)
	}
	if n := len(player.PlayedClips()); n != 0 {
		t.Errorf("player received %d clips, want 0", n)
	}
}

func TestBufferRecorder(t *testing.T) {
	t.Parallel()

	r := audio.NewBufferRecorder()
	ctx := context.Background()

	if err := r.Start(ctx); !errors.Is(err, audio.ErrNoDevice) {
		t.Fatalf("Start without source: got %v, want ErrNoDevice", err)
	}

	r.Attach(audio.MIMEPCM, 48000, 2)
	if _, err := r.Write([]byte{1}); !errors.Is(err, audio.ErrNotCapturing) {
		t.Errorf("Write before Start: got %v, want ErrNotCapturing", err)
	}
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Write([]byte{1, 2})
	r.Write([]byte{3, 4})

	clip, err := r.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(clip.Data) != 4 || clip.SampleRate != 48000 || clip.Channels != 2 {
		t.Errorf("unexpected clip: %+v", clip)
	}
	if _, err := r.Stop(ctx); !errors.Is(err, audio.ErrNotCapturing) {
		t.Errorf("second Stop: got %v, want ErrNotCapturing", err)
	}
}

func TestBufferRecorder_Opus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := audio.NewBufferRecorder()

	r.Attach(audio.MIMEOpus, 44100, 1)
	if err := r.Start(ctx); err == nil {
		t.Fatal("Start with an unsupported opus rate should fail")
	}

	r.Attach(audio.MIMEOpus, 48000, 1)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := r.Write([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("Write with a corrupt packet should fail")
	}
	clip, err := r.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if clip.MIMEType != audio.MIMEPCM {
		t.Errorf("clip MIME = %q, want decoded PCM", clip.MIMEType)
	}
}
