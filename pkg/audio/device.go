package audio

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNoDevice is returned when no capture source is attached.
	ErrNoDevice = errors.New("audio: no capture device available")

	// ErrNotCapturing is returned when stopping or feeding a recorder that is
	// not capturing.
	ErrNotCapturing = errors.New("audio: not capturing")

	// ErrEmptyCapture is returned when a capture ends without any audio.
	ErrEmptyCapture = errors.New("audio: capture contains no audio")

	// ErrPreempted is returned to a capture holder whose device was taken
	// over by a newer capture.
	ErrPreempted = errors.New("audio: capture preempted")

	// ErrInterrupted is returned by [Output.Play] when playback was stopped
	// before it completed.
	ErrInterrupted = errors.New("audio: playback interrupted")
)

// Recorder captures one utterance at a time.
type Recorder interface {
	// Start begins capturing. It returns [ErrNoDevice] when no capture source
	// is available.
	Start(ctx context.Context) error

	// Stop ends the capture and returns the recorded clip.
	Stop(ctx context.Context) (Clip, error)

	// Abort discards an in-progress capture. It is a no-op when idle.
	Abort()
}

// Player plays one clip. Play blocks until playback completes, ctx is
// cancelled or Stop is called.
type Player interface {
	Play(ctx context.Context, clip Clip) error
	Stop()
}

// Input grants exclusive use of a [Recorder]. Acquiring it while another
// capture is running aborts that capture.
type Input struct {
	mu     sync.Mutex
	rec    Recorder
	holder uint64
	active bool
}

// NewInput wraps rec.
func NewInput(rec Recorder) *Input {
	return &Input{rec: rec}
}

// Capture is the handle of one exclusive capture.
type Capture struct {
	in *Input
	id uint64
}

// Acquire starts a new capture, preempting the current holder if any.
func (in *Input) Acquire(ctx context.Context) (*Capture, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.active {
		in.rec.Abort()
		in.active = false
	}
	in.holder++
	if err := in.rec.Start(ctx); err != nil {
		return nil, err
	}
	in.active = true
	return &Capture{in: in, id: in.holder}, nil
}

// Active reports whether a capture is running.
func (in *Input) Active() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.active
}

// Finish stops the capture and returns the recorded clip. It returns
// [ErrPreempted] when a newer capture took over the device.
func (c *Capture) Finish(ctx context.Context) (Clip, error) {
	in := c.in
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.holder != c.id || !in.active {
		return Clip{}, ErrPreempted
	}
	in.active = false
	clip, err := in.rec.Stop(ctx)
	if err != nil {
		return Clip{}, err
	}
	if clip.Empty() {
		return Clip{}, ErrEmptyCapture
	}
	return clip, nil
}

// Cancel discards the capture if it still holds the device.
func (c *Capture) Cancel() {
	in := c.in
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.holder == c.id && in.active {
		in.rec.Abort()
		in.active = false
	}
}

// Output grants exclusive use of a [Player]. Starting a playback stops the
// one in flight first, so at most one clip plays at any time.
type Output struct {
	mu     sync.Mutex
	player Player
	seq    uint64
	cancel context.CancelFunc
}

// NewOutput wraps p.
func NewOutput(p Player) *Output {
	return &Output{player: p}
}

// Play stops any in-flight playback and plays clip, blocking until it ends.
// It returns [ErrInterrupted] when the playback is stopped or preempted, or
// when ctx is already done.
func (o *Output) Play(ctx context.Context, clip Clip) error {
	o.mu.Lock()
	o.stopLocked()
	if ctx.Err() != nil {
		o.mu.Unlock()
		return ErrInterrupted
	}
	pctx, cancel := context.WithCancel(ctx)
	o.seq++
	seq := o.seq
	o.cancel = cancel
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		if o.seq == seq {
			o.cancel = nil
		}
		o.mu.Unlock()
		cancel()
	}()

	err := o.player.Play(pctx, clip)
	if pctx.Err() != nil {
		return ErrInterrupted
	}
	return err
}

// Stop halts in-flight playback, if any.
func (o *Output) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

// Playing reports whether a clip is currently playing.
func (o *Output) Playing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancel != nil
}

func (o *Output) stopLocked() {
	if o.cancel == nil {
		return
	}
	o.cancel()
	o.cancel = nil
	o.player.Stop()
}
