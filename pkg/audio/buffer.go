package audio

import (
	"bytes"
	"context"
	"sync"
)

// BufferRecorder is a [Recorder] fed by an external source such as a UI
// streaming microphone frames. The source must be attached before a capture
// can start; frames written outside a capture are dropped.
//
// A source attached as [MIMEOpus] writes one Opus packet per frame. Packets
// are decoded as they arrive and the capture yields raw PCM.
type BufferRecorder struct {
	mu         sync.Mutex
	mimeType   string
	sampleRate int
	channels   int
	attached   bool
	capturing  bool
	buf        bytes.Buffer
	opus       *OpusDecoder
}

var _ Recorder = (*BufferRecorder)(nil)

// NewBufferRecorder returns a detached recorder.
func NewBufferRecorder() *BufferRecorder {
	return &BufferRecorder{mimeType: MIMEPCM, sampleRate: 16000, channels: 1}
}

// Attach marks the source as available and declares the encoding of the
// frames it will write.
func (r *BufferRecorder) Attach(mimeType string, sampleRate, channels int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mimeType != "" {
		r.mimeType = mimeType
	}
	if sampleRate > 0 {
		r.sampleRate = sampleRate
	}
	if channels > 0 {
		r.channels = channels
	}
	r.attached = true
}

// Detach marks the source as gone and discards any running capture.
func (r *BufferRecorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = false
	r.capturing = false
	r.buf.Reset()
}

// Write appends a frame to the running capture.
func (r *BufferRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capturing {
		return 0, ErrNotCapturing
	}
	if r.opus == nil {
		return r.buf.Write(p)
	}
	pcm, err := r.opus.Decode(p)
	if err != nil {
		return 0, err
	}
	r.buf.Write(pcm)
	return len(p), nil
}

// Start implements [Recorder].
func (r *BufferRecorder) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.attached {
		return ErrNoDevice
	}
	r.opus = nil
	if r.mimeType == MIMEOpus {
		dec, err := NewOpusDecoder(r.sampleRate, r.channels)
		if err != nil {
			return err
		}
		r.opus = dec
	}
	r.buf.Reset()
	r.capturing = true
	return nil
}

// Stop implements [Recorder].
func (r *BufferRecorder) Stop(_ context.Context) (Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capturing {
		return Clip{}, ErrNotCapturing
	}
	r.capturing = false
	data := bytes.Clone(r.buf.Bytes())
	r.buf.Reset()
	mimeType := r.mimeType
	if r.opus != nil {
		mimeType = MIMEPCM
		r.opus = nil
	}
	return Clip{
		Data:       data,
		MIMEType:   mimeType,
		SampleRate: r.sampleRate,
		Channels:   r.channels,
	}, nil
}

// Abort implements [Recorder].
func (r *BufferRecorder) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capturing = false
	r.buf.Reset()
}
