package api

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/MrWong99/parley/pkg/audio"
)

// wsPlayer plays clips in the browser. Play sends an "audio" message with
// the clip as the following binary frame and blocks until the client
// reports "playback-complete" for the same playback ID.
type wsPlayer struct {
	c *conn

	mu   sync.Mutex
	seq  uint64
	done chan struct{}
}

var _ audio.Player = (*wsPlayer)(nil)

func newWSPlayer(c *conn) *wsPlayer {
	return &wsPlayer{c: c}
}

// Play implements [audio.Player].
func (p *wsPlayer) Play(ctx context.Context, clip audio.Clip) error {
	p.mu.Lock()
	p.seq++
	id := p.seq
	done := make(chan struct{})
	p.done = done
	p.mu.Unlock()

	header, err := json.Marshal(audioMessage{
		Type:       "audio",
		PlaybackID: id,
		MIMEType:   clip.MIMEType,
		SampleRate: clip.SampleRate,
		Channels:   clip.Channels,
	})
	if err != nil {
		return err
	}
	if err := p.c.enqueue(ctx, outbound{text: header, binary: clip.Data}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.c.ctx.Done():
		return errConnClosed
	}
}

// Stop implements [audio.Player]. It tells the client to stop the current
// clip; it never blocks.
func (p *wsPlayer) Stop() {
	p.mu.Lock()
	id := p.seq
	p.done = nil
	p.mu.Unlock()
	p.c.trySend(stopPlaybackMessage{Type: "stop-playback", PlaybackID: id})
}

// complete releases the Play call waiting on id. Stale IDs are ignored.
func (p *wsPlayer) complete(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id != p.seq || p.done == nil {
		return
	}
	close(p.done)
	p.done = nil
}
