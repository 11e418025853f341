package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/MrWong99/parley/internal/analysis"
	"github.com/MrWong99/parley/internal/conversation"
	"github.com/MrWong99/parley/pkg/audio"
)

const (
	// maxFrameBytes bounds a single inbound WebSocket message.
	maxFrameBytes = 8 << 20

	// outboundQueue is the number of messages buffered for the writer.
	outboundQueue = 256
)

var (
	errNoSession  = errors.New("api: no session on this connection")
	errConnClosed = errors.New("api: connection closed")
)

// Client message types.
const (
	msgStart            = "start"
	msgMicrophone       = "microphone"
	msgBeginRecording   = "begin-recording"
	msgEndRecording     = "end-recording"
	msgMuteToggle       = "mute-toggle"
	msgPauseSession     = "pause-session"
	msgEndSession       = "end-session"
	msgAnalyze          = "analyze"
	msgPlaybackComplete = "playback-complete"
)

// clientMessage is any JSON message sent by the UI. Only the fields
// relevant to Type are set.
type clientMessage struct {
	Type       string `json:"type"`
	ScenarioID string `json:"scenarioId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`

	// microphone; with audio/opus each binary frame is one Opus packet
	Available  bool   `json:"available,omitempty"`
	MIMEType   string `json:"mimeType,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`

	// playback-complete
	PlaybackID uint64 `json:"playbackId,omitempty"`
}

// Server message payloads other than [conversation.Event].
type (
	startedMessage struct {
		Type    string `json:"type"`
		Session any    `json:"session"`
	}
	analysisMessage struct {
		Type     string          `json:"type"`
		Analysis analysis.Result `json:"analysis"`
	}
	errorMessage struct {
		Type    string `json:"type"`
		Request string `json:"request"`
		Code    string `json:"code"`
		Error   string `json:"error"`
	}
	audioMessage struct {
		Type       string `json:"type"`
		PlaybackID uint64 `json:"playbackId"`
		MIMEType   string `json:"mimeType"`
		SampleRate int    `json:"sampleRate,omitempty"`
		Channels   int    `json:"channels,omitempty"`
	}
	stopPlaybackMessage struct {
		Type       string `json:"type"`
		PlaybackID uint64 `json:"playbackId"`
	}
)

// outbound is one queued write: a text frame optionally followed by a
// binary frame that must not be separated from it.
type outbound struct {
	text   []byte
	binary []byte
}

// conn is one UI connection. It owns the session it started.
type conn struct {
	srv *Server
	ws  *websocket.Conn
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	out    chan outbound

	mic    *audio.BufferRecorder
	player *wsPlayer

	mu   sync.Mutex
	sess *conversation.Session
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		slog.Warn("api: websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	ws.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{
		srv:    s,
		ws:     ws,
		log:    slog.With("remote", r.RemoteAddr),
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan outbound, outboundQueue),
		mic:    audio.NewBufferRecorder(),
	}
	c.player = newWSPlayer(c)

	c.log.Info("ui connected")
	go c.writeLoop()
	err = c.readLoop()
	c.close(err)
}

// readLoop dispatches inbound messages until the connection fails.
func (c *conn) readLoop() error {
	for {
		typ, data, err := c.ws.Read(c.ctx)
		if err != nil {
			return err
		}
		if typ == websocket.MessageBinary {
			// Frames outside a capture are dropped.
			_, _ = c.mic.Write(data)
			continue
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("", fmt.Errorf("api: malformed message: %w", err))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *conn) dispatch(msg clientMessage) {
	var err error
	switch msg.Type {
	case msgStart:
		err = c.start(msg.ScenarioID)
	case msgMicrophone:
		if msg.Available {
			c.mic.Attach(msg.MIMEType, msg.SampleRate, msg.Channels)
		} else {
			c.mic.Detach()
		}
	case msgBeginRecording:
		err = c.withSession(func(s *conversation.Session) error { return s.BeginRecording(c.ctx) })
	case msgEndRecording:
		err = c.withSession(func(s *conversation.Session) error { return s.EndRecording(c.ctx) })
	case msgMuteToggle:
		err = c.withSession(func(s *conversation.Session) error {
			_, err := s.ToggleMute()
			return err
		})
	case msgPauseSession:
		err = c.withSession(func(s *conversation.Session) error {
			_, err := s.Pause(c.ctx)
			return err
		})
	case msgEndSession:
		err = c.withSession(func(s *conversation.Session) error { return s.End(c.ctx) })
	case msgAnalyze:
		err = c.analyze(msg.SessionID)
	case msgPlaybackComplete:
		c.player.complete(msg.PlaybackID)
	default:
		err = fmt.Errorf("api: unknown message type %q", msg.Type)
	}
	if err != nil {
		c.sendError(msg.Type, err)
	}
}

func (c *conn) start(scenarioID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.srv.sessions.Start(c.ctx, scenarioID,
		audio.NewInput(c.mic), audio.NewOutput(c.player), c.onEvent)
	if err != nil {
		return err
	}
	c.sess = sess
	c.send(startedMessage{Type: "started", Session: sess.Snapshot()})
	c.log.Info("session started by ui", "session_id", sess.ID(), "scenario", scenarioID)
	return nil
}

func (c *conn) withSession(fn func(*conversation.Session) error) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return errNoSession
	}
	return fn(sess)
}

func (c *conn) analyze(id string) error {
	if id == "" {
		c.mu.Lock()
		if c.sess != nil {
			id = c.sess.ID()
		}
		c.mu.Unlock()
	}
	if id == "" {
		return errNoSession
	}

	rec, err := c.srv.loadSession(c.ctx, id)
	if err != nil {
		return err
	}
	c.send(analysisMessage{Type: "analysis", Analysis: analysis.Analyze(rec, rec.Transcript)})
	return nil
}

// onEvent forwards session events to the UI.
func (c *conn) onEvent(ev conversation.Event) {
	c.send(ev)
}

// send queues v as a JSON text frame. It blocks while the queue is full and
// gives up once the connection is closed.
func (c *conn) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("api: marshal outbound message", "err", err)
		return
	}
	c.enqueue(c.ctx, outbound{text: data})
}

func (c *conn) enqueue(ctx context.Context, m outbound) error {
	select {
	case c.out <- m:
		return nil
	case <-c.ctx.Done():
		return errConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trySend queues v without blocking and drops it when the queue is full.
func (c *conn) trySend(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.out <- outbound{text: data}:
	default:
		c.log.Warn("api: outbound queue full; dropping message")
	}
}

func (c *conn) sendError(request string, err error) {
	c.log.Debug("ui request failed", "request", request, "err", err)
	c.send(errorMessage{Type: "error", Request: request, Code: errorCode(err), Error: err.Error()})
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case m := <-c.out:
			if err := c.ws.Write(c.ctx, websocket.MessageText, m.text); err != nil {
				c.cancel()
				return
			}
			if m.binary == nil {
				continue
			}
			if err := c.ws.Write(c.ctx, websocket.MessageBinary, m.binary); err != nil {
				c.cancel()
				return
			}
		}
	}
}

// close ends the owned session and releases the connection. A UI that goes
// away counts as the user ending the conversation.
func (c *conn) close(cause error) {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()

	if sess != nil {
		if err := sess.End(context.Background()); err == nil {
			c.log.Info("session ended by disconnect", "session_id", sess.ID())
		}
	}
	c.mic.Detach()
	c.cancel()

	status := websocket.CloseStatus(cause)
	switch {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		c.log.Info("ui disconnected")
	case errors.Is(cause, context.Canceled):
		c.log.Info("ui connection closed")
	default:
		c.log.Warn("ui connection failed", "err", cause)
	}
	_ = c.ws.Close(websocket.StatusNormalClosure, "")
}
