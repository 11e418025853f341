package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/parley/internal/store"
	"github.com/MrWong99/parley/pkg/types"
)

// frame is the union of the server messages the tests look at.
type frame struct {
	Type       string                     `json:"type"`
	State      string                     `json:"state"`
	Code       string                     `json:"code"`
	Request    string                     `json:"request"`
	PlaybackID uint64                     `json:"playbackId"`
	MIMEType   string                     `json:"mimeType"`
	Message    *types.ConversationMessage `json:"message"`
	Session    json.RawMessage            `json:"session"`
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(url, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func sendJSON(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil reads frames until a text frame of type typ arrives whose
// state matches, when state is set. Binary frames are skipped.
func readUntil(t *testing.T, c *websocket.Conn, typ, state string) frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		mt, data, err := c.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		if mt == websocket.MessageBinary {
			continue
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if f.Type == typ && (state == "" || f.State == state) {
			return f
		}
	}
}

func TestWS_RequiresSession(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, false)
	c := dial(t, srv.URL)

	sendJSON(t, c, clientMessage{Type: msgBeginRecording})
	f := readUntil(t, c, "error", "")
	if f.Code != "no_session" || f.Request != msgBeginRecording {
		t.Errorf("error = %+v, want no_session for begin-recording", f)
	}

	sendJSON(t, c, clientMessage{Type: msgStart, ScenarioID: "missing"})
	f = readUntil(t, c, "error", "")
	if f.Code != "not_found" {
		t.Errorf("start of unknown scenario: code = %q, want not_found", f.Code)
	}

	sendJSON(t, c, clientMessage{Type: "dance"})
	f = readUntil(t, c, "error", "")
	if f.Code != "failed" {
		t.Errorf("unknown message: code = %q, want failed", f.Code)
	}
}

func TestWS_TextTurn(t *testing.T) {
	t.Parallel()
	srv, _, sessions := newTestServer(t, false)
	c := dial(t, srv.URL)

	sendJSON(t, c, clientMessage{Type: msgStart, ScenarioID: "coffee"})
	readUntil(t, c, "started", "")

	// Without an attached microphone recording fails.
	sendJSON(t, c, clientMessage{Type: msgBeginRecording})
	if f := readUntil(t, c, "error", ""); f.Code != "recording" {
		t.Errorf("begin without microphone: code = %q, want recording", f.Code)
	}

	sendJSON(t, c, clientMessage{Type: msgMicrophone, Available: true, MIMEType: "audio/webm"})
	sendJSON(t, c, clientMessage{Type: msgBeginRecording})
	readUntil(t, c, "state", "listening")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageBinary, []byte("opus-ish bytes")); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	sendJSON(t, c, clientMessage{Type: msgEndRecording})

	user := readUntil(t, c, "message", "")
	if user.Message == nil || user.Message.Role != types.RoleUser || user.Message.Content != "hello there" {
		t.Fatalf("first message = %+v, want user transcript", user.Message)
	}
	reply := readUntil(t, c, "message", "")
	if reply.Message == nil || reply.Message.Role != types.RoleAssistant || reply.Message.Content != "Nice to meet you." {
		t.Fatalf("second message = %+v, want assistant reply", reply.Message)
	}
	readUntil(t, c, "state", "idle")

	sess := sessions.Active()
	if sess == nil {
		t.Fatal("expected an active session")
	}
	sendJSON(t, c, clientMessage{Type: msgAnalyze})
	readUntil(t, c, "analysis", "")

	sendJSON(t, c, clientMessage{Type: msgEndSession})
	readUntil(t, c, "ended", "")
	sess.Wait()
	if got := sess.Snapshot().Metadata.EndReason; got != types.EndUserEnded {
		t.Errorf("end reason = %q, want %q", got, types.EndUserEnded)
	}
}

func TestWS_GreetingPlayback(t *testing.T) {
	t.Parallel()
	srv, st, sessions := newTestServer(t, true)
	greeting := "Hi! What can I get you?"
	if _, err := st.UpdateScenario(context.Background(), "coffee", store.ScenarioPatch{InitialMessage: &greeting}); err != nil {
		t.Fatalf("UpdateScenario: %v", err)
	}
	c := dial(t, srv.URL)

	sendJSON(t, c, clientMessage{Type: msgStart, ScenarioID: "coffee"})
	hdr := readUntil(t, c, "audio", "")
	if hdr.MIMEType != "audio/mpeg" || hdr.PlaybackID == 0 {
		t.Errorf("audio header = %+v", hdr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mt, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read clip: %v", err)
	}
	if mt != websocket.MessageBinary || string(data) != greeting {
		t.Errorf("clip = %v %q, want binary greeting", mt, data)
	}

	// Until the client reports completion the partner is still speaking.
	if sess := sessions.Active(); sess == nil || sess.State().String() != "speaking" {
		t.Fatalf("state before completion = %v, want speaking", sess)
	}

	sendJSON(t, c, clientMessage{Type: msgPlaybackComplete, PlaybackID: hdr.PlaybackID})
	readUntil(t, c, "state", "idle")
}

func TestWS_DisconnectEndsSession(t *testing.T) {
	t.Parallel()
	srv, _, sessions := newTestServer(t, false)
	c := dial(t, srv.URL)

	sendJSON(t, c, clientMessage{Type: msgStart, ScenarioID: "coffee"})
	readUntil(t, c, "started", "")
	sess := sessions.Active()
	if sess == nil {
		t.Fatal("expected an active session")
	}

	if err := c.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for sess.Status() != types.StatusEnded {
		if time.Now().After(deadline) {
			t.Fatal("session still running after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := sess.Snapshot().Metadata.EndReason; got != types.EndUserEnded {
		t.Errorf("end reason = %q, want %q", got, types.EndUserEnded)
	}
}

func TestWS_RejectsForeignOrigin(t *testing.T) {
	t.Parallel()
	srv, _, _ := newTestServer(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{"https://evil.example"}},
	})
	if err == nil {
		t.Fatal("expected the handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}
