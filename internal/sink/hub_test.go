package sink

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andresmejia3/oculus/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("bad event %s: %v", msg, err)
	}
	return ev
}

func TestHubRemembersLatest(t *testing.T) {
	h := NewHub(quietLogger())

	if got := h.Latest().Status; got != types.Idle {
		t.Errorf("Expected idle before any session, got %v", got)
	}
	if _, ok := h.LastCapture(); ok {
		t.Error("Expected no capture yet")
	}

	h.Status(update(types.Perfect, true))
	h.Capture(types.CaptureEvent{SessionID: "session-1", Frame: types.Frame{Seq: 3, Data: []byte{0xFF}}})
	h.Error("session-1", errors.New("camera unplugged"))

	if got := h.Latest(); got.Status != types.Perfect || !got.EyeDetected {
		t.Errorf("Latest() = %+v", got)
	}
	capture, ok := h.LastCapture()
	if !ok || capture.Frame.Seq != 3 {
		t.Errorf("LastCapture() = %+v, %v", capture, ok)
	}
	if h.LastError() != "camera unplugged" {
		t.Errorf("LastError() = %q", h.LastError())
	}

	// A new session clears the previous failure.
	h.Status(update(types.Loading, false))
	if h.LastError() != "" {
		t.Errorf("Expected error cleared on Loading, got %q", h.LastError())
	}
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub(quietLogger())
	h.Status(update(types.Searching, false))

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Late joiners get the current status first.
	ev := readEvent(t, conn)
	if ev.Type != "status" || ev.Status == nil || ev.Status.Status != types.Searching {
		t.Fatalf("Expected initial searching status, got %+v", ev)
	}

	h.Status(update(types.Aligning, true))
	ev = readEvent(t, conn)
	if ev.Type != "status" || ev.Status.Status != types.Aligning || ev.Status.Instruction != "Hold still..." {
		t.Errorf("Expected aligning status, got %+v", ev)
	}

	h.Capture(types.CaptureEvent{SessionID: "session-1", Frame: types.Frame{Seq: 9, Width: 640, Height: 480, Data: make([]byte, 10)}})
	ev = readEvent(t, conn)
	if ev.Type != "capture" || ev.Capture == nil || ev.Capture.Seq != 9 || ev.Capture.Bytes != 10 {
		t.Errorf("Expected capture event, got %+v", ev)
	}

	h.Error("session-1", errors.New("boom"))
	ev = readEvent(t, conn)
	if ev.Type != "error" || ev.Error != "boom" {
		t.Errorf("Expected error event, got %+v", ev)
	}
}
