package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresmejia3/oculus/internal/scheduler"
	"github.com/andresmejia3/oculus/internal/sink"
	"github.com/andresmejia3/oculus/internal/types"
)

var testJPEG = []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}

type staticFrames struct{}

func (staticFrames) Ready() bool { return true }
func (staticFrames) Sample() (types.Frame, bool) {
	return types.Frame{Data: testJPEG, Width: 640, Height: 480, Seq: 1}, true
}

// eyeDetector reports one eye at a fixed point every call.
type eyeDetector struct{ at types.Point }

func (d eyeDetector) Load(ctx context.Context) error { return nil }
func (d eyeDetector) Detect(ctx context.Context, f types.Frame) (types.DetectionResult, error) {
	eye := types.EyePointSet{d.at}
	return types.Detected(eye, eye), nil
}

func newTestServer(t *testing.T, det scheduler.Detector) (*httptest.Server, *scheduler.Scheduler, *sink.Hub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := sink.NewHub(logger)
	sched, err := scheduler.New(staticFrames{}, det, hub, scheduler.Options{
		HoldDelay:    20 * time.Millisecond,
		TickInterval: time.Millisecond,
		Logger:       logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		sched.Stop()
		cancel()
	})
	srv := httptest.NewServer(New(ctx, sched, hub, logger).Router())
	t.Cleanup(srv.Close)
	return srv, sched, hub
}

func post(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func getStatus(t *testing.T, url string) StatusResponse {
	t.Helper()
	resp, err := http.Get(url + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, eyeDetector{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK\n" {
		t.Errorf("health = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Post(srv.URL+"/health", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d, want 405", resp.StatusCode)
	}
}

func TestStartStop(t *testing.T) {
	// The eye sits far outside the zone so the session never captures on its own.
	srv, sched, _ := newTestServer(t, eyeDetector{at: types.Point{X: 1, Y: 1}})

	resp, body := post(t, srv.URL+"/scan/start")
	if resp.StatusCode != http.StatusAccepted || body["session_id"] == "" {
		t.Fatalf("start = %d %v", resp.StatusCode, body)
	}
	sess := sched.Active()
	if sess == nil || sess.ID() != body["session_id"] {
		t.Fatalf("Expected active session %v, got %v", body["session_id"], sess)
	}

	resp, _ = post(t, srv.URL+"/scan/start")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start = %d, want 409", resp.StatusCode)
	}

	st := getStatus(t, srv.URL)
	if !st.Active || st.SessionID != sess.ID() || st.Zone != types.DefaultTargetZone {
		t.Errorf("unexpected status %+v", st)
	}

	resp, body = post(t, srv.URL+"/scan/stop")
	if resp.StatusCode != http.StatusOK || body["stopped"] != true {
		t.Errorf("stop = %d %v", resp.StatusCode, body)
	}
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after stop")
	}

	st = getStatus(t, srv.URL)
	if st.Active || st.Status != types.Idle || st.Captured {
		t.Errorf("Expected idle without capture after stop, got %+v", st)
	}

	_, body = post(t, srv.URL+"/scan/stop")
	if body["stopped"] != false {
		t.Errorf("stop with no session = %v", body)
	}
}

func TestCapture(t *testing.T) {
	// Zone center of a 640x480 frame.
	srv, sched, hub := newTestServer(t, eyeDetector{at: types.Point{X: 320, Y: 240}})

	resp, err := http.Get(srv.URL + "/capture")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("capture before scan = %d, want 404", resp.StatusCode)
	}

	post(t, srv.URL+"/scan/start")
	sess := sched.Active()
	if sess == nil {
		t.Fatal("Expected active session")
	}
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not capture")
	}
	if !sess.Captured() {
		t.Fatal("Expected session to end by capture")
	}
	if _, ok := hub.LastCapture(); !ok {
		t.Fatal("hub did not record the capture")
	}

	resp, err = http.Get(srv.URL + "/capture")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("capture = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.Equal(body, testJPEG) || resp.Header.Get("X-Session-Id") != sess.ID() {
		t.Errorf("unexpected capture body %x session %q", body, resp.Header.Get("X-Session-Id"))
	}

	if st := getStatus(t, srv.URL); !st.Captured || st.Active {
		t.Errorf("unexpected status after capture %+v", st)
	}
}
