package sink

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/oculus/internal/types"
)

type countingSink struct {
	statuses, captures, errors int
}

func (c *countingSink) Status(types.StatusUpdate)  { c.statuses++ }
func (c *countingSink) Capture(types.CaptureEvent) { c.captures++ }
func (c *countingSink) Error(string, error)        { c.errors++ }

func update(s types.ScanStatus, eye bool) types.StatusUpdate {
	return types.StatusUpdate{SessionID: "session-1", Status: s, EyeDetected: eye, Instruction: s.Instruction(), At: time.Now()}
}

func TestMultiFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := Multi{a, b}

	m.Status(update(types.Searching, false))
	m.Status(update(types.Aligning, true))
	m.Capture(types.CaptureEvent{SessionID: "session-1"})
	m.Error("session-1", errors.New("boom"))

	for i, s := range []*countingSink{a, b} {
		if s.statuses != 2 || s.captures != 1 || s.errors != 1 {
			t.Errorf("sink %d got %+v", i, *s)
		}
	}
}

func TestTerminalOutput(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminal(&out)

	term.Status(update(types.Loading, false))
	term.Status(update(types.Perfect, true))
	if !strings.Contains(out.String(), "Perfect!") {
		t.Errorf("Expected instruction in spinner output, got %q", out.String())
	}

	term.Capture(types.CaptureEvent{SessionID: "session-1", Frame: types.Frame{Seq: 7, Width: 640, Height: 480, Data: []byte{1, 2}}})
	if !strings.Contains(out.String(), "Captured frame 7 (640x480, 2 bytes)") {
		t.Errorf("Expected capture line, got %q", out.String())
	}

	term.Error("0123456789abcdef", errors.New("model missing"))
	if !strings.Contains(out.String(), "Session 01234567 failed: model missing") {
		t.Errorf("Expected error line, got %q", out.String())
	}
}

func TestDescribe(t *testing.T) {
	got := describe(update(types.Aligning, true))
	if !strings.Contains(got, "Hold still...") || !strings.Contains(got, "eye detected") {
		t.Errorf("describe() = %q", got)
	}
	got = describe(update(types.Searching, false))
	if !strings.Contains(got, "no eye") {
		t.Errorf("describe() = %q", got)
	}
}
