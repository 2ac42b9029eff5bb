package sink

import (
	"fmt"
	"io"
	"sync"

	"github.com/andresmejia3/oculus/internal/types"
	"github.com/schollz/progressbar/v3"
)

var statusIcons = map[types.ScanStatus]string{
	types.Idle:      "⏹️ ",
	types.Loading:   "⏳",
	types.Searching: "🔍",
	types.Aligning:  "👁️ ",
	types.Perfect:   "✅",
}

// Terminal renders the live status as a spinner line with the current instruction.
type Terminal struct {
	out io.Writer

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) Status(update types.StatusUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if update.Status == types.Idle {
		t.finishLocked()
		return
	}
	if t.bar == nil {
		t.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(t.out),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
	}
	t.bar.Describe(describe(update))
	t.bar.Add(1)
}

func (t *Terminal) Capture(event types.CaptureEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishLocked()
	fmt.Fprintf(t.out, "📸 Captured frame %d (%dx%d, %d bytes)\n",
		event.Frame.Seq, event.Frame.Width, event.Frame.Height, len(event.Frame.Data))
}

func (t *Terminal) Error(sessionID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishLocked()
	fmt.Fprintf(t.out, "⚠️  Session %s failed: %v\n", shortID(sessionID), err)
}

func (t *Terminal) finishLocked() {
	if t.bar == nil {
		return
	}
	t.bar.Finish()
	t.bar = nil
}

func describe(update types.StatusUpdate) string {
	eye := "no eye"
	if update.EyeDetected {
		eye = "eye detected"
	}
	return fmt.Sprintf("%s %-18s [%s]", statusIcons[update.Status], update.Instruction, eye)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
