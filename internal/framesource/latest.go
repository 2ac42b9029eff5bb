package framesource

import (
	"sync"
	"time"

	"github.com/andresmejia3/oculus/internal/types"
)

// Latest keeps only the most recently decoded frame. Readers never block on the decoder;
// older frames are overwritten, not queued.
type Latest struct {
	mu    sync.RWMutex
	frame types.Frame
	ready bool
	seq   uint64
	now   func() time.Time
}

// Ready reports whether at least one frame has been decoded.
func (l *Latest) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ready
}

// Sample returns the current frame. The returned Data must not be modified.
func (l *Latest) Sample() (types.Frame, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.ready {
		return types.Frame{}, false
	}
	return l.frame, true
}

// Publish replaces the current frame. data is owned by the buffer afterwards.
func (l *Latest) Publish(data []byte, width, height int) types.Frame {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.frame = types.Frame{
		Data:       data,
		Width:      width,
		Height:     height,
		Seq:        l.seq,
		CapturedAt: now(),
	}
	l.ready = true
	return l.frame
}

// Seq is the number of frames published so far.
func (l *Latest) Seq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}
