// Package sink delivers scheduler status, capture and error events to their consumers.
package sink

import (
	"github.com/andresmejia3/oculus/internal/scheduler"
	"github.com/andresmejia3/oculus/internal/types"
)

// Multi fans every event out to each sink in order.
type Multi []scheduler.StatusSink

func (m Multi) Status(update types.StatusUpdate) {
	for _, s := range m {
		s.Status(update)
	}
}

func (m Multi) Capture(event types.CaptureEvent) {
	for _, s := range m {
		s.Capture(event)
	}
}

func (m Multi) Error(sessionID string, err error) {
	for _, s := range m {
		s.Error(sessionID, err)
	}
}
