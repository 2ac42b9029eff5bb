package scheduler

import "github.com/andresmejia3/oculus/internal/types"

// armHoldLocked schedules the capture. Each arm gets a fresh generation so a callback that fired
// before being cancelled can tell it is stale.
func (s *Session) armHoldLocked() {
	s.holdGen++
	gen := s.holdGen
	s.hold = s.sched.opts.AfterFunc(s.sched.opts.HoldDelay, func() { s.fireHold(gen) })
}

func (s *Session) cancelHoldLocked() {
	if s.hold != nil {
		s.hold.Stop()
		s.hold = nil
	}
	s.holdGen++
}

func (s *Session) fireHold(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.alive || gen != s.holdGen || s.status != types.Perfect {
		return
	}
	s.hold = nil

	frame, ok := s.sched.frames.Sample()
	if !ok {
		// Stay Perfect; the next tick that confirms Perfect re-arms.
		s.log.Debug("no frame available at hold expiry, capture discarded")
		return
	}

	s.captured = true
	s.sched.sink.Capture(types.CaptureEvent{
		SessionID: s.id,
		Frame:     frame,
		At:        s.sched.opts.Clock(),
	})
	s.teardownLocked("captured")
}
