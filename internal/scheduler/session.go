package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/andresmejia3/oculus/internal/align"
	"github.com/andresmejia3/oculus/internal/types"
)

// Resetter is implemented by detectors that keep per-session state (the fallback timeline).
type Resetter interface {
	Reset()
}

// Session is one scan attempt: created by Scheduler.Start, ended by Stop, a fatal load error,
// a cancelled context or the capture.
type Session struct {
	id    string
	sched *Scheduler
	log   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	alive    bool
	status   types.ScanStatus
	hold     Timer
	holdGen  uint64
	captured bool
}

func newSession(s *Scheduler, id string) *Session {
	return &Session{
		id:     id,
		sched:  s,
		log:    s.log.With("session", id),
		done:   make(chan struct{}),
		status: types.Idle,
	}
}

// ID returns the session identifier carried in every update.
func (s *Session) ID() string { return s.id }

// Done is closed once the session's loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Status returns the current scan status.
func (s *Session) Status() types.ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Alive reports whether the session can still report or capture.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Captured reports whether this session ended with a capture.
func (s *Session) Captured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured
}

// Stop ends the session. Any detector result still in flight is discarded. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked("stopped")
}

func (s *Session) start(parent context.Context) {
	s.ctx, s.cancel = context.WithCancel(parent)
	if r, ok := s.sched.detector.(Resetter); ok {
		r.Reset()
	}

	s.mu.Lock()
	s.alive = true
	s.setStatusLocked(types.Loading, false)
	s.mu.Unlock()

	s.log.Info("scan session started")
	go s.run()
}

func (s *Session) run() {
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.teardownLocked("context done")
		s.mu.Unlock()
	}()

	if err := s.sched.loader.Load(s.ctx); err != nil {
		s.fail(err)
		return
	}

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.setStatusLocked(types.Searching, false)
	s.mu.Unlock()

	for {
		if err := s.sched.opts.Pacer(s.ctx); err != nil {
			return
		}
		if !s.Alive() {
			return
		}
		if !s.tick() {
			return
		}
	}
}

// tick runs one read-detect-evaluate-report cycle. It returns false once the session is over.
func (s *Session) tick() bool {
	frames := s.sched.frames
	if !frames.Ready() {
		return true
	}
	frame, ok := frames.Sample()
	if !ok {
		return true
	}

	result, err := s.sched.detect(s.ctx, frame)
	if err != nil {
		if s.ctx.Err() != nil {
			return false
		}
		s.log.Debug("detection failed, treating tick as no detection", "error", err, "seq", frame.Seq)
		result = types.NoDetection()
	}
	return s.apply(frameSize(frame), result)
}

func (s *Session) apply(size types.Size, result types.DetectionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stopped while the detector was running.
	if !s.alive {
		return false
	}

	next := nextStatus(result, size, s.sched.opts.Zone)
	s.setStatusLocked(next, result.Found())

	if next == types.Perfect {
		if s.hold == nil {
			s.armHoldLocked()
		}
	} else {
		s.cancelHoldLocked()
	}
	return true
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive || s.ctx.Err() != nil {
		return
	}
	s.log.Error("detector load failed", "error", err)
	s.sched.sink.Error(s.id, fmt.Errorf("%w: %w", ErrLoad, err))
	s.teardownLocked("load failed")
}

func (s *Session) setStatusLocked(next types.ScanStatus, eyeDetected bool) {
	if !s.status.CanTransition(next) {
		s.log.Error("illegal status transition", "from", s.status, "to", next)
		return
	}
	if next != s.status {
		s.log.Debug("status changed", "from", s.status, "to", next)
	}
	s.status = next
	s.sched.sink.Status(types.StatusUpdate{
		SessionID:   s.id,
		Status:      next,
		EyeDetected: eyeDetected,
		Instruction: next.Instruction(),
		At:          s.sched.opts.Clock(),
	})
}

// teardownLocked is the single exit path for a session. It returns false if the session had
// already ended.
func (s *Session) teardownLocked(reason string) bool {
	if !s.alive {
		return false
	}
	s.alive = false
	s.cancelHoldLocked()
	s.status = types.Idle
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("scan session ended", "reason", reason)
	return true
}

func nextStatus(result types.DetectionResult, size types.Size, zone types.TargetZone) types.ScanStatus {
	eyes, ok := result.Eyes()
	if !ok {
		return types.Searching
	}
	if align.EitherAligned(eyes, size, zone) {
		return types.Perfect
	}
	return types.Aligning
}
