// Package scheduler runs the detection-and-alignment loop that turns a live video feed into a
// single captured frame.
//
// A Scheduler owns the shared detector and hands out one Session at a time. Each Session pulls
// frames, asks the detector for eye landmarks, evaluates alignment against the target zone,
// reports status, and fires exactly one capture once Perfect alignment has been held for the
// configured delay.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/andresmejia3/oculus/internal/types"
	"github.com/google/uuid"
)

const (
	DefaultHoldDelay    = time.Second
	DefaultTickInterval = 33 * time.Millisecond
)

var (
	// ErrNoDetector is returned by New when no detector is configured and fallback mode is off.
	ErrNoDetector = errors.New("no detector configured and fallback mode disabled")
	// ErrSessionActive is returned by Start while another session still owns the detector.
	ErrSessionActive = errors.New("a scan session is already active")
	// ErrLoad wraps a detector load failure reported to the sink.
	ErrLoad = errors.New("detector failed to load")
)

// FrameSource is the live video feed.
type FrameSource interface {
	// Ready reports whether the source is producing readable frames.
	Ready() bool
	// Sample returns the most recent frame. ok is false if none is available right now.
	Sample() (frame types.Frame, ok bool)
}

// Detector is the landmark-detection capability.
type Detector interface {
	Load(ctx context.Context) error
	Detect(ctx context.Context, frame types.Frame) (types.DetectionResult, error)
}

// StatusSink consumes per-tick status, the capture event and fatal errors.
// Calls are made while the session lock is held and must not block for long.
type StatusSink interface {
	Status(update types.StatusUpdate)
	Capture(event types.CaptureEvent)
	Error(sessionID string, err error)
}

// Timer is a cancellable deferred callback.
type Timer interface {
	Stop() bool
}

// Options tune a Scheduler. Zero values select the defaults.
type Options struct {
	Zone         types.TargetZone
	HoldDelay    time.Duration
	TickInterval time.Duration
	// Fallback enables the time-based generator when no detector is given.
	Fallback bool
	Logger   *slog.Logger

	// Pacer blocks until the next tick is due. Defaults to sleeping TickInterval.
	Pacer func(ctx context.Context) error
	// AfterFunc schedules the hold timer. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
	Clock     func() time.Time
	// NewID generates session IDs. Defaults to random UUIDs.
	NewID func() string
}

// Scheduler hands out sessions over a shared frame source, detector and sink.
type Scheduler struct {
	frames   FrameSource
	detector Detector
	loader   *Loader
	sink     StatusSink
	opts     Options
	log      *slog.Logger

	// detecting holds one token while a Detect call is running, across sessions. A stopped
	// session's call may still be in flight when the next session ticks.
	detecting chan struct{}

	mu      sync.Mutex
	current *Session
}

// New validates the options and returns a scheduler.
func New(frames FrameSource, detector Detector, sink StatusSink, opts Options) (*Scheduler, error) {
	if frames == nil {
		return nil, errors.New("frame source must not be nil")
	}
	if sink == nil {
		return nil, errors.New("status sink must not be nil")
	}
	if opts.Zone == (types.TargetZone{}) {
		opts.Zone = types.DefaultTargetZone
	}
	if err := opts.Zone.Validate(); err != nil {
		return nil, err
	}
	if opts.HoldDelay < 0 || opts.TickInterval < 0 {
		return nil, fmt.Errorf("hold delay and tick interval must not be negative")
	}
	if opts.HoldDelay == 0 {
		opts.HoldDelay = DefaultHoldDelay
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Pacer == nil {
		opts.Pacer = intervalPacer(opts.TickInterval)
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if detector == nil {
		if !opts.Fallback {
			return nil, ErrNoDetector
		}
		detector = NewFallback(opts.Zone, opts.Clock)
	}

	return &Scheduler{
		frames:    frames,
		detector:  detector,
		loader:    NewLoader(detector),
		sink:      sink,
		opts:      opts,
		log:       opts.Logger,
		detecting: make(chan struct{}, 1),
	}, nil
}

// Start begins a new session. Only one session may be live at a time.
func (s *Scheduler) Start(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.Alive() {
		return nil, ErrSessionActive
	}

	sess := newSession(s, s.opts.NewID())
	s.current = sess
	sess.start(ctx)
	return sess, nil
}

// Stop stops the current session, if any. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	sess := s.current
	s.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

// Active returns the live session, or nil.
func (s *Scheduler) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.Alive() {
		return s.current
	}
	return nil
}

// Zone returns the configured target zone.
func (s *Scheduler) Zone() types.TargetZone {
	return s.opts.Zone
}

// detect runs the detector once no other call is in flight.
func (s *Scheduler) detect(ctx context.Context, frame types.Frame) (types.DetectionResult, error) {
	select {
	case s.detecting <- struct{}{}:
	case <-ctx.Done():
		return types.NoDetection(), ctx.Err()
	}
	defer func() { <-s.detecting }()
	return s.detector.Detect(ctx, frame)
}

func intervalPacer(interval time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
}
