package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/andresmejia3/oculus/internal/types"
)

// Offsets of the simulated timeline, measured from the start of the session.
const (
	FallbackAlignAfter   = 2000 * time.Millisecond
	FallbackPerfectAfter = 4500 * time.Millisecond
)

var fallbackFrameSize = types.Size{Width: 640, Height: 480}

// frameSize is the size alignment is judged against. Frames that carry no dimensions are
// treated as fallbackFrameSize, matching where the fallback places its points.
func frameSize(frame types.Frame) types.Size {
	if size := frame.Size(); size.Valid() {
		return size
	}
	return fallbackFrameSize
}

// Fallback is a deterministic stand-in detector used when no real model is configured.
// It reports nothing for FallbackAlignAfter, then an eye outside the zone, then from
// FallbackPerfectAfter an eye centered in the zone.
type Fallback struct {
	zone  types.TargetZone
	clock func() time.Time

	mu    sync.Mutex
	start time.Time
}

func NewFallback(zone types.TargetZone, clock func() time.Time) *Fallback {
	if clock == nil {
		clock = time.Now
	}
	return &Fallback{zone: zone, clock: clock, start: clock()}
}

func (f *Fallback) Load(ctx context.Context) error {
	return ctx.Err()
}

// Reset restarts the timeline.
func (f *Fallback) Reset() {
	f.mu.Lock()
	f.start = f.clock()
	f.mu.Unlock()
}

func (f *Fallback) Detect(ctx context.Context, frame types.Frame) (types.DetectionResult, error) {
	if err := ctx.Err(); err != nil {
		return types.NoDetection(), err
	}
	f.mu.Lock()
	elapsed := f.clock().Sub(f.start)
	f.mu.Unlock()

	bounds := f.zone.Bounds(frameSize(frame))

	switch {
	case elapsed < FallbackAlignAfter:
		return types.NoDetection(), nil
	case elapsed < FallbackPerfectAfter:
		outside := types.EyePointSet{{X: bounds.Left - 1, Y: bounds.Top - 1}}
		return types.Detected(outside, outside), nil
	default:
		c := bounds.Center()
		eye := types.EyePointSet{
			{X: c.X - 4, Y: c.Y},
			{X: c.X, Y: c.Y - 2},
			{X: c.X + 4, Y: c.Y},
			{X: c.X, Y: c.Y + 2},
		}
		return types.Detected(eye, eye), nil
	}
}
