// Package framesource provides the live video feeds the scheduler samples from.
package framesource

import (
	"context"

	"github.com/andresmejia3/oculus/internal/types"
)

// Source is a running video feed that always exposes its newest frame.
type Source interface {
	Ready() bool
	Sample() (types.Frame, bool)
	Start(ctx context.Context) error
	// Done is closed when the feed stops producing frames.
	Done() <-chan struct{}
	Err() error
}

var (
	_ Source = (*FFmpeg)(nil)
	_ Source = (*Webcam)(nil)
)
