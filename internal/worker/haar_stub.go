//go:build !gocv

package worker

import (
	"context"
	"errors"

	"github.com/andresmejia3/oculus/internal/types"
)

// ErrNoOpenCV is returned when the binary was built without the gocv tag.
var ErrNoOpenCV = errors.New("haar detector requires a build with -tags gocv")

// HaarDetector is unavailable in this build; Load always fails.
type HaarDetector struct {
	cascadePath string
}

func NewHaarDetector(cascadePath string) *HaarDetector {
	return &HaarDetector{cascadePath: cascadePath}
}

func (h *HaarDetector) Load(ctx context.Context) error {
	return ErrNoOpenCV
}

func (h *HaarDetector) Detect(ctx context.Context, frame types.Frame) (types.DetectionResult, error) {
	return types.NoDetection(), ErrNotLoaded
}

func (h *HaarDetector) Close() error { return nil }
