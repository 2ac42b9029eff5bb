//go:build gocv

package worker

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/andresmejia3/oculus/internal/types"
	"gocv.io/x/gocv"
)

// HaarDetector finds eyes in-process with an OpenCV Haar cascade (e.g. haarcascade_eye.xml).
type HaarDetector struct {
	cascadePath string

	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	loaded     bool
}

func NewHaarDetector(cascadePath string) *HaarDetector {
	return &HaarDetector{cascadePath: cascadePath}
}

func (h *HaarDetector) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(h.cascadePath); err != nil {
		return fmt.Errorf("cascade file: %w", err)
	}

	h.classifier = gocv.NewCascadeClassifier()
	if !h.classifier.Load(h.cascadePath) {
		h.classifier.Close()
		return fmt.Errorf("error loading cascade %q", h.cascadePath)
	}
	h.loaded = true
	return nil
}

func (h *HaarDetector) Detect(ctx context.Context, frame types.Frame) (types.DetectionResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return types.NoDetection(), ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return types.NoDetection(), err
	}

	gray, err := gocv.IMDecode(frame.Data, gocv.IMReadGrayScale)
	if err != nil {
		return types.NoDetection(), fmt.Errorf("decode frame %d: %w", frame.Seq, err)
	}
	defer gray.Close()
	if gray.Empty() {
		return types.NoDetection(), fmt.Errorf("decode frame %d: empty image", frame.Seq)
	}

	return resultFromRects(h.classifier.DetectMultiScale(gray)), nil
}

func (h *HaarDetector) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return nil
	}
	h.loaded = false
	return h.classifier.Close()
}
