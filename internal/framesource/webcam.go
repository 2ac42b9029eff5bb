//go:build gocv

package framesource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"
)

// Webcam grabs frames from a local camera through OpenCV and re-encodes them as JPEG.
type Webcam struct {
	Latest

	device int
	width  int
	height int
	log    *slog.Logger

	done chan struct{}
	err  error
}

func NewWebcam(device, width, height int, logger *slog.Logger) *Webcam {
	if logger == nil {
		logger = slog.Default()
	}
	return &Webcam{
		device: device,
		width:  width,
		height: height,
		log:    logger.With("component", "framesource", "device", device),
		done:   make(chan struct{}),
	}
}

// Start opens the camera and reads frames until ctx is cancelled.
func (w *Webcam) Start(ctx context.Context) error {
	webcam, err := gocv.OpenVideoCapture(w.device)
	if err != nil {
		return fmt.Errorf("error opening video capture device %d: %w", w.device, err)
	}
	if w.width > 0 && w.height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(w.width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(w.height))
	}

	go func() {
		defer close(w.done)
		defer webcam.Close()

		img := gocv.NewMat()
		defer img.Close()

		misses := 0
		for ctx.Err() == nil {
			if ok := webcam.Read(&img); !ok || img.Empty() {
				misses++
				if misses > 100 {
					w.err = fmt.Errorf("device %d stopped delivering frames", w.device)
					return
				}
				time.Sleep(10 * time.Millisecond)
				continue
			}
			misses = 0

			buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
			if err != nil {
				w.log.Debug("encode failed", "err", err)
				continue
			}
			data := append([]byte(nil), buf.GetBytes()...)
			buf.Close()
			w.Publish(data, img.Cols(), img.Rows())
		}
	}()
	return nil
}

// Done is closed when the capture loop exits.
func (w *Webcam) Done() <-chan struct{} { return w.done }

// Err reports why capture stopped, if it stopped abnormally. Valid after Done.
func (w *Webcam) Err() error { return w.err }
