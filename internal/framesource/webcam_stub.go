//go:build !gocv

package framesource

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoOpenCV is returned when the binary was built without the gocv tag.
var ErrNoOpenCV = errors.New("webcam source requires a build with -tags gocv")

// Webcam is unavailable in this build; Start always fails.
type Webcam struct {
	Latest
	done chan struct{}
}

func NewWebcam(device, width, height int, logger *slog.Logger) *Webcam {
	return &Webcam{done: make(chan struct{})}
}

func (w *Webcam) Start(ctx context.Context) error { return ErrNoOpenCV }

func (w *Webcam) Done() <-chan struct{} { return w.done }

func (w *Webcam) Err() error { return ErrNoOpenCV }
