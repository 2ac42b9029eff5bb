package framesource

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/andresmejia3/oculus/internal/utils"
)

const megabyte = 1024 * 1024

// ErrStarted is returned when Start is called twice.
var ErrStarted = errors.New("frame source already started")

// FFmpeg decodes a camera device or video file with ffmpeg and keeps the newest JPEG frame.
type FFmpeg struct {
	Latest

	in  utils.FFmpegInput
	log *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stderr  bytes.Buffer
	done    chan struct{}
	err     error
	skipped int
}

func NewFFmpeg(in utils.FFmpegInput, logger *slog.Logger) *FFmpeg {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpeg{in: in, log: logger.With("component", "framesource", "input", in.Path)}
}

// Start launches ffmpeg and begins ingesting frames in the background.
// The process is killed when ctx is cancelled.
func (s *FFmpeg) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return ErrStarted
	}

	ffmpeg := utils.NewFFmpegCmd(ctx, s.in)
	ffmpeg.Stderr = &s.stderr

	out, err := ffmpeg.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create FFmpeg stdout pipe: %w", err)
	}
	if err := ffmpeg.Start(); err != nil {
		return fmt.Errorf("failed to start FFmpeg: %w", err)
	}
	s.cmd = ffmpeg
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		consumeErr := s.consume(out)
		waitErr := ffmpeg.Wait()

		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case ctx.Err() != nil:
			// Killed on purpose.
		case consumeErr != nil:
			s.err = consumeErr
		case waitErr != nil:
			s.err = fmt.Errorf("ffmpeg execution failed: %w: %s", waitErr, bytes.TrimSpace(s.stderr.Bytes()))
		}
		s.log.Info("frame source stopped", "frames", s.Seq(), "skipped", s.skipped, "err", s.err)
	}()
	return nil
}

// Done is closed once ffmpeg has exited and all frames were ingested.
func (s *FFmpeg) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Err reports why the stream ended, if it ended abnormally.
func (s *FFmpeg) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// consume splits an MJPEG byte stream into frames and publishes each one.
func (s *FFmpeg) consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	for scanner.Scan() {
		// The scanner reuses its buffer, so each frame needs its own copy.
		data := bytes.Clone(scanner.Bytes())
		width, height, err := utils.JpegSize(data)
		if err != nil {
			s.mu.Lock()
			s.skipped++
			s.mu.Unlock()
			s.log.Debug("skipping undecodable frame", "err", err)
			continue
		}
		s.Publish(data, width, height)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("frame scanner failed: %w", err)
	}
	return nil
}
