package worker

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/andresmejia3/oculus/internal/types"
	"github.com/andresmejia3/oculus/internal/utils"
)

var (
	// ErrWorker prefixes failures reported by the Python side.
	ErrWorker = errors.New("python worker error")
	// ErrNotLoaded is returned by Detect before Load succeeded.
	ErrNotLoaded = errors.New("detector not loaded")
)

// Config controls the landmark worker process.
type Config struct {
	Python         string
	Script         string
	InputSize      int
	ScoreThreshold float64
	// ReadTimeout bounds a single Detect round trip.
	ReadTimeout time.Duration
}

// DefaultConfig mirrors the tiny face detector options used by the web client.
func DefaultConfig() Config {
	return Config{
		Python:         "python3",
		Script:         "python/landmark_worker.py",
		InputSize:      160,
		ScoreThreshold: 0.5,
		ReadTimeout:    5 * time.Second,
	}
}

// LandmarkWorker runs the face landmark model in a Python subprocess.
// Frames go in over stdin and results come back over a dedicated pipe (FD 3).
type LandmarkWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser

	cfg Config

	// sem serializes round trips on the pipe. A Detect abandoned by its caller keeps the
	// token until the reply has been drained so the framing never desyncs. Waiters select
	// on it, so a hung round trip never blocks them past their deadline.
	sem    chan struct{}
	loaded bool
}

func NewLandmarkWorker(id int, cfg Config) *LandmarkWorker {
	def := DefaultConfig()
	if cfg.Python == "" {
		cfg.Python = def.Python
	}
	if cfg.Script == "" {
		cfg.Script = def.Script
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = def.InputSize
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = def.ScoreThreshold
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	return &LandmarkWorker{ID: id, cfg: cfg, sem: make(chan struct{}, 1)}
}

func (w *LandmarkWorker) release() { <-w.sem }

// Load spawns the Python process and waits for it to report the models are ready.
// Calling Load again after a success is a no-op.
func (w *LandmarkWorker) Load(ctx context.Context) error {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer w.release()
	if w.loaded {
		return nil
	}

	// The process outlives the session that loads it, so it is not bound to ctx.
	py := utils.NewSafeCommand(context.Background(), w.cfg.Python, "-u", w.cfg.Script,
		"--input-size", strconv.Itoa(w.cfg.InputSize),
		"--score-threshold", strconv.FormatFloat(w.cfg.ScoreThreshold, 'f', -1, 64),
	)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, wr, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{wr}

	stdin, err := py.StdinPipe()
	if err != nil {
		wr.Close() // Prevent FD leak
		r.Close()
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		wr.Close()
		r.Close()
		return fmt.Errorf("worker %d failed to start: %w", w.ID, err)
	}

	// Close the write-end in the parent so only the child holds it
	wr.Close()

	w.Cmd = py
	w.Stdin = stdin
	w.DataPipe = r

	ready := make(chan error, 1)
	go func() { ready <- w.readHandshake() }()

	select {
	case err := <-ready:
		if err != nil {
			w.kill()
			return fmt.Errorf("worker %d failed to load models: %w", w.ID, err)
		}
	case <-ctx.Done():
		w.kill()
		return ctx.Err()
	}

	w.loaded = true
	return nil
}

// Detect sends one JPEG frame and returns the eye landmarks found in it.
// ReadTimeout bounds the whole call, including the wait for a previous round trip.
func (w *LandmarkWorker) Detect(ctx context.Context, frame types.Frame) (types.DetectionResult, error) {
	timer := time.NewTimer(w.cfg.ReadTimeout)
	defer timer.Stop()

	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return types.NoDetection(), ctx.Err()
	case <-timer.C:
		return types.NoDetection(), fmt.Errorf("worker %d busy: previous frame still pending after %s", w.ID, w.cfg.ReadTimeout)
	}
	if !w.loaded {
		w.release()
		return types.NoDetection(), ErrNotLoaded
	}

	type reply struct {
		result types.DetectionResult
		err    error
	}
	done := make(chan reply, 1)
	go func() {
		defer w.release()
		r, err := w.ProcessFrame(frame.Data)
		done <- reply{r, err}
	}()

	select {
	case rep := <-done:
		return rep.result, rep.err
	case <-ctx.Done():
		return types.NoDetection(), ctx.Err()
	case <-timer.C:
		return types.NoDetection(), fmt.Errorf("worker %d timed out after %s", w.ID, w.cfg.ReadTimeout)
	}
}

// ProcessFrame performs one request/response exchange on the pipes.
// Protocol: [Length][Data] in both directions.
func (w *LandmarkWorker) ProcessFrame(data []byte) (types.DetectionResult, error) {
	if err := writeMessage(w.Stdin, data); err != nil {
		return types.NoDetection(), err
	}
	payload, err := readMessage(w.DataPipe)
	if err != nil {
		return types.NoDetection(), err // This is where we catch the "ModuleNotFoundError" crash
	}
	return decodeDetection(payload)
}

func (w *LandmarkWorker) readHandshake() error {
	payload, err := readMessage(w.DataPipe)
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return fmt.Errorf("empty handshake")
	}
	if payload[0] == statusError {
		return decodeError(payload[1:])
	}
	return nil
}

// Close shuts the worker down, giving Python a moment to exit on EOF before killing it.
func (w *LandmarkWorker) Close() {
	// Closing the pipes first unblocks a round trip that still holds the token.
	if w.Stdin != nil {
		w.Stdin.Close()
	}
	if w.DataPipe != nil {
		w.DataPipe.Close()
	}

	w.sem <- struct{}{}
	defer w.release()
	w.loaded = false
	if w.Cmd == nil || w.Cmd.Process == nil {
		return
	}

	exited := make(chan struct{})
	go func() {
		w.Cmd.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		w.Cmd.Process.Kill()
		<-exited
	}
}

func (w *LandmarkWorker) kill() {
	if w.Stdin != nil {
		w.Stdin.Close()
	}
	if w.DataPipe != nil {
		w.DataPipe.Close()
	}
	if w.Cmd != nil && w.Cmd.Process != nil {
		w.Cmd.Process.Kill()
		w.Cmd.Wait()
	}
}

func writeMessage(out io.Writer, data []byte) error {
	if err := binary.Write(out, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := out.Write(data)
	return err
}

func readMessage(in io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(in, header); err != nil {
		return nil, err
	}
	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxMessageSize {
		return nil, fmt.Errorf("response of %d bytes exceeds limit", respLen)
	}
	body := make([]byte, respLen)
	_, err := io.ReadFull(in, body)
	return body, err
}
