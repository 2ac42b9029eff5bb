package utils

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"os/exec"
)

// --- 1. Process Safety & Command Wrapping ---

// SafeCommand wraps a standard exec.Cmd with a buffer to catch Stderr (Python logs)
// This ensures we don't lose critical crash information if a worker dies.
type SafeCommand struct {
	*exec.Cmd
	Stderr *bytes.Buffer
}

// NewSafeCommand initializes a command and attaches a buffer to its Stderr pipe
// It prepares the command for execution but does not start it.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// ShowError prints the formatted error box and dumps Python logs if a SafeCommand is provided.
// It does not exit; callers return the error up the cobra chain.
func ShowError(context string, err error, s *SafeCommand) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🚨 OCULUS ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DETAILS: %v\n", err)
	}

	// If we have a SafeCommand and it captured logs, print them.
	if s != nil && s.Stderr.Len() > 0 {
		fmt.Fprintf(os.Stderr, "\nPYTHON CRASH LOGS:\n%s\n", s.Stderr.String())
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// --- 2. Video Engine ---

var (
	JpegSOI = []byte{0xFF, 0xD8} // Start of Image
	JpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// SplitJpeg is the custom splitter for bufio.Scanner
// It locates the Start Of Image (FFD8) and End Of Image (FFD9) markers to extract full JPEG frames.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// JpegSize reads the pixel dimensions from a JPEG header without decoding the image.
func JpegSize(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// FFmpegInput describes what ffmpeg should decode.
type FFmpegInput struct {
	// Path is a video file, or a capture device when Device is set (e.g. /dev/video0).
	Path   string
	Device bool
	// Format is the capture demuxer for devices (v4l2, avfoundation, dshow).
	Format string
	// Size is the requested capture size for devices, e.g. "640x480".
	Size string
	// Realtime throttles file inputs to their native frame rate.
	Realtime bool
	Loop     bool
}

// NewFFmpegCmd creates a standard decoder pipe
// It configures FFmpeg to output raw MJPEG frames to Stdout for ingestion.
func NewFFmpegCmd(ctx context.Context, in FFmpegInput) *exec.Cmd {
	// Added -hide_banner and -loglevel error to prevent memory bloat in stderr buffer
	args := []string{"-hide_banner", "-loglevel", "error"}
	if in.Device {
		format := in.Format
		if format == "" {
			format = "v4l2"
		}
		args = append(args, "-f", format)
		if in.Size != "" {
			args = append(args, "-video_size", in.Size)
		}
	} else {
		if in.Realtime {
			args = append(args, "-re")
		}
		if in.Loop {
			args = append(args, "-stream_loop", "-1")
		}
	}
	// Using -vcodec mjpeg ensures we get JPEGs Go can split
	args = append(args, "-i", in.Path, "-f", "image2pipe", "-vcodec", "mjpeg", "-")
	return exec.CommandContext(ctx, "ffmpeg", args...)
}
