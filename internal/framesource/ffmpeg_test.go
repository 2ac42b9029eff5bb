package framesource

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"

	"github.com/andresmejia3/oculus/internal/utils"
)

func encodeFrame(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	img.SetGray(0, 0, color.Gray{Y: 255 - shade})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func quietSource() *FFmpeg {
	return NewFFmpeg(utils.FFmpegInput{Path: "test"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLatestBeforeFirstFrame(t *testing.T) {
	var l Latest
	if l.Ready() {
		t.Error("Expected not ready before any frame")
	}
	if _, ok := l.Sample(); ok {
		t.Error("Expected no sample before any frame")
	}
}

func TestConsumeKeepsNewestFrame(t *testing.T) {
	first := encodeFrame(t, 64, 48, 10)
	second := encodeFrame(t, 32, 24, 200)

	// Garbage between frames, like ffmpeg's image2pipe output can contain.
	stream := bytes.Join([][]byte{first, []byte("noise"), second}, nil)

	src := quietSource()
	if err := src.consume(bytes.NewReader(stream)); err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	if !src.Ready() {
		t.Fatal("Expected source to be ready")
	}
	frame, ok := src.Sample()
	if !ok {
		t.Fatal("Expected a frame")
	}
	if frame.Seq != 2 {
		t.Errorf("Expected seq 2, got %d", frame.Seq)
	}
	if frame.Width != 32 || frame.Height != 24 {
		t.Errorf("Expected 32x24, got %dx%d", frame.Width, frame.Height)
	}
	if !bytes.Equal(frame.Data, second) {
		t.Error("Sampled data is not the newest frame")
	}
	if frame.CapturedAt.IsZero() {
		t.Error("Expected capture timestamp")
	}
}

func TestConsumeSkipsCorruptFrames(t *testing.T) {
	good := encodeFrame(t, 16, 16, 50)
	corrupt := append(append([]byte{}, utils.JpegSOI...), 0x00, 0x01, 0xFF, 0xD9)

	src := quietSource()
	if err := src.consume(bytes.NewReader(append(corrupt, good...))); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if src.Seq() != 1 {
		t.Errorf("Expected 1 published frame, got %d", src.Seq())
	}
	if src.skipped != 1 {
		t.Errorf("Expected 1 skipped frame, got %d", src.skipped)
	}
}

func TestConsumeEmptyStream(t *testing.T) {
	src := quietSource()
	if err := src.consume(bytes.NewReader(nil)); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if src.Ready() {
		t.Error("Expected not ready after empty stream")
	}
}
