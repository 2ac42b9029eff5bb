package utils

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"slices"
	"testing"
)

func TestSplitJpeg(t *testing.T) {
	// Construct a stream containing: [Garbage] [JPEG] [Garbage]
	// SOI (Start of Image): FF D8
	// EOI (End of Image):   FF D9

	jpegData := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03, 0xFF, 0xD9}

	streamData := []byte{0x00, 0x00} // Garbage at start
	streamData = append(streamData, jpegData...)
	streamData = append(streamData, []byte{0x00, 0x00}...) // Garbage at end

	// Use bufio.Scanner with our custom Split function
	scanner := bufio.NewScanner(bytes.NewReader(streamData))
	scanner.Split(SplitJpeg)

	// Scan() should skip the first garbage bytes and find the JPEG
	if !scanner.Scan() {
		t.Fatal("Expected to find a token, got EOF")
	}

	// Verify the extracted token is exactly the JPEG
	if !bytes.Equal(scanner.Bytes(), jpegData) {
		t.Errorf("Expected %X, got %X", jpegData, scanner.Bytes())
	}

	// Scan() again should return false (EOF) because the trailing garbage is not a JPEG
	if scanner.Scan() {
		t.Error("Expected only one token, found more")
	}
}

func TestJpegSize(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 48)), nil); err != nil {
		t.Fatal(err)
	}
	w, h, err := JpegSize(buf.Bytes())
	if err != nil {
		t.Fatalf("JpegSize failed: %v", err)
	}
	if w != 64 || h != 48 {
		t.Errorf("Expected 64x48, got %dx%d", w, h)
	}

	if _, _, err := JpegSize([]byte{0xFF, 0xD8, 0xFF, 0xD9}); err == nil {
		t.Error("Expected error for truncated JPEG")
	}
}

func TestNewFFmpegCmd(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		in   FFmpegInput
		want []string
	}{
		{
			name: "Device defaults to v4l2",
			in:   FFmpegInput{Path: "/dev/video0", Device: true, Size: "640x480"},
			want: []string{"-f", "v4l2", "-video_size", "640x480", "-i", "/dev/video0"},
		},
		{
			name: "Realtime looping file",
			in:   FFmpegInput{Path: "eye.mp4", Realtime: true, Loop: true},
			want: []string{"-re", "-stream_loop", "-1", "-i", "eye.mp4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewFFmpegCmd(ctx, tt.in)
			args := cmd.Args[1:]
			for _, w := range tt.want {
				if !slices.Contains(args, w) {
					t.Errorf("Expected arg %q in %v", w, args)
				}
			}
			if args[len(args)-1] != "-" {
				t.Errorf("Expected output to stdout, got %v", args)
			}
		})
	}
}
