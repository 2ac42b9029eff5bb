package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frame is one sampled video image. Data holds the JPEG bytes as produced by the source.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time
}

// Size returns the pixel dimensions of the frame.
func (f Frame) Size() Size {
	return Size{Width: f.Width, Height: f.Height}
}

// Size is a pixel width/height pair.
type Size struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// ParseSize parses the "WxH" form used on the command line (e.g. "640x480").
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q: expected WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Size{}, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Size{}, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	size := Size{Width: width, Height: height}
	if !size.Valid() {
		return Size{}, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return size, nil
}

// Point is a 2D landmark in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyePointSet is the ordered landmark contour of one eye.
type EyePointSet []Point

// EyePair holds the two eye contours of a single detection.
type EyePair struct {
	Left  EyePointSet
	Right EyePointSet
}

// DetectionResult is the outcome of one detector invocation: either a pair of eyes or nothing.
// The zero value is "no detection".
type DetectionResult struct {
	found bool
	eyes  EyePair
}

// Detected wraps a detection.
func Detected(left, right EyePointSet) DetectionResult {
	return DetectionResult{found: true, eyes: EyePair{Left: left, Right: right}}
}

// NoDetection is the empty result.
func NoDetection() DetectionResult {
	return DetectionResult{}
}

// Eyes returns the detected pair and whether there was a detection at all.
func (r DetectionResult) Eyes() (EyePair, bool) {
	return r.eyes, r.found
}

// Found reports whether the detector returned a detection.
func (r DetectionResult) Found() bool {
	return r.found
}

// StatusUpdate is reported to the status sink once per tick.
type StatusUpdate struct {
	SessionID   string     `json:"session_id"`
	Status      ScanStatus `json:"status"`
	EyeDetected bool       `json:"eye_detected"`
	Instruction string     `json:"instruction"`
	At          time.Time  `json:"at"`
}

// CaptureEvent is emitted at most once per session, carrying the frame sampled when the hold timer fired.
type CaptureEvent struct {
	SessionID string
	Frame     Frame
	At        time.Time
}
