package types

import (
	"fmt"
	"strconv"
	"strings"
)

// TargetZone is a rectangle in frame-normalized coordinates. All fields lie in [0,1].
type TargetZone struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// DefaultTargetZone is the centered 40% box drawn by the scan overlay.
var DefaultTargetZone = TargetZone{X: 0.3, Y: 0.3, Width: 0.4, Height: 0.4}

// Rect is an absolute pixel rectangle with inclusive edges.
type Rect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return r.Left <= p.X && p.X <= r.Right && r.Top <= p.Y && p.Y <= r.Bottom
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g)-(%g,%g)", r.Left, r.Top, r.Right, r.Bottom)
}

// Bounds converts the zone to absolute pixel bounds for a frame of the given size.
func (z TargetZone) Bounds(size Size) Rect {
	left := z.X * float64(size.Width)
	top := z.Y * float64(size.Height)
	return Rect{
		Left:   left,
		Top:    top,
		Right:  left + z.Width*float64(size.Width),
		Bottom: top + z.Height*float64(size.Height),
	}
}

// Validate checks every field is within [0,1].
func (z TargetZone) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{{"x", z.X}, {"y", z.Y}, {"width", z.Width}, {"height", z.Height}}
	for _, f := range fields {
		if f.v < 0 || f.v > 1 {
			return fmt.Errorf("target zone %s must be between 0.0 and 1.0, got %f", f.name, f.v)
		}
	}
	return nil
}

func (z TargetZone) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", z.X, z.Y, z.Width, z.Height)
}

// ParseTargetZone parses the "x,y,w,h" form used by flags and config.
func ParseTargetZone(s string) (TargetZone, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return TargetZone{}, fmt.Errorf("invalid target zone %q: expected x,y,w,h", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return TargetZone{}, fmt.Errorf("invalid target zone %q: %w", s, err)
		}
		vals[i] = v
	}
	z := TargetZone{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	if err := z.Validate(); err != nil {
		return TargetZone{}, err
	}
	return z, nil
}
