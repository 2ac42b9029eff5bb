// Package align decides whether an eye sits inside the target zone.
package align

import (
	"github.com/andresmejia3/oculus/internal/types"
	"gonum.org/v1/gonum/stat"
)

// Centroid returns the arithmetic mean of the points. ok is false for an empty set.
func Centroid(points types.EyePointSet) (c types.Point, ok bool) {
	if len(points) == 0 {
		return types.Point{}, false
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return types.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}, true
}

// Aligned reports whether the centroid of points lies within zone, scaled to the frame size.
// All four edges are inclusive. Empty point sets and degenerate frames are never aligned.
func Aligned(points types.EyePointSet, size types.Size, zone types.TargetZone) bool {
	if !size.Valid() {
		return false
	}
	c, ok := Centroid(points)
	if !ok {
		return false
	}
	return zone.Bounds(size).Contains(c)
}

// EitherAligned reports whether at least one eye of the pair is aligned.
func EitherAligned(eyes types.EyePair, size types.Size, zone types.TargetZone) bool {
	return Aligned(eyes.Left, size, zone) || Aligned(eyes.Right, size, zone)
}
