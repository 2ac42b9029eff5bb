package worker

import (
	"image"
	"sort"

	"github.com/andresmejia3/oculus/internal/types"
)

// resultFromRects turns eye bounding boxes into a detection. The two largest boxes are kept and
// ordered left to right in image space; a single box stands in for both eyes.
func resultFromRects(rects []image.Rectangle) types.DetectionResult {
	if len(rects) == 0 {
		return types.NoDetection()
	}
	sorted := append([]image.Rectangle(nil), rects...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return area(sorted[i]) > area(sorted[j])
	})
	if len(sorted) == 1 {
		eye := corners(sorted[0])
		return types.Detected(eye, eye)
	}
	a, b := sorted[0], sorted[1]
	if b.Min.X < a.Min.X {
		a, b = b, a
	}
	return types.Detected(corners(a), corners(b))
}

func area(r image.Rectangle) int {
	s := r.Size()
	return s.X * s.Y
}

func corners(r image.Rectangle) types.EyePointSet {
	return types.EyePointSet{
		{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Max.Y)},
		{X: float64(r.Min.X), Y: float64(r.Max.Y)},
	}
}
