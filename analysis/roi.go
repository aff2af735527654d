// Package analysis computes region statistics over developed raw images:
// ROI geometry, mean color reductions, measurement region templates, and
// smartcrop-based region suggestions.
package analysis

import (
	"image"
	"math"
)

// MinSelection is the smallest useful selection edge, in pixels. Anything
// smaller is treated as an accidental click.
const MinSelection = 2

// NormalizedRect returns the rectangle spanned by two corner points with
// its corners in min/max order.
func NormalizedRect(x0, y0, x1, y1 int) image.Rectangle {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return image.Rect(x0, y0, x1, y1)
}

// ClampRect limits r to the area [0,0)-(w,h).
func ClampRect(r image.Rectangle, w, h int) image.Rectangle {
	return r.Intersect(image.Rect(0, 0, w, h))
}

// TooSmall reports whether a selection is below the minimum useful size.
func TooSmall(r image.Rectangle) bool {
	return r.Dx() < MinSelection || r.Dy() < MinSelection
}

// Mapping is the affine relation between preview coordinates and
// full-resolution pixels: preview_px = full_px * Scale.
type Mapping struct {
	Scale float64
}

// PreviewToFull maps a preview-space selection to full-resolution pixel
// coordinates. The minimum corner is floored and the maximum corner is
// ceiled so the mapped rectangle always covers the selected area, then the
// result is clamped to the full image bounds.
func (m Mapping) PreviewToFull(sel image.Rectangle, fullW, fullH int) image.Rectangle {
	if m.Scale <= 0 {
		return image.Rectangle{}
	}
	r := image.Rect(
		int(math.Floor(float64(sel.Min.X)/m.Scale)),
		int(math.Floor(float64(sel.Min.Y)/m.Scale)),
		int(math.Ceil(float64(sel.Max.X)/m.Scale)),
		int(math.Ceil(float64(sel.Max.Y)/m.Scale)),
	)
	return ClampRect(r, fullW, fullH)
}
