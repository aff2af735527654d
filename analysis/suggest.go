package analysis

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/muesli/smartcrop"
)

// Suggest proposes an interesting region of roughly w x h pixels using
// content-aware cropping. The returned rectangle is in the coordinate
// space of img.
func Suggest(img image.Image, w, h int) (image.Rectangle, error) {
	analyzer := smartcrop.NewAnalyzer(&resizer{resampler: imaging.Lanczos})
	crop, err := analyzer.FindBestCrop(img, w, h)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("finding best crop: %w", err)
	}
	return crop.Intersect(img.Bounds()), nil
}

type resizer struct {
	resampler imaging.ResampleFilter
}

func (r *resizer) Resize(img image.Image, width, height uint) image.Image {
	return imaging.Resize(img, int(width), int(height), r.resampler)
}
