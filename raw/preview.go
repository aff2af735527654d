package raw

import (
	"image"

	"github.com/disintegration/imaging"
)

// BuildPreview produces the 8-bit display image, scaled down to fit within
// maxW x maxH (never scaled up), and the applied scale factor. A 16-bit
// source is tone-preserved by mapping 65535 to 255; only the preview is
// reduced, the full-resolution data keeps its depth.
func BuildPreview(full image.Image, maxW, maxH int) (*image.NRGBA, float64) {
	display := to8Bit(full)

	b := display.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return display, 1
	}

	scale := 1.0
	if s := float64(maxW) / float64(w); s < scale {
		scale = s
	}
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}
	if scale >= 1 {
		return display, 1
	}

	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	return imaging.Resize(display, dw, dh, imaging.Lanczos), scale
}

func to8Bit(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	if n, ok := img.(*image.NRGBA64); ok {
		b := n.Bounds()
		out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		// Walk rows through PixOffset so sub-images, whose bounds do not
		// start at the origin and whose stride exceeds the row width,
		// convert correctly.
		for y := 0; y < b.Dy(); y++ {
			src := n.PixOffset(b.Min.X, b.Min.Y+y)
			dst := out.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				for c := 0; c < 4; c++ {
					v := uint16(n.Pix[src+2*c])<<8 | uint16(n.Pix[src+2*c+1])
					out.Pix[dst+c] = uint8(v / 257)
				}
				src += 8
				dst += 4
			}
		}
		return out
	}
	return imaging.Clone(img)
}
