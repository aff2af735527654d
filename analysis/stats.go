package analysis

import "image"

// RGB holds per-channel mean values in the image's native scale (0-255 for
// 8-bit images, 0-65535 for 16-bit).
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// AvgRGB computes the mean color over the given rectangle. ok is false for
// an empty rectangle. The rectangle is clamped to the image bounds first.
func AvgRGB(img image.Image, rect image.Rectangle) (avg RGB, ok bool) {
	b := img.Bounds()
	rect = rect.Intersect(b)
	if rect.Empty() {
		return RGB{}, false
	}

	at := nativeAccessor(img)
	var sum RGB
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			r, g, bl := at(x, y)
			sum.R += r
			sum.G += g
			sum.B += bl
		}
	}
	n := float64(rect.Dx() * rect.Dy())
	return RGB{R: sum.R / n, G: sum.G / n, B: sum.B / n}, true
}

// BitDepth reports the native bit depth used for statistics: 16 for
// NRGBA64 images, 8 otherwise.
func BitDepth(img image.Image) int {
	if _, ok := img.(*image.NRGBA64); ok {
		return 16
	}
	return 8
}

// nativeAccessor returns a pixel reader in the image's own scale. The two
// formats the loader produces get direct Pix access; anything else goes
// through the color model at 8-bit scale.
func nativeAccessor(img image.Image) func(x, y int) (r, g, b float64) {
	switch im := img.(type) {
	case *image.NRGBA:
		return func(x, y int) (float64, float64, float64) {
			o := im.PixOffset(x, y)
			return float64(im.Pix[o]), float64(im.Pix[o+1]), float64(im.Pix[o+2])
		}
	case *image.NRGBA64:
		return func(x, y int) (float64, float64, float64) {
			o := im.PixOffset(x, y)
			r := uint16(im.Pix[o])<<8 | uint16(im.Pix[o+1])
			g := uint16(im.Pix[o+2])<<8 | uint16(im.Pix[o+3])
			b := uint16(im.Pix[o+4])<<8 | uint16(im.Pix[o+5])
			return float64(r), float64(g), float64(b)
		}
	default:
		return func(x, y int) (float64, float64, float64) {
			r, g, b, _ := img.At(x, y).RGBA()
			return float64(r >> 8), float64(g >> 8), float64(b >> 8)
		}
	}
}
