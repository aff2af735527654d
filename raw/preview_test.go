package raw

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPreviewDownscales(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 50))

	preview, scale := BuildPreview(src, 50, 50)
	assert.InDelta(t, 0.5, scale, 1e-9)
	assert.Equal(t, 50, preview.Bounds().Dx())
	assert.Equal(t, 25, preview.Bounds().Dy())
}

func TestBuildPreviewNeverUpscales(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 30, 20))

	preview, scale := BuildPreview(src, 1600, 1000)
	assert.Equal(t, 1.0, scale)
	assert.Equal(t, 30, preview.Bounds().Dx())
	assert.Equal(t, 20, preview.Bounds().Dy())
}

func TestBuildPreviewHeightBound(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 400))

	preview, scale := BuildPreview(src, 1000, 100)
	assert.InDelta(t, 0.25, scale, 1e-9)
	assert.Equal(t, 25, preview.Bounds().Dx())
	assert.Equal(t, 100, preview.Bounds().Dy())
}

func TestBuildPreviewMaps16BitDown(t *testing.T) {
	src := image.NewNRGBA64(image.Rect(0, 0, 4, 4))
	for i := 0; i < 4*4; i++ {
		o := i * 8
		// Full-scale red, half-scale green.
		src.Pix[o] = 0xff
		src.Pix[o+1] = 0xff
		src.Pix[o+2] = 0x80
		src.Pix[o+3] = 0x00
		src.Pix[o+6] = 0xff
		src.Pix[o+7] = 0xff
	}

	preview, scale := BuildPreview(src, 10, 10)
	assert.Equal(t, 1.0, scale)
	assert.Equal(t, uint8(255), preview.Pix[0])
	assert.Equal(t, uint8(0x8000/257), preview.Pix[1])
	assert.Equal(t, uint8(255), preview.Pix[3], "alpha stays opaque")
}

func TestBuildPreview16BitSubImage(t *testing.T) {
	// A sub-image keeps the parent's stride and a non-origin bounds min;
	// the conversion must read through both.
	src := image.NewNRGBA64(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := uint16((y*8 + x) * 257)
			src.SetNRGBA64(x, y, color.NRGBA64{R: v, G: v, B: v, A: 0xffff})
		}
	}
	sub := src.SubImage(image.Rect(2, 3, 6, 7)).(*image.NRGBA64)

	preview, scale := BuildPreview(sub, 10, 10)
	assert.Equal(t, 1.0, scale)
	require.Equal(t, 4, preview.Bounds().Dx())
	require.Equal(t, 4, preview.Bounds().Dy())

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := uint8((y+3)*8 + x + 2)
			o := preview.PixOffset(x, y)
			assert.Equal(t, want, preview.Pix[o], "pixel %d,%d", x, y)
			assert.Equal(t, uint8(255), preview.Pix[o+3])
		}
	}
}
