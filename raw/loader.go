// Package raw loads DNG files without cgo: it walks the TIFF container,
// reads the uncompressed CFA sensor plane, and develops it into an RGB
// image (black/white level scaling, white balance, demosaic, gamma).
package raw

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"os"

	xtiff "golang.org/x/image/tiff"

	"github.com/photonworks/dngscope/util/log"
)

// Errors the loader reports for files it understands but cannot develop.
var (
	// ErrUnsupportedCompression covers LJPEG and lossy-compressed DNGs.
	ErrUnsupportedCompression = errors.New("unsupported DNG compression")
	// ErrUnsupportedLayout covers exotic CFA layouts and sample widths.
	ErrUnsupportedLayout = errors.New("unsupported raw layout")
)

// WhiteBalance selects how channel gains are derived.
type WhiteBalance int

const (
	// WBCamera uses the AsShotNeutral gains recorded by the camera.
	WBCamera WhiteBalance = iota
	// WBAuto derives gray-world gains from the image itself.
	WBAuto
	// WBManual applies caller-supplied gains.
	WBManual
)

// Gamma selects the tone curve applied after demosaicing.
type Gamma int

const (
	// GammaLinear leaves the data linear, which preserves radiometry.
	GammaLinear Gamma = iota
	// GammaSRGB applies a Rec.709-style curve (power 2.222, slope 4.5).
	GammaSRGB
	// GammaManual applies a caller-supplied power/slope curve.
	GammaManual
)

// Demosaic selects the CFA interpolation algorithm.
type Demosaic int

const (
	// DemosaicBilinear is the default: fast clamped-neighbor averaging.
	DemosaicBilinear Demosaic = iota
	// DemosaicMalvar is the Malvar-He-Cutler 5x5 linear filter.
	DemosaicMalvar
)

// Options controls how a DNG is developed. The zero value is usable:
// 8-bit output, camera white balance, linear gamma, bilinear demosaic.
type Options struct {
	// OutputBits is 8 or 16. Zero means 8.
	OutputBits   int
	WhiteBalance WhiteBalance
	// ManualGains holds R, G, B gains for WBManual. A zero value falls
	// back to neutral (1, 1, 1).
	ManualGains [3]float64
	Gamma       Gamma
	GammaPower  float64
	GammaSlope  float64
	Demosaic    Demosaic
	// PreviewMaxW and PreviewMaxH bound the preview. Zero means 1600x1000.
	PreviewMaxW int
	PreviewMaxH int
}

func (o *Options) fillDefaults() error {
	switch o.OutputBits {
	case 0:
		o.OutputBits = 8
	case 8, 16:
	default:
		return fmt.Errorf("output bits must be 8 or 16, got %d", o.OutputBits)
	}
	if o.ManualGains == ([3]float64{}) {
		o.ManualGains = [3]float64{1, 1, 1}
	}
	if o.PreviewMaxW <= 0 {
		o.PreviewMaxW = 1600
	}
	if o.PreviewMaxH <= 0 {
		o.PreviewMaxH = 1000
	}
	return nil
}

// Result is a developed DNG: the full-resolution image, an 8-bit preview
// bounded by the requested maximums, and the preview scale factor such
// that preview_px = full_px * Scale.
type Result struct {
	// Full is *image.NRGBA for 8-bit output and *image.NRGBA64 for 16-bit.
	Full    image.Image
	Preview *image.NRGBA
	Scale   float64
	Bits    int
}

// Load reads and develops the DNG at path.
func Load(path string, opts Options) (*Result, error) {
	if err := opts.fillDefaults(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	full, err := develop(data, opts)
	if err != nil {
		return nil, fmt.Errorf("developing %s: %w", path, err)
	}

	preview, scale := BuildPreview(full, opts.PreviewMaxW, opts.PreviewMaxH)
	b := full.Bounds()
	log.Debugf("loaded %s: %dx%d, %d-bit, preview scale %.4f", path, b.Dx(), b.Dy(), opts.OutputBits, scale)

	return &Result{Full: full, Preview: preview, Scale: scale, Bits: opts.OutputBits}, nil
}

func develop(data []byte, opts Options) (image.Image, error) {
	tf, err := parseTIFF(data)
	if err != nil {
		return nil, err
	}

	d := rawIFD(tf)
	if d == nil {
		return nil, fmt.Errorf("no image IFD found")
	}
	photometric := tf.uintTag(d, tagPhotometric, 0)
	compression := tf.uintTag(d, tagCompression, compressionNone)

	if photometric != photometricCFA {
		// Linear DNGs and plain RGB TIFF-alikes have no mosaic to
		// develop; the stock TIFF decoder handles those.
		img, err := xtiff.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("non-CFA fallback decode: %w", err)
		}
		return requantize(img, opts.OutputBits), nil
	}
	if compression != compressionNone {
		return nil, fmt.Errorf("%w: compression %d", ErrUnsupportedCompression, compression)
	}

	frame, err := readCFAFrame(tf, d)
	if err != nil {
		return nil, err
	}

	mosaic := normalize(tf, d, frame)
	applyGains(mosaic, frame, gainsFor(tf, frame, mosaic, opts))

	var rgb []float32
	switch opts.Demosaic {
	case DemosaicMalvar:
		rgb = demosaicMalvar(mosaic, frame.width, frame.height, frame.pattern)
	default:
		rgb = demosaicBilinear(mosaic, frame.width, frame.height, frame.pattern)
	}

	applyGamma(rgb, curveFor(opts))

	return quantize(rgb, frame.width, frame.height, opts.OutputBits), nil
}

// rawIFD picks the IFD holding the sensor data: the full-resolution subimage
// (NewSubfileType 0) when marked, else the IFD with the largest pixel area.
func rawIFD(tf *tiffFile) *ifd {
	var best *ifd
	var bestArea uint64
	for _, d := range tf.ifds {
		if d.has(tagNewSubfileType) && tf.uintTag(d, tagNewSubfileType, 1) == 0 {
			return d
		}
		area := tf.uintTag(d, tagImageWidth, 0) * tf.uintTag(d, tagImageLength, 0)
		if area > bestArea {
			best, bestArea = d, area
		}
	}
	return best
}

// normalize maps raw counts to [0,1] using the black and white levels.
func normalize(tf *tiffFile, d *ifd, f *cfaFrame) []float32 {
	black := 0.0
	if levels := tf.floatTags(d, tagBlackLevel); len(levels) > 0 {
		for _, v := range levels {
			black += v
		}
		black /= float64(len(levels))
	}
	white := float64(uint32(1)<<uint(f.bits) - 1)
	if wl := tf.floatTags(d, tagWhiteLevel); len(wl) > 0 && wl[0] > black {
		white = wl[0]
	}

	scale := float32(1 / (white - black))
	blk := float32(black)
	out := make([]float32, len(f.samples))
	for i, s := range f.samples {
		v := (float32(s) - blk) * scale
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out[i] = v
	}
	return out
}

// gainsFor computes per-channel white balance gains. Camera and auto gains
// are normalized so green stays at 1; manual gains are applied as given.
func gainsFor(tf *tiffFile, f *cfaFrame, mosaic []float32, opts Options) [3]float32 {
	neutral := [3]float32{1, 1, 1}

	switch opts.WhiteBalance {
	case WBManual:
		return [3]float32{
			float32(opts.ManualGains[0]),
			float32(opts.ManualGains[1]),
			float32(opts.ManualGains[2]),
		}

	case WBAuto:
		var sum [3]float64
		var n [3]int
		for y := 0; y < f.height; y++ {
			for x := 0; x < f.width; x++ {
				c := f.pattern.colorAt(x, y)
				sum[c] += float64(mosaic[y*f.width+x])
				n[c]++
			}
		}
		var mean [3]float64
		for c := range mean {
			if n[c] == 0 || sum[c] == 0 {
				return neutral
			}
			mean[c] = sum[c] / float64(n[c])
		}
		return [3]float32{
			float32(mean[1] / mean[0]),
			1,
			float32(mean[1] / mean[2]),
		}

	default: // WBCamera
		// AsShotNeutral lives in IFD0 and stores the neutral color in
		// camera space; the gain is its reciprocal.
		shot := tf.floatTags(tf.ifds[0], tagAsShotNeutral)
		if len(shot) < 3 || shot[0] <= 0 || shot[1] <= 0 || shot[2] <= 0 {
			log.Debug("no usable AsShotNeutral, leaving white balance neutral")
			return neutral
		}
		return [3]float32{
			float32(shot[1] / shot[0]),
			1,
			float32(shot[1] / shot[2]),
		}
	}
}

func applyGains(mosaic []float32, f *cfaFrame, gains [3]float32) {
	if gains == ([3]float32{1, 1, 1}) {
		return
	}
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			i := y*f.width + x
			v := mosaic[i] * gains[f.pattern.colorAt(x, y)]
			if v > 1 {
				v = 1
			}
			mosaic[i] = v
		}
	}
}

// curveFor resolves the tone curve. The (power, slope) form follows the
// BT.709 convention: a linear toe of the given slope joined tangentially
// to a 1/power exponent segment.
func curveFor(opts Options) func(float32) float32 {
	power, slope := 1.0, 1.0
	switch opts.Gamma {
	case GammaSRGB:
		power, slope = 2.222, 4.5
	case GammaManual:
		power, slope = opts.GammaPower, opts.GammaSlope
	}
	if power <= 0 {
		power = 1
	}
	if power == 1 && slope == 1 {
		return nil
	}

	a := 1 / power
	if slope <= 1 {
		return func(v float32) float32 {
			if v <= 0 {
				return 0
			}
			return float32(math.Pow(float64(v), a))
		}
	}

	// Solve for the toe/exponent junction t by bisection: at t the two
	// segments must meet with equal value and slope.
	g := func(t float64) float64 {
		f := slope/(a*math.Pow(t, a-1)) - 1
		return (1+f)*math.Pow(t, a) - f - slope*t
	}
	lo, hi := 1e-6, 1.0
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if g(mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	t := (lo + hi) / 2
	f := slope/(a*math.Pow(t, a-1)) - 1

	return func(v float32) float32 {
		if v <= 0 {
			return 0
		}
		d := float64(v)
		if d < t {
			return float32(slope * d)
		}
		return float32((1+f)*math.Pow(d, a) - f)
	}
}

func applyGamma(rgb []float32, curve func(float32) float32) {
	if curve == nil {
		return
	}
	for i, v := range rgb {
		rgb[i] = curve(v)
	}
}

// quantize converts interleaved [0,1] RGB floats to an 8- or 16-bit image,
// clamping demosaic overshoot.
func quantize(rgb []float32, width, height, bits int) image.Image {
	clamp := func(v float32) float32 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}

	if bits == 16 {
		img := image.NewNRGBA64(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			o := i * 8
			for c := 0; c < 3; c++ {
				v := uint16(clamp(rgb[i*3+c])*65535 + 0.5)
				img.Pix[o+2*c] = uint8(v >> 8)
				img.Pix[o+2*c+1] = uint8(v)
			}
			img.Pix[o+6] = 0xff
			img.Pix[o+7] = 0xff
		}
		return img
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		o := i * 4
		for c := 0; c < 3; c++ {
			img.Pix[o+c] = uint8(clamp(rgb[i*3+c])*255 + 0.5)
		}
		img.Pix[o+3] = 0xff
	}
	return img
}

// requantize brings a fallback-decoded image to the requested bit depth so
// downstream statistics see a consistent native scale.
func requantize(img image.Image, bits int) image.Image {
	b := img.Bounds()
	if bits == 16 {
		if out, ok := img.(*image.NRGBA64); ok {
			return out
		}
		out := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				out.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
			}
		}
		return out
	}
	if out, ok := img.(*image.NRGBA); ok {
		return out
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return out
}
