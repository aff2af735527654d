package raw

import (
	"encoding/binary"
	"fmt"
)

// cfaPattern is the 2x2 Bayer mosaic layout, row-major. Values follow the
// DNG CFAPattern encoding: 0=red, 1=green, 2=blue.
type cfaPattern [4]uint8

var (
	patternRGGB = cfaPattern{0, 1, 1, 2}
	patternBGGR = cfaPattern{2, 1, 1, 0}
	patternGRBG = cfaPattern{1, 0, 2, 1}
	patternGBRG = cfaPattern{1, 2, 0, 1}
)

// colorAt returns the CFA color channel (0/1/2) at sensor position (x, y).
func (p cfaPattern) colorAt(x, y int) int {
	return int(p[(y&1)*2+(x&1)])
}

func (p cfaPattern) String() string {
	names := [3]byte{'R', 'G', 'B'}
	return string([]byte{names[p[0]], names[p[1]], names[p[2]], names[p[3]]})
}

// cfaFrame is the raw sensor plane before demosaicing.
type cfaFrame struct {
	width   int
	height  int
	bits    int
	pattern cfaPattern
	samples []uint16 // row-major, width*height
}

// readCFAFrame extracts the mosaic samples from an uncompressed CFA IFD.
// Strip and tile layouts are both handled; sample widths of 8 through 16
// bits are unpacked (TIFF pads each row to a byte boundary).
func readCFAFrame(tf *tiffFile, d *ifd) (*cfaFrame, error) {
	width := int(tf.uintTag(d, tagImageWidth, 0))
	height := int(tf.uintTag(d, tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raw IFD has no dimensions")
	}

	bits := int(tf.uintTag(d, tagBitsPerSample, 16))
	if bits < 8 || bits > 16 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedLayout, bits)
	}
	if spp := tf.uintTag(d, tagSamplesPerPixel, 1); spp != 1 {
		return nil, fmt.Errorf("%w: CFA with %d samples per pixel", ErrUnsupportedLayout, spp)
	}

	pattern, err := cfaPatternOf(tf, d)
	if err != nil {
		return nil, err
	}

	f := &cfaFrame{
		width:   width,
		height:  height,
		bits:    bits,
		pattern: pattern,
		samples: make([]uint16, width*height),
	}

	switch {
	case d.has(tagTileOffsets):
		err = f.readTiles(tf, d)
	case d.has(tagStripOffsets):
		err = f.readStrips(tf, d)
	default:
		err = fmt.Errorf("raw IFD has neither strips nor tiles")
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func cfaPatternOf(tf *tiffFile, d *ifd) (cfaPattern, error) {
	dim := tf.uintTags(d, tagCFARepeatPatternDim)
	if len(dim) == 2 && (dim[0] != 2 || dim[1] != 2) {
		return cfaPattern{}, fmt.Errorf("%w: %dx%d CFA repeat pattern", ErrUnsupportedLayout, dim[0], dim[1])
	}

	raw := tf.bytesTag(d, tagCFAPattern)
	if len(raw) < 4 {
		return cfaPattern{}, fmt.Errorf("missing CFAPattern tag")
	}

	var p cfaPattern
	copy(p[:], raw[:4])
	switch p {
	case patternRGGB, patternBGGR, patternGRBG, patternGBRG:
		return p, nil
	default:
		return cfaPattern{}, fmt.Errorf("%w: CFA pattern %v", ErrUnsupportedLayout, raw[:4])
	}
}

func (f *cfaFrame) readStrips(tf *tiffFile, d *ifd) error {
	offsets := tf.uintTags(d, tagStripOffsets)
	counts := tf.uintTags(d, tagStripByteCounts)
	if len(offsets) == 0 || len(counts) != len(offsets) {
		return fmt.Errorf("inconsistent strip tags")
	}
	rowsPerStrip := int(tf.uintTag(d, tagRowsPerStrip, uint64(f.height)))
	if rowsPerStrip <= 0 {
		rowsPerStrip = f.height
	}

	rowBytes := (f.width*f.bits + 7) / 8
	for i, off := range offsets {
		firstRow := i * rowsPerStrip
		lastRow := firstRow + rowsPerStrip
		if lastRow > f.height {
			lastRow = f.height
		}
		need := (lastRow - firstRow) * rowBytes
		if int(counts[i]) < need || int(off)+need > len(tf.data) {
			return fmt.Errorf("strip %d truncated", i)
		}
		src := tf.data[off:]
		for row := firstRow; row < lastRow; row++ {
			base := (row - firstRow) * rowBytes
			unpackRow(f.samples[row*f.width:(row+1)*f.width], src[base:base+rowBytes], f.bits, tf.bo)
		}
	}
	return nil
}

func (f *cfaFrame) readTiles(tf *tiffFile, d *ifd) error {
	offsets := tf.uintTags(d, tagTileOffsets)
	counts := tf.uintTags(d, tagTileByteCounts)
	tileW := int(tf.uintTag(d, tagTileWidth, 0))
	tileH := int(tf.uintTag(d, tagTileLength, 0))
	if tileW <= 0 || tileH <= 0 || len(offsets) == 0 || len(counts) != len(offsets) {
		return fmt.Errorf("inconsistent tile tags")
	}

	tilesAcross := (f.width + tileW - 1) / tileW
	tilesDown := (f.height + tileH - 1) / tileH
	if len(offsets) < tilesAcross*tilesDown {
		return fmt.Errorf("expected %d tiles, have %d", tilesAcross*tilesDown, len(offsets))
	}

	tileRowBytes := (tileW*f.bits + 7) / 8
	rowBuf := make([]uint16, tileW)
	for ty := 0; ty < tilesDown; ty++ {
		for tx := 0; tx < tilesAcross; tx++ {
			idx := ty*tilesAcross + tx
			off := int(offsets[idx])
			if int(counts[idx]) < tileRowBytes*tileH || off+tileRowBytes*tileH > len(tf.data) {
				return fmt.Errorf("tile %d truncated", idx)
			}
			src := tf.data[off:]

			x0 := tx * tileW
			y0 := ty * tileH
			// Edge tiles run past the image; only the valid region is kept.
			for row := 0; row < tileH && y0+row < f.height; row++ {
				base := row * tileRowBytes
				unpackRow(rowBuf, src[base:base+tileRowBytes], f.bits, tf.bo)
				w := tileW
				if x0+w > f.width {
					w = f.width - x0
				}
				copy(f.samples[(y0+row)*f.width+x0:(y0+row)*f.width+x0+w], rowBuf[:w])
			}
		}
	}
	return nil
}

// unpackRow expands one byte-aligned row of packed samples into dst.
// Sub-16-bit samples are packed MSB first, the TIFF default fill order.
func unpackRow(dst []uint16, src []byte, bits int, bo binary.ByteOrder) {
	switch bits {
	case 8:
		for i := range dst {
			dst[i] = uint16(src[i])
		}
	case 16:
		for i := range dst {
			dst[i] = bo.Uint16(src[i*2 : i*2+2])
		}
	default:
		var acc uint32
		var n int
		pos := 0
		for i := range dst {
			for n < bits {
				acc = acc<<8 | uint32(src[pos])
				pos++
				n += 8
			}
			dst[i] = uint16(acc >> uint(n-bits) & (1<<uint(bits) - 1))
			n -= bits
		}
	}
}
