package raw

import (
	"bytes"
	"encoding/binary"
)

// dngSpec describes the synthetic little-endian DNG the tests build: one
// IFD carrying an uncompressed CFA payload, plus the color tags the loader
// reads. Values mirror what cameras actually write. A zero tileW emits a
// single strip; a nonzero tileW/tileH emits a tiled layout.
type dngSpec struct {
	width, height int
	bits          int
	pattern       cfaPattern
	black         uint16
	white         uint16
	neutral       [3][2]uint32 // AsShotNeutral rationals, zero denominator omits the tag
	tileW, tileH  int
	samples       []uint16
}

// packSamples writes one row of samples in the TIFF on-disk layout:
// bytes for 8-bit, little-endian words for 16-bit, MSB-first packing
// otherwise.
func packSamples(row []byte, vals []uint16, bits int) {
	le := binary.LittleEndian
	switch bits {
	case 8:
		for x, v := range vals {
			row[x] = byte(v)
		}
	case 16:
		for x, v := range vals {
			le.PutUint16(row[x*2:], v)
		}
	default:
		var acc uint32
		var n int
		pos := 0
		for _, v := range vals {
			acc = acc<<uint(bits) | uint32(v)
			n += bits
			for n >= 8 {
				row[pos] = byte(acc >> uint(n-8))
				pos++
				n -= 8
			}
		}
		if n > 0 {
			row[pos] = byte(acc << uint(8-n))
		}
	}
}

func buildDNG(spec dngSpec) []byte {
	le := binary.LittleEndian

	type entry struct {
		tag, typ uint16
		count    uint32
		value    [4]byte
	}

	inlineLong := func(v uint32) (b [4]byte) {
		le.PutUint32(b[:], v)
		return
	}
	inlineShort := func(v uint16) (b [4]byte) {
		le.PutUint16(b[:2], v)
		return
	}
	inlineShort2 := func(v0, v1 uint16) (b [4]byte) {
		le.PutUint16(b[:2], v0)
		le.PutUint16(b[2:], v1)
		return
	}

	hasNeutral := spec.neutral[0][1] != 0
	tiled := spec.tileW > 0

	var pix []byte
	var tileSize uint32
	nTiles := 0
	if tiled {
		tileRowBytes := (spec.tileW*spec.bits + 7) / 8
		tilesAcross := (spec.width + spec.tileW - 1) / spec.tileW
		tilesDown := (spec.height + spec.tileH - 1) / spec.tileH
		nTiles = tilesAcross * tilesDown
		tileSize = uint32(tileRowBytes * spec.tileH)

		// Tiles pad past the image edge; the reader trims, so the
		// padding content is zeros.
		vals := make([]uint16, spec.tileW)
		for ty := 0; ty < tilesDown; ty++ {
			for tx := 0; tx < tilesAcross; tx++ {
				tile := make([]byte, tileSize)
				for row := 0; row < spec.tileH; row++ {
					y := ty*spec.tileH + row
					if y >= spec.height {
						break
					}
					for i := range vals {
						vals[i] = 0
						if x := tx*spec.tileW + i; x < spec.width {
							vals[i] = spec.samples[y*spec.width+x]
						}
					}
					packSamples(tile[row*tileRowBytes:], vals, spec.bits)
				}
				pix = append(pix, tile...)
			}
		}
	} else {
		rowBytes := (spec.width*spec.bits + 7) / 8
		pix = make([]byte, rowBytes*spec.height)
		for y := 0; y < spec.height; y++ {
			packSamples(pix[y*rowBytes:], spec.samples[y*spec.width:(y+1)*spec.width], spec.bits)
		}
	}

	entries := []entry{
		{tagNewSubfileType, 4, 1, inlineLong(0)},
		{tagImageWidth, 4, 1, inlineLong(uint32(spec.width))},
		{tagImageLength, 4, 1, inlineLong(uint32(spec.height))},
		{tagBitsPerSample, 3, 1, inlineShort(uint16(spec.bits))},
		{tagCompression, 3, 1, inlineShort(compressionNone)},
		{tagPhotometric, 3, 1, inlineShort(photometricCFA)},
	}
	if tiled {
		entries = append(entries,
			entry{tagTileWidth, 4, 1, inlineLong(uint32(spec.tileW))},
			entry{tagTileLength, 4, 1, inlineLong(uint32(spec.tileH))},
			entry{tagTileOffsets, 4, uint32(nTiles), [4]byte{}},    // patched below
			entry{tagTileByteCounts, 4, uint32(nTiles), [4]byte{}}, // patched below
		)
	} else {
		entries = append(entries,
			entry{tagStripOffsets, 4, 1, [4]byte{}}, // patched below
			entry{tagSamplesPerPixel, 3, 1, inlineShort(1)},
			entry{tagRowsPerStrip, 4, 1, inlineLong(uint32(spec.height))},
			entry{tagStripByteCounts, 4, 1, inlineLong(uint32(len(pix)))},
		)
	}
	entries = append(entries,
		entry{tagCFARepeatPatternDim, 3, 2, inlineShort2(2, 2)},
		entry{tagCFAPattern, 1, 4, [4]byte{spec.pattern[0], spec.pattern[1], spec.pattern[2], spec.pattern[3]}},
		entry{tagBlackLevel, 3, 1, inlineShort(spec.black)},
		entry{tagWhiteLevel, 3, 1, inlineShort(spec.white)},
	)
	if hasNeutral {
		entries = append(entries, entry{tagAsShotNeutral, 5, 3, [4]byte{}}) // patched below
	}

	ifdStart := uint32(8)
	ifdSize := uint32(2 + len(entries)*12 + 4)
	extStart := ifdStart + ifdSize

	cur := extStart
	neutralOff := cur
	if hasNeutral {
		cur += 24
	}
	// Tile offset and count arrays live in the ext area when they do not
	// fit the 4-byte value field.
	var tileOffArr, tileCntArr uint32
	if tiled && nTiles > 1 {
		tileOffArr = cur
		cur += 4 * uint32(nTiles)
		tileCntArr = cur
		cur += 4 * uint32(nTiles)
	}
	pixOff := cur

	for i := range entries {
		switch entries[i].tag {
		case tagStripOffsets:
			entries[i].value = inlineLong(pixOff)
		case tagTileOffsets:
			if nTiles > 1 {
				entries[i].value = inlineLong(tileOffArr)
			} else {
				entries[i].value = inlineLong(pixOff)
			}
		case tagTileByteCounts:
			if nTiles > 1 {
				entries[i].value = inlineLong(tileCntArr)
			} else {
				entries[i].value = inlineLong(tileSize)
			}
		case tagAsShotNeutral:
			entries[i].value = inlineLong(neutralOff)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(tiffMagic))
	binary.Write(&buf, le, ifdStart)

	binary.Write(&buf, le, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(&buf, le, e.tag)
		binary.Write(&buf, le, e.typ)
		binary.Write(&buf, le, e.count)
		buf.Write(e.value[:])
	}
	binary.Write(&buf, le, uint32(0)) // no next IFD

	if hasNeutral {
		for _, r := range spec.neutral {
			binary.Write(&buf, le, r[0])
			binary.Write(&buf, le, r[1])
		}
	}
	if tiled && nTiles > 1 {
		for i := 0; i < nTiles; i++ {
			binary.Write(&buf, le, pixOff+uint32(i)*tileSize)
		}
		for i := 0; i < nTiles; i++ {
			binary.Write(&buf, le, tileSize)
		}
	}
	buf.Write(pix)

	return buf.Bytes()
}

// uniformSamples fills a frame with one value per CFA channel.
func uniformSamples(width, height int, p cfaPattern, r, g, b uint16) []uint16 {
	vals := [3]uint16{r, g, b}
	out := make([]uint16, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = vals[p.colorAt(x, y)]
		}
	}
	return out
}
