package raw

import (
	"encoding/binary"
	"fmt"
)

// TIFF tags used while locating and reading the raw sensor IFD. DNG is a TIFF
// container, so the loader walks IFDs the same way any TIFF reader would.
const (
	tagNewSubfileType      = 0x00fe
	tagImageWidth          = 0x0100
	tagImageLength         = 0x0101
	tagBitsPerSample       = 0x0102
	tagCompression         = 0x0103
	tagPhotometric         = 0x0106
	tagStripOffsets        = 0x0111
	tagOrientation         = 0x0112
	tagSamplesPerPixel     = 0x0115
	tagRowsPerStrip        = 0x0116
	tagStripByteCounts     = 0x0117
	tagSubIFDs             = 0x014a
	tagTileWidth           = 0x0142
	tagTileLength          = 0x0143
	tagTileOffsets         = 0x0144
	tagTileByteCounts      = 0x0145
	tagCFARepeatPatternDim = 0x828d
	tagCFAPattern          = 0x828e
	tagBlackLevel          = 0xc61a
	tagWhiteLevel          = 0xc61d
	tagAsShotNeutral       = 0xc628
)

// Photometric interpretations of interest.
const (
	photometricRGB       = 2
	photometricCFA       = 32803
	photometricLinearRaw = 34892
)

const compressionNone = 1

// tiffMagic is the value every TIFF header carries after the byte order mark.
const tiffMagic = 42

type ifdEntry struct {
	typ   uint16
	count uint32
	// raw holds the value bytes, already resolved through the offset
	// indirection for values larger than four bytes.
	raw []byte
}

type ifd struct {
	entries map[uint16]ifdEntry
	next    uint32
}

type tiffFile struct {
	data []byte
	bo   binary.ByteOrder
	ifds []*ifd
}

var typeSize = map[uint16]uint32{
	1:  1, // BYTE
	2:  1, // ASCII
	3:  2, // SHORT
	4:  4, // LONG
	5:  8, // RATIONAL
	6:  1, // SBYTE
	7:  1, // UNDEFINED
	8:  2, // SSHORT
	9:  4, // SLONG
	10: 8, // SRATIONAL
	11: 4, // FLOAT
	12: 8, // DOUBLE
}

// parseTIFF reads the header and walks every IFD reachable from IFD0,
// including SubIFDs, which is where DNG files keep the raw sensor plane.
func parseTIFF(data []byte) (*tiffFile, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("file too short for a TIFF header")
	}

	var bo binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		bo = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a TIFF file: bad byte order mark %q", data[:2])
	}
	if bo.Uint16(data[2:4]) != tiffMagic {
		return nil, fmt.Errorf("not a TIFF file: bad magic")
	}

	tf := &tiffFile{data: data, bo: bo}

	seen := map[uint32]bool{}
	offset := bo.Uint32(data[4:8])
	for offset != 0 {
		if seen[offset] {
			break // cyclic IFD chain
		}
		seen[offset] = true

		cur, err := tf.parseIFD(offset)
		if err != nil {
			return nil, err
		}
		tf.ifds = append(tf.ifds, cur)

		// Chase SubIFDs; DNG keeps the raw sensor IFD there.
		for _, sub := range tf.uintTags(cur, tagSubIFDs) {
			if seen[uint32(sub)] {
				continue
			}
			seen[uint32(sub)] = true
			si, err := tf.parseIFD(uint32(sub))
			if err != nil {
				return nil, err
			}
			tf.ifds = append(tf.ifds, si)
		}

		offset = cur.next
	}

	if len(tf.ifds) == 0 {
		return nil, fmt.Errorf("no IFDs found")
	}
	return tf, nil
}

func (tf *tiffFile) parseIFD(offset uint32) (*ifd, error) {
	data := tf.data
	if int(offset)+2 > len(data) {
		return nil, fmt.Errorf("IFD offset %d out of range", offset)
	}
	count := int(tf.bo.Uint16(data[offset : offset+2]))
	base := int(offset) + 2
	if base+count*12+4 > len(data) {
		return nil, fmt.Errorf("IFD at %d truncated", offset)
	}

	out := &ifd{entries: make(map[uint16]ifdEntry, count)}
	for i := 0; i < count; i++ {
		e := data[base+i*12 : base+i*12+12]
		tag := tf.bo.Uint16(e[0:2])
		typ := tf.bo.Uint16(e[2:4])
		n := tf.bo.Uint32(e[4:8])

		sz, ok := typeSize[typ]
		if !ok {
			continue // unknown field type, skip per TIFF spec
		}
		// Byte total in 64 bits; a crafted count can overflow uint32.
		total := uint64(sz) * uint64(n)
		if total > uint64(len(data)) {
			return nil, fmt.Errorf("tag 0x%04x declares %d value bytes", tag, total)
		}
		var raw []byte
		if total <= 4 {
			raw = e[8 : 8+total]
		} else {
			vo := uint64(tf.bo.Uint32(e[8:12]))
			if vo+total > uint64(len(data)) {
				return nil, fmt.Errorf("tag 0x%04x value out of range", tag)
			}
			raw = data[vo : vo+total]
		}
		out.entries[tag] = ifdEntry{typ: typ, count: n, raw: raw}
	}
	out.next = tf.bo.Uint32(data[base+count*12 : base+count*12+4])
	return out, nil
}

func (tf *tiffFile) entryUint(e ifdEntry, i int) uint64 {
	switch e.typ {
	case 1, 6, 7:
		return uint64(e.raw[i])
	case 3, 8:
		return uint64(tf.bo.Uint16(e.raw[i*2 : i*2+2]))
	case 4, 9:
		return uint64(tf.bo.Uint32(e.raw[i*4 : i*4+4]))
	default:
		return 0
	}
}

// rational at index i as a float; integer types come back as-is.
func (tf *tiffFile) entryFloat(e ifdEntry, i int) float64 {
	switch e.typ {
	case 5, 10:
		num := tf.bo.Uint32(e.raw[i*8 : i*8+4])
		den := tf.bo.Uint32(e.raw[i*8+4 : i*8+8])
		if den == 0 {
			return 0
		}
		if e.typ == 10 {
			return float64(int32(num)) / float64(int32(den))
		}
		return float64(num) / float64(den)
	default:
		return float64(tf.entryUint(e, i))
	}
}

func (d *ifd) has(tag uint16) bool {
	_, ok := d.entries[tag]
	return ok
}

func (tf *tiffFile) uintTag(d *ifd, tag uint16, fallback uint64) uint64 {
	e, ok := d.entries[tag]
	if !ok || e.count == 0 {
		return fallback
	}
	return tf.entryUint(e, 0)
}

func (tf *tiffFile) uintTags(d *ifd, tag uint16) []uint64 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	out := make([]uint64, e.count)
	for i := range out {
		out[i] = tf.entryUint(e, i)
	}
	return out
}

func (tf *tiffFile) floatTags(d *ifd, tag uint16) []float64 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = tf.entryFloat(e, i)
	}
	return out
}

func (tf *tiffFile) bytesTag(d *ifd, tag uint16) []byte {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	return e.raw
}
