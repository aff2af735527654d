package raw

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/photonworks/dngscope/util/log"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// Metadata is the EXIF summary shown for a loaded file. String fields are
// empty and ISO is zero when the corresponding tag is absent.
type Metadata struct {
	Exposure string `json:"exposure,omitempty"` // e.g. "1/250"
	ISO      int    `json:"iso,omitempty"`
	FNumber  string `json:"f_number,omitempty"` // e.g. "28/10"
	Make     string `json:"make,omitempty"`
	Model    string `json:"model,omitempty"`
}

// ReadMetadata extracts the EXIF fields of interest from the file at path.
// DNG is a TIFF container, so goexif reads it directly.
func ReadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding EXIF: %w", err)
	}

	m := &Metadata{}
	if tag, err := x.Get(exif.ExposureTime); err == nil {
		if num, den, err := tag.Rat2(0); err == nil {
			m.Exposure = formatRational(num, den)
		}
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil {
			m.ISO = iso
		}
	}
	if tag, err := x.Get(exif.FNumber); err == nil {
		if num, den, err := tag.Rat2(0); err == nil {
			m.FNumber = formatRational(num, den)
		}
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if s, err := tag.StringVal(); err == nil {
			m.Make = strings.TrimSpace(s)
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			m.Model = strings.TrimSpace(s)
		}
	}
	return m, nil
}

// Summary formats the metadata the way the status bar shows it, e.g.
// "Exposure: 1/250 s | ISO: 100 | FNumber: f/4/1 | Camera: NIKON D750".
func (m *Metadata) Summary() string {
	var parts []string
	if m.Exposure != "" {
		parts = append(parts, fmt.Sprintf("Exposure: %s s", m.Exposure))
	}
	if m.ISO != 0 {
		parts = append(parts, fmt.Sprintf("ISO: %d", m.ISO))
	}
	if m.FNumber != "" {
		parts = append(parts, fmt.Sprintf("FNumber: f/%s", m.FNumber))
	}
	if cam := strings.TrimSpace(m.Make + " " + m.Model); cam != "" {
		parts = append(parts, "Camera: "+cam)
	}
	if len(parts) == 0 {
		return "No EXIF found"
	}
	return strings.Join(parts, " | ")
}

// SummaryString is the forgiving variant used by the UI: metadata problems
// become part of the label text instead of failing the load.
func SummaryString(path string) string {
	m, err := ReadMetadata(path)
	if err != nil {
		return fmt.Sprintf("Metadata error: %v", err)
	}
	return m.Summary()
}

// CaptureTime returns the capture timestamp from DateTimeOriginal (or
// DateTimeDigitized), falling back to the file's modification time.
func CaptureTime(path string) time.Time {
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if x, err := exif.Decode(f); err == nil {
			for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized} {
				tag, err := x.Get(field)
				if err != nil {
					continue
				}
				s, err := tag.StringVal()
				if err != nil {
					continue
				}
				if ts, err := time.ParseInLocation(exifTimeLayout, s, time.Local); err == nil {
					return ts
				}
			}
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Debugf("no timestamp for %s: %v", path, err)
		return time.Time{}
	}
	return info.ModTime()
}

func formatRational(num, den int64) string {
	if den == 0 {
		return fmt.Sprintf("%d", num)
	}
	return fmt.Sprintf("%d/%d", num, den)
}
