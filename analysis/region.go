package analysis

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
)

// Region shapes.
const (
	ShapeRect    = "rect"
	ShapeCircle  = "circle"
	ShapePolygon = "polygon"
)

// RegionParams holds the geometry of a region. Only the fields matching
// the shape are used: rect uses X0..Y1, circle uses CX/CY/R, polygon uses
// Points. Coordinates are full-resolution pixels.
type RegionParams struct {
	X0     float64      `json:"x0,omitempty"`
	Y0     float64      `json:"y0,omitempty"`
	X1     float64      `json:"x1,omitempty"`
	Y1     float64      `json:"y1,omitempty"`
	CX     float64      `json:"cx,omitempty"`
	CY     float64      `json:"cy,omitempty"`
	R      float64      `json:"r,omitempty"`
	Points [][2]float64 `json:"points,omitempty"`
}

// Region is a reusable measurement area.
type Region struct {
	ID     int          `json:"id"`
	Shape  string       `json:"shape"`
	Params RegionParams `json:"params"`
}

// Measurement is the result of measuring one region on one image.
type Measurement struct {
	RegionID int    `json:"region_id"`
	Shape    string `json:"shape"`
	Mean     RGB    `json:"mean"`
	Pixels   int    `json:"pixels"`
}

// LoadTemplate reads regions from a JSON template file.
func LoadTemplate(path string) ([]Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", path, err)
	}
	var regions []Region
	if err := json.Unmarshal(data, &regions); err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", path, err)
	}
	return regions, nil
}

// SaveTemplate writes regions to a JSON template file.
func SaveTemplate(path string, regions []Region) error {
	data, err := json.MarshalIndent(regions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding template: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing template %s: %w", path, err)
	}
	return nil
}

// Measure computes the mean color of every region on img. Regions that
// cover no pixels produce a zero-pixel measurement rather than an error,
// so one bad region does not sink a whole batch.
func Measure(img image.Image, regions []Region) []Measurement {
	out := make([]Measurement, 0, len(regions))
	for _, reg := range regions {
		m := Measurement{RegionID: reg.ID, Shape: reg.Shape}
		m.Mean, m.Pixels = measureOne(img, reg)
		out = append(out, m)
	}
	return out
}

func measureOne(img image.Image, reg Region) (RGB, int) {
	switch reg.Shape {
	case ShapeRect:
		r := NormalizedRect(
			int(math.Floor(reg.Params.X0)), int(math.Floor(reg.Params.Y0)),
			int(math.Ceil(reg.Params.X1)), int(math.Ceil(reg.Params.Y1)),
		)
		r = r.Intersect(img.Bounds())
		avg, ok := AvgRGB(img, r)
		if !ok {
			return RGB{}, 0
		}
		return avg, r.Dx() * r.Dy()

	case ShapeCircle:
		inside := func(x, y float64) bool {
			dx := x - reg.Params.CX
			dy := y - reg.Params.CY
			return dx*dx+dy*dy <= reg.Params.R*reg.Params.R
		}
		box := image.Rect(
			int(math.Floor(reg.Params.CX-reg.Params.R)), int(math.Floor(reg.Params.CY-reg.Params.R)),
			int(math.Ceil(reg.Params.CX+reg.Params.R)), int(math.Ceil(reg.Params.CY+reg.Params.R)),
		)
		return measureMask(img, box, inside)

	case ShapePolygon:
		pts := reg.Params.Points
		if len(pts) < 3 {
			return RGB{}, 0
		}
		box := polygonBounds(pts)
		return measureMask(img, box, func(x, y float64) bool {
			return pointInPolygon(x, y, pts)
		})

	default:
		return RGB{}, 0
	}
}

// measureMask averages pixels inside box whose centers satisfy the mask.
func measureMask(img image.Image, box image.Rectangle, inside func(x, y float64) bool) (RGB, int) {
	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return RGB{}, 0
	}

	at := nativeAccessor(img)
	var sum RGB
	var n int
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if !inside(float64(x)+0.5, float64(y)+0.5) {
				continue
			}
			r, g, b := at(x, y)
			sum.R += r
			sum.G += g
			sum.B += b
			n++
		}
	}
	if n == 0 {
		return RGB{}, 0
	}
	f := float64(n)
	return RGB{R: sum.R / f, G: sum.G / f, B: sum.B / f}, n
}

func polygonBounds(pts [][2]float64) image.Rectangle {
	minX, minY := pts[0][0], pts[0][1]
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p[0])
		minY = math.Min(minY, p[1])
		maxX = math.Max(maxX, p[0])
		maxY = math.Max(maxY, p[1])
	}
	return image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
}

// pointInPolygon is the even-odd ray casting test.
func pointInPolygon(x, y float64, pts [][2]float64) bool {
	inside := false
	j := len(pts) - 1
	for i := 0; i < len(pts); i++ {
		xi, yi := pts[i][0], pts[i][1]
		xj, yj := pts[j][0], pts[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}
