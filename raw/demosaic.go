package raw

// Demosaic algorithms reconstruct full RGB from the Bayer mosaic. Both
// operate on the normalized, white-balanced mosaic and return interleaved
// RGB triples (3 * width * height float32 values).

// demosaicBilinear averages the nearest same-color neighbors, with edge
// pixels using clamped (replicated) lookups.
func demosaicBilinear(m []float32, width, height int, p cfaPattern) []float32 {
	out := make([]float32, 3*width*height)

	px := clampedAccessor(m, width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := m[y*width+x]
			var r, g, b float32
			switch p.colorAt(x, y) {
			case 0: // red site
				r = v
				g = (px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)) / 4
				b = (px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)) / 4
			case 2: // blue site
				b = v
				g = (px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)) / 4
				r = (px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)) / 4
			default: // green site
				g = v
				horiz := (px(x-1, y) + px(x+1, y)) / 2
				vert := (px(x, y-1) + px(x, y+1)) / 2
				if p.colorAt(x+1, y) == 0 {
					r, b = horiz, vert
				} else {
					r, b = vert, horiz
				}
			}
			o := 3 * (y*width + x)
			out[o] = r
			out[o+1] = g
			out[o+2] = b
		}
	}
	return out
}

// demosaicMalvar implements the Malvar-He-Cutler 5x5 linear filters. It is
// sharper than bilinear at a modest cost; results can overshoot [0,1] and
// are clamped at quantization time.
func demosaicMalvar(m []float32, width, height int, p cfaPattern) []float32 {
	out := make([]float32, 3*width*height)

	px := clampedAccessor(m, width, height)

	// Green at a red or blue site.
	green := func(x, y int) float32 {
		c := px(x, y)
		cross := px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)
		far := px(x-2, y) + px(x+2, y) + px(x, y-2) + px(x, y+2)
		return (4*c + 2*cross - far) / 8
	}

	// Chroma at the opposite chroma site (red at blue, blue at red).
	diagonal := func(x, y int) float32 {
		c := px(x, y)
		diag := px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)
		far := px(x-2, y) + px(x+2, y) + px(x, y-2) + px(x, y+2)
		return (6*c + 2*diag - 1.5*far) / 8
	}

	// Chroma at a green site; (dx, dy) points at the nearest same-chroma pair.
	axial := func(x, y, dx, dy int) float32 {
		c := px(x, y)
		near := px(x-dx, y-dy) + px(x+dx, y+dy)
		along := px(x-2*dx, y-2*dy) + px(x+2*dx, y+2*dy)
		across := px(x-2*dy, y-2*dx) + px(x+2*dy, y+2*dx)
		corners := px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)
		return (5*c + 4*near - corners - along + 0.5*across) / 8
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := m[y*width+x]
			var r, g, b float32
			switch p.colorAt(x, y) {
			case 0:
				r = v
				g = green(x, y)
				b = diagonal(x, y)
			case 2:
				b = v
				g = green(x, y)
				r = diagonal(x, y)
			default:
				g = v
				if p.colorAt(x+1, y) == 0 {
					r = axial(x, y, 1, 0)
					b = axial(x, y, 0, 1)
				} else {
					r = axial(x, y, 0, 1)
					b = axial(x, y, 1, 0)
				}
			}
			o := 3 * (y*width + x)
			out[o] = r
			out[o+1] = g
			out[o+2] = b
		}
	}
	return out
}

func clampedAccessor(m []float32, width, height int) func(x, y int) float32 {
	return func(x, y int) float32 {
		if x < 0 {
			x = 0
		} else if x >= width {
			x = width - 1
		}
		if y < 0 {
			y = 0
		} else if y >= height {
			y = height - 1
		}
		return m[y*width+x]
	}
}
