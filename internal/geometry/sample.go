package geometry

import "math"

// BilinearSample samples an RGBA buffer of width×height pixels at (x, y).
// Coordinates are clamped into [0, width-1]×[0, height-1], so samples beyond
// the buffer replicate the edge pixels.
func BilinearSample(buf []uint8, x, y float64, width, height int) [4]uint8 {
	if width <= 0 || height <= 0 || len(buf) < width*height*4 {
		return [4]uint8{}
	}

	x = clampf(x, 0, float64(width-1))
	y = clampf(y, 0, float64(height-1))

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := min(x0+1, width-1)
	y1 := min(y0+1, height-1)
	tx := x - float64(x0)
	ty := y - float64(y0)

	i00 := (y0*width + x0) * 4
	i10 := (y0*width + x1) * 4
	i01 := (y1*width + x0) * 4
	i11 := (y1*width + x1) * 4

	var out [4]uint8
	for c := 0; c < 4; c++ {
		top := float64(buf[i00+c])*(1-tx) + float64(buf[i10+c])*tx
		bottom := float64(buf[i01+c])*(1-tx) + float64(buf[i11+c])*tx
		out[c] = uint8(math.Round(top*(1-ty) + bottom*ty))
	}
	return out
}

// clampf maps NaN to lo.
func clampf(v, lo, hi float64) float64 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
