package scene

import (
	"image"
	"image/color"
	gomath "math"

	"github.com/Faultbox/autolow/pkg/math"
)

// rgba is a linear color with components in [0,1].
type rgba [4]float64

func (c rgba) lerp3(w0, w1, w2 float64, c1, c2 rgba) rgba {
	var out rgba
	for i := range out {
		out[i] = w0*c[i] + w1*c1[i] + w2*c2[i]
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// pixelWriter stores colors at the precision of the destination.
type pixelWriter func(x, y int, c rgba)

func writerFor(img image.Image) pixelWriter {
	switch dst := img.(type) {
	case *image.NRGBA64:
		return func(x, y int, c rgba) {
			dst.SetNRGBA64(x, y, color.NRGBA64{
				R: uint16(gomath.Round(clamp01(c[0]) * 0xffff)),
				G: uint16(gomath.Round(clamp01(c[1]) * 0xffff)),
				B: uint16(gomath.Round(clamp01(c[2]) * 0xffff)),
				A: uint16(gomath.Round(clamp01(c[3]) * 0xffff)),
			})
		}
	case *image.NRGBA:
		return func(x, y int, c rgba) {
			dst.SetNRGBA(x, y, color.NRGBA{
				R: uint8(gomath.Round(clamp01(c[0]) * 0xff)),
				G: uint8(gomath.Round(clamp01(c[1]) * 0xff)),
				B: uint8(gomath.Round(clamp01(c[2]) * 0xff)),
				A: uint8(gomath.Round(clamp01(c[3]) * 0xff)),
			})
		}
	}
	return nil
}

// fillTriangle rasterizes a UV-space triangle into a width x height target,
// interpolating corner colors barycentrically. UV (0,0) is the bottom-left
// corner of the image.
func fillTriangle(width, height int, uv [3]math.Vec2, col [3]rgba, set pixelWriter) {
	var px, py [3]float64
	for i := range uv {
		px[i] = float64(uv[i].X) * float64(width)
		py[i] = (1 - float64(uv[i].Y)) * float64(height)
	}

	minX := max(int(gomath.Floor(min(px[0], px[1], px[2]))), 0)
	maxX := min(int(gomath.Ceil(max(px[0], px[1], px[2]))), width-1)
	minY := max(int(gomath.Floor(min(py[0], py[1], py[2]))), 0)
	maxY := min(int(gomath.Ceil(max(py[0], py[1], py[2]))), height-1)
	if minX > maxX || minY > maxY {
		return
	}

	det := (py[1]-py[2])*(px[0]-px[2]) + (px[2]-px[1])*(py[0]-py[2])
	if det > -1e-12 && det < 1e-12 {
		return
	}
	invDet := 1.0 / det

	dy12 := py[1] - py[2]
	dx21 := px[2] - px[1]
	dy20 := py[2] - py[0]
	dx02 := px[0] - px[2]

	// Sample at pixel centers.
	for sy := minY; sy <= maxY; sy++ {
		dsy := float64(sy) + 0.5 - py[2]
		for sx := minX; sx <= maxX; sx++ {
			dsx := float64(sx) + 0.5 - px[2]
			w0 := (dy12*dsx + dx21*dsy) * invDet
			w1 := (dy20*dsx + dx02*dsy) * invDet
			w2 := 1.0 - w0 - w1
			if w0 < -0.001 || w1 < -0.001 || w2 < -0.001 {
				continue
			}
			set(sx, sy, col[0].lerp3(w0, w1, w2, col[1], col[2]))
		}
	}
}
