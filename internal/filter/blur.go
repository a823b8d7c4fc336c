package filter

import (
	"image"
	"math"

	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/render"
)

func boxBlur(src *image.RGBA, v Values) *image.RGBA {
	return render.BoxBlur(src, int(math.Round(v["radius"])))
}

// lineAverage averages n clamped samples from src at the offsets produced
// by at(k) for k in [0, n).
func lineAverage(src *image.RGBA, n int, at func(k int) (float64, float64)) [4]float64 {
	var acc [4]float64
	for k := 0; k < n; k++ {
		x, y := at(k)
		px := sampleClamped(src, x, y)
		for c := range acc {
			acc[c] += px[c]
		}
	}
	for c := range acc {
		acc[c] /= float64(n)
	}
	return acc
}

func motionBlur(src *image.RGBA, v Values) *image.RGBA {
	dist := int(math.Round(v["distance"]))
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := raster.New(w, h)
	if dist <= 1 {
		copy(out.Pix, src.Pix)
		return out
	}
	s, c := math.Sincos(v["angle"] * math.Pi / 180)
	half := float64(dist-1) / 2
	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				px := lineAverage(src, dist, func(k int) (float64, float64) {
					t := float64(k) - half
					return float64(x) + t*c, float64(y) + t*s
				})
				store(out, x, y, px)
			}
		}
	})
	return out
}

const radialSamples = 12

func radialBlur(src *image.RGBA, v Values) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := raster.New(w, h)
	strength := v["strength"] / 100
	if strength == 0 {
		copy(out.Pix, src.Pix)
		return out
	}
	cx := v["centerX"] / 100 * float64(w-1)
	cy := v["centerY"] / 100 * float64(h-1)
	maxD := math.Max(math.Hypot(math.Max(cx, float64(w-1)-cx), math.Max(cy, float64(h-1)-cy)), 1)
	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				dx, dy := float64(x)-cx, float64(y)-cy
				spread := strength * 0.25 * math.Hypot(dx, dy) / maxD
				px := lineAverage(src, radialSamples, func(k int) (float64, float64) {
					f := 1 - spread*float64(k)/(radialSamples-1)
					return cx + dx*f, cy + dy*f
				})
				store(out, x, y, px)
			}
		}
	})
	return out
}

func sharpen(src *image.RGBA, v Values) *image.RGBA {
	a := v["amount"] / 100
	return convolve3(src, [9]float64{
		0, -a, 0,
		-a, 1 + 4*a, -a,
		0, -a, 0,
	}, 0)
}

func emboss(src *image.RGBA, v Values) *image.RGBA {
	s := v["strength"]
	return convolve3(src, [9]float64{
		-2 * s, -s, 0,
		-s, 1, s,
		0, s, 2 * s,
	}, 0)
}

func edgeDetect(src *image.RGBA, v Values) *image.RGBA {
	s := v["strength"]
	return convolve3(src, [9]float64{
		-s, -s, -s,
		-s, 8 * s, -s,
		-s, -s, -s,
	}, 0)
}

func pixelate(src *image.RGBA, v Values) *image.RGBA {
	size := max(int(math.Round(v["size"])), 1)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := raster.New(w, h)
	for by := 0; by < h; by += size {
		for bx := 0; bx < w; bx += size {
			ex, ey := min(bx+size, w), min(by+size, h)
			var acc [4]float64
			for y := by; y < ey; y++ {
				for x := bx; x < ex; x++ {
					i := src.PixOffset(x, y)
					for c := 0; c < 4; c++ {
						acc[c] += float64(src.Pix[i+c])
					}
				}
			}
			n := float64((ex - bx) * (ey - by))
			for c := range acc {
				acc[c] /= n
			}
			for y := by; y < ey; y++ {
				for x := bx; x < ex; x++ {
					store(out, x, y, acc)
				}
			}
		}
	}
	return out
}
