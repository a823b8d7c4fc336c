package filter

import (
	"image"
	"math"

	"github.com/example/retoucher/internal/raster"
)

// colorFunc edits a straight-alpha colour in place. Channels are 0..255.
type colorFunc func(c *[3]float64, x, y int)

// perPixel runs fn over every non-transparent pixel of src in parallel
// stripes, writing to a new buffer. Alpha is preserved.
func perPixel(src *image.RGBA, fn colorFunc) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := raster.New(w, h)
	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(x, y)
				a := src.Pix[i+3]
				if a == 0 {
					continue
				}
				af := float64(a) / 255
				c := [3]float64{float64(src.Pix[i]) / af, float64(src.Pix[i+1]) / af, float64(src.Pix[i+2]) / af}
				fn(&c, x, y)
				o := out.PixOffset(x, y)
				for k := 0; k < 3; k++ {
					out.Pix[o+k] = raster.Clamp8(math.Min(math.Max(c[k], 0), 255) * af)
				}
				out.Pix[o+3] = a
			}
		}
	})
	return out
}

func luma(c *[3]float64) float64 { return 0.299*c[0] + 0.587*c[1] + 0.114*c[2] }

func lerp(a, b, t float64) float64 {
	if t == 1 {
		return b
	}
	return a + (b-a)*t
}

func clampCoord(v, n int) int {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// sampleClamped reads the premultiplied pixel nearest (x, y), clamping to
// the edge.
func sampleClamped(src *image.RGBA, x, y float64) [4]float64 {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	ix := clampCoord(int(math.Round(x)), w)
	iy := clampCoord(int(math.Round(y)), h)
	i := src.PixOffset(ix, iy)
	return [4]float64{float64(src.Pix[i]), float64(src.Pix[i+1]), float64(src.Pix[i+2]), float64(src.Pix[i+3])}
}

// sampleBilinear reads src at (x, y) with bilinear interpolation. ok is
// false when the point lies outside the image; callers leave such pixels
// transparent rather than wrapping.
func sampleBilinear(src *image.RGBA, x, y float64) (px [4]float64, ok bool) {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if x < 0 || y < 0 || x > float64(w-1) || y > float64(h-1) {
		return px, false
	}
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)
	p00 := src.PixOffset(x0, y0)
	p10 := src.PixOffset(x1, y0)
	p01 := src.PixOffset(x0, y1)
	p11 := src.PixOffset(x1, y1)
	for k := 0; k < 4; k++ {
		top := lerp(float64(src.Pix[p00+k]), float64(src.Pix[p10+k]), fx)
		bot := lerp(float64(src.Pix[p01+k]), float64(src.Pix[p11+k]), fx)
		px[k] = lerp(top, bot, fy)
	}
	return px, true
}

func store(out *image.RGBA, x, y int, px [4]float64) {
	i := out.PixOffset(x, y)
	a := raster.Clamp8(px[3])
	for k := 0; k < 3; k++ {
		v := raster.Clamp8(px[k])
		if v > a {
			v = a
		}
		out.Pix[i+k] = v
	}
	out.Pix[i+3] = a
}

// remap builds the output by inverse mapping: for each destination pixel fn
// returns the source coordinate to read.
func remap(src *image.RGBA, fn func(x, y float64) (float64, float64)) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := raster.New(w, h)
	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				sx, sy := fn(float64(x), float64(y))
				if px, ok := sampleBilinear(src, sx, sy); ok {
					store(out, x, y, px)
				}
			}
		}
	})
	return out
}

// convolve3 applies a 3×3 kernel to the colour channels, keeping alpha.
// Edges clamp.
func convolve3(src *image.RGBA, k [9]float64, bias float64) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := raster.New(w, h)
	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				i := src.PixOffset(x, y)
				a := float64(src.Pix[i+3])
				if a == 0 {
					continue
				}
				var acc [3]float64
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						j := src.PixOffset(clampCoord(x+kx, w), clampCoord(y+ky, h))
						wgt := k[(ky+1)*3+kx+1]
						for c := 0; c < 3; c++ {
							acc[c] += float64(src.Pix[j+c]) * wgt
						}
					}
				}
				store(out, x, y, [4]float64{acc[0] + bias*a/255, acc[1] + bias*a/255, acc[2] + bias*a/255, a})
			}
		}
	})
	return out
}

// vignetteFactor is the darkening multiplier at (x, y): 1 at the centre
// falling by strength times the squared normalised distance.
func vignetteFactor(x, y, w, h int, strength float64) float64 {
	cx, cy := float64(w-1)/2, float64(h-1)/2
	maxD := math.Hypot(cx, cy)
	if maxD == 0 {
		return 1
	}
	d := math.Hypot(float64(x)-cx, float64(y)-cy) / maxD
	return math.Max(0, 1-strength*d*d)
}
