package filter

import (
	"image"
	"math"

	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/render"
)

// integral holds summed-area tables of each channel and of its square.
type integral struct {
	w, h int
	sum  [4][]int64
	sq   [3][]int64
}

func newIntegral(src *image.RGBA) *integral {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	it := &integral{w: w, h: h}
	n := (w + 1) * (h + 1)
	for c := 0; c < 4; c++ {
		it.sum[c] = make([]int64, n)
	}
	for c := 0; c < 3; c++ {
		it.sq[c] = make([]int64, n)
	}
	for y := 0; y < h; y++ {
		var row [4]int64
		var rowSq [3]int64
		for x := 0; x < w; x++ {
			i := src.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				v := int64(src.Pix[i+c])
				row[c] += v
				it.sum[c][(y+1)*(w+1)+x+1] = it.sum[c][y*(w+1)+x+1] + row[c]
				if c < 3 {
					rowSq[c] += v * v
					it.sq[c][(y+1)*(w+1)+x+1] = it.sq[c][y*(w+1)+x+1] + rowSq[c]
				}
			}
		}
	}
	return it
}

func (it *integral) rect(t []int64, x0, y0, x1, y1 int) int64 {
	s := it.w + 1
	return t[y1*s+x1] - t[y0*s+x1] - t[y1*s+x0] + t[y0*s+x0]
}

// region returns the channel means and the summed RGB variance of the
// inclusive window [x0,x1]×[y0,y1].
func (it *integral) region(x0, y0, x1, y1 int) (mean [4]float64, variance float64) {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, it.w-1)+1, min(y1, it.h-1)+1
	n := float64((x1 - x0) * (y1 - y0))
	for c := 0; c < 4; c++ {
		mean[c] = float64(it.rect(it.sum[c], x0, y0, x1, y1)) / n
		if c < 3 {
			variance += float64(it.rect(it.sq[c], x0, y0, x1, y1))/n - mean[c]*mean[c]
		}
	}
	return mean, variance
}

// oilPainting is a Kuwahara filter: each pixel takes the mean of whichever
// of its four quadrant windows has the least colour variance, blended with
// the original by intensity.
func oilPainting(src *image.RGBA, v Values) *image.RGBA {
	r := max(int(math.Round(v["radius"])), 1)
	t := v["intensity"] / 100
	w, h := src.Rect.Dx(), src.Rect.Dy()
	it := newIntegral(src)
	out := raster.New(w, h)
	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				quads := [4][4]int{
					{x - r, y - r, x, y},
					{x, y - r, x + r, y},
					{x - r, y, x, y + r},
					{x, y, x + r, y + r},
				}
				best := math.Inf(1)
				var mean [4]float64
				for _, q := range quads {
					m, vr := it.region(q[0], q[1], q[2], q[3])
					if vr < best {
						best, mean = vr, m
					}
				}
				i := src.PixOffset(x, y)
				var px [4]float64
				for c := 0; c < 4; c++ {
					px[c] = lerp(float64(src.Pix[i+c]), mean[c], t)
				}
				store(out, x, y, px)
			}
		}
	})
	return out
}

// bilateral smooths within radius r, weighting neighbours by spatial
// distance and by colour difference so edges survive.
func bilateral(src *image.RGBA, r int, sigmaRange float64) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := raster.New(w, h)
	sigmaSpace := math.Max(float64(r)/2, 0.5)
	spatial := make([]float64, (2*r+1)*(2*r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			spatial[(dy+r)*(2*r+1)+dx+r] = math.Exp(-float64(dx*dx+dy*dy) / (2 * sigmaSpace * sigmaSpace))
		}
	}
	rangeDen := 2 * sigmaRange * sigmaRange
	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				ci := src.PixOffset(x, y)
				var acc [4]float64
				var total float64
				for dy := -r; dy <= r; dy++ {
					for dx := -r; dx <= r; dx++ {
						j := src.PixOffset(clampCoord(x+dx, w), clampCoord(y+dy, h))
						var d2 float64
						for c := 0; c < 3; c++ {
							d := float64(src.Pix[j+c]) - float64(src.Pix[ci+c])
							d2 += d * d
						}
						wgt := spatial[(dy+r)*(2*r+1)+dx+r] * math.Exp(-d2/rangeDen)
						for c := 0; c < 4; c++ {
							acc[c] += float64(src.Pix[j+c]) * wgt
						}
						total += wgt
					}
				}
				for c := range acc {
					acc[c] /= total
				}
				store(out, x, y, acc)
			}
		}
	})
	return out
}

func watercolor(src *image.RGBA, v Values) *image.RGBA {
	soft := render.BoxBlur(src, int(math.Round(v["radius"])))
	levels := math.Round(v["levels"])
	flat := perPixel(soft, func(c *[3]float64, _, _ int) {
		for k := range c {
			c[k] = posterizeValue(c[k], levels)
		}
	})
	return bilateral(flat, int(math.Round(v["smoothing"])), 30)
}

// pencilSketch is grayscale, inverted and blurred, then colour-dodged back
// over the grayscale copy.
func pencilSketch(src *image.RGBA, v Values) *image.RGBA {
	gray := grayscale(src, Values{"amount": 100})
	inv := invert(gray, Values{"amount": 100})
	soft := render.BoxBlur(inv, int(math.Round(v["radius"])))
	t := v["intensity"] / 100
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(x, y)
			a := src.Pix[i+3]
			if a == 0 {
				continue
			}
			af := float64(a) / 255
			g := float64(gray.Pix[i]) / af
			b := float64(soft.Pix[i]) / af
			dodge := 255.0
			if b < 255 {
				dodge = math.Min(255, g*255/(255-b))
			}
			var px [4]float64
			for c := 0; c < 3; c++ {
				px[c] = lerp(float64(src.Pix[i+c])/af, dodge, t) * af
			}
			px[3] = float64(a)
			store(out, x, y, px)
		}
	}
	return out
}
