package filter

import (
	"image"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/example/retoucher/internal/raster"
)

func vignette(src *image.RGBA, v Values) *image.RGBA {
	s := v["strength"] / 100
	w, h := src.Rect.Dx(), src.Rect.Dy()
	return perPixel(src, func(c *[3]float64, x, y int) {
		f := vignetteFactor(x, y, w, h, s)
		for k := range c {
			c[k] *= f
		}
	})
}

// channelShift moves the red channel left and the blue channel right by n
// pixels, clamping at the edges.
func channelShift(src *image.RGBA, n int) *image.RGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := raster.New(w, h)
	copy(out.Pix, src.Pix)
	if n == 0 {
		return out
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := out.PixOffset(x, y)
			r := src.PixOffset(clampCoord(x+n, w), y)
			b := src.PixOffset(clampCoord(x-n, w), y)
			a := out.Pix[o+3]
			out.Pix[o] = min(src.Pix[r], a)
			out.Pix[o+2] = min(src.Pix[b+2], a)
		}
	}
	return out
}

func vintage(src *image.RGBA, v Values) *image.RGBA {
	toned := matrixFilter(src, mixMatrix(sepiaMatrix, v["intensity"]/100))
	if s := v["vignette"]; s > 0 {
		toned = vignette(toned, Values{"strength": s})
	}
	return channelShift(toned, int(math.Round(v["shift"])))
}

// crossMix tints the curved channels toward the cyan/yellow cast of
// cross-processed slide film.
var crossMix = mat.NewDense(3, 3, []float64{
	1.05, 0.00, -0.05,
	0.00, 1.00, 0.05,
	-0.05, 0.10, 0.85,
})

func crossProcess(src *image.RGBA, v Values) *image.RGBA {
	t := v["intensity"] / 100
	gamma := [3]float64{0.85, 1.0, 1.35}
	return perPixel(src, func(c *[3]float64, _, _ int) {
		orig := *c
		for k := range c {
			c[k] = 255 * math.Pow(c[k]/255, gamma[k])
		}
		applyMatrix(c, crossMix)
		for k := range c {
			c[k] = lerp(orig[k], c[k], t)
		}
	})
}

func lomography(src *image.RGBA, v Values) *image.RGBA {
	sat := 1 + v["saturation"]/100
	cf := contrastFactor(v["contrast"])
	s := v["vignette"] / 100 * 1.5
	w, h := src.Rect.Dx(), src.Rect.Dy()
	return perPixel(src, func(c *[3]float64, x, y int) {
		saturatePixel(c, sat)
		contrastPixel(c, cf)
		f := vignetteFactor(x, y, w, h, s)
		for k := range c {
			c[k] *= f
		}
	})
}

// addNoise draws uniform deltas in [-amount, amount]. shared uses one delta
// per pixel for all channels (film grain); otherwise each channel draws its
// own. Seeded so the same parameters give the same output.
func addNoise(src *image.RGBA, v Values, shared bool) *image.RGBA {
	amount := v["amount"] / 100 * 255
	rng := rand.New(rand.NewSource(int64(v["seed"])))
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := raster.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(x, y)
			a := src.Pix[i+3]
			var d [3]float64
			if shared {
				n := (rng.Float64()*2 - 1) * amount
				d = [3]float64{n, n, n}
			} else {
				for k := range d {
					d[k] = (rng.Float64()*2 - 1) * amount
				}
			}
			if a == 0 {
				continue
			}
			af := float64(a) / 255
			for k := 0; k < 3; k++ {
				c := math.Min(math.Max(float64(src.Pix[i+k])/af+d[k], 0), 255)
				out.Pix[i+k] = raster.Clamp8(c * af)
			}
			out.Pix[i+3] = a
		}
	}
	return out
}

func noise(src *image.RGBA, v Values) *image.RGBA     { return addNoise(src, v, false) }
func filmGrain(src *image.RGBA, v Values) *image.RGBA { return addNoise(src, v, true) }

// lensDistortion inverse-maps each output pixel by scaling its normalised
// radius with 1+k·r². Sources outside the image stay transparent.
func lensDistortion(src *image.RGBA, v Values) *image.RGBA {
	k := v["k"] / 100
	w, h := src.Rect.Dx(), src.Rect.Dy()
	cx, cy := float64(w-1)/2, float64(h-1)/2
	norm := math.Max(math.Hypot(cx, cy), 1)
	return remap(src, func(x, y float64) (float64, float64) {
		nx, ny := (x-cx)/norm, (y-cy)/norm
		f := 1 + k*(nx*nx+ny*ny)
		return cx + nx*f*norm, cy + ny*f*norm
	})
}

// wave offsets each pixel along the perpendicular of direction angle by a
// sine of its position along that direction.
func wave(src *image.RGBA, v Values) *image.RGBA {
	amp := v["amplitude"]
	length := v["wavelength"]
	s, c := math.Sincos(v["angle"] * math.Pi / 180)
	return remap(src, func(x, y float64) (float64, float64) {
		along := x*c + y*s
		off := amp * math.Sin(2*math.Pi*along/length)
		return x - s*off, y + c*off
	})
}
