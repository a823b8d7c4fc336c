package filter

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/example/retoucher/internal/raster"
)

func brightness(src *image.RGBA, v Values) *image.RGBA {
	delta := v["value"] / 100 * 255
	if delta == 0 {
		return raster.Clone(src)
	}
	return perPixel(src, func(c *[3]float64, _, _ int) {
		for k := range c {
			c[k] += delta
		}
	})
}

// contrastFactor maps a percentage in [-100,100] to the classic
// 259(C+255)/(255(259-C)) factor with C in [-255,255].
func contrastFactor(pct float64) float64 {
	c := pct * 2.55
	return 259 * (c + 255) / (255 * (259 - c))
}

func contrastPixel(c *[3]float64, f float64) {
	for k := range c {
		c[k] = f*(c[k]-128) + 128
	}
}

func contrast(src *image.RGBA, v Values) *image.RGBA {
	if v["value"] == 0 {
		return raster.Clone(src)
	}
	f := contrastFactor(v["value"])
	return perPixel(src, func(c *[3]float64, _, _ int) { contrastPixel(c, f) })
}

func saturatePixel(c *[3]float64, scale float64) {
	g := luma(c)
	for k := range c {
		c[k] = g + (c[k]-g)*scale
	}
}

func saturation(src *image.RGBA, v Values) *image.RGBA {
	if v["value"] == 0 {
		return raster.Clone(src)
	}
	scale := 1 + v["value"]/100
	return perPixel(src, func(c *[3]float64, _, _ int) { saturatePixel(c, scale) })
}

var (
	rgbToYIQ = mat.NewDense(3, 3, []float64{
		0.299, 0.587, 0.114,
		0.596, -0.274, -0.322,
		0.211, -0.523, 0.312,
	})
	sepiaMatrix = mat.NewDense(3, 3, []float64{
		0.393, 0.769, 0.189,
		0.349, 0.686, 0.168,
		0.272, 0.534, 0.131,
	})
)

// hueMatrix rotates chroma in YIQ space by deg degrees and returns the
// equivalent RGB matrix.
func hueMatrix(deg float64) *mat.Dense {
	s, c := math.Sincos(deg * math.Pi / 180)
	rot := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
	var inv mat.Dense
	if err := inv.Inverse(rgbToYIQ); err != nil {
		panic(err)
	}
	var m mat.Dense
	m.Product(&inv, rot, rgbToYIQ)
	return &m
}

// mixMatrix blends identity with m: (1-t)·I + t·m.
func mixMatrix(m mat.Matrix, t float64) *mat.Dense {
	var out mat.Dense
	out.Scale(t, m)
	for i := 0; i < 3; i++ {
		out.Set(i, i, out.At(i, i)+(1-t))
	}
	return &out
}

func applyMatrix(c *[3]float64, m *mat.Dense) {
	r, g, b := c[0], c[1], c[2]
	for i := 0; i < 3; i++ {
		c[i] = m.At(i, 0)*r + m.At(i, 1)*g + m.At(i, 2)*b
	}
}

func matrixFilter(src *image.RGBA, m *mat.Dense) *image.RGBA {
	return perPixel(src, func(c *[3]float64, _, _ int) { applyMatrix(c, m) })
}

func hue(src *image.RGBA, v Values) *image.RGBA {
	if v["angle"] == 0 {
		return raster.Clone(src)
	}
	return matrixFilter(src, hueMatrix(v["angle"]))
}

func grayscale(src *image.RGBA, v Values) *image.RGBA {
	t := v["amount"] / 100
	return perPixel(src, func(c *[3]float64, _, _ int) {
		g := luma(c)
		for k := range c {
			c[k] = lerp(c[k], g, t)
		}
	})
}

func sepia(src *image.RGBA, v Values) *image.RGBA {
	return matrixFilter(src, mixMatrix(sepiaMatrix, v["amount"]/100))
}

func invert(src *image.RGBA, v Values) *image.RGBA {
	t := v["amount"] / 100
	return perPixel(src, func(c *[3]float64, _, _ int) {
		for k := range c {
			c[k] = lerp(c[k], 255-c[k], t)
		}
	})
}

func posterizeValue(x, levels float64) float64 {
	n := levels - 1
	return math.Round(x/255*n) * 255 / n
}

func posterize(src *image.RGBA, v Values) *image.RGBA {
	levels := math.Round(v["levels"])
	return perPixel(src, func(c *[3]float64, _, _ int) {
		for k := range c {
			c[k] = posterizeValue(c[k], levels)
		}
	})
}
