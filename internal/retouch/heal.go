package retouch

import (
	"image"
	"math"
	"sort"

	"github.com/example/retoucher/internal/raster"
)

// HealSamples is the number of annulus samples taken per heal.
const HealSamples = 16

// Annulus bounds as multiples of the brush radius.
const (
	annulusInner = 1.5
	annulusOuter = 2.5
)

type sample struct {
	x, y int
	c    [4]float64
	dist float64
}

func pixelAt(img *image.RGBA, x, y int) [4]float64 {
	b := img.Bounds()
	x = raster.ClampInt(x, b.Min.X, b.Max.X-1)
	y = raster.ClampInt(y, b.Min.Y, b.Max.Y-1)
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+4 : i+4]
	return [4]float64{float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])}
}

// annulus samples HealSamples points around (cx, cy), alternating the ring
// radius between the inner and outer bound.
func annulus(img *image.RGBA, cx, cy, r float64) []sample {
	out := make([]sample, 0, HealSamples)
	for k := 0; k < HealSamples; k++ {
		a := 2 * math.Pi * float64(k) / HealSamples
		rr := r * (annulusInner + (annulusOuter-annulusInner)*float64(k%4)/3)
		x := int(math.Round(cx + rr*math.Cos(a)))
		y := int(math.Round(cy + rr*math.Sin(a)))
		out = append(out, sample{x: x, y: y, c: pixelAt(img, x, y)})
	}
	return out
}

// weightedColour ranks samples by their distance to the sample mean and
// averages them with weight 1/(rank+1). The first returned sample is the
// closest one to the mean.
func weightedColour(s []sample) ([4]float64, []sample) {
	var mean [4]float64
	for _, v := range s {
		for c := range mean {
			mean[c] += v.c[c]
		}
	}
	for c := range mean {
		mean[c] /= float64(len(s))
	}
	for i := range s {
		var d float64
		for c := range mean {
			d += (s[i].c[c] - mean[c]) * (s[i].c[c] - mean[c])
		}
		s[i].dist = d
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].dist < s[j].dist })
	var out [4]float64
	var total float64
	for rank, v := range s {
		w := 1 / float64(rank+1)
		total += w
		for c := range out {
			out[c] += v.c[c] * w
		}
	}
	for c := range out {
		out[c] /= total
	}
	return out, s
}

// SpotHeal replaces the disc of radius r at (x, y) with colour synthesized
// from the surrounding annulus. The texture of the best matching sample is
// carried over and the result is blended through a radial mask that is
// full strength at the centre and zero at the rim.
func (e *Engine) SpotHeal(img *image.RGBA, x, y, r, strength float64) (*image.RGBA, error) {
	if r <= 0 {
		return nil, ErrInvalidRadius
	}
	if !inside(img, x, y) {
		return nil, ErrOutsideImage
	}
	strength = math.Max(0, math.Min(1, strength))

	e.mu.Lock()
	defer e.mu.Unlock()

	e.setState(StateSampling)
	avg, ranked := weightedColour(annulus(img, x, y, r))
	best := ranked[0]

	e.setState(StateCompositing)
	out := raster.Clone(img)
	region := image.Rect(int(math.Floor(x-r)), int(math.Floor(y-r)), int(math.Ceil(x+r))+1, int(math.Ceil(y+r))+1).Intersect(img.Bounds())
	mask := image.NewAlpha(region)
	for py := region.Min.Y; py < region.Max.Y; py++ {
		for px := region.Min.X; px < region.Max.X; px++ {
			d := math.Hypot(float64(px)-x, float64(py)-y)
			if d >= r {
				continue
			}
			w := strength * (1 - d/r)
			dx, dy := px-int(x), py-int(y)
			tex := pixelAt(img, best.x+dx, best.y+dy)
			var px4 [4]uint8
			for c := 0; c < 4; c++ {
				px4[c] = raster.Clamp8(avg[c] + tex[c] - best.c[c])
			}
			i := out.PixOffset(px, py)
			mix(out.Pix[i:i+4:i+4], px4[:], w)
			mask.SetAlpha(px, py, alpha(w))
		}
	}

	e.commit(RepairTask{
		Tool:    ToolSpotHeal,
		Context: TaskContext{SourceX: float64(best.x), SourceY: float64(best.y), TargetX: x, TargetY: y, Radius: r, Feathering: r, Strength: strength},
		Region:  region,
		Mask:    mask,
		Before:  before(img, region),
	})
	return out, nil
}
