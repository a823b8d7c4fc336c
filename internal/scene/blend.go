package scene

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/fogleman/gg"

	"github.com/example/retoucher/internal/raster"
)

// ParseBlendMode accepts the names used by BlendMode constants; empty is
// normal.
func ParseBlendMode(s string) (BlendMode, error) {
	switch m := BlendMode(s); m {
	case "":
		return BlendNormal, nil
	case BlendNormal, BlendMultiply, BlendScreen, BlendOverlay, BlendDarken, BlendLighten, BlendColorDodge:
		return m, nil
	}
	return "", fmt.Errorf("unknown blend mode %q", s)
}

type blendFunc func(cb, cs float64) float64

var blendFuncs = map[BlendMode]blendFunc{
	BlendMultiply: func(cb, cs float64) float64 { return cb * cs },
	BlendScreen:   func(cb, cs float64) float64 { return cb + cs - cb*cs },
	BlendOverlay: func(cb, cs float64) float64 {
		if cb <= 0.5 {
			return 2 * cb * cs
		}
		return 1 - 2*(1-cb)*(1-cs)
	},
	BlendDarken:  math.Min,
	BlendLighten: math.Max,
	BlendColorDodge: func(cb, cs float64) float64 {
		if cb == 0 {
			return 0
		}
		if cs >= 1 {
			return 1
		}
		return math.Min(1, cb/(1-cs))
	},
}

// place returns img positioned for transform t: either img itself at an
// integer offset, or a resampled copy covering t.Bounds().
func place(img *image.RGBA, t Transform) (*image.RGBA, image.Point) {
	if t.Rotation == 0 && t.X == math.Trunc(t.X) && t.Y == math.Trunc(t.Y) {
		return img, image.Pt(int(t.X), int(t.Y))
	}
	b := t.Bounds()
	dc := gg.NewContext(max(b.Dx(), 1), max(b.Dy(), 1))
	cx, cy := t.centre()
	dc.Translate(cx-float64(b.Min.X), cy-float64(b.Min.Y))
	dc.Rotate(gg.Radians(t.Rotation))
	dc.DrawImageAnchored(img, 0, 0, 0.5, 0.5)
	return raster.ToRGBA(dc.Image()), b.Min
}

// composite draws src onto dst with its top-left at at.
func composite(dst, src *image.RGBA, at image.Point, mode BlendMode) {
	f, ok := blendFuncs[mode]
	if !ok {
		draw.Draw(dst, src.Bounds().Sub(src.Bounds().Min).Add(at), src, src.Bounds().Min, draw.Over)
		return
	}
	target := src.Bounds().Sub(src.Bounds().Min).Add(at).Intersect(dst.Bounds())
	for y := target.Min.Y; y < target.Max.Y; y++ {
		for x := target.Min.X; x < target.Max.X; x++ {
			si := src.PixOffset(x-at.X+src.Bounds().Min.X, y-at.Y+src.Bounds().Min.Y)
			as := float64(src.Pix[si+3]) / 255
			if as == 0 {
				continue
			}
			di := dst.PixOffset(x, y)
			ab := float64(dst.Pix[di+3]) / 255
			ao := as + ab*(1-as)
			for c := 0; c < 3; c++ {
				cs := float64(src.Pix[si+c]) / 255 / as
				var cb float64
				if ab > 0 {
					cb = float64(dst.Pix[di+c]) / 255 / ab
				}
				mixed := (1-ab)*cs + ab*f(cb, cs)
				dst.Pix[di+c] = raster.Clamp8((as*mixed + ab*cb*(1-as)) * 255)
			}
			dst.Pix[di+3] = raster.Clamp8(ao * 255)
		}
	}
}
