// Package render holds compositing helpers shared by the scene renderer and
// the filter pipeline: drop shadows and separable box blurs.
package render

import (
	"image"
	"image/color"
	"image/draw"
)

// ShadowOptions describes a drop shadow cast by a node.
type ShadowOptions struct {
	Radius  int
	Offset  image.Point
	Opacity float64
	Color   color.RGBA
}

// Enabled reports whether the options would draw anything.
func (o ShadowOptions) Enabled() bool { return o.Opacity > 0 }

// ShadowResult is the composited image and the position of the original
// content inside it.
type ShadowResult struct {
	Image  *image.RGBA
	Offset image.Point
}

// DefaultShadowOptions is the shadow used by shape and text styles that ask
// for one without further detail.
func DefaultShadowOptions() ShadowOptions {
	return ShadowOptions{Radius: 6, Offset: image.Pt(4, 4), Opacity: 0.5, Color: color.RGBA{A: 255}}
}

// ApplyShadow composites img over a blurred silhouette of its alpha channel.
// The result is zero-based; Offset says where img's top-left corner landed.
func ApplyShadow(img *image.RGBA, opts ShadowOptions) ShadowResult {
	if img == nil {
		return ShadowResult{}
	}
	if img.Bounds().Empty() || !opts.Enabled() {
		return ShadowResult{Image: img}
	}
	opacity := min(opts.Opacity, 1)
	radius := max(opts.Radius, 0)

	src := img.Bounds()
	padded := src.Inset(-radius)
	cast := padded.Add(opts.Offset)
	all := src.Union(cast)

	silhouette := image.NewAlpha(padded.Sub(padded.Min))
	for y := src.Min.Y; y < src.Max.Y; y++ {
		for x := src.Min.X; x < src.Max.X; x++ {
			if a := img.RGBAAt(x, y).A; a != 0 {
				silhouette.SetAlpha(x-padded.Min.X, y-padded.Min.Y, color.Alpha{A: a})
			}
		}
	}
	soft := BlurAlpha(silhouette, radius)

	dst := image.NewRGBA(all.Sub(all.Min))
	tint := opts.Color
	if tint == (color.RGBA{}) {
		tint = color.RGBA{A: 255}
	}
	scale := func(v uint8) uint8 { return uint8(float64(v)*opacity + 0.5) }
	tint = color.RGBA{R: scale(tint.R), G: scale(tint.G), B: scale(tint.B), A: scale(tint.A)}
	if tint.A > 0 {
		draw.DrawMask(dst, soft.Bounds().Add(cast.Min.Sub(all.Min)), image.NewUniform(tint), image.Point{}, soft, image.Point{}, draw.Over)
	}
	draw.Draw(dst, src.Sub(all.Min), img, src.Min, draw.Over)
	return ShadowResult{Image: dst, Offset: src.Min.Sub(all.Min)}
}
