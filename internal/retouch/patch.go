package retouch

import (
	"image"
	"math"

	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/selection"
)

// PatchFeather is the width in pixels of the patch mask's soft edge.
const PatchFeather = 8

// ellipseMask is an elliptical coverage mask filling a w×h box, opaque
// inside and fading to zero over feather pixels at the rim.
func ellipseMask(w, h int, feather float64) *image.Alpha {
	m := image.NewAlpha(image.Rect(0, 0, w, h))
	a, b := float64(w)/2, float64(h)/2
	short := math.Min(a, b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			nx := (float64(x) + 0.5 - a) / a
			ny := (float64(y) + 0.5 - b) / b
			edge := (1 - math.Sqrt(nx*nx+ny*ny)) * short
			switch {
			case edge <= 0:
			case edge >= feather:
				m.Pix[y*m.Stride+x] = 0xff
			default:
				m.Pix[y*m.Stride+x] = raster.Clamp8(edge / feather * 255)
			}
		}
	}
	return m
}

// Patch lifts the pixels under area and blends them at an offset of
// (dx, dy) through a feathered ellipse intersected with the selection. A
// target entirely off the image fails with ErrOutsideImage.
func (e *Engine) Patch(img *image.RGBA, area selection.Area, dx, dy int) (*image.RGBA, error) {
	b := img.Bounds()
	box := area.Bounds().Intersect(b)
	if area.IsZero() || box.Empty() {
		return nil, ErrEmptySelection
	}
	offset := image.Pt(dx, dy)
	target := box.Add(offset).Intersect(b)
	if target.Empty() {
		return nil, ErrOutsideImage
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.setState(StateSampling)
	src, err := raster.Crop(img, box)
	if err != nil {
		e.setState(StateIdle)
		return nil, err
	}
	sel := area.Rasterize(b.Dx(), b.Dy())
	ell := ellipseMask(box.Dx(), box.Dy(), PatchFeather)

	e.setState(StateCompositing)
	out := raster.Clone(img)
	mask := image.NewAlpha(target)
	for y := 0; y < box.Dy(); y++ {
		for x := 0; x < box.Dx(); x++ {
			tp := box.Min.Add(image.Pt(x, y)).Add(offset)
			if !tp.In(b) {
				continue
			}
			sx, sy := box.Min.X+x-b.Min.X, box.Min.Y+y-b.Min.Y
			w := float64(ell.Pix[y*ell.Stride+x]) / 255 * float64(sel.Pix[sy*sel.Stride+sx]) / 255
			if w <= 0 {
				continue
			}
			si := src.PixOffset(x, y)
			di := out.PixOffset(tp.X, tp.Y)
			mix(out.Pix[di:di+4:di+4], src.Pix[si:si+4:si+4], w)
			mask.SetAlpha(tp.X, tp.Y, alpha(w))
		}
	}

	e.commit(RepairTask{
		Tool: ToolPatch,
		Context: TaskContext{
			SourceX: float64(box.Min.X), SourceY: float64(box.Min.Y),
			TargetX: float64(box.Min.X + dx), TargetY: float64(box.Min.Y + dy),
			Radius: math.Max(float64(box.Dx()), float64(box.Dy())) / 2, Feathering: PatchFeather, Strength: 1,
		},
		Region: target,
		Mask:   mask,
		Before: before(img, target),
	})
	return out, nil
}
