package retouch

import (
	"image"
	"math"

	"github.com/example/retoucher/internal/raster"
)

type cloneStroke struct {
	offset image.Point
	region image.Rectangle
	before *image.RGBA
	target image.Point
	mask   *image.Alpha
}

// SetCloneSource sets the point the next stroke samples from.
func (e *Engine) SetCloneSource(x, y int) {
	e.mu.Lock()
	e.source = &image.Point{X: x, Y: y}
	e.mu.Unlock()
}

// ClearCloneSource forgets the source; stamps become no-ops.
func (e *Engine) ClearCloneSource() {
	e.mu.Lock()
	e.source = nil
	e.stroke = nil
	e.mu.Unlock()
}

// CloneSource reports the current source point.
func (e *Engine) CloneSource() (image.Point, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source == nil {
		return image.Point{}, false
	}
	return *e.source, true
}

// brushAlpha is opacity inside hardness·r, fading linearly to zero at r.
func brushAlpha(b BrushSettings, d float64) float64 {
	if d >= b.Radius {
		return 0
	}
	plateau := math.Max(0, math.Min(1, b.Hardness)) * b.Radius
	if d <= plateau {
		return b.Opacity
	}
	return b.Opacity * (b.Radius - d) / (b.Radius - plateau)
}

// CloneStamp copies the brush footprint from the source into (x, y). The
// offset between source and target is fixed by the first stamp of a stroke.
// Without a source it returns (nil, false) and leaves everything untouched.
func (e *Engine) CloneStamp(img *image.RGBA, x, y int) (*image.RGBA, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.source == nil || e.brush.Radius <= 0 || !image.Pt(x, y).In(img.Bounds()) {
		return nil, false
	}
	if e.stroke == nil {
		e.stroke = &cloneStroke{
			offset: e.source.Sub(image.Pt(x, y)),
			before: raster.Clone(img),
			target: image.Pt(x, y),
			mask:   image.NewAlpha(img.Bounds()),
		}
	}
	st := e.stroke
	e.setState(StateSampling)
	r := e.brush.Radius
	b := img.Bounds()
	foot := image.Rect(x-int(math.Ceil(r)), y-int(math.Ceil(r)), x+int(math.Ceil(r))+1, y+int(math.Ceil(r))+1).Intersect(b)

	e.setState(StateCompositing)
	out := raster.Clone(img)
	for py := foot.Min.Y; py < foot.Max.Y; py++ {
		for px := foot.Min.X; px < foot.Max.X; px++ {
			w := brushAlpha(e.brush, math.Hypot(float64(px-x), float64(py-y)))
			if w <= 0 {
				continue
			}
			sp := image.Pt(px, py).Add(st.offset)
			if !sp.In(b) {
				continue
			}
			si := img.PixOffset(sp.X, sp.Y)
			di := out.PixOffset(px, py)
			mix(out.Pix[di:di+4:di+4], img.Pix[si:si+4:si+4], w)
			if a := alpha(w); a.A > st.mask.AlphaAt(px, py).A {
				st.mask.SetAlpha(px, py, a)
			}
		}
	}
	st.region = st.region.Union(foot)
	e.setState(StateIdle)
	return out, true
}

// EndStroke closes the running clone stroke and records it. It reports
// whether a stroke was open.
func (e *Engine) EndStroke() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.stroke
	e.stroke = nil
	if st == nil || st.region.Empty() {
		return false
	}
	var mask *image.Alpha
	if m, ok := st.mask.SubImage(st.region).(*image.Alpha); ok {
		mask = m
	}
	src := st.target.Add(st.offset)
	e.commit(RepairTask{
		Tool: ToolCloneStamp,
		Context: TaskContext{
			SourceX: float64(src.X), SourceY: float64(src.Y),
			TargetX: float64(st.target.X), TargetY: float64(st.target.Y),
			Radius: e.brush.Radius, Feathering: e.brush.Radius * (1 - e.brush.Hardness), Strength: e.brush.Opacity,
		},
		Region: st.region,
		Mask:   mask,
		Before: before(st.before, st.region),
	})
	return true
}

// StrokeActive reports whether a clone stroke is open.
func (e *Engine) StrokeActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stroke != nil
}
