package scene

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
)

// HandleSize is the edge length of a transformer handle in pixels.
const HandleSize = 8

// OverlayStyle holds the colours of selection outlines and transformer
// handles drawn on the overlay layer.
type OverlayStyle struct {
	SelectionStroke color.Color
	SelectionDash   color.Color
	HandleFill      color.Color
	HandleStroke    color.Color
	TransformerLine color.Color
}

// DefaultOverlayStyle is used until a theme is applied.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{
		SelectionStroke: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		SelectionDash:   color.NRGBA{A: 255},
		HandleFill:      color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		HandleStroke:    color.NRGBA{R: 0, G: 120, B: 215, A: 255},
		TransformerLine: color.NRGBA{R: 0, G: 120, B: 215, A: 255},
	}
}

// SetOverlayStyle replaces the overlay colours.
func (r *Renderer) SetOverlayStyle(s OverlayStyle) {
	r.mu.Lock()
	r.overlay = s
	r.mark(LayerOverlay)
	r.mu.Unlock()
}

// SetSelectionOutline draws pts (x, y pairs) as a marching-ants outline on
// the overlay. A nil slice removes it.
func (r *Renderer) SetSelectionOutline(pts []float64, closed bool) {
	r.mu.Lock()
	r.outline = append([]float64(nil), pts...)
	r.outlineClosed = closed
	r.mark(LayerOverlay)
	r.mu.Unlock()
}

// HandleRects returns the eight transformer handles of the selected node,
// corners first, or nil when nothing is selected.
func (r *Renderer) HandleRects() []image.Rectangle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handleRects()
}

func (r *Renderer) handleRects() []image.Rectangle {
	n, ok := r.arena.get(r.selected)
	if !ok {
		return nil
	}
	c := n.Transform.Corners()
	mid := func(a, b [2]float64) [2]float64 { return [2]float64{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2} }
	pts := [][2]float64{c[0], c[1], c[2], c[3], mid(c[0], c[1]), mid(c[1], c[2]), mid(c[2], c[3]), mid(c[3], c[0])}
	out := make([]image.Rectangle, len(pts))
	for i, p := range pts {
		x, y := int(p[0])-HandleSize/2, int(p[1])-HandleSize/2
		out[i] = image.Rect(x, y, x+HandleSize, y+HandleSize)
	}
	return out
}

func (r *Renderer) drawOverlay(dst *image.RGBA) {
	if len(r.outline) < 4 && r.selected.IsZero() {
		return
	}
	dc := gg.NewContextForRGBA(dst)
	if len(r.outline) >= 4 {
		dc.MoveTo(r.outline[0], r.outline[1])
		for i := 2; i+1 < len(r.outline); i += 2 {
			dc.LineTo(r.outline[i], r.outline[i+1])
		}
		if r.outlineClosed {
			dc.ClosePath()
		}
		dc.SetLineWidth(1)
		dc.SetColor(r.overlay.SelectionStroke)
		dc.StrokePreserve()
		dc.SetDash(4, 4)
		dc.SetColor(r.overlay.SelectionDash)
		dc.Stroke()
		dc.SetDash()
	}
	n, ok := r.arena.get(r.selected)
	if !ok {
		return
	}
	c := n.Transform.Corners()
	dc.MoveTo(c[0][0], c[0][1])
	for _, p := range c[1:] {
		dc.LineTo(p[0], p[1])
	}
	dc.ClosePath()
	dc.SetLineWidth(1)
	dc.SetColor(r.overlay.TransformerLine)
	dc.Stroke()
	for _, hr := range r.handleRects() {
		dc.DrawRectangle(float64(hr.Min.X), float64(hr.Min.Y), HandleSize, HandleSize)
		dc.SetColor(r.overlay.HandleFill)
		dc.FillPreserve()
		dc.SetColor(r.overlay.HandleStroke)
		dc.Stroke()
	}
}

// HandleAt reports which transformer handle, if any, contains (x, y).
func (r *Renderer) HandleAt(x, y int) (int, bool) {
	for i, hr := range r.HandleRects() {
		if image.Pt(x, y).In(hr) {
			return i, true
		}
	}
	return -1, false
}

